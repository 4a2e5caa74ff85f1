package types

import "github.com/holiman/uint256"

// MarshalBinary encodes a QuorumCertificate deterministically.
func (qc QuorumCertificate) MarshalBinary() ([]byte, error) {
	w := NewWriter()
	w.WriteUint64(uint64(qc.View))
	w.WriteFixed(qc.LeafCommit[:])
	w.WriteBytes(qc.Signatures)
	return w.Bytes(), nil
}

// UnmarshalBinary decodes a QuorumCertificate.
func (qc *QuorumCertificate) UnmarshalBinary(data []byte) error {
	r := NewReader(data)
	qc.View = View(r.ReadUint64())
	copy(qc.LeafCommit[:], r.ReadFixed(32))
	qc.Signatures = r.ReadBytes()
	return r.Done()
}

// MarshalBinary encodes a legacy QuorumCertificateV1.
func (qc QuorumCertificateV1) MarshalBinary() ([]byte, error) {
	return QuorumCertificate(qc).MarshalBinary()
}

// UnmarshalBinary decodes a legacy QuorumCertificateV1.
func (qc *QuorumCertificateV1) UnmarshalBinary(data []byte) error {
	return (*QuorumCertificate)(qc).UnmarshalBinary(data)
}

func (h BlockHeader) marshalInto(w *Writer) {
	w.WriteUint64(h.Timestamp)
	w.WriteUint64(h.L1Head)
	if h.L1Finalized != nil {
		w.WriteBool(true)
		w.WriteUint64(h.L1Finalized.Number)
		ts := h.L1Finalized.Timestamp.Bytes()
		w.WriteBytes(ts)
		w.WriteFixed(h.L1Finalized.Hash[:])
	} else {
		w.WriteBool(false)
	}
	w.WriteBytes(h.TransactionsRoot.Root)
	w.WriteUint64(h.BlockNumber)
	w.WriteFixed(h.PayloadCommit[:])
}

func (h *BlockHeader) unmarshalFrom(r *Reader) {
	h.Timestamp = r.ReadUint64()
	h.L1Head = r.ReadUint64()
	if r.ReadBool() {
		info := &L1BlockInfo{}
		info.Number = r.ReadUint64()
		ts := r.ReadBytes()
		info.Timestamp.SetBytes(ts)
		copy(info.Hash[:], r.ReadFixed(32))
		h.L1Finalized = info
	} else {
		h.L1Finalized = nil
	}
	h.TransactionsRoot.Root = Bytes(r.ReadBytes())
	h.BlockNumber = r.ReadUint64()
	copy(h.PayloadCommit[:], r.ReadFixed(32))
}

// MarshalBinary encodes a BlockHeader deterministically.
func (h BlockHeader) MarshalBinary() ([]byte, error) {
	w := NewWriter()
	h.marshalInto(w)
	return w.Bytes(), nil
}

// UnmarshalBinary decodes a BlockHeader.
func (h *BlockHeader) UnmarshalBinary(data []byte) error {
	r := NewReader(data)
	h.unmarshalFrom(r)
	return r.Done()
}

// MarshalBinary encodes a Leaf deterministically. The embedded payload, if
// any, is included; callers that don't want it persisted (the decided-leaf
// table never stores it, spec.md §4.C) must call UnfillBlockPayload first.
func (l Leaf) MarshalBinary() ([]byte, error) {
	w := NewWriter()
	w.WriteUint64(uint64(l.View))
	w.WriteUint64(uint64(l.Epoch))
	l.Header.marshalInto(w)
	qcBytes, err := l.JustifyQC.MarshalBinary()
	if err != nil {
		return nil, err
	}
	w.WriteBytes(qcBytes)
	if p, ok := l.Payload(); ok {
		w.WriteBool(true)
		w.WriteBytes(p.EncodedTransactions)
		w.WriteBytes(p.Metadata)
	} else {
		w.WriteBool(false)
	}
	return w.Bytes(), nil
}

// UnmarshalBinary decodes a Leaf.
func (l *Leaf) UnmarshalBinary(data []byte) error {
	r := NewReader(data)
	l.View = View(r.ReadUint64())
	l.Epoch = Epoch(r.ReadUint64())
	l.Header.unmarshalFrom(r)
	qcBytes := r.ReadBytes()
	if r.err == nil {
		if err := l.JustifyQC.UnmarshalBinary(qcBytes); err != nil {
			r.fail(err)
		}
	}
	if r.ReadBool() {
		txns := r.ReadBytes()
		meta := r.ReadBytes()
		l.FillBlockPayload(Payload{EncodedTransactions: txns, Metadata: meta})
	} else {
		l.payload = nil
		l.payloadSet = false
	}
	return r.Done()
}

// MarshalBinary encodes a legacy LeafV1 in its v1 wire format (no epoch
// field), the format UnmarshalBinary reads.
func (l LeafV1) MarshalBinary() ([]byte, error) {
	w := NewWriter()
	w.WriteUint64(uint64(l.View))
	l.Header.marshalInto(w)
	qcBytes, err := l.JustifyQC.MarshalBinary()
	if err != nil {
		return nil, err
	}
	w.WriteBytes(qcBytes)
	w.WriteBool(l.payload != nil)
	if l.payload != nil {
		w.WriteBytes(l.payload.EncodedTransactions)
		w.WriteBytes(l.payload.Metadata)
	}
	return w.Bytes(), nil
}

// UnmarshalBinary decodes a legacy LeafV1 from its v1 wire format, which
// omits the epoch field entirely (rather than defaulting it on read, the
// epoch is simply absent from the bytes).
func (l *LeafV1) UnmarshalBinary(data []byte) error {
	r := NewReader(data)
	l.View = View(r.ReadUint64())
	l.Header.unmarshalFrom(r)
	qcBytes := r.ReadBytes()
	if r.err == nil {
		if err := l.JustifyQC.UnmarshalBinary(qcBytes); err != nil {
			r.fail(err)
		}
	}
	if r.ReadBool() {
		txns := r.ReadBytes()
		meta := r.ReadBytes()
		p := Payload{EncodedTransactions: txns, Metadata: meta}
		l.payload = &p
	}
	return r.Done()
}

// MarshalBinary encodes a DAProposal deterministically.
func (p DAProposal) MarshalBinary() ([]byte, error) {
	w := NewWriter()
	w.WriteUint64(uint64(p.View))
	w.WriteUint64(uint64(p.Epoch))
	w.WriteBool(p.EpochTransition)
	w.WriteBytes(p.EncodedTxns)
	w.WriteBytes(p.Metadata)
	w.WriteBytes(p.Signature)
	return w.Bytes(), nil
}

// UnmarshalBinary decodes a DAProposal.
func (p *DAProposal) UnmarshalBinary(data []byte) error {
	r := NewReader(data)
	p.View = View(r.ReadUint64())
	p.Epoch = Epoch(r.ReadUint64())
	p.EpochTransition = r.ReadBool()
	p.EncodedTxns = Bytes(r.ReadBytes())
	p.Metadata = NamespaceTable(r.ReadBytes())
	p.Signature = r.ReadBytes()
	return r.Done()
}

// MarshalBinary encodes a legacy DAProposalV1 (no epoch field on the wire).
func (p DAProposalV1) MarshalBinary() ([]byte, error) {
	w := NewWriter()
	w.WriteUint64(uint64(p.View))
	w.WriteBytes(p.EncodedTxns)
	w.WriteBytes(p.Metadata)
	w.WriteBytes(p.Signature)
	return w.Bytes(), nil
}

// UnmarshalBinary decodes a legacy DAProposalV1 (no epoch field on the wire).
func (p *DAProposalV1) UnmarshalBinary(data []byte) error {
	r := NewReader(data)
	p.View = View(r.ReadUint64())
	p.EncodedTxns = Bytes(r.ReadBytes())
	p.Metadata = NamespaceTable(r.ReadBytes())
	p.Signature = r.ReadBytes()
	return r.Done()
}

// MarshalBinary encodes a VIDShareData deterministically.
func (v VIDShareData) MarshalBinary() ([]byte, error) {
	w := NewWriter()
	w.WriteUint64(uint64(v.View))
	w.WriteFixed(v.PayloadCommit[:])
	w.WriteBytes(v.Recipient)
	w.WriteBytes(v.Share)
	w.WriteBytes(v.Common)
	return w.Bytes(), nil
}

// UnmarshalBinary decodes a VIDShareData.
func (v *VIDShareData) UnmarshalBinary(data []byte) error {
	r := NewReader(data)
	v.View = View(r.ReadUint64())
	copy(v.PayloadCommit[:], r.ReadFixed(32))
	v.Recipient = r.ReadBytes()
	v.Share = r.ReadBytes()
	v.Common = r.ReadBytes()
	return r.Done()
}

// MarshalBinary encodes a QuorumProposal deterministically.
func (p QuorumProposal) MarshalBinary() ([]byte, error) {
	w := NewWriter()
	w.WriteUint64(uint64(p.View))
	p.BlockHeader.marshalInto(w)
	qcBytes, err := p.JustifyQC.MarshalBinary()
	if err != nil {
		return nil, err
	}
	w.WriteBytes(qcBytes)
	w.WriteOptionalBytes(p.UpgradeCertificate, p.UpgradeCertificate != nil)
	w.WriteOptionalBytes(p.ViewChangeEvidence, p.ViewChangeEvidence != nil)
	if p.NextDRBResult != nil {
		w.WriteBool(true)
		w.WriteFixed(p.NextDRBResult[:])
	} else {
		w.WriteBool(false)
	}
	if p.StateCert != nil {
		scBytes, err := p.StateCert.MarshalBinary()
		if err != nil {
			return nil, err
		}
		w.WriteBool(true)
		w.WriteBytes(scBytes)
	} else {
		w.WriteBool(false)
	}
	w.WriteBytes(p.Signature)
	return w.Bytes(), nil
}

// UnmarshalBinary decodes a QuorumProposal.
func (p *QuorumProposal) UnmarshalBinary(data []byte) error {
	r := NewReader(data)
	p.View = View(r.ReadUint64())
	p.BlockHeader.unmarshalFrom(r)
	qcBytes := r.ReadBytes()
	if r.err == nil {
		if err := p.JustifyQC.UnmarshalBinary(qcBytes); err != nil {
			r.fail(err)
		}
	}
	p.UpgradeCertificate = r.ReadOptionalBytes()
	p.ViewChangeEvidence = r.ReadOptionalBytes()
	if r.ReadBool() {
		var drb DrbResult
		copy(drb[:], r.ReadFixed(32))
		p.NextDRBResult = &drb
	} else {
		p.NextDRBResult = nil
	}
	if r.ReadBool() {
		scBytes := r.ReadBytes()
		sc := &LightClientStateUpdateCertificate{}
		if r.err == nil {
			if err := sc.UnmarshalBinary(scBytes); err != nil {
				r.fail(err)
			}
		}
		p.StateCert = sc
	} else {
		p.StateCert = nil
	}
	p.Signature = r.ReadBytes()
	return r.Done()
}

func (s LightClientState) marshalInto(w *Writer) {
	w.WriteUint64(s.ViewNumber)
	w.WriteUint64(s.BlockHeight)
	w.WriteFixed(s.BlockCommRoot[:])
	w.WriteFixed(s.StakeTableBlsKeyComm[:])
	w.WriteFixed(s.StakeTableSchnorrComm[:])
	w.WriteFixed(s.StakeTableAmountComm[:])
	w.WriteBytes(s.ThresholdStake)
}

func (s *LightClientState) unmarshalFrom(r *Reader) {
	s.ViewNumber = r.ReadUint64()
	s.BlockHeight = r.ReadUint64()
	copy(s.BlockCommRoot[:], r.ReadFixed(32))
	copy(s.StakeTableBlsKeyComm[:], r.ReadFixed(32))
	copy(s.StakeTableSchnorrComm[:], r.ReadFixed(32))
	copy(s.StakeTableAmountComm[:], r.ReadFixed(32))
	s.ThresholdStake = r.ReadBytes()
}

// MarshalBinary encodes a LightClientStateUpdateCertificate deterministically.
func (c LightClientStateUpdateCertificate) MarshalBinary() ([]byte, error) {
	w := NewWriter()
	w.WriteUint64(uint64(c.Epoch))
	c.LightClientState.marshalInto(w)
	c.NextStakeTableState.marshalInto(w)
	w.WriteBytes(c.Signatures)
	return w.Bytes(), nil
}

// UnmarshalBinary decodes a LightClientStateUpdateCertificate.
func (c *LightClientStateUpdateCertificate) UnmarshalBinary(data []byte) error {
	r := NewReader(data)
	c.Epoch = Epoch(r.ReadUint64())
	c.LightClientState.unmarshalFrom(r)
	c.NextStakeTableState.unmarshalFrom(r)
	c.Signatures = r.ReadBytes()
	return r.Done()
}

// MarshalBinary encodes a StakeTable deterministically, preserving
// insertion order so it round-trips exactly.
func (t StakeTable) MarshalBinary() ([]byte, error) {
	w := NewWriter()
	w.WriteUint64(uint64(t.Epoch))
	w.WriteUint64(uint64(len(t.Validators)))
	for _, v := range t.Validators {
		w.WriteFixed(v.Address[:])
		w.WriteBytes(v.BLSPubKey)
		w.WriteBytes(v.SchnorrPubKey)
		if v.Stake == nil {
			w.WriteBytes(nil)
		} else {
			w.WriteBytes(v.Stake.Bytes())
		}
		w.WriteBool(v.IsDA)
	}
	return w.Bytes(), nil
}

// UnmarshalBinary decodes a StakeTable.
func (t *StakeTable) UnmarshalBinary(data []byte) error {
	r := NewReader(data)
	t.Epoch = Epoch(r.ReadUint64())
	n := r.ReadUint64()
	t.Validators = make([]Validator, 0, n)
	for i := uint64(0); i < n && r.err == nil; i++ {
		var v Validator
		addr := r.ReadFixed(20)
		copy(v.Address[:], addr)
		v.BLSPubKey = r.ReadBytes()
		v.SchnorrPubKey = r.ReadBytes()
		stakeBytes := r.ReadBytes()
		stake := new(uint256.Int)
		if len(stakeBytes) > 0 {
			stake.SetBytes(stakeBytes)
		}
		v.Stake = stake
		v.IsDA = r.ReadBool()
		t.Validators = append(t.Validators, v)
	}
	return r.Done()
}
