package types

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// Commitment is a committable type's stable, domain-separated hash. Leaf
// hashes and payload commitments are both Commitments.
type Commitment [32]byte

func (c Commitment) String() string {
	return fmt.Sprintf("%x", c[:])
}

// RawCommitmentBuilder incrementally hashes the named fields of a
// committable type in a fixed order, with domain separation so that two
// structurally different types never collide.
//
// Adapted from the teacher's op-node/espresso.RawCommitmentBuilder.
type RawCommitmentBuilder struct {
	hasher crypto.KeccakState
}

// NewRawCommitmentBuilder starts a new commitment, identified by the
// constant type name.
func NewRawCommitmentBuilder(name string) *RawCommitmentBuilder {
	b := new(RawCommitmentBuilder)
	b.hasher = crypto.NewKeccakState()
	return b.ConstantString(name)
}

// ConstantString appends a constant string to the running hash.
//
// The string s must be a constant: this function does not encode its length,
// so callers must never use it with strings whose length can vary for a
// given field.
func (b *RawCommitmentBuilder) ConstantString(s string) *RawCommitmentBuilder {
	if _, err := io.WriteString(b.hasher, s); err != nil {
		panic(fmt.Sprintf("KeccakState Writer is not supposed to fail, but it did: %v", err))
	}
	// Domain-separate the end of the constant string with a byte sequence
	// that can never appear in valid UTF-8.
	invalidUtf8 := []byte{0xC0, 0x7F}
	return b.FixedSizeBytes(invalidUtf8)
}

// Field includes a named field whose value is itself a Commitment.
func (b *RawCommitmentBuilder) Field(f string, c Commitment) *RawCommitmentBuilder {
	return b.ConstantString(f).FixedSizeBytes(c[:])
}

// Uint256Field includes a named uint256 field.
func (b *RawCommitmentBuilder) Uint256Field(f string, n *big.Int) *RawCommitmentBuilder {
	return b.ConstantString(f).Uint256(n)
}

// Uint256 appends a uint256 value, little-endian (the Espresso commitment
// scheme's byte order, the reverse of big.Int.FillBytes).
func (b *RawCommitmentBuilder) Uint256(n *big.Int) *RawCommitmentBuilder {
	buf := make([]byte, 32)
	n.FillBytes(buf)
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return b.FixedSizeBytes(buf)
}

// Uint64Field includes a named uint64 field.
func (b *RawCommitmentBuilder) Uint64Field(f string, n uint64) *RawCommitmentBuilder {
	return b.ConstantString(f).Uint64(n)
}

// Uint64 appends a little-endian uint64 value.
func (b *RawCommitmentBuilder) Uint64(n uint64) *RawCommitmentBuilder {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, n)
	return b.FixedSizeBytes(buf)
}

// FixedSizeBytes appends a byte slice whose length is statically determined
// by the type being committed to (not encoded in the hash).
func (b *RawCommitmentBuilder) FixedSizeBytes(bytes []byte) *RawCommitmentBuilder {
	b.hasher.Write(bytes)
	return b
}

// VarSizeField includes a named field whose length can vary.
func (b *RawCommitmentBuilder) VarSizeField(f string, bytes []byte) *RawCommitmentBuilder {
	return b.ConstantString(f).VarSizeBytes(bytes)
}

// VarSizeBytes appends a byte slice of dynamic length, first committing to
// its length to prevent length-extension and domain-collision attacks.
func (b *RawCommitmentBuilder) VarSizeBytes(bytes []byte) *RawCommitmentBuilder {
	b.Uint64(uint64(len(bytes)))
	b.hasher.Write(bytes)
	return b
}

// OptionalField includes a named field which may be absent. Absence and
// presence hash differently so a missing optional can never collide with a
// present one.
func (b *RawCommitmentBuilder) OptionalField(f string, c *Commitment) *RawCommitmentBuilder {
	if c == nil {
		return b.ConstantString(f + ".None")
	}
	return b.ConstantString(f+".Some").Field("", *c)
}

// Finalize returns the accumulated commitment.
func (b *RawCommitmentBuilder) Finalize() Commitment {
	var c Commitment
	copy(c[:], b.hasher.Sum(nil))
	return c
}
