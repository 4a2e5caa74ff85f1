package types

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/require"
)

// TestQuorumCertificateRoundTripFuzz exercises MarshalBinary/UnmarshalBinary
// against randomly generated certificates, the way abifuzzer_test.go drives
// ABI encoding with gofuzz-generated inputs.
func TestQuorumCertificateRoundTripFuzz(t *testing.T) {
	fuzzer := fuzz.New().NilChance(0).NumElements(0, 64)

	for i := 0; i < 200; i++ {
		var qc QuorumCertificate
		fuzzer.Fuzz(&qc)

		data, err := qc.MarshalBinary()
		require.NoError(t, err)

		var got QuorumCertificate
		require.NoError(t, got.UnmarshalBinary(data))
		if diff := cmp.Diff(qc, got); diff != "" {
			t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}
