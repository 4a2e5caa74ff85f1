package types

import (
	"encoding/json"
	"fmt"
)

// Bytes is a byte slice that serializes to JSON as an array of integers
// rather than a base64 string, for compatibility with the Espresso query
// APIs that consensus artifacts are mirrored against.
//
// Adapted from the teacher's op-service/espresso.Bytes.
type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(b))
	for i := range b {
		ints[i] = int(b[i])
	}
	return json.Marshal(ints)
}

func (b *Bytes) UnmarshalJSON(in []byte) error {
	var ints []int
	if err := json.Unmarshal(in, &ints); err != nil {
		return err
	}
	*b = make([]byte, len(ints))
	for i := range ints {
		if ints[i] < 0 || 255 < ints[i] {
			return fmt.Errorf("byte out of range: %d", ints[i])
		}
		(*b)[i] = byte(ints[i])
	}
	return nil
}
