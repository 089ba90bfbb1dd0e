package delta

import (
	"encoding/binary"
	"fmt"
)

// AppendMonotonic encodes a non-decreasing sequence, keeping repeats.
// There is no reset marker in this mode; a decreasing input is an error.
func AppendMonotonic[T Unsigned](dst []byte, values []T) ([]byte, error) {
	prev := none
	for i, v := range values {
		cur := uint64(v)
		if prev != none && cur < prev {
			return nil, fmt.Errorf("delta: value %d at position %d decreases (previous %d)", cur, i, prev)
		}
		dst = binary.AppendUvarint(dst, cur-prev)
		prev = cur
	}
	return dst, nil
}

// DecodeMonotonic decodes data written by AppendMonotonic.
func DecodeMonotonic(data []byte) ([]uint64, error) {
	out := make([]uint64, 0, len(data))
	prev := none
	for off := 0; off < len(data); {
		d, n := binary.Uvarint(data[off:])
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad varint at offset %d", ErrCorrupt, off)
		}
		off += n
		prev += d
		out = append(out, prev)
	}
	return out, nil
}
