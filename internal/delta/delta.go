package delta

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrCorrupt is returned when encoded data is truncated or overflows.
var ErrCorrupt = errors.New("delta: corrupt encoding")

// Unsigned is the set of value types the codec accepts.
// Values must be less than math.MaxUint64.
type Unsigned interface {
	~uint32 | ~uint64
}

// none is the predecessor of the first value (-1 in two's complement).
const none = ^uint64(0)

// Append encodes values and appends them to dst.
//
// Consecutive equal values are stored once. A value smaller than its
// predecessor is preceded by a reset marker.
func Append[T Unsigned](dst []byte, values []T) []byte {
	prev := none
	for _, v := range values {
		cur := uint64(v)
		if prev != none && cur == prev {
			continue
		}
		if prev != none && cur < prev {
			dst = append(dst, 0)
			prev = none
		}
		dst = binary.AppendUvarint(dst, cur-prev)
		prev = cur
	}
	return dst
}

// Encode encodes values into a new slice. Empty input yields empty output.
func Encode[T Unsigned](values []T) []byte {
	if len(values) == 0 {
		return []byte{}
	}
	return Append(make([]byte, 0, len(values)+len(values)/2), values)
}

// Each decodes data and calls fn for every value in encoded order.
// It stops early if fn returns false.
func Each(data []byte, fn func(v uint64) bool) error {
	prev := none
	for off := 0; off < len(data); {
		d, n := binary.Uvarint(data[off:])
		if n <= 0 {
			return fmt.Errorf("%w: bad varint at offset %d", ErrCorrupt, off)
		}
		off += n
		if d == 0 {
			prev = none
			continue
		}
		prev += d
		if !fn(prev) {
			return nil
		}
	}
	return nil
}

// Decode decodes data into a slice of uint64.
func Decode(data []byte) ([]uint64, error) {
	out := make([]uint64, 0, len(data))
	err := Each(data, func(v uint64) bool {
		out = append(out, v)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeUint32 decodes data into a slice of uint32.
// Values that do not fit are reported as corruption.
func DecodeUint32(data []byte) ([]uint32, error) {
	out := make([]uint32, 0, len(data))
	var rangeErr error
	err := Each(data, func(v uint64) bool {
		if v > uint64(^uint32(0)) {
			rangeErr = fmt.Errorf("%w: value %d exceeds uint32", ErrCorrupt, v)
			return false
		}
		out = append(out, uint32(v))
		return true
	})
	if err != nil {
		return nil, err
	}
	if rangeErr != nil {
		return nil, rangeErr
	}
	return out, nil
}
