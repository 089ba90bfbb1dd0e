package delta

import (
	"slices"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Empty(t *testing.T) {
	enc := Encode([]uint32(nil))
	assert.Empty(t, enc)

	dec, err := Decode(enc)
	require.NoError(t, err)
	assert.Empty(t, dec)
}

func TestEncode_KnownBytes(t *testing.T) {
	tests := []struct {
		name   string
		values []uint32
		want   []byte
	}{
		{"single zero", []uint32{0}, []byte{0x01}},
		{"single", []uint32{5}, []byte{0x06}},
		{"increasing", []uint32{0, 1, 3}, []byte{0x01, 0x01, 0x02}},
		{"multibyte", []uint32{127}, []byte{0x80, 0x01}},
		{"duplicates skipped", []uint32{2, 2, 2}, []byte{0x03}},
		{"reset on decrease", []uint32{4, 1}, []byte{0x05, 0x00, 0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.values))
		})
	}
}

func TestRoundTrip_SortedSets(t *testing.T) {
	f := func(in []uint32) bool {
		set := slices.Clone(in)
		slices.Sort(set)
		set = slices.Compact(set)

		got, err := DecodeUint32(Encode(set))
		if err != nil {
			return false
		}
		return slices.Equal(set, got) || (len(set) == 0 && len(got) == 0)
	}
	require.NoError(t, quick.Check(f, nil))
}

func TestRoundTrip_UnsortedStream(t *testing.T) {
	// Decreasing input survives the round trip thanks to reset markers;
	// only consecutive repeats collapse.
	in := []uint64{10, 3, 3, 7, 1, 1 << 40, 0}
	got, err := Decode(Encode(in))
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 3, 7, 1, 1 << 40, 0}, got)
}

func TestEach_StopsEarly(t *testing.T) {
	var seen []uint64
	err := Each(Encode([]uint64{1, 2, 3, 4}), func(v uint64) bool {
		seen = append(seen, v)
		return v < 2
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, seen)
}

func TestDecode_Corrupt(t *testing.T) {
	// Continuation bit set on the last byte.
	_, err := Decode([]byte{0x01, 0x80})
	assert.ErrorIs(t, err, ErrCorrupt)

	// Varint longer than 64 bits.
	_, err = Decode([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01})
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeUint32_Overflow(t *testing.T) {
	_, err := DecodeUint32(Encode([]uint64{1 << 33}))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestMonotonic_RoundTrip(t *testing.T) {
	in := []uint64{0, 0, 3, 3, 3, 9, 200, 200}
	enc, err := AppendMonotonic(nil, in)
	require.NoError(t, err)

	got, err := DecodeMonotonic(enc)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestMonotonic_RejectsDecrease(t *testing.T) {
	_, err := AppendMonotonic(nil, []uint32{5, 4})
	assert.Error(t, err)
}

func TestMonotonic_Property(t *testing.T) {
	f := func(in []uint32) bool {
		vals := slices.Clone(in)
		slices.Sort(vals)
		enc, err := AppendMonotonic(nil, vals)
		if err != nil {
			return false
		}
		got, err := DecodeMonotonic(enc)
		if err != nil || len(got) != len(vals) {
			return false
		}
		for i := range vals {
			if got[i] != uint64(vals[i]) {
				return false
			}
		}
		return true
	}
	require.NoError(t, quick.Check(f, nil))
}
