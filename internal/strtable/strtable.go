// Package strtable stores many small strings in one contiguous byte heap
// with an offset index, avoiding a per-string allocation.
package strtable

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"sort"

	"github.com/hupe1980/wikipack/internal/delta"
)

// ErrOutOfRange is returned for an index outside [0, Len()).
var ErrOutOfRange = errors.New("strtable: index out of range")

// ErrCorrupt is returned when a serialized table is malformed.
var ErrCorrupt = errors.New("strtable: corrupt table")

// Table is an append-only list of byte strings.
//
// A Table is not safe for concurrent mutation. Once built it can be read
// from many goroutines.
type Table struct {
	heap    []byte
	offsets []uint64 // offsets[i]..offsets[i+1] delimit entry i
}

// New returns an empty table.
func New() *Table {
	return &Table{offsets: []uint64{0}}
}

// FromStrings builds a table holding ss in order.
func FromStrings(ss []string) *Table {
	t := New()
	for _, s := range ss {
		t.AppendString(s)
	}
	return t
}

// Append adds b and returns its index.
func (t *Table) Append(b []byte) int {
	t.heap = append(t.heap, b...)
	t.offsets = append(t.offsets, uint64(len(t.heap)))
	return len(t.offsets) - 2
}

// AppendString adds s and returns its index.
func (t *Table) AppendString(s string) int {
	t.heap = append(t.heap, s...)
	t.offsets = append(t.offsets, uint64(len(t.heap)))
	return len(t.offsets) - 2
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.offsets) - 1
}

// Get returns entry i. The slice aliases the heap and must not be modified.
func (t *Table) Get(i int) ([]byte, error) {
	if i < 0 || i >= t.Len() {
		return nil, fmt.Errorf("%w: %d (len %d)", ErrOutOfRange, i, t.Len())
	}
	return t.heap[t.offsets[i]:t.offsets[i+1]:t.offsets[i+1]], nil
}

// String returns entry i as a string.
func (t *Table) String(i int) (string, error) {
	b, err := t.Get(i)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (t *Table) at(i int) []byte {
	return t.heap[t.offsets[i]:t.offsets[i+1]]
}

// All iterates the entries in insertion order.
func (t *Table) All() iter.Seq2[int, []byte] {
	return func(yield func(int, []byte) bool) {
		for i := range t.Len() {
			if !yield(i, t.at(i)) {
				return
			}
		}
	}
}

// Search returns the index of s in a table whose entries are sorted
// bytewise. ok is false if s is absent.
func (t *Table) Search(s string) (int, bool) {
	n := t.Len()
	key := []byte(s)
	i := sort.Search(n, func(i int) bool {
		return bytes.Compare(t.at(i), key) >= 0
	})
	if i < n && bytes.Equal(t.at(i), key) {
		return i, true
	}
	return i, false
}

// HeapSize returns the number of bytes held by the heap.
func (t *Table) HeapSize() int {
	return len(t.heap)
}

// MarshalBinary encodes the table as
// [uvarint heap length][heap][delta-encoded offsets].
func (t *Table) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, len(t.heap)+len(t.offsets)+binary.MaxVarintLen64)
	buf = binary.AppendUvarint(buf, uint64(len(t.heap)))
	buf = append(buf, t.heap...)
	return delta.AppendMonotonic(buf, t.offsets)
}

// UnmarshalBinary decodes data produced by MarshalBinary.
// The table keeps a reference to data for its heap.
func (t *Table) UnmarshalBinary(data []byte) error {
	heapLen, n := binary.Uvarint(data)
	if n <= 0 || uint64(len(data)-n) < heapLen {
		return fmt.Errorf("%w: heap length", ErrCorrupt)
	}
	heap := data[n : n+int(heapLen)]
	offsets, err := delta.DecodeMonotonic(data[n+int(heapLen):])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if len(offsets) == 0 || offsets[0] != 0 || offsets[len(offsets)-1] != heapLen {
		return fmt.Errorf("%w: offsets do not cover heap", ErrCorrupt)
	}
	t.heap = heap
	t.offsets = offsets
	return nil
}
