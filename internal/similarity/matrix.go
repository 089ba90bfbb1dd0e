package similarity

import (
	"encoding/binary"
	"errors"
	"fmt"
	"index/suffixarray"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/wikipack/internal/delta"
	"github.com/hupe1980/wikipack/internal/strtable"
)

// MaxProbeLength caps the fragment window probed against the dictionary.
const MaxProbeLength = 20

// ErrCorrupt is returned when a serialized matrix is malformed.
var ErrCorrupt = errors.New("similarity: corrupt matrix")

// Strategy selects how rows are computed at build time.
type Strategy int

const (
	// SuffixArray finds superstrings with a suffix array over all terms.
	SuffixArray Strategy = iota
	// Pairwise compares every pair of terms.
	Pairwise
)

func (s Strategy) String() string {
	switch s {
	case SuffixArray:
		return "suffixarray"
	case Pairwise:
		return "pairwise"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Options configures Build.
type Options struct {
	Strategy Strategy
	// Progress, if set, is called periodically with the number of rows done.
	Progress func(done, total int)
}

// Option mutates Options.
type Option func(*Options)

// WithStrategy selects the build strategy.
func WithStrategy(s Strategy) Option {
	return func(o *Options) { o.Strategy = s }
}

// WithProgress installs a progress callback.
func WithProgress(fn func(done, total int)) Option {
	return func(o *Options) { o.Progress = fn }
}

// Matrix is the term similarity structure. It is immutable and safe for
// concurrent use.
type Matrix struct {
	terms *strtable.Table
	rows  *strtable.Table
}

// Build computes the matrix for terms, which must be sorted and unique
// and must not contain '\n'.
func Build(terms []string, opts ...Option) (*Matrix, error) {
	o := Options{Strategy: SuffixArray}
	for _, fn := range opts {
		fn(&o)
	}

	for i, t := range terms {
		if strings.ContainsRune(t, '\n') {
			return nil, fmt.Errorf("similarity: term %q contains a line separator", t)
		}
		if i > 0 && terms[i-1] >= t {
			return nil, fmt.Errorf("similarity: terms not sorted and unique at %d (%q, %q)", i, terms[i-1], t)
		}
	}

	var supers [][]uint32
	switch o.Strategy {
	case SuffixArray:
		supers = superstringsSuffixArray(terms, o.Progress)
	case Pairwise:
		supers = superstringsPairwise(terms, o.Progress)
	default:
		return nil, fmt.Errorf("similarity: unknown strategy %v", o.Strategy)
	}

	// Mirror the relation so each row holds both directions.
	rows := make([][]uint32, len(terms))
	for i, sup := range supers {
		for _, j := range sup {
			rows[i] = append(rows[i], j)
			rows[j] = append(rows[j], uint32(i))
		}
	}

	m := &Matrix{
		terms: strtable.FromStrings(terms),
		rows:  strtable.New(),
	}
	var buf []byte
	for _, row := range rows {
		slices.Sort(row)
		buf = delta.Append(buf[:0], slices.Compact(row))
		m.rows.Append(buf)
	}
	return m, nil
}

// superstringsPairwise returns, per term, the other terms containing it.
func superstringsPairwise(terms []string, progress func(int, int)) [][]uint32 {
	out := make([][]uint32, len(terms))
	for i, t := range terms {
		if t != "" {
			for j, other := range terms {
				if i != j && strings.Contains(other, t) {
					out[i] = append(out[i], uint32(j))
				}
			}
		}
		report(progress, i, len(terms))
	}
	return out
}

// superstringsSuffixArray returns the same relation as superstringsPairwise
// using a suffix array over "\n"-joined terms.
func superstringsSuffixArray(terms []string, progress func(int, int)) [][]uint32 {
	out := make([][]uint32, len(terms))
	if len(terms) == 0 {
		return out
	}

	starts := make([]int, len(terms))
	var sb strings.Builder
	for i, t := range terms {
		starts[i] = sb.Len()
		sb.WriteString(t)
		sb.WriteByte('\n')
	}
	sa := suffixarray.New([]byte(sb.String()))

	owner := func(off int) int {
		return sort.Search(len(starts), func(i int) bool { return starts[i] > off }) - 1
	}

	bm := roaring.New()
	for i, t := range terms {
		if t != "" {
			bm.Clear()
			for _, off := range sa.Lookup([]byte(t), -1) {
				if j := owner(off); j != i {
					bm.Add(uint32(j))
				}
			}
			out[i] = bm.ToArray()
		}
		report(progress, i, len(terms))
	}
	return out
}

func report(progress func(int, int), i, n int) {
	if progress != nil && (i%100 == 0 || i == n-1) {
		progress(i+1, n)
	}
}

// Len returns the number of terms.
func (m *Matrix) Len() int {
	return m.terms.Len()
}

// Term returns the term at index i.
func (m *Matrix) Term(i int) (string, error) {
	return m.terms.String(i)
}

// Terms returns the underlying sorted term table.
func (m *Matrix) Terms() *strtable.Table {
	return m.terms
}

// Lookup returns the index of term t.
func (m *Matrix) Lookup(t string) (int, bool) {
	return m.terms.Search(t)
}

// Contains reports whether t is a dictionary term.
func (m *Matrix) Contains(t string) bool {
	_, ok := m.terms.Search(t)
	return ok
}

// Row returns the stored similar terms of term i, excluding i itself.
func (m *Matrix) Row(i int) ([]uint32, error) {
	b, err := m.rows.Get(i)
	if err != nil {
		return nil, err
	}
	return delta.DecodeUint32(b)
}

// Candidates returns the raw candidate set for fragment.
//
// It probes substrings of fragment from the longest window (capped at
// MaxProbeLength runes) down to single runes; the first exact dictionary hit
// yields that term's row plus the term itself. Without a hit it scans all
// terms: a term contained in fragment yields its row, otherwise every term
// containing fragment is collected. verified reports whether the set came
// from that scan and already holds only terms containing fragment.
func (m *Matrix) Candidates(fragment string) (set *roaring.Bitmap, verified bool, err error) {
	set = roaring.New()
	if m.Len() == 0 || fragment == "" {
		return set, true, nil
	}

	if i, ok := m.probe(fragment); ok {
		if err := m.addRow(set, i); err != nil {
			return nil, false, err
		}
		return set, false, nil
	}

	for i, st := range m.terms.All() {
		s := string(st)
		if s != "" && strings.Contains(fragment, s) {
			set.Clear()
			if err := m.addRow(set, i); err != nil {
				return nil, false, err
			}
			return set, false, nil
		}
		if strings.Contains(s, fragment) {
			set.Add(uint32(i))
		}
	}
	return set, true, nil
}

func (m *Matrix) probe(fragment string) (int, bool) {
	runes := []rune(fragment)
	if !utf8.ValidString(fragment) {
		runes = []rune(strings.ToValidUTF8(fragment, ""))
	}
	for length := min(MaxProbeLength, len(runes)); length > 0; length-- {
		for a := 0; a+length <= len(runes); a++ {
			if i, ok := m.terms.Search(string(runes[a : a+length])); ok {
				return i, true
			}
		}
	}
	return 0, false
}

func (m *Matrix) addRow(set *roaring.Bitmap, i int) error {
	row, err := m.Row(i)
	if err != nil {
		return err
	}
	set.AddMany(row)
	set.Add(uint32(i))
	return nil
}

// SimilarTerms returns the indices of all terms containing fragment,
// in ascending order.
func (m *Matrix) SimilarTerms(fragment string) ([]int, error) {
	set, verified, err := m.Candidates(fragment)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, set.GetCardinality())
	it := set.Iterator()
	for it.HasNext() {
		i := int(it.Next())
		if !verified {
			t, err := m.terms.Get(i)
			if err != nil || !strings.Contains(string(t), fragment) {
				continue
			}
		}
		out = append(out, i)
	}
	return out, nil
}

// MarshalBinary encodes the matrix as
// [uvarint terms length][terms table][rows table].
func (m *Matrix) MarshalBinary() ([]byte, error) {
	terms, err := m.terms.MarshalBinary()
	if err != nil {
		return nil, err
	}
	rows, err := m.rows.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, binary.MaxVarintLen64+len(terms)+len(rows))
	buf = binary.AppendUvarint(buf, uint64(len(terms)))
	buf = append(buf, terms...)
	return append(buf, rows...), nil
}

// UnmarshalBinary decodes data produced by MarshalBinary.
func (m *Matrix) UnmarshalBinary(data []byte) error {
	n, k := binary.Uvarint(data)
	if k <= 0 || uint64(len(data)-k) < n {
		return fmt.Errorf("%w: terms length", ErrCorrupt)
	}
	terms, rows := strtable.New(), strtable.New()
	if err := terms.UnmarshalBinary(data[k : k+int(n)]); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := rows.UnmarshalBinary(data[k+int(n):]); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if terms.Len() != rows.Len() {
		return fmt.Errorf("%w: %d terms but %d rows", ErrCorrupt, terms.Len(), rows.Len())
	}
	m.terms, m.rows = terms, rows
	return nil
}
