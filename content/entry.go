package content

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/wikipack/codec"
)

// Entry is a header value: Range or Alias.
type Entry interface {
	isEntry()
}

// Range locates an item in the block payload.
type Range struct {
	Offset int64
	Size   int64
}

// Alias redirects to another item name. Target may carry a "#fragment".
type Alias struct {
	Target string
}

func (Range) isEntry() {}
func (Alias) isEntry() {}

// wireEntry is the serialized form of an Entry.
type wireEntry struct {
	Offset int64  `json:"o,omitempty"`
	Size   int64  `json:"s,omitempty"`
	Target string `json:"a,omitempty"`
}

type header map[string]Entry

func (h header) encode(c codec.Codec) ([]byte, error) {
	wire := make(map[string]wireEntry, len(h))
	for name, e := range h {
		switch e := e.(type) {
		case Range:
			wire[name] = wireEntry{Offset: e.Offset, Size: e.Size}
		case Alias:
			wire[name] = wireEntry{Target: e.Target}
		}
	}
	return c.Marshal(wire)
}

// decodeHeader decodes and validates a header against the payload size.
// Ranges must tile [0, payloadSize) without gaps.
func decodeHeader(c codec.Codec, data []byte, payloadSize int64) (header, error) {
	var wire map[string]wireEntry
	if err := c.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrCorrupt, err)
	}

	h := make(header, len(wire))
	var ranges []Range
	for name, w := range wire {
		if w.Target != "" {
			h[name] = Alias{Target: w.Target}
			continue
		}
		r := Range{Offset: w.Offset, Size: w.Size}
		h[name] = r
		ranges = append(ranges, r)
	}

	slices.SortFunc(ranges, func(a, b Range) int {
		return cmp.Or(cmp.Compare(a.Offset, b.Offset), cmp.Compare(a.Size, b.Size))
	})
	var end int64
	for _, r := range ranges {
		if r.Offset != end || r.Size < 0 {
			return nil, fmt.Errorf("%w: range %d+%d does not follow %d", ErrCorrupt, r.Offset, r.Size, end)
		}
		end += r.Size
	}
	if end != payloadSize {
		return nil, fmt.Errorf("%w: ranges cover %d of %d payload bytes", ErrCorrupt, end, payloadSize)
	}
	return h, nil
}

// stripFragment removes a trailing "#fragment".
func stripFragment(name string) string {
	if i := strings.IndexByte(name, '#'); i >= 0 {
		return name[:i]
	}
	return name
}
