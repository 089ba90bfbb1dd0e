package content

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for names that are not in the store.
	ErrNotFound = errors.New("content: not found")

	// ErrRedirectLoop is returned when a redirect chain exceeds the hop
	// limit. It matches ErrNotFound.
	ErrRedirectLoop = fmt.Errorf("content: redirect chain too long: %w", ErrNotFound)

	// ErrCorrupt is returned for blocks that cannot be decoded.
	ErrCorrupt = errors.New("content: corrupt block")
)

// Layout selects how blocks are written.
type Layout int

const (
	// LayoutCompressed compresses the whole block.
	LayoutCompressed Layout = iota
	// LayoutHeaderCompressed compresses only the header.
	LayoutHeaderCompressed
)

// String returns the name stored in manifests.
func (l Layout) String() string {
	switch l {
	case LayoutCompressed:
		return "compressed"
	case LayoutHeaderCompressed:
		return "header-compressed"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// Ext returns the block file extension.
func (l Layout) Ext() string {
	if l == LayoutHeaderCompressed {
		return ".cdi"
	}
	return ".cdp"
}

// ParseLayout is the inverse of Layout.String.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "compressed":
		return LayoutCompressed, nil
	case "header-compressed":
		return LayoutHeaderCompressed, nil
	default:
		return 0, fmt.Errorf("content: unknown layout %q", s)
	}
}

// BlockName returns the file name of block i.
func BlockName(i int, l Layout) string {
	return fmt.Sprintf("%08x%s", i, l.Ext())
}

// BlockCount returns max(1, items / perBlock).
func BlockCount(items, perBlock int) int {
	if perBlock <= 0 {
		return 1
	}
	return max(1, items/perBlock)
}

// lengthPrefix is the size of the header length field.
const lengthPrefix = 4

func appendLength(dst []byte, n int) []byte {
	return binary.LittleEndian.AppendUint32(dst, uint32(n))
}

func readLength(b []byte) (int64, error) {
	if len(b) < lengthPrefix {
		return 0, fmt.Errorf("%w: %d bytes is shorter than the length prefix", ErrCorrupt, len(b))
	}
	return int64(binary.LittleEndian.Uint32(b)), nil
}
