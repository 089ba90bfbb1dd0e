// Package manifest describes one built artifact directory (index, articles
// or images) so it can be opened without probing its files.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/hupe1980/wikipack/blobstore"
	"github.com/hupe1980/wikipack/internal/hash"
)

const (
	// FileName is the manifest blob name inside an artifact directory.
	FileName = "manifest.json"
	// CurrentVersion is the version of the manifest format.
	CurrentVersion = 1
)

// Kind names the artifact a manifest describes.
type Kind string

const (
	KindIndex    Kind = "index"
	KindArticles Kind = "articles"
	KindImages   Kind = "images"
)

// Manifest describes the artifact files written by one build.
type Manifest struct {
	Version   int       `json:"version"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	Language  string    `json:"language,omitempty"`

	// Content stores.
	BlockCount    int    `json:"block_count,omitempty"`
	ItemsPerBlock int    `json:"items_per_block,omitempty"`
	Items         int    `json:"items,omitempty"`
	Redirects     int    `json:"redirects,omitempty"`
	Layout        string `json:"layout,omitempty"`

	// Index.
	ShardCount int    `json:"shard_count,omitempty"`
	Terms      int    `json:"terms,omitempty"`
	Documents  int    `json:"documents,omitempty"`
	Codec      string `json:"codec,omitempty"`

	Compression string `json:"compression"`
	// Checksums maps artifact file names to their CRC32C.
	Checksums map[string]uint32 `json:"checksums,omitempty"`
}

// New creates an empty manifest of the given kind.
func New(kind Kind) *Manifest {
	return &Manifest{
		Version:   CurrentVersion,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
		Checksums: make(map[string]uint32),
	}
}

// SetChecksum records the CRC32C of a written artifact file.
// It is not safe for concurrent use.
func (m *Manifest) SetChecksum(name string, data []byte) {
	if m.Checksums == nil {
		m.Checksums = make(map[string]uint32)
	}
	m.Checksums[name] = hash.CRC32C(data)
}

// Verify checks data against the recorded checksum of name.
// Files without a recorded checksum pass.
func (m *Manifest) Verify(name string, data []byte) error {
	want, ok := m.Checksums[name]
	if !ok {
		return nil
	}
	if got := hash.CRC32C(data); got != want {
		return fmt.Errorf("%w: %s (got %08x, want %08x)", ErrChecksumMismatch, name, got, want)
	}
	return nil
}

// Validate checks version and kind.
func (m *Manifest) Validate(kind Kind) error {
	if m.Version != CurrentVersion {
		return fmt.Errorf("%w: %d", ErrIncompatibleVersion, m.Version)
	}
	if m.Kind != kind {
		return fmt.Errorf("%w: got %q, want %q", ErrKindMismatch, m.Kind, kind)
	}
	return nil
}

// Load reads and validates the manifest of an artifact directory.
func Load(ctx context.Context, store blobstore.BlobStore, kind Kind) (*Manifest, error) {
	data, err := blobstore.ReadAll(ctx, store, FileName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("manifest: read: %w", err)
	}

	m := &Manifest{}
	if err := gojson.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	if err := m.Validate(kind); err != nil {
		return nil, err
	}
	return m, nil
}

// Save writes the manifest. It should be the last file of a build so a
// directory with a manifest is always complete.
func Save(ctx context.Context, store blobstore.BlobStore, m *Manifest) error {
	data, err := gojson.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: encode: %w", err)
	}
	return store.Put(ctx, FileName, data)
}
