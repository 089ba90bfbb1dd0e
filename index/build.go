package index

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/wikipack/blobstore"
	"github.com/hupe1980/wikipack/codec"
	"github.com/hupe1980/wikipack/internal/compress"
	"github.com/hupe1980/wikipack/internal/delta"
	"github.com/hupe1980/wikipack/internal/docstore"
	"github.com/hupe1980/wikipack/internal/similarity"
	"github.com/hupe1980/wikipack/internal/strtable"
	"github.com/hupe1980/wikipack/internal/textnorm"
	"github.com/hupe1980/wikipack/manifest"
	"github.com/hupe1980/wikipack/model"
)

// BuildOptions configures Build.
type BuildOptions struct {
	// SubstringMinLen > 0 also indexes every substring of at least that many
	// runes of each token.
	SubstringMinLen int
	Strategy        similarity.Strategy
	Compression     compress.Type
	Codec           codec.Codec
	TargetShardSize int
	Language        string
	Logger          *slog.Logger
}

// BuildOption mutates BuildOptions.
type BuildOption func(*BuildOptions)

// WithSubstringIndexing indexes all token substrings of at least minLen runes.
func WithSubstringIndexing(minLen int) BuildOption {
	return func(o *BuildOptions) { o.SubstringMinLen = minLen }
}

// WithSimilarityStrategy selects how the similarity matrix is computed.
func WithSimilarityStrategy(s similarity.Strategy) BuildOption {
	return func(o *BuildOptions) { o.Strategy = s }
}

// WithCompression sets the compression of the key file and the shards.
func WithCompression(t compress.Type) BuildOption {
	return func(o *BuildOptions) { o.Compression = t }
}

// WithCodec sets the document shard codec.
func WithCodec(c codec.Codec) BuildOption {
	return func(o *BuildOptions) { o.Codec = c }
}

// WithTargetShardSize sets the approximate document shard size.
func WithTargetShardSize(n int) BuildOption {
	return func(o *BuildOptions) { o.TargetShardSize = n }
}

// WithLanguage records the corpus language in the manifest.
func WithLanguage(lang string) BuildOption {
	return func(o *BuildOptions) { o.Language = lang }
}

// WithBuildLogger sets the logger for build progress.
func WithBuildLogger(l *slog.Logger) BuildOption {
	return func(o *BuildOptions) { o.Logger = l }
}

// Stats summarizes a build.
type Stats struct {
	Documents    int
	Terms        int
	Postings     int
	Shards       int
	KeyFileBytes int
	Duration     time.Duration
}

type builder struct {
	opts     BuildOptions
	entries  []model.DocumentEntry
	seen     map[model.DocumentEntry]int
	postings map[string][]model.DocID
	count    int
}

func validateToken(tok string) string {
	switch {
	case tok == "":
		return "empty token"
	case !utf8.ValidString(tok):
		return "invalid UTF-8"
	case strings.ContainsAny(tok, "\n\r"):
		return "contains a line separator"
	}
	return ""
}

func (b *builder) add(pos int, doc model.Document) error {
	entry := doc.Entry
	if doc.Score != 0 {
		entry.Score = doc.Score
	}
	if first, ok := b.seen[entry]; ok {
		return &DuplicateEntryError{Entry: entry, First: first, Second: pos}
	}

	id := model.DocID(len(b.entries))
	terms := make(map[string]struct{}, len(doc.Tokens))
	for _, tok := range doc.Tokens {
		if reason := validateToken(tok); reason != "" {
			return &InvalidTokenError{Token: tok, Reason: reason, Entry: entry, Position: pos}
		}
		term := textnorm.Normalize(tok)
		if term == "" {
			return &InvalidTokenError{Token: tok, Reason: "empty after normalization", Entry: entry, Position: pos}
		}
		if w := textnorm.Words(tok); len(w) != 1 || w[0] != term {
			return &InvalidTokenError{Token: tok, Reason: "not a single word", Entry: entry, Position: pos}
		}
		terms[term] = struct{}{}

		if n := b.opts.SubstringMinLen; n > 0 {
			runes := []rune(term)
			for size := n; size < len(runes); size++ {
				for a := 0; a+size <= len(runes); a++ {
					terms[string(runes[a:a+size])] = struct{}{}
				}
			}
		}
	}

	for term := range terms {
		b.postings[term] = append(b.postings[term], id)
		b.count++
	}
	b.seen[entry] = pos
	b.entries = append(b.entries, entry)
	return nil
}

// Build indexes docs and writes the artifacts to store.
//
// Errors are fatal and name the offending input: *DuplicateEntryError,
// *InvalidTokenError, ErrEmptyCorpus.
func Build(ctx context.Context, store blobstore.BlobStore, docs iter.Seq[model.Document], opts ...BuildOption) (*Stats, error) {
	start := time.Now()
	o := BuildOptions{
		Strategy:        similarity.SuffixArray,
		Compression:     compress.Zstd,
		Codec:           codec.Default,
		TargetShardSize: docstore.DefaultTargetShardSize,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}

	b := &builder{
		opts:     o,
		seen:     make(map[model.DocumentEntry]int),
		postings: make(map[string][]model.DocID),
	}
	pos := 0
	for doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := b.add(pos, doc); err != nil {
			return nil, err
		}
		pos++
	}
	if len(b.entries) == 0 {
		return nil, ErrEmptyCorpus
	}
	o.Logger.Info("index: documents accumulated", "documents", len(b.entries), "terms", len(b.postings))

	terms := make([]string, 0, len(b.postings))
	for t := range b.postings {
		terms = append(terms, t)
	}
	slices.Sort(terms)

	postings := strtable.New()
	for _, t := range terms {
		ids := b.postings[t]
		enc := delta.Encode(ids)
		got, err := delta.DecodeUint32(enc)
		if err != nil || !equalIDs(got, ids) {
			return nil, fmt.Errorf("index: posting list of %q does not round-trip: %w", t, delta.ErrCorrupt)
		}
		postings.Append(enc)
	}

	matrix, err := similarity.Build(terms,
		similarity.WithStrategy(o.Strategy),
		similarity.WithProgress(func(done, total int) {
			o.Logger.Debug("index: similarity", "done", done, "total", total)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("index: similarity: %w", err)
	}

	raw, err := (&keyFile{matrix: matrix, postings: postings}).encode()
	if err != nil {
		return nil, err
	}
	keyData, err := compress.Compress(raw, o.Compression)
	if err != nil {
		return nil, err
	}
	keyName := KeyFileName(o.Compression)
	if err := store.Put(ctx, keyName, keyData); err != nil {
		return nil, fmt.Errorf("index: write %s: %w", keyName, err)
	}

	res, err := docstore.Build(ctx, store, b.entries,
		docstore.WithCodec(o.Codec),
		docstore.WithCompression(o.Compression),
		docstore.WithTargetShardSize(o.TargetShardSize),
	)
	if err != nil {
		return nil, err
	}

	m := manifest.New(manifest.KindIndex)
	m.Language = o.Language
	m.ShardCount = res.ShardCount
	m.Terms = len(terms)
	m.Documents = len(b.entries)
	m.Codec = o.Codec.Name()
	m.Compression = o.Compression.String()
	m.SetChecksum(keyName, keyData)
	for name, data := range res.Files {
		m.SetChecksum(name, data)
	}
	if err := manifest.Save(ctx, store, m); err != nil {
		return nil, err
	}

	stats := &Stats{
		Documents:    len(b.entries),
		Terms:        len(terms),
		Postings:     b.count,
		Shards:       res.ShardCount,
		KeyFileBytes: len(keyData),
		Duration:     time.Since(start),
	}
	o.Logger.Info("index: built", "documents", stats.Documents, "terms", stats.Terms,
		"shards", stats.Shards, "duration", stats.Duration)
	return stats, nil
}

func equalIDs(got []uint32, want []model.DocID) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != uint32(want[i]) {
			return false
		}
	}
	return true
}
