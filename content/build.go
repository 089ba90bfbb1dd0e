package content

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/wikipack/blobstore"
	"github.com/hupe1980/wikipack/codec"
	"github.com/hupe1980/wikipack/internal/compress"
	"github.com/hupe1980/wikipack/internal/hash"
	"github.com/hupe1980/wikipack/manifest"
	"github.com/hupe1980/wikipack/model"
)

const (
	// DefaultArticlesPerBlock is the block density for article stores.
	DefaultArticlesPerBlock = 2000
	// DefaultImagesPerBlock is the block density for image stores.
	DefaultImagesPerBlock = 200
)

// BuildOptions configures Build.
type BuildOptions struct {
	ItemsPerBlock int
	Layout        Layout
	// Kind defaults to KindArticles for LayoutCompressed and KindImages
	// for LayoutHeaderCompressed.
	Kind        manifest.Kind
	Compression compress.Type
	Codec       codec.Codec
	Language    string
	Concurrency int
	Logger      *slog.Logger
}

// BuildOption mutates BuildOptions.
type BuildOption func(*BuildOptions)

// WithItemsPerBlock sets the target number of items per block.
func WithItemsPerBlock(n int) BuildOption {
	return func(o *BuildOptions) { o.ItemsPerBlock = n }
}

// WithLayout selects the block layout.
func WithLayout(l Layout) BuildOption {
	return func(o *BuildOptions) { o.Layout = l }
}

// WithKind overrides the manifest kind.
func WithKind(k manifest.Kind) BuildOption {
	return func(o *BuildOptions) { o.Kind = k }
}

// WithCompression sets the block compression.
func WithCompression(t compress.Type) BuildOption {
	return func(o *BuildOptions) { o.Compression = t }
}

// WithCodec sets the header codec.
func WithCodec(c codec.Codec) BuildOption {
	return func(o *BuildOptions) { o.Codec = c }
}

// WithLanguage records the content language in the manifest.
func WithLanguage(lang string) BuildOption {
	return func(o *BuildOptions) { o.Language = lang }
}

// WithConcurrency bounds parallel block writes.
func WithConcurrency(n int) BuildOption {
	return func(o *BuildOptions) { o.Concurrency = n }
}

// WithBuildLogger sets the build logger.
func WithBuildLogger(l *slog.Logger) BuildOption {
	return func(o *BuildOptions) { o.Logger = l }
}

// Stats summarizes a build.
type Stats struct {
	Blocks    int
	Items     int
	Redirects int
	// DroppedRedirects counts redirects whose target is not an item of the
	// build, whose alias is itself an item, or whose alias repeats.
	DroppedRedirects int
	Bytes            int64
	Duration         time.Duration
}

type plan struct {
	names     []string
	redirects []model.Redirect
}

// Build writes the items of src and the usable redirects to store.
func Build(ctx context.Context, store blobstore.BlobStore, src Source, redirects []model.Redirect, opts ...BuildOption) (*Stats, error) {
	start := time.Now()
	o := BuildOptions{
		ItemsPerBlock: DefaultArticlesPerBlock,
		Layout:        LayoutCompressed,
		Compression:   compress.Zstd,
		Codec:         codec.Default,
		Concurrency:   4,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Kind == "" {
		o.Kind = manifest.KindArticles
		if o.Layout == LayoutHeaderCompressed {
			o.Kind = manifest.KindImages
		}
	}

	names, err := src.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("content: list items: %w", err)
	}
	items := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			return nil, fmt.Errorf("content: empty item name")
		}
		if _, dup := items[name]; dup {
			return nil, fmt.Errorf("content: duplicate item %q", name)
		}
		items[name] = struct{}{}
	}

	count := BlockCount(len(names), o.ItemsPerBlock)
	plans := make([]plan, count)
	for _, name := range names {
		i := hash.Bucket(name, count)
		plans[i].names = append(plans[i].names, name)
	}

	stats := &Stats{Blocks: count, Items: len(names)}
	aliases := make(map[string]struct{}, len(redirects))
	for _, r := range redirects {
		_, isItem := items[r.Alias]
		_, seen := aliases[r.Alias]
		_, hasTarget := items[stripFragment(r.Target)]
		if r.Alias == "" || isItem || seen || !hasTarget {
			stats.DroppedRedirects++
			continue
		}
		aliases[r.Alias] = struct{}{}
		i := hash.Bucket(r.Alias, count)
		plans[i].redirects = append(plans[i].redirects, r)
		stats.Redirects++
	}

	m := manifest.New(o.Kind)
	m.Language = o.Language
	m.BlockCount = count
	m.ItemsPerBlock = o.ItemsPerBlock
	m.Items = stats.Items
	m.Redirects = stats.Redirects
	m.Layout = o.Layout.String()
	m.Codec = o.Codec.Name()
	m.Compression = o.Compression.String()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, o.Concurrency))
	for i, p := range plans {
		g.Go(func() error {
			data, err := writeBlock(gctx, src, p, o)
			if err != nil {
				return fmt.Errorf("content: block %d: %w", i, err)
			}
			name := BlockName(i, o.Layout)
			if err := store.Put(gctx, name, data); err != nil {
				return fmt.Errorf("content: write %s: %w", name, err)
			}

			mu.Lock()
			m.SetChecksum(name, data)
			stats.Bytes += int64(len(data))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := manifest.Save(ctx, store, m); err != nil {
		return nil, err
	}
	stats.Duration = time.Since(start)
	o.Logger.Info("content: built", "kind", o.Kind, "blocks", stats.Blocks, "items", stats.Items,
		"redirects", stats.Redirects, "dropped_redirects", stats.DroppedRedirects, "duration", stats.Duration)
	return stats, nil
}

func writeBlock(ctx context.Context, src Source, p plan, o BuildOptions) ([]byte, error) {
	h := make(header, len(p.names)+len(p.redirects))
	var payload []byte
	for _, name := range p.names {
		data, err := src.Read(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", name, err)
		}
		h[name] = Range{Offset: int64(len(payload)), Size: int64(len(data))}
		payload = append(payload, data...)
	}
	for _, r := range p.redirects {
		h[r.Alias] = Alias{Target: r.Target}
	}

	hdr, err := h.encode(o.Codec)
	if err != nil {
		return nil, err
	}

	switch o.Layout {
	case LayoutCompressed:
		unit := make([]byte, 0, lengthPrefix+len(hdr)+len(payload))
		unit = appendLength(unit, len(hdr))
		unit = append(unit, hdr...)
		unit = append(unit, payload...)
		return compress.Compress(unit, o.Compression)
	case LayoutHeaderCompressed:
		chdr, err := compress.Compress(hdr, o.Compression)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 0, lengthPrefix+len(chdr)+len(payload))
		out = appendLength(out, len(chdr))
		out = append(out, chdr...)
		return append(out, payload...), nil
	default:
		return nil, fmt.Errorf("unknown layout %v", o.Layout)
	}
}
