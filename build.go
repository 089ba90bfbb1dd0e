package wikipack

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"time"

	"github.com/hupe1980/wikipack/blobstore"
	"github.com/hupe1980/wikipack/codec"
	"github.com/hupe1980/wikipack/content"
	"github.com/hupe1980/wikipack/index"
	"github.com/hupe1980/wikipack/internal/compress"
	"github.com/hupe1980/wikipack/model"
)

// BuildInput is the output of the preprocessing stage.
type BuildInput struct {
	// Documents feed the search index.
	Documents iter.Seq[model.Document]
	// Articles are stored under their file names.
	Articles content.Source
	// Redirects map alias file names to article file names.
	Redirects []model.Redirect
	// Images are optional and stored under their relative paths.
	Images content.Source
	// Language is recorded in every manifest.
	Language string
}

// BuildConfig tunes Build. The zero value uses the package defaults.
type BuildConfig struct {
	ArticlesPerBlock int
	ImagesPerBlock   int
	// SubstringMinLen enables substring indexing when > 0.
	SubstringMinLen int
	TargetShardSize int
	// Compression applies to article blocks, shards and the key file.
	// Image headers use lz4 and image payloads are stored raw.
	Compression string
	Codec       string
	Concurrency int
	Logger      *Logger
}

// BuildStats summarizes a build.
type BuildStats struct {
	Index    *index.Stats
	Articles *content.Stats
	Images   *content.Stats
	Duration time.Duration
}

// Build writes the index, the article store and, if given, the image store
// below store. Build errors name the offending input and leave no manifest
// for the failed artifact, so a partial build cannot be opened.
func Build(ctx context.Context, store blobstore.BlobStore, in BuildInput, cfg BuildConfig) (*BuildStats, error) {
	start := time.Now()
	logger := cfg.Logger
	if logger == nil {
		logger = NoopLogger()
	}
	if in.Documents == nil || in.Articles == nil {
		return nil, errors.New("wikipack: build needs documents and articles")
	}

	comp := compress.Zstd
	if cfg.Compression != "" {
		var err error
		if comp, err = compress.ParseType(cfg.Compression); err != nil {
			return nil, err
		}
	}
	c := codec.Default
	if cfg.Codec != "" {
		var err error
		if c, err = codec.Parse(cfg.Codec); err != nil {
			return nil, err
		}
	}
	slogger := logger.Logger

	idxOpts := []index.BuildOption{
		index.WithCompression(comp),
		index.WithCodec(c),
		index.WithLanguage(in.Language),
		index.WithBuildLogger(slogger.With("component", "index")),
	}
	if cfg.SubstringMinLen > 0 {
		idxOpts = append(idxOpts, index.WithSubstringIndexing(cfg.SubstringMinLen))
	}
	if cfg.TargetShardSize > 0 {
		idxOpts = append(idxOpts, index.WithTargetShardSize(cfg.TargetShardSize))
	}

	stats := &BuildStats{}
	var err error
	stats.Index, err = index.Build(ctx, blobstore.Sub(store, IndexDir), in.Documents, idxOpts...)
	logger.LogBuild(ctx, IndexDir, documents(stats.Index), err)
	if err != nil {
		return nil, err
	}

	contentOpts := func(perBlock, def int, layout content.Layout, component string, ct compress.Type) []content.BuildOption {
		if perBlock <= 0 {
			perBlock = def
		}
		opts := []content.BuildOption{
			content.WithItemsPerBlock(perBlock),
			content.WithLayout(layout),
			content.WithCompression(ct),
			content.WithCodec(c),
			content.WithLanguage(in.Language),
			content.WithBuildLogger(slogger.With("component", component)),
		}
		if cfg.Concurrency > 0 {
			opts = append(opts, content.WithConcurrency(cfg.Concurrency))
		}
		return opts
	}

	stats.Articles, err = content.Build(ctx, blobstore.Sub(store, ArticlesDir), in.Articles, in.Redirects,
		contentOpts(cfg.ArticlesPerBlock, content.DefaultArticlesPerBlock, content.LayoutCompressed, ArticlesDir, comp)...)
	logger.LogBuild(ctx, ArticlesDir, items(stats.Articles), err)
	if err != nil {
		return nil, err
	}

	if in.Images != nil {
		stats.Images, err = content.Build(ctx, blobstore.Sub(store, ImagesDir), in.Images, nil,
			contentOpts(cfg.ImagesPerBlock, content.DefaultImagesPerBlock, content.LayoutHeaderCompressed, ImagesDir, compress.LZ4)...)
		logger.LogBuild(ctx, ImagesDir, items(stats.Images), err)
		if err != nil {
			return nil, err
		}
	}

	stats.Duration = time.Since(start)
	logger.Info("library built",
		slog.Int("documents", stats.Index.Documents),
		slog.Int("articles", stats.Articles.Items),
		slog.Duration("duration", stats.Duration),
	)
	return stats, nil
}

func documents(s *index.Stats) int {
	if s == nil {
		return 0
	}
	return s.Documents
}

func items(s *content.Stats) int {
	if s == nil {
		return 0
	}
	return s.Items
}
