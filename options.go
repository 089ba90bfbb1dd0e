package wikipack

import (
	"log/slog"

	"github.com/hupe1980/wikipack/content"
	"github.com/hupe1980/wikipack/index"
	"github.com/hupe1980/wikipack/internal/docstore"
	"github.com/hupe1980/wikipack/internal/resource"
	"github.com/hupe1980/wikipack/searcher"
)

type options struct {
	policy           index.MissingTermPolicy
	shardCache       int
	articleCache     int
	imageCache       int
	sessionCache     int
	maxResults       int
	maxHops          int
	verifyChecksums  bool
	blockCacheBytes  int64
	blockSize        int64
	resource         *resource.Controller
	resourceConfig   *resource.Config
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Open.
type Option func(*options)

// WithMissingTermPolicy chooses how exact search treats words absent from
// the dictionary. The default, index.Lenient, drops them from the AND.
func WithMissingTermPolicy(p index.MissingTermPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithShardCache sets how many document store shards stay decoded.
func WithShardCache(n int) Option {
	return func(o *options) {
		o.shardCache = n
	}
}

// WithArticleCache sets how many article blocks stay decompressed.
func WithArticleCache(n int) Option {
	return func(o *options) {
		o.articleCache = n
	}
}

// WithImageCache sets how many image block headers stay open.
func WithImageCache(n int) Option {
	return func(o *options) {
		o.imageCache = n
	}
}

// WithSearchSessions sets how many search sessions are tracked.
func WithSearchSessions(n int) Option {
	return func(o *options) {
		o.sessionCache = n
	}
}

// WithMaxResults caps the results kept per search session; 0 keeps all.
func WithMaxResults(n int) Option {
	return func(o *options) {
		o.maxResults = n
	}
}

// WithMaxRedirectHops bounds redirect chains.
func WithMaxRedirectHops(n int) Option {
	return func(o *options) {
		o.maxHops = n
	}
}

// WithVerifyChecksums toggles CRC32C verification of shards and blocks.
func WithVerifyChecksums(v bool) Option {
	return func(o *options) {
		o.verifyChecksums = v
	}
}

// WithBlockCache puts a byte-bounded read cache of blockSize chunks in front
// of the blob store. Useful for remote stores; a local store is already
// memory mapped.
func WithBlockCache(capacityBytes, blockSize int64) Option {
	return func(o *options) {
		o.blockCacheBytes = capacityBytes
		o.blockSize = blockSize
	}
}

// WithResourceController shares a memory budget and worker slots between
// caches and search producers.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resource = rc
	}
}

// WithResourceLimits creates a resource controller from limits.
// Zero values mean unlimited.
func WithResourceLimits(memoryBytes, maxWorkers, ioBytesPerSec int64) Option {
	return func(o *options) {
		o.resourceConfig = &resource.Config{
			MemoryLimitBytes:   memoryBytes,
			MaxWorkers:         maxWorkers,
			IOLimitBytesPerSec: ioBytesPerSec,
		}
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &wikipack.BasicMetricsCollector{}
//	lib, _ := wikipack.OpenLocal(ctx, "./cdpedia", wikipack.WithMetricsCollector(metrics))
//	// ... use lib ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		policy:           index.Lenient,
		shardCache:       docstore.DefaultCacheShards,
		articleCache:     content.DefaultCacheBlocks,
		imageCache:       content.DefaultCacheBlocks,
		sessionCache:     searcher.DefaultCacheSize,
		maxHops:          content.DefaultMaxHops,
		verifyChecksums:  true,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.resource == nil && o.resourceConfig != nil {
		o.resource = resource.NewController(*o.resourceConfig)
	}
	return o
}
