// Package config loads wikipack reader settings from a YAML file with
// WIKIPACK_* environment overrides and turns them into wikipack options and
// a blob store.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/wikipack"
	"github.com/hupe1980/wikipack/blobstore"
	"github.com/hupe1980/wikipack/blobstore/minio"
	"github.com/hupe1980/wikipack/blobstore/s3"
	"github.com/hupe1980/wikipack/index"
)

// Store backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendMinIO = "minio"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid")

// Config is the top-level reader configuration.
type Config struct {
	Store     StoreConfig    `yaml:"store"`
	Cache     CacheConfig    `yaml:"cache"`
	Search    SearchConfig   `yaml:"search"`
	Resources ResourceConfig `yaml:"resources"`
	Logging   LoggingConfig  `yaml:"logging"`
}

// StoreConfig locates the packaged artifacts.
type StoreConfig struct {
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	UseSSL    bool   `yaml:"useSSL"`
}

// CacheConfig sizes the reader caches. Zero keeps the library default.
type CacheConfig struct {
	Shards          int   `yaml:"shards"`
	Articles        int   `yaml:"articles"`
	Images          int   `yaml:"images"`
	Sessions        int   `yaml:"sessions"`
	BlockCacheBytes int64 `yaml:"blockCacheBytes"`
	BlockSize       int64 `yaml:"blockSize"`
}

// SearchConfig holds search and lookup behaviour.
type SearchConfig struct {
	MissingTerms    string `yaml:"missingTerms"`
	MaxResults      int    `yaml:"maxResults"`
	MaxRedirectHops int    `yaml:"maxRedirectHops"`
	VerifyChecksums bool   `yaml:"verifyChecksums"`
}

// ResourceConfig bounds memory, workers and read bandwidth. Zero means unlimited.
type ResourceConfig struct {
	MemoryLimitBytes   int64 `yaml:"memoryLimitBytes"`
	MaxWorkers         int64 `yaml:"maxWorkers"`
	IOLimitBytesPerSec int64 `yaml:"ioLimitBytesPerSec"`
}

// LoggingConfig selects the log level and format ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML file at path on top of the defaults and applies
// environment overrides. An empty path yields defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: BackendLocal,
			Path:    ".",
			UseSSL:  true,
		},
		Search: SearchConfig{
			MissingTerms:    index.Lenient.String(),
			VerifyChecksums: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	int64v := func(name string, dst *int64) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("WIKIPACK_STORE_BACKEND", &cfg.Store.Backend)
	str("WIKIPACK_STORE_PATH", &cfg.Store.Path)
	str("WIKIPACK_STORE_BUCKET", &cfg.Store.Bucket)
	str("WIKIPACK_STORE_PREFIX", &cfg.Store.Prefix)
	str("WIKIPACK_STORE_REGION", &cfg.Store.Region)
	str("WIKIPACK_STORE_ENDPOINT", &cfg.Store.Endpoint)
	str("WIKIPACK_STORE_ACCESS_KEY", &cfg.Store.AccessKey)
	str("WIKIPACK_STORE_SECRET_KEY", &cfg.Store.SecretKey)
	boolean("WIKIPACK_STORE_USE_SSL", &cfg.Store.UseSSL)

	integer("WIKIPACK_CACHE_SHARDS", &cfg.Cache.Shards)
	integer("WIKIPACK_CACHE_ARTICLES", &cfg.Cache.Articles)
	integer("WIKIPACK_CACHE_IMAGES", &cfg.Cache.Images)
	integer("WIKIPACK_CACHE_SESSIONS", &cfg.Cache.Sessions)
	int64v("WIKIPACK_CACHE_BLOCK_BYTES", &cfg.Cache.BlockCacheBytes)
	int64v("WIKIPACK_CACHE_BLOCK_SIZE", &cfg.Cache.BlockSize)

	str("WIKIPACK_SEARCH_MISSING_TERMS", &cfg.Search.MissingTerms)
	integer("WIKIPACK_SEARCH_MAX_RESULTS", &cfg.Search.MaxResults)
	integer("WIKIPACK_SEARCH_MAX_REDIRECT_HOPS", &cfg.Search.MaxRedirectHops)
	boolean("WIKIPACK_SEARCH_VERIFY_CHECKSUMS", &cfg.Search.VerifyChecksums)

	int64v("WIKIPACK_RESOURCES_MEMORY_LIMIT_BYTES", &cfg.Resources.MemoryLimitBytes)
	int64v("WIKIPACK_RESOURCES_MAX_WORKERS", &cfg.Resources.MaxWorkers)
	int64v("WIKIPACK_RESOURCES_IO_LIMIT_BYTES_PER_SEC", &cfg.Resources.IOLimitBytesPerSec)

	str("WIKIPACK_LOG_LEVEL", &cfg.Logging.Level)
	str("WIKIPACK_LOG_FORMAT", &cfg.Logging.Format)
}

// Validate reports the first setting that cannot be honoured.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendLocal:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for the local backend", ErrInvalid)
		}
	case BackendS3:
		if c.Store.Bucket == "" {
			return fmt.Errorf("%w: store.bucket is required for the s3 backend", ErrInvalid)
		}
	case BackendMinIO:
		if c.Store.Bucket == "" || c.Store.Endpoint == "" {
			return fmt.Errorf("%w: store.bucket and store.endpoint are required for the minio backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalid, c.Store.Backend)
	}
	if _, err := c.policy(); err != nil {
		return err
	}
	if _, err := c.level(); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Logging.Format)
	}
	return nil
}

func (c *Config) policy() (index.MissingTermPolicy, error) {
	switch strings.ToLower(c.Search.MissingTerms) {
	case "", index.Lenient.String():
		return index.Lenient, nil
	case index.Strict.String():
		return index.Strict, nil
	}
	return 0, fmt.Errorf("%w: unknown missing term policy %q", ErrInvalid, c.Search.MissingTerms)
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	if c.Logging.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalid, c.Logging.Level)
	}
	return l, nil
}

// Logger builds the configured logger, writing to stderr.
func (c *Config) Logger() *wikipack.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}
	if strings.EqualFold(c.Logging.Format, "json") {
		return wikipack.NewJSONLogger(level)
	}
	return wikipack.NewTextLogger(level)
}

// Options converts the configuration into wikipack options. Unset cache
// sizes keep the library defaults.
func (c *Config) Options() []wikipack.Option {
	policy, _ := c.policy()
	opts := []wikipack.Option{
		wikipack.WithMissingTermPolicy(policy),
		wikipack.WithVerifyChecksums(c.Search.VerifyChecksums),
		wikipack.WithLogger(c.Logger()),
	}
	if c.Cache.Shards > 0 {
		opts = append(opts, wikipack.WithShardCache(c.Cache.Shards))
	}
	if c.Cache.Articles > 0 {
		opts = append(opts, wikipack.WithArticleCache(c.Cache.Articles))
	}
	if c.Cache.Images > 0 {
		opts = append(opts, wikipack.WithImageCache(c.Cache.Images))
	}
	if c.Cache.Sessions > 0 {
		opts = append(opts, wikipack.WithSearchSessions(c.Cache.Sessions))
	}
	if c.Cache.BlockCacheBytes > 0 {
		opts = append(opts, wikipack.WithBlockCache(c.Cache.BlockCacheBytes, c.Cache.BlockSize))
	}
	if c.Search.MaxResults > 0 {
		opts = append(opts, wikipack.WithMaxResults(c.Search.MaxResults))
	}
	if c.Search.MaxRedirectHops > 0 {
		opts = append(opts, wikipack.WithMaxRedirectHops(c.Search.MaxRedirectHops))
	}
	r := c.Resources
	if r.MemoryLimitBytes > 0 || r.MaxWorkers > 0 || r.IOLimitBytesPerSec > 0 {
		opts = append(opts, wikipack.WithResourceLimits(r.MemoryLimitBytes, r.MaxWorkers, r.IOLimitBytesPerSec))
	}
	return opts
}

// OpenStore connects to the configured backend.
func (c *Config) OpenStore(ctx context.Context) (blobstore.BlobStore, error) {
	sc := c.Store
	switch sc.Backend {
	case BackendLocal:
		return blobstore.NewLocalStore(sc.Path), nil
	case BackendS3:
		var opts []s3.Option
		if sc.Prefix != "" {
			opts = append(opts, s3.WithPrefix(sc.Prefix))
		}
		if sc.Region != "" {
			opts = append(opts, s3.WithRegion(sc.Region))
		}
		return s3.New(ctx, sc.Bucket, opts...)
	case BackendMinIO:
		client, err := miniogo.New(sc.Endpoint, &miniogo.Options{
			Creds:  credentials.NewStaticV4(sc.AccessKey, sc.SecretKey, ""),
			Secure: sc.UseSSL,
			Region: sc.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("config: minio client: %w", err)
		}
		return minio.NewStore(client, sc.Bucket, sc.Prefix), nil
	}
	return nil, fmt.Errorf("%w: unknown store backend %q", ErrInvalid, sc.Backend)
}

// Open opens the library the configuration describes.
func (c *Config) Open(ctx context.Context, extra ...wikipack.Option) (*wikipack.Library, error) {
	store, err := c.OpenStore(ctx)
	if err != nil {
		return nil, err
	}
	return wikipack.Open(ctx, store, append(c.Options(), extra...)...)
}
