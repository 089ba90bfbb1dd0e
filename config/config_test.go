package config

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/wikipack"
	"github.com/hupe1980/wikipack/blobstore"
	"github.com/hupe1980/wikipack/blobstore/minio"
	"github.com/hupe1980/wikipack/testutil"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wikipack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, BackendLocal, cfg.Store.Backend)
	assert.True(t, cfg.Search.VerifyChecksums)
	assert.Equal(t, "lenient", cfg.Search.MissingTerms)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
store:
  backend: minio
  endpoint: localhost:9000
  bucket: wiki
  prefix: eswiki
  useSSL: false
cache:
  articles: 64
  blockCacheBytes: 1048576
search:
  missingTerms: strict
  maxResults: 200
logging:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMinIO, cfg.Store.Backend)
	assert.Equal(t, "wiki", cfg.Store.Bucket)
	assert.False(t, cfg.Store.UseSSL)
	assert.Equal(t, 64, cfg.Cache.Articles)
	assert.Equal(t, int64(1<<20), cfg.Cache.BlockCacheBytes)
	assert.Equal(t, 200, cfg.Search.MaxResults)
	// Fields absent from the file keep their defaults.
	assert.True(t, cfg.Search.VerifyChecksums)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "store:\n  path: /from/file\n")
	t.Setenv("WIKIPACK_STORE_PATH", "/from/env")
	t.Setenv("WIKIPACK_CACHE_SESSIONS", "7")
	t.Setenv("WIKIPACK_SEARCH_VERIFY_CHECKSUMS", "false")
	t.Setenv("WIKIPACK_RESOURCES_MAX_WORKERS", "3")
	t.Setenv("WIKIPACK_CACHE_SHARDS", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Store.Path)
	assert.Equal(t, 7, cfg.Cache.Sessions)
	assert.False(t, cfg.Search.VerifyChecksums)
	assert.Equal(t, int64(3), cfg.Resources.MaxWorkers)
	assert.Zero(t, cfg.Cache.Shards)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "store: [unclosed"))
	assert.Error(t, err)

	tests := []struct {
		name string
		body string
	}{
		{"unknown backend", "store:\n  backend: ftp\n"},
		{"s3 without bucket", "store:\n  backend: s3\n"},
		{"minio without endpoint", "store:\n  backend: minio\n  bucket: b\n"},
		{"empty local path", "store:\n  path: \"\"\n"},
		{"policy", "search:\n  missingTerms: sometimes\n"},
		{"level", "logging:\n  level: loud\n"},
		{"format", "logging:\n  format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	cfg := Default()
	cfg.Store.Path = t.TempDir()
	store, err := cfg.OpenStore(ctx)
	require.NoError(t, err)
	assert.IsType(t, &blobstore.LocalStore{}, store)

	cfg.Store = StoreConfig{Backend: BackendMinIO, Endpoint: "localhost:9000", Bucket: "wiki"}
	store, err = cfg.OpenStore(ctx)
	require.NoError(t, err)
	assert.IsType(t, &minio.Store{}, store)

	cfg.Store = StoreConfig{Backend: "tape"}
	_, err = cfg.OpenStore(ctx)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c := testutil.Scenario()
	_, err := wikipack.Build(ctx, blobstore.NewLocalStore(dir), wikipack.BuildInput{
		Documents: slices.Values(c.Documents),
		Articles:  c.ArticleSource(),
		Redirects: c.Redirects,
		Language:  "es",
	}, wikipack.BuildConfig{})
	require.NoError(t, err)

	cfg := Default()
	cfg.Store.Path = dir
	cfg.Logging.Level = "error"
	cfg.Search.MissingTerms = "strict"
	cfg.Cache.Articles = 2
	cfg.Resources.MaxWorkers = 2

	metrics := &wikipack.BasicMetricsCollector{}
	lib, err := cfg.Open(ctx, wikipack.WithMetricsCollector(metrics))
	require.NoError(t, err)
	defer lib.Close()

	assert.Equal(t, "es", lib.Language())
	res, err := lib.Search(ctx, []string{"conejo"})
	require.NoError(t, err)
	assert.Len(t, res, 2)

	// Strict policy: an unknown word fails the search.
	_, err = lib.Search(ctx, []string{"conejo", "zzzz"})
	assert.Error(t, err)
	assert.Equal(t, int64(2), metrics.GetStats().SearchCount)
}

func TestLogger(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg.Logger())
	cfg.Logging.Format = "JSON"
	assert.NotNil(t, cfg.Logger())
}
