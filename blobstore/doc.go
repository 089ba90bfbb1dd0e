// Package blobstore is the storage abstraction for wikipack's immutable
// artifacts: content blocks, document store shards, key files and manifests.
//
// Artifacts are written once by a build and only read afterwards, from many
// goroutines. Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local directory (read-only media) with mmap reads
//   - MemoryStore: in-memory, for tests and staged builds
//   - CachingStore: block cache in front of a remote store
//   - PrefixStore (Sub): a directory view of another store
//   - s3.Store and minio.Store: object storage backends
//
// For remote backends, ReadRange avoids fetching whole blocks when only one
// image is needed:
//
//	type Blob interface {
//	    ReadAt(ctx, p, off) (int, error)
//	    ReadRange(ctx, off, len) (io.ReadCloser, error)
//	    Size() int64
//	    Close() error
//	}
package blobstore
