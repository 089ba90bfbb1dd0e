// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore,
// for serving a packaged library straight from a bucket.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("eswiki-2026/"),
//	    s3.WithRegion("eu-west-1"),
//	)
//
//	lib, err := wikipack.Open(ctx, store)
//
// # Features
//
//   - Range reads, so an image is fetched without its whole block
//   - Multipart streaming uploads for builds written directly to S3
//   - CRC32C-checked single-shot puts for small artifacts
//   - Automatic pagination for listing
package s3
