// Package hash provides the hash functions baked into artifact formats.
//
// Coherent assigns article names to content blocks and must stay stable
// across platforms and releases. CRC32C checksums artifact files in the
// manifest.
package hash
