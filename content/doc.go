// Package content stores article and image bytes in hash-addressed blocks.
//
// Item name n lives in block hash.Coherent(n) mod BlockCount. A block starts
// with a 4-byte little-endian header length, followed by the header (name ->
// byte range or name -> redirect target) and the concatenated items.
//
// Two layouts exist:
//
//   - LayoutCompressed (.cdp): the whole block is one compressed frame.
//     Used for articles, which compress well.
//   - LayoutHeaderCompressed (.cdi): only the header is compressed; the
//     header length and the payload are stored raw so a single item is
//     served with one range read. Used for images.
//
// Redirect chains are followed up to a fixed number of hops.
package content
