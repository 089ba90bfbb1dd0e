// Package index implements the inverted word index of a library.
//
// # Build
//
// Build consumes model.Document values, assigns sequential document ids,
// accumulates one posting list per normalized term and writes:
//
//   - compindex.key.zst: the sorted term dictionary, the term similarity
//     matrix and the delta-encoded posting lists
//   - compindex-NN.ids.zst: the document entries, sharded by id
//   - manifest.json
//
// # Query
//
// Search intersects the posting lists of the given words. PartialSearch
// replaces every word with the union of the postings of all terms that
// contain it, then intersects those unions.
//
//	idx, err := index.Open(ctx, store)
//	hits, err := idx.Search(ctx, []string{"conejo", "negro"})
//
// Results are ordered by descending score.
package index
