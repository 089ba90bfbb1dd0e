// Package similarity precomputes substring relations between dictionary
// terms so that partial-match queries do not scan the whole dictionary.
//
// A Matrix holds the sorted terms and one delta-encoded row per term listing
// every other term that contains it or is contained by it. The diagonal is
// implicit. The empty term matches nothing.
//
// Two build strategies are provided: SuffixArray, backed by
// index/suffixarray over the joined dictionary, and Pairwise, a quadratic
// scan for small dictionaries. Both produce identical matrices.
package similarity
