// Package model defines the core types shared by the index, the content
// store and the searcher.
//
// # Identity Types
//
//   - DocID: sequential document identifier, assigned during index build and
//     only stable within one build generation
//
// # Data Types
//
//   - DocumentEntry: what a search hit resolves to (link, title, score, kind)
//   - Document: one index build input (tokens + score + entry)
//   - Article and Redirect: content store build inputs
package model
