// Package searcher runs queries in the background and serves their results
// page by page.
//
// A search session is keyed by its normalized word set. Starting the same
// query twice returns the same session id while the session is tracked. Each
// session has one producer goroutine that runs the exact search, streams its
// hits, then runs the partial search and streams the hits not already seen.
// Readers of a window block only until that window is materialized or the
// session is done.
//
// Sessions live in a bounded LRU. An evicted session is discarded: its
// producer context is cancelled, its id stops resolving, and the next
// identical query starts a fresh producer.
package searcher
