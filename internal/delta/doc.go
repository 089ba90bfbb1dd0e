// Package delta implements the varint delta codec shared by posting lists,
// similarity rows and string table offsets.
//
// Each value is stored as the difference to its predecessor, LEB128-encoded
// (7 data bits per byte, high bit set on continuation bytes). The predecessor
// of the first value is -1, so a stored delta is never zero for increasing
// input. A zero delta is reserved as the "sequence reset" marker: when the
// input decreases, the encoder emits 0 and restarts from -1, which keeps the
// round trip lossless for unsorted streams.
//
// The Monotonic variants allow repeated values (zero deltas carry data) and
// are used for offset tables, which are non-decreasing by construction.
package delta
