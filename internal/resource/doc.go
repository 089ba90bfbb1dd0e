// Package resource governs the process-wide budgets of a serving library.
//
//   - Memory: caches charge decompressed blocks and shards against a byte
//     budget (TryAcquireMemory never blocks, AcquireMemory waits)
//   - Workers: bounds concurrent search producers and build writers
//   - IO: token bucket throttling blob reads (RateLimitedReader)
//
// All methods accept a nil *Controller and then impose no limit.
package resource
