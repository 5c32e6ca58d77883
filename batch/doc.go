// Package batch implements content-keyed request batching: concurrent
// completion requests for the same model, prompt and max-token limit are
// merged into a single pending batch and share one upstream call and one
// terminal result, the same "shared terminal outcome for every member"
// invariant the queue package's ticket coalescence uses.
//
// A batch accumulates members until its oldest member is older than
// MaxBatchAge; the next sweep then flushes it: the configured Flush
// function runs once for the whole batch and every member observes the
// same Result. There is no member-count limit. Flush-triggered upstream calls are bounded across all
// batch keys at once by a weighted semaphore, so a burst of distinct
// batch keys flushing at once cannot flood the provider with unbounded
// concurrent requests.
package batch
