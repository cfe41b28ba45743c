// Package batch splits room id sets into request-sized chunks.
package batch

import "slices"

// MaxPlatformBatchSize is the largest id list the status endpoint accepts
// in one request.
const MaxPlatformBatchSize = 100

// Chunk splits ids in order into contiguous chunks of at most size
// elements. Only the last chunk may be shorter. Empty input yields no
// chunks. Chunk panics if size < 1; callers validate size at startup.
func Chunk[T any](ids []T, size int) [][]T {
	if size < 1 {
		panic("batch: chunk size must be at least 1")
	}
	return slices.Collect(slices.Chunk(ids, size))
}
