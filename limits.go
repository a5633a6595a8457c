package pe

import "sync/atomic"

var (
	// The data directory count comes straight from the file, so it
	// only bounds the reads, not the initial allocation.
	MAX_DIRECTORY_PREALLOCATION uint32 = 256
)

func SetDirectoryPreallocationLimit(limit uint32) {
	atomic.SwapUint32(&MAX_DIRECTORY_PREALLOCATION, limit)
}

func GetDirectoryPreallocationLimit() uint32 {
	return atomic.LoadUint32(&MAX_DIRECTORY_PREALLOCATION)
}
