package codec

import "sync"

// scratchPool reuses byte slices for bulk list encoding and Marshal.
// This reduces GC pressure by avoiding frequent allocations.
var scratchPool = sync.Pool{
	New: func() any {
		// A 4KB default is chosen to avoid re-allocations for common payload sizes.
		b := make([]byte, 0, BUFFER_SIZE)
		return &b
	},
}

// maxPooledScratch keeps one huge list from pinning memory in the pool.
const maxPooledScratch = 1 << 20

func getScratch() *[]byte {
	return scratchPool.Get().(*[]byte)
}

func putScratch(b *[]byte) {
	if cap(*b) > maxPooledScratch {
		return
	}
	*b = (*b)[:0]
	scratchPool.Put(b)
}
