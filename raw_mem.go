package customalloc

import (
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/cobaltrt/customalloc/internal/rawmem"
)

// processAllocatedBytes is the process-wide raw OS-backed footprint of every
// page procured via safeAlloc across every Heap, matching the original
// GCApi.cpp's file-scope `allocatedBytesCounter`: there is only one address
// space, so this is a package-level counter rather than a per-Heap one.
var processAllocatedBytes atomic.Int64

// ProcessAllocatedBytes returns the current OS-backed footprint of every
// page this package has procured and not yet released, across every Heap in
// the process.
func ProcessAllocatedBytes() int64 {
	return processAllocatedBytes.Load()
}

// safeAlloc procures size bytes of raw memory for a page, aborting the
// process on failure. Matches the original GCApi.cpp's SafeAlloc contract:
// allocation failure in a managed runtime's allocator is not a recoverable
// condition, since there is no sensible value to return to a caller that
// assumes it now owns a page.
func safeAlloc(size uint64, cfg *Config) unsafe.Pointer {
	if size > math.MaxInt {
		panic(fmt.Sprintf("customalloc: out of memory trying to allocate %d bytes: size exceeds platform limit", size))
	}
	var ptr unsafe.Pointer
	var err error
	if cfg.DisableMmap {
		ptr, err = rawmem.Calloc(uintptr(size))
	} else {
		ptr, err = rawmem.Map(uintptr(size), cfg.UsePopulateFlag)
	}
	if err != nil {
		panic(fmt.Sprintf("customalloc: out of memory trying to allocate %d bytes: %v", size, err))
	}
	processAllocatedBytes.Add(int64(size))
	logAllocDebug("safeAlloc", "size", size, "ptr", ptr)
	return ptr
}

// safeFree releases memory obtained from safeAlloc.
func safeFree(ptr unsafe.Pointer, size uint64, cfg *Config) {
	logAllocDebug("safeFree", "size", size, "ptr", ptr)
	var err error
	if cfg.DisableMmap {
		rawmem.Free(ptr)
	} else {
		err = rawmem.Unmap(ptr, uintptr(size))
	}
	if err != nil {
		panic(fmt.Sprintf("customalloc: failed to release %d bytes at %p: %v", size, ptr, err))
	}
	processAllocatedBytes.Add(-int64(size))
}
