// Package rawmem procures and releases raw, page-aligned memory regions from
// the OS for the custom allocator, with a calloc-equivalent fallback for
// platforms without an anonymous-mapping syscall. It mirrors the teacher's
// internal/mmfile build-tag split (mmfile_unix.go / mmfile_windows.go /
// mmfile_fallback.go), adapted from file-backed mappings to anonymous ones.
package rawmem

import (
	"sync"
	"unsafe"
)

// Map and Unmap are implemented per-platform in rawmem_unix.go,
// rawmem_windows.go, and rawmem_fallback.go.

// Calloc procures size zeroed bytes directly from the Go heap, without going
// through any OS mapping. Used when Config.DisableMmap is set, and as the
// universal fallback on platforms with neither mmap nor VirtualAlloc.
//
// Memory returned this way is ordinary Go-heap memory: the garbage collector
// does not know about the unsafe.Pointer callers hold into it, so Calloc
// keeps its own reference in calloced to prevent the backing slice from
// being collected out from under callers. Free releases that reference.
func Calloc(size uintptr) (unsafe.Pointer, error) {
	b := make([]byte, size)
	ptr := unsafe.Pointer(unsafe.SliceData(b))
	calloced.store(ptr, b)
	return ptr, nil
}

// Free releases memory obtained from Calloc.
func Free(ptr unsafe.Pointer) {
	calloced.delete(ptr)
}

var calloced calloceRegistry

type calloceRegistry struct {
	mu  sync.Mutex
	ref map[unsafe.Pointer][]byte
}

func (r *calloceRegistry) store(ptr unsafe.Pointer, b []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ref == nil {
		r.ref = make(map[unsafe.Pointer][]byte)
	}
	r.ref[ptr] = b
}

func (r *calloceRegistry) delete(ptr unsafe.Pointer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ref, ptr)
}
