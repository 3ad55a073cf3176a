//go:build !unix && !windows

package rawmem

import "unsafe"

// Map falls back to Calloc on platforms with neither mmap nor VirtualAlloc.
// populate is meaningless here: Go-heap memory is already backed.
func Map(size uintptr, populate bool) (unsafe.Pointer, error) {
	return Calloc(size)
}

// Unmap falls back to Free; size is unused, kept for signature symmetry
// with the unix/windows implementations.
func Unmap(ptr unsafe.Pointer, size uintptr) error {
	Free(ptr)
	return nil
}
