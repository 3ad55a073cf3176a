//go:build unix

package rawmem

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Map procures an anonymous, private mapping of size bytes via mmap,
// matching GCApi.cpp's SafeAlloc: MAP_ANONYMOUS|MAP_PRIVATE, plus, on Linux
// only, MAP_NORESERVE and (when populate is requested) MAP_POPULATE.
func Map(size uintptr, populate bool) (unsafe.Pointer, error) {
	flags := unix.MAP_ANON | unix.MAP_PRIVATE | mapNoReserve
	if populate {
		flags |= mapPopulate
	}
	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, flags)
	if err != nil {
		return nil, err
	}
	return unsafe.Pointer(unsafe.SliceData(b)), nil
}

// Unmap releases a mapping obtained from Map.
func Unmap(ptr unsafe.Pointer, size uintptr) error {
	b := unsafe.Slice((*byte)(ptr), size)
	return unix.Munmap(b)
}
