//go:build windows

package rawmem

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// Map procures size bytes via VirtualAlloc(MEM_COMMIT|MEM_RESERVE). populate
// is ignored: Windows has no direct equivalent of MAP_POPULATE, and
// MEM_COMMIT already backs the pages with physical memory on first touch.
func Map(size uintptr, populate bool) (unsafe.Pointer, error) {
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	return unsafe.Pointer(addr), nil
}

// Unmap releases a mapping obtained from Map.
func Unmap(ptr unsafe.Pointer, size uintptr) error {
	return windows.VirtualFree(uintptr(ptr), 0, windows.MEM_RELEASE)
}
