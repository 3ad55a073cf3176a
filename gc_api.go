package customalloc

import "unsafe"

// ObjectData is an opaque handle to the GC's per-object mark state, embedded
// inline in every object's header (see ObjectHeader). This package never
// interprets its contents: it only ever hands a pointer to it back to
// Callbacks.TryResetMark.
type ObjectData unsafe.Pointer

// TypeInfo is the minimal view of a managed type this package needs in
// order to size and route an allocation. The rest of the object model
// (field layout, vtables, reflection) lives in the embedding runtime and is
// out of scope here.
type TypeInfo interface {
	// HasFinalizer reports whether instances of this type require an
	// ExtraObjectData cell allocated alongside them.
	HasFinalizer() bool
	// IsArray distinguishes array types, whose InstanceSize is the
	// per-element stride, from fixed-layout scalar types.
	IsArray() bool
	// InstanceSize is the object payload size in bytes for a scalar type, or
	// the per-element stride in bytes for an array type.
	InstanceSize() uint64
}

// Callbacks are the hooks this package drives; see spec.md §6.
type Callbacks struct {
	// OnMemoryAllocation fires whenever the heap's live-allocated-byte
	// estimate changes in a way the scheduler should know about promptly
	// (currently: whenever a page overflows). May be nil.
	OnMemoryAllocation func(totalAllocatedBytes int64)
	// TryResetMark reports whether data's mark bit was set, clearing it as a
	// side effect. Required: NewHeap panics if it is nil.
	TryResetMark func(data ObjectData) bool
}

// objectHeaderSize is the number of bytes every allocated object/array
// reserves ahead of its payload: the GC's embedded mark state, a meta
// pointer used only to record whether an ExtraObjectData exists for this
// object (spec.md §4.8's "meta-object convention", simplified here since
// representing the full type-info-or-meta union faithfully would require
// treating Go's TypeInfo interface as raw addressable memory, which the
// object model being out of scope makes unnecessary: callers already know
// an object's TypeInfo from context, they only need the finalizer link),
// and an element count used only by arrays (the Go analogue of the
// original's ArrayHeader.count_, zero and unused for scalar objects).
type objectHeader struct {
	gc    uintptr
	meta  *ExtraObjectData
	count uint64
}

var objectHeaderSize = unsafe.Sizeof(objectHeader{})

// ObjectHeader is the header this package places at the start of every
// object and array allocation.
type ObjectHeader struct {
	h *objectHeader
}

func headerAt(ptr unsafe.Pointer) ObjectHeader {
	return ObjectHeader{h: (*objectHeader)(ptr)}
}

// GCData returns the pointer this package passes to Callbacks.TryResetMark.
func (h ObjectHeader) GCData() ObjectData { return ObjectData(unsafe.Pointer(&h.h.gc)) }

// ExtraData returns the object's linked ExtraObjectData, or nil if it has
// none.
func (h ObjectHeader) ExtraData() *ExtraObjectData { return h.h.meta }

// SetExtraData links obj to an ExtraObjectData (or clears the link, if nil).
func (h ObjectHeader) SetExtraData(e *ExtraObjectData) { h.h.meta = e }

// ArrayCount returns the element count a previous SetArrayCount recorded, or
// 0 for a scalar object that never had one set.
func (h ObjectHeader) ArrayCount() uint64 { return h.h.count }

// SetArrayCount records obj's element count, read back by AllocatedHeapSize
// to size a live array without consulting the page it lives on. Callers
// allocating a scalar object never call this; its header's count stays 0.
func (h ObjectHeader) SetArrayCount(count uint64) { h.h.count = count }

// Payload returns a pointer to the object's fields, immediately after the
// header.
func (h ObjectHeader) Payload() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(h.h), objectHeaderSize)
}

// Pointer returns the object's own address (the header's address).
func (h ObjectHeader) Pointer() unsafe.Pointer { return unsafe.Pointer(h.h) }

// AllocatedHeapSize returns the number of bytes obj occupies on the heap,
// header included. It needs no Heap or ThreadData, matching the original
// CustomAllocator::GetAllocatedHeapSize's static method: a caller that
// already has obj's TypeInfo (a moving step, a heap profiler) can size it
// without knowing which page it came from.
func AllocatedHeapSize(t TypeInfo, obj unsafe.Pointer) uint64 {
	if t.IsArray() {
		return uint64(objectHeaderSize) + headerAt(obj).ArrayCount()*t.InstanceSize()
	}
	return uint64(objectHeaderSize) + t.InstanceSize()
}
