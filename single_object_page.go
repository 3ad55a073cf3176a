package customalloc

import (
	"sync/atomic"
	"unsafe"
)

// singleObjectPage holds exactly one large object, sized to fit it exactly
// (header plus payload), rather than being chosen from a fixed set of sizes.
// Grounded on the original SingleObjectPage.hpp/.cpp.
//
// The original recomputes the object's size at Destroy time via a
// SweepTraits::elementSize callback (since C++ has no convenient place to
// stash it). This package already has the size in hand at allocation time
// (AllocationSize, the cell count requested), so it's stored directly on the
// page instead of recomputed.
type singleObjectPage struct {
	next       atomic.Pointer[singleObjectPage]
	objectSize AllocationSize
	heap       *Heap
}

func (p *singleObjectPage) link() *atomic.Pointer[singleObjectPage] { return &p.next }

// newSingleObjectPage procures a page sized exactly for objectSize and
// records it against the heap's size tracker immediately (no page-local
// buffering: a single-object page is fully accounted for the instant it
// exists).
func newSingleObjectPage(h *Heap, objectSize AllocationSize) *singleObjectPage {
	headerSize := AllocationSizeBytesAtLeast(uint64(unsafe.Sizeof(singleObjectPage{})))
	totalSize := objectSize.Add(headerSize)
	raw := safeAlloc(totalSize.InBytes(), &h.cfg)
	p := (*singleObjectPage)(raw)
	p.heap = h
	p.objectSize = objectSize
	h.sizeTracker.recordDifference(int64(objectSize.InBytes()))
	return p
}

// data returns the object's payload pointer, immediately after the header.
func (p *singleObjectPage) data() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(p), unsafe.Sizeof(singleObjectPage{}))
}

// destroy releases the page, recording the byte count back out of the
// heap's tracker.
func (p *singleObjectPage) destroy() {
	headerSize := AllocationSizeBytesAtLeast(uint64(unsafe.Sizeof(singleObjectPage{})))
	totalSize := p.objectSize.Add(headerSize)
	p.heap.sizeTracker.recordDifference(-int64(p.objectSize.InBytes()))
	safeFree(unsafe.Pointer(p), totalSize.InBytes(), &p.heap.cfg)
}

// sweepAndDestroy sweeps the page's single object; if dead, destroys the
// page and reports false (page gone), otherwise reports true (page kept).
func (p *singleObjectPage) sweepAndDestroy(trySweep func(unsafe.Pointer) bool) bool {
	if trySweep(p.data()) {
		return true
	}
	p.destroy()
	return false
}
