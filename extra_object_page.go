package customalloc

import (
	"sync/atomic"
	"unsafe"
)

// Flags on ExtraObjectData's sweep state machine. Grounded on the original
// mm::ExtraObjectData flags consumed by GCApi.cpp's SweepObject/SweepExtraObject.
const (
	flagInFinalizerQueue uint32 = 1 << iota
	flagFinalized
	flagSweepable
)

// ExtraObjectData is the side-table record a finalizable object's header
// links to: sweep-relevant flags plus a backlink to the owning object. Any
// further payload (weak reference state, native interop handles) is owned
// by the embedding runtime and out of scope here.
type ExtraObjectData struct {
	baseObject unsafe.Pointer
	flags      atomic.Uint32
}

// BaseObject returns the object this ExtraObjectData is attached to.
func (e *ExtraObjectData) BaseObject() unsafe.Pointer { return e.baseObject }

// UnlinkFromBaseObject clears the backlink, matching the moment (end of
// sweep, object confirmed dead) where the original detaches the link before
// recycling the cell.
func (e *ExtraObjectData) UnlinkFromBaseObject() { e.baseObject = nil }

func (e *ExtraObjectData) getFlag(f uint32) bool { return e.flags.Load()&f != 0 }
func (e *ExtraObjectData) setFlag(f uint32)      { e.flags.Or(f) }

// extraObjectCell is one slot of an ExtraObjectPage. Free cells link to the
// next free cell through next; once allocated, next is reused after the
// object dies to thread the cell onto a FinalizerQueue, exactly as the
// original ExtraObjectCell shares its single link field between the
// page's free list and the finalizer queue.
type extraObjectCell struct {
	next atomic.Pointer[extraObjectCell]
	data ExtraObjectData
}

func (c *extraObjectCell) link() *atomic.Pointer[extraObjectCell] { return &c.next }

// Data returns the cell's ExtraObjectData.
func (c *extraObjectCell) Data() *ExtraObjectData { return &c.data }

// extraObjectCellFromData recovers the owning cell from a *ExtraObjectData
// pointer, mirroring ExtraObjectCell::fromExtraObject's offsetof arithmetic.
func extraObjectCellFromData(e *ExtraObjectData) *extraObjectCell {
	offset := unsafe.Offsetof(extraObjectCell{}.data)
	return (*extraObjectCell)(unsafe.Add(unsafe.Pointer(e), -int(offset)))
}

// FinalizerQueue collects objects (by their ExtraObjectData's owning cell)
// that need finalization, ready to be handed to an external finalizer
// processor. It is just an AtomicStack over extraObjectCell.
type FinalizerQueue struct {
	stack AtomicStack[extraObjectCell, *extraObjectCell]
}

func (q *FinalizerQueue) push(c *extraObjectCell) { q.stack.Push(c) }

// Pop removes and returns the next ExtraObjectData to finalize, or nil.
func (q *FinalizerQueue) Pop() *ExtraObjectData {
	c := q.stack.Pop()
	if c == nil {
		return nil
	}
	return c.Data()
}

// MergeFrom moves every pending finalization from other onto q.
func (q *FinalizerQueue) MergeFrom(other *FinalizerQueue) { q.stack.TransferAllFrom(&other.stack) }

// IsEmpty reports whether the queue has no pending finalizations.
func (q *FinalizerQueue) IsEmpty() bool { return q.stack.IsEmpty() }

// Size returns the number of pending finalizations. Not safe to call
// concurrently with mutation.
func (q *FinalizerQueue) Size() int { return q.stack.Size() }

// extraObjectPage is a fixed-size pool of ExtraObjectData slots, threaded
// into a free list at construction time and reclaimed cell-by-cell during
// sweep. Grounded on the original ExtraObjectPage.hpp/.cpp.
type extraObjectPage struct {
	next     atomic.Pointer[extraObjectPage]
	tracker  pageSizeTracker
	nextFree atomic.Pointer[extraObjectCell]
	heap     *Heap

	cellsBase unsafe.Pointer
	count     uint32
}

func (p *extraObjectPage) link() *atomic.Pointer[extraObjectPage] { return &p.next }

func extraObjectCellAt(base unsafe.Pointer, idx uint32) *extraObjectCell {
	return (*extraObjectCell)(unsafe.Add(base, uintptr(idx)*unsafe.Sizeof(extraObjectCell{})))
}

func extraObjectCountFor(pageSize uint64) uint32 {
	headerSize := unsafe.Sizeof(extraObjectPage{})
	cellSize := unsafe.Sizeof(extraObjectCell{})
	return uint32((pageSize - uint64(headerSize)) / uint64(cellSize))
}

// newExtraObjectPage procures a fresh page and threads every cell into the
// free list, exactly as ExtraObjectPage's constructor does.
func newExtraObjectPage(h *Heap) *extraObjectPage {
	size := h.cfg.ExtraObjectPageSize
	raw := safeAlloc(size, &h.cfg)
	p := (*extraObjectPage)(raw)
	p.heap = h
	p.count = extraObjectCountFor(size)
	p.cellsBase = unsafe.Add(raw, unsafe.Sizeof(extraObjectPage{}))

	for i := uint32(0); i < p.count; i++ {
		cell := extraObjectCellAt(p.cellsBase, i)
		if i+1 < p.count {
			cell.next.Store(extraObjectCellAt(p.cellsBase, i+1))
		} else {
			cell.next.Store(nil)
		}
	}
	p.nextFree.Store(extraObjectCellAt(p.cellsBase, 0))
	return p
}

func (p *extraObjectPage) destroy() {
	safeFree(unsafe.Pointer(p), p.heap.cfg.ExtraObjectPageSize, &p.heap.cfg)
}

// tryAllocate returns a fresh ExtraObjectData, or nil if the page is full.
func (p *extraObjectPage) tryAllocate() *ExtraObjectData {
	next := p.nextFree.Load()
	if next == nil {
		p.tracker.onPageOverflow(&p.heap.sizeTracker, uint64(p.count)*uint64(unsafe.Sizeof(ExtraObjectData{})))
		return nil
	}
	p.nextFree.Store(next.next.Load())
	// A cell reclaimed by sweep still holds its previous owner's backlink and
	// flags; clear them so every allocation starts from a zeroed record.
	next.data.baseObject = nil
	next.data.flags.Store(0)
	return next.Data()
}

// sweep reclaims dead cells back onto the free list and reports whether any
// cell is still alive. fq is unused here (extra objects are never
// themselves pushed onto a finalizer queue, SweepObject already did that for
// their owning object) but kept so every page type's sweep has the same
// shape for PageStore's generic sweep dispatch.
func (p *extraObjectPage) sweep(fq *FinalizerQueue) bool {
	end := p.count
	nextFreeSlot := &p.nextFree
	var aliveBytes uint64
	cellSize := uint64(unsafe.Sizeof(ExtraObjectData{}))

	for i := uint32(0); i < end; i++ {
		cell := extraObjectCellAt(p.cellsBase, i)
		if cell == nextFreeSlot.Load() {
			nextFreeSlot = &cell.next
			continue
		}
		if sweepExtraObject(cell.Data()) {
			aliveBytes += cellSize
			continue
		}
		cell.next.Store(nextFreeSlot.Load())
		nextFreeSlot.Store(cell)
		nextFreeSlot = &cell.next
	}

	p.tracker.afterSweep(&p.heap.sizeTracker, aliveBytes)
	return aliveBytes > 0
}

// pushFinalizer enqueues the cell owning data for external finalization.
func pushFinalizer(fq *FinalizerQueue, data *ExtraObjectData) {
	fq.push(extraObjectCellFromData(data))
}
