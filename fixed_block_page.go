package customalloc

import (
	"sync/atomic"
	"unsafe"
)

// fixedCellRange is the free-list node FixedBlockPage writes into the first
// cell of every free block: the cell range [first, last) of block-aligned
// cell indices that are currently free, threaded as a singly-linked list
// through the first cell of each free block. Exactly one CellSize (8 bytes),
// matching the original's FixedBlockCell union.
type fixedCellRange struct {
	first uint32
	last  uint32
}

// fixedBlockPage serves fixed-size blocks of blockSize cells (1..128) out of
// one OS page: a bump cursor walks [nextFree.first, nextFree.last) and, once
// that run is exhausted, follows the free list threaded through the page by
// the last sweep. Grounded on the original FixedBlockPage.hpp/.cpp.
type fixedBlockPage struct {
	next      atomic.Pointer[fixedBlockPage]
	tracker   pageSizeTracker
	nextFree  fixedCellRange
	blockSize uint32
	end       uint32 // cell count, rounded down to a multiple of blockSize
	heap      *Heap
	cellsBase unsafe.Pointer
}

func (p *fixedBlockPage) link() *atomic.Pointer[fixedBlockPage] { return &p.next }

func fixedRangeAt(base unsafe.Pointer, idx uint32) *fixedCellRange {
	return (*fixedCellRange)(unsafe.Add(base, uintptr(idx)*CellSize))
}

func fixedDataAt(base unsafe.Pointer, idx uint32) unsafe.Pointer {
	return unsafe.Add(base, uintptr(idx)*CellSize)
}

// newFixedBlockPage procures a fresh page for the given block size.
func newFixedBlockPage(h *Heap, blockSize uint32) *fixedBlockPage {
	if blockSize < 1 || blockSize > MaxFixedBlockSize {
		panic("customalloc: fixed block size out of range")
	}
	size := h.cfg.FixedBlockPageSize
	headerSize := unsafe.Sizeof(fixedBlockPage{})
	raw := safeAlloc(size, &h.cfg)
	p := (*fixedBlockPage)(raw)
	p.heap = h
	p.blockSize = blockSize
	p.cellsBase = unsafe.Add(raw, headerSize)

	cellCount := uint32((size - uint64(headerSize)) / CellSize)
	p.end = (cellCount / blockSize) * blockSize
	p.nextFree = fixedCellRange{first: 0, last: p.end}
	return p
}

func (p *fixedBlockPage) destroy() {
	safeFree(unsafe.Pointer(p), p.heap.cfg.FixedBlockPageSize, &p.heap.cfg)
}

// tryAllocate returns a fresh block's payload pointer, or nil if the page is
// full.
func (p *fixedBlockPage) tryAllocate() unsafe.Pointer {
	next := p.nextFree.first
	if next < p.nextFree.last {
		p.nextFree.first += p.blockSize
		return fixedDataAt(p.cellsBase, next)
	}
	if next >= p.end {
		p.tracker.onPageOverflow(&p.heap.sizeTracker, uint64(p.end)*CellSize)
		return nil
	}
	// next == nextFree.last < end: nextFree.first names a reclaimed free
	// block whose own payload holds the next free range.
	p.nextFree = *fixedRangeAt(p.cellsBase, next)
	zeroRegion(fixedDataAt(p.cellsBase, next), uintptr(p.blockSize)*CellSize)
	return fixedDataAt(p.cellsBase, next)
}

// sweep walks every block in cell order, classifying each as alive (via
// trySweep) or dead, and rebuilds the free list out of the runs of dead
// blocks it finds along the way. Reports whether any block survived, i.e.
// whether the rebuilt free list stops short of covering the whole page.
//
// prevLive intentionally starts at 0 - blockSize and is allowed to wrap
// around uint32, exactly as the original's `uint32_t prevLive = -blockSize_`
// does: the first live block's check (prevLive+blockSize < cell) then
// evaluates as (0 < cell), which is the desired "no prior live block yet"
// behavior with no special-case branch.
//
// Grounded on the original FixedBlockPage::Sweep.
func (p *fixedBlockPage) sweep(trySweep func(unsafe.Pointer) bool) bool {
	nextFree := p.nextFree
	prevRange := &p.nextFree
	prevLive := uint32(0) - p.blockSize
	var aliveBlocks uint64

	for cell := uint32(0); cell < p.end; cell += p.blockSize {
		for ; cell < nextFree.first; cell += p.blockSize {
			if !trySweep(fixedDataAt(p.cellsBase, cell)) {
				continue
			}
			aliveBlocks++
			if prevLive+p.blockSize < cell {
				prevCell := cell - p.blockSize
				zeroRegion(fixedDataAt(p.cellsBase, prevLive+p.blockSize), uintptr(prevCell-(prevLive+p.blockSize))*CellSize)
				prevRange.first = prevLive + p.blockSize
				prevRange.last = prevCell
				prevRange = fixedRangeAt(p.cellsBase, prevCell)
			}
			prevLive = cell
		}
		if nextFree.last < p.end {
			cell = nextFree.last
			nextFree = *fixedRangeAt(p.cellsBase, cell)
			continue
		}
		prevRange.first = prevLive + p.blockSize
		zeroRegion(fixedDataAt(p.cellsBase, prevLive+p.blockSize), uintptr(cell-prevLive-p.blockSize)*CellSize)
		prevRange.last = p.end
		break
	}

	p.tracker.afterSweep(&p.heap.sizeTracker, aliveBlocks*uint64(p.blockSize)*CellSize)
	return p.nextFree.first > 0 || p.nextFree.last < p.end
}

// traverseAllocated calls f with the payload pointer of every currently
// allocated block, in cell order. Test/diagnostic helper.
func (p *fixedBlockPage) traverseAllocated(f func(unsafe.Pointer)) {
	nextFree := p.nextFree
	for cell := uint32(0); cell < p.end; cell += p.blockSize {
		for ; cell < nextFree.first; cell += p.blockSize {
			f(fixedDataAt(p.cellsBase, cell))
		}
		if nextFree.last >= p.end {
			break
		}
		cell = nextFree.last
		nextFree = *fixedRangeAt(p.cellsBase, cell)
	}
}
