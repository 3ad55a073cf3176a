package customalloc

import (
	"sync/atomic"
	"unsafe"
)

// nextFitPage serves medium variable-size allocations with a next-fit walk
// over a linked sequence of cell runs. Cell index 0 is a permanently
// zero-size sentinel block (so "no block found yet" and "the empty block"
// can both be represented as curBlock == 0 without a special case); real
// cells start at index 1. Grounded on the original NextFitPage.hpp/.cpp.
type nextFitPage struct {
	next      atomic.Pointer[nextFitPage]
	tracker   pageSizeTracker
	curBlock  uint32
	heap      *Heap
	cellsBase unsafe.Pointer
	count     uint32 // cell count, including the index-0 sentinel
}

func (p *nextFitPage) link() *atomic.Pointer[nextFitPage] { return &p.next }

// nextFitCellCountFor returns the usable cell count (sentinel included) for
// a page of the given byte size.
func nextFitCellCountFor(pageSize uint64) uint32 {
	headerSize := unsafe.Sizeof(nextFitPage{})
	return uint32((pageSize - uint64(headerSize)) / CellSize)
}

// MaxNextFitBlockSize is the largest payload, in cells, a NextFitPage of cfg's
// configured size can ever hold (the whole page minus the sentinel cell and
// the real block's own header cell).
func MaxNextFitBlockSize(cfg *Config) uint32 {
	return nextFitCellCountFor(cfg.NextFitPageSize) - 2
}

func newNextFitPage(h *Heap) *nextFitPage {
	size := h.cfg.NextFitPageSize
	headerSize := unsafe.Sizeof(nextFitPage{})
	raw := safeAlloc(size, &h.cfg)
	p := (*nextFitPage)(raw)
	p.heap = h
	p.cellsBase = unsafe.Add(raw, headerSize)
	p.count = nextFitCellCountFor(size)
	p.curBlock = 1

	cellAt(p.cellsBase, 0).size = 0
	real := cellAt(p.cellsBase, 1)
	real.allocated = 0
	real.size = p.count - 1
	return p
}

func (p *nextFitPage) destroy() {
	safeFree(unsafe.Pointer(p), p.heap.cfg.NextFitPageSize, &p.heap.cfg)
}

// tryAllocate returns a payload pointer for blockSize cells, or nil if no
// free run in the page is large enough.
func (p *nextFitPage) tryAllocate(blockSize uint32) unsafe.Pointer {
	cellsNeeded := blockSize + 1 // +1 for this run's own header cell
	if data := cellAt(p.cellsBase, p.curBlock).tryAllocate(p.cellsBase, cellsNeeded); data != nil {
		return data
	}
	p.updateCurBlock(cellsNeeded)
	if data := cellAt(p.cellsBase, p.curBlock).tryAllocate(p.cellsBase, cellsNeeded); data != nil {
		return data
	}
	p.tracker.onPageOverflow(&p.heap.sizeTracker, p.allocatedSizeBytes())
	return nil
}

// updateCurBlock finds a free run big enough for cellsNeeded cells, starting
// the search at curBlock and wrapping around to the start of the page.
// Whether or not a big-enough run is found, curBlock ends up at the largest
// free run seen, so the next allocation attempt (of any size) has its best
// chance of succeeding immediately.
func (p *nextFitPage) updateCurBlock(cellsNeeded uint32) {
	if p.curBlock == 0 {
		p.curBlock = 1
	}
	end := p.count
	maxBlock := uint32(0) // the size-0 sentinel
	for block := p.curBlock; block != end; block = indexOf(p.cellsBase, cellAt(p.cellsBase, block).next(p.cellsBase)) {
		c := cellAt(p.cellsBase, block)
		if c.allocated == 0 && c.size > cellAt(p.cellsBase, maxBlock).size {
			maxBlock = block
			if c.size >= cellsNeeded {
				p.curBlock = maxBlock
				return
			}
		}
	}
	for block := uint32(1); block != p.curBlock; block = indexOf(p.cellsBase, cellAt(p.cellsBase, block).next(p.cellsBase)) {
		c := cellAt(p.cellsBase, block)
		if c.allocated == 0 && c.size > cellAt(p.cellsBase, maxBlock).size {
			maxBlock = block
			if c.size >= cellsNeeded {
				p.curBlock = maxBlock
				return
			}
		}
	}
	p.curBlock = maxBlock
}

// sweep reclaims every dead block, coalesces adjacent free runs, and leaves
// curBlock pointing at the largest resulting free run.
func (p *nextFitPage) sweep(trySweep func(unsafe.Pointer) bool) bool {
	end := p.count
	var aliveBytes uint64
	for block := cellAt(p.cellsBase, 1); indexOf(p.cellsBase, block) != end; block = block.next(p.cellsBase) {
		if block.allocated == 0 {
			continue
		}
		if trySweep(block.data()) {
			aliveBytes += uint64(block.size-1) * CellSize // payload only, header cell excluded
		} else {
			block.deallocate()
		}
	}

	maxBlock := uint32(0)
	for block := uint32(1); block != end; block = indexOf(p.cellsBase, cellAt(p.cellsBase, block).next(p.cellsBase)) {
		c := cellAt(p.cellsBase, block)
		if c.allocated != 0 {
			continue
		}
		for next := indexOf(p.cellsBase, c.next(p.cellsBase)); next != end; next = indexOf(p.cellsBase, c.next(p.cellsBase)) {
			nc := cellAt(p.cellsBase, next)
			if nc.allocated != 0 {
				break
			}
			c.size += nc.size
			nc.size = 0
			nc.allocated = 0
		}
		if c.size > cellAt(p.cellsBase, maxBlock).size {
			maxBlock = block
		}
	}
	p.curBlock = maxBlock

	p.tracker.afterSweep(&p.heap.sizeTracker, aliveBytes)
	return aliveBytes > 0
}

// traverseAllocated calls f with the payload pointer of every currently
// allocated block.
func (p *nextFitPage) traverseAllocated(f func(unsafe.Pointer)) {
	end := p.count
	for block := cellAt(p.cellsBase, 1); indexOf(p.cellsBase, block) != end; block = block.next(p.cellsBase) {
		if block.allocated != 0 {
			f(block.data())
		}
	}
}

func (p *nextFitPage) allocatedSizeBytes() uint64 {
	var total uint64
	p.traverseAllocatedCells(func(c *cell) { total += uint64(c.size-1) * CellSize })
	return total
}

func (p *nextFitPage) traverseAllocatedCells(f func(*cell)) {
	end := p.count
	for block := cellAt(p.cellsBase, 1); indexOf(p.cellsBase, block) != end; block = block.next(p.cellsBase) {
		if block.allocated != 0 {
			f(block)
		}
	}
}

// checkInvariants verifies the cell chain is well-formed: strictly
// increasing, in bounds, and terminating exactly at count. Test helper.
func (p *nextFitPage) checkInvariants() bool {
	if p.curBlock >= p.count {
		return false
	}
	for cur := cellAt(p.cellsBase, 1); ; cur = cur.next(p.cellsBase) {
		next := cur.next(p.cellsBase)
		if indexOf(p.cellsBase, next) <= indexOf(p.cellsBase, cur) {
			return false
		}
		if indexOf(p.cellsBase, next) > p.count {
			return false
		}
		if indexOf(p.cellsBase, next) == p.count {
			return true
		}
	}
}
