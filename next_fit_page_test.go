package customalloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func testHeapForNextFit(t *testing.T, pageSize uint64) *Heap {
	t.Helper()
	cfg := DefaultConfig
	cfg.DisableMmap = true
	cfg.NextFitPageSize = pageSize
	h := NewHeap(cfg, alwaysAliveCallbacks())
	t.Cleanup(h.ClearForTests)
	return h
}

// TestNextFitPage_AllocatesDistinctNonOverlappingRuns exercises P8: each
// allocation returns a distinct run that does not overlap any other live
// allocation.
func TestNextFitPage_AllocatesDistinctNonOverlappingRuns(t *testing.T) {
	h := testHeapForNextFit(t, 4096)
	p := newNextFitPage(h)

	type run struct {
		start, end uintptr
	}
	var runs []run
	for i := 0; i < 20; i++ {
		ptr := p.tryAllocate(4)
		if ptr == nil {
			break
		}
		start := uintptr(ptr)
		runs = append(runs, run{start, start + 4*CellSize})
	}
	require.True(t, len(runs) > 1)

	for i := range runs {
		for j := range runs {
			if i == j {
				continue
			}
			overlap := runs[i].start < runs[j].end && runs[j].start < runs[i].end
			require.Falsef(t, overlap, "run %d overlaps run %d", i, j)
		}
	}
	require.True(t, p.checkInvariants())
}

func TestNextFitPage_OverflowReturnsNil(t *testing.T) {
	h := testHeapForNextFit(t, 4096)
	p := newNextFitPage(h)
	maxBlock := MaxNextFitBlockSize(&h.cfg)
	require.NotNil(t, p.tryAllocate(maxBlock))
	require.Nil(t, p.tryAllocate(1))
}

// TestNextFitPage_SweepCoalescesAdjacentFreeRuns exercises P9/S5/S6: freeing
// adjacent blocks merges them into one run big enough to satisfy an
// allocation that no individual freed block could have served alone.
func TestNextFitPage_SweepCoalescesAdjacentFreeRuns(t *testing.T) {
	h := testHeapForNextFit(t, 4096)
	p := newNextFitPage(h)

	var ptrs []unsafe.Pointer
	for i := 0; i < 6; i++ {
		ptr := p.tryAllocate(4)
		require.NotNil(t, ptr)
		ptrs = append(ptrs, ptr)
	}

	dead := map[unsafe.Pointer]bool{ptrs[1]: true, ptrs[2]: true, ptrs[3]: true}
	hasSpace := p.sweep(func(ptr unsafe.Pointer) bool { return !dead[ptr] })
	require.True(t, hasSpace)
	require.True(t, p.checkInvariants())

	// Blocks are carved from the end of the free run, so ptrs[3] is the
	// lowest-addressed of the three freed blocks and its header now heads the
	// merged run.
	coalesced := (*cell)(unsafe.Add(ptrs[3], -CellSize))
	require.EqualValues(t, 0, coalesced.allocated)
	require.EqualValues(t, 15, coalesced.size)

	// Three coalesced 4-cell blocks (5 cells each with header) leave enough
	// room for an allocation larger than any single original block.
	bigPtr := p.tryAllocate(10)
	require.NotNil(t, bigPtr)
}

func TestNextFitPage_SweepFreesEverything(t *testing.T) {
	h := testHeapForNextFit(t, 4096)
	p := newNextFitPage(h)
	require.NotNil(t, p.tryAllocate(4))

	hasSpace := p.sweep(func(unsafe.Pointer) bool { return false })
	require.False(t, hasSpace)
	require.True(t, p.checkInvariants())
}

// TestNextFitPage_UpdateCurBlockFindsFreedSpaceAfterCurBlock exercises a
// coalesced run of freed blocks remaining allocatable after a sweep, once the
// run curBlock points at (the page's largest) can no longer serve the
// request and updateCurBlock has to search past it.
func TestNextFitPage_UpdateCurBlockFindsFreedSpaceAfterCurBlock(t *testing.T) {
	h := testHeapForNextFit(t, 4096)
	p := newNextFitPage(h)

	var ptrs []unsafe.Pointer
	for i := 0; i < 8; i++ {
		ptr := p.tryAllocate(4)
		require.NotNil(t, ptr)
		ptrs = append(ptrs, ptr)
	}

	dead := map[unsafe.Pointer]bool{ptrs[0]: true, ptrs[1]: true, ptrs[2]: true}
	p.sweep(func(ptr unsafe.Pointer) bool { return !dead[ptr] })
	require.True(t, p.checkInvariants())

	// Use up the whole run curBlock points at, so the next request has to be
	// served from elsewhere.
	largest := cellAt(p.cellsBase, p.curBlock)
	require.NotNil(t, p.tryAllocate(largest.size-1))

	reused := p.tryAllocate(10)
	require.NotNil(t, reused, "allocation should find the coalesced freed run even though curBlock is elsewhere")
	runStart := uintptr(ptrs[2]) - CellSize
	runEnd := uintptr(ptrs[0]) + 4*CellSize
	require.True(t, uintptr(reused) >= runStart && uintptr(reused) < runEnd, "allocation should land in the coalesced freed run")
	require.True(t, p.checkInvariants())
}
