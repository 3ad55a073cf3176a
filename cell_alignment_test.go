package customalloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// TestCell_AlignmentAndSize exercises P1: every cell is exactly one CellSize
// and lands on an 8-byte-aligned address within its backing region.
func TestCell_AlignmentAndSize(t *testing.T) {
	require.EqualValues(t, CellSize, unsafe.Sizeof(cell{}))

	// Backed by uint64s so the region itself starts 8-byte aligned, as every
	// page's cell region does; a []byte buffer carries no such guarantee.
	buf := make([]uint64, 8)
	base := unsafe.Pointer(unsafe.SliceData(buf))
	for i := uint32(0); i < 8; i++ {
		c := cellAt(base, i)
		require.Zero(t, uintptr(unsafe.Pointer(c))%CellSize)
		require.Equal(t, i, indexOf(base, c))
	}
}

func TestCell_TryAllocateCarvesFromEnd(t *testing.T) {
	buf := make([]byte, 16*CellSize)
	base := unsafe.Pointer(unsafe.SliceData(buf))
	free := cellAt(base, 0)
	free.size = 10

	data := free.tryAllocate(base, 4)
	require.NotNil(t, data)
	require.EqualValues(t, 6, free.size)

	newCell := cellAt(base, 6)
	require.EqualValues(t, 1, newCell.allocated)
	require.EqualValues(t, 4, newCell.size)
	require.Equal(t, newCell.data(), data)
}

func TestCell_TryAllocateRejectsTooSmallOrAllocated(t *testing.T) {
	buf := make([]byte, 16*CellSize)
	base := unsafe.Pointer(unsafe.SliceData(buf))

	free := cellAt(base, 0)
	free.size = 3
	require.Nil(t, free.tryAllocate(base, 4))

	allocated := cellAt(base, 0)
	allocated.allocated = 1
	allocated.size = 10
	require.Nil(t, allocated.tryAllocate(base, 2))
}

func TestCell_DeallocateZeroesPayload(t *testing.T) {
	buf := make([]byte, 16*CellSize)
	base := unsafe.Pointer(unsafe.SliceData(buf))
	c := cellAt(base, 0)
	c.allocated = 1
	c.size = 4

	payload := unsafe.Slice((*byte)(c.data()), uintptr(c.size-1)*CellSize)
	for i := range payload {
		payload[i] = 0xAB
	}

	c.deallocate()
	require.EqualValues(t, 0, c.allocated)
	for i, b := range payload {
		require.Zerof(t, b, "payload byte %d not zeroed", i)
	}
}

func TestAllocationSize_Constructors(t *testing.T) {
	require.EqualValues(t, 2, AllocationSizeBytesAtLeast(9).InCells())
	require.EqualValues(t, 16, AllocationSizeBytesAtLeast(9).InBytes())
	require.EqualValues(t, 1, AllocationSizeBytesAtLeast(1).InCells())

	require.Panics(t, func() { AllocationSizeBytesExactly(9) })
	require.EqualValues(t, 2, AllocationSizeBytesExactly(16).InCells())
}

func TestAllocationSize_SaturatingArithmetic(t *testing.T) {
	max := AllocationSizeCells(^uint64(0))
	one := AllocationSizeCells(1)
	sum := max.Add(one)
	require.True(t, sum.IsSaturated())

	product := AllocationSizeCells(^uint64(0) / 2).Mul(3)
	require.True(t, product.IsSaturated())

	zero := AllocationSizeCells(0)
	require.True(t, zero.Sub(one).IsZero())
	require.EqualValues(t, 5, AllocationSizeCells(10).Sub(AllocationSizeCells(5)).InCells())
}

func TestAllocationSize_Less(t *testing.T) {
	require.True(t, AllocationSizeCells(1).Less(AllocationSizeCells(2)))
	require.False(t, AllocationSizeCells(2).Less(AllocationSizeCells(2)))
}
