package customalloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDefaultConfig_SingleObjectThresholdMatchesNextFitCapacity guards
// against a tier-routing dead zone: any cell count above
// SingleObjectPageSizeThreshold must be unreachable via NextFit, and the
// threshold itself must be exactly what a NextFitPage can hold, not larger.
func TestDefaultConfig_SingleObjectThresholdMatchesNextFitCapacity(t *testing.T) {
	require.EqualValues(t, MaxNextFitBlockSize(&DefaultConfig), DefaultConfig.SingleObjectPageSizeThreshold)
}

// TestThreadData_Allocate_AtNextFitCapacityBoundary exercises the cell count
// exactly at MaxNextFitBlockSize: previously this landed in the dead zone
// between NextFitPage's real capacity and the (too generous) routing
// threshold, so every tryAllocate failed and the allocation errored out
// instead of succeeding via NextFit.
func TestThreadData_Allocate_AtNextFitCapacityBoundary(t *testing.T) {
	h := newTestHeap(t)
	td := NewThreadData(h)
	defer td.Close()

	maxPayloadCells := uint64(MaxNextFitBlockSize(&h.cfg))
	instanceSize := maxPayloadCells*CellSize - uint64(objectHeaderSize)

	header, err := td.AllocateObject(testTypeInfo{instanceSize: instanceSize})
	require.NoError(t, err)
	require.NotNil(t, header.Pointer())
}
