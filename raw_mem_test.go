package customalloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSafeAllocFree_TracksProcessWideCounter(t *testing.T) {
	cfg := DefaultConfig
	cfg.DisableMmap = true
	before := ProcessAllocatedBytes()

	ptr := safeAlloc(4096, &cfg)
	require.NotNil(t, ptr)
	require.Equal(t, before+4096, ProcessAllocatedBytes())

	safeFree(ptr, 4096, &cfg)
	require.Equal(t, before, ProcessAllocatedBytes())
}

func TestSafeAlloc_PanicsOnOversizedRequest(t *testing.T) {
	cfg := DefaultConfig
	require.Panics(t, func() { safeAlloc(1<<63, &cfg) })
}
