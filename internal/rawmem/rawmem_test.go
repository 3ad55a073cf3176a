package rawmem

import (
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestCallocZeroedAndWritable(t *testing.T) {
	ptr, err := Calloc(4096)
	require.NoError(t, err)
	require.NotNil(t, ptr)
	defer Free(ptr)

	b := unsafe.Slice((*byte)(ptr), 4096)
	for i, v := range b {
		require.Zerof(t, v, "byte %d not zero", i)
	}
	b[0] = 0xFF
	require.Equal(t, byte(0xFF), b[0])
}

func TestCallocSurvivesGC(t *testing.T) {
	ptr, err := Calloc(4096)
	require.NoError(t, err)
	defer Free(ptr)

	b := unsafe.Slice((*byte)(ptr), 4096)
	b[100] = 0x42

	// Force several GC cycles; if Calloc failed to keep the backing slice
	// rooted, this write would now be visiting freed/reused memory.
	for range 3 {
		runtime.GC()
	}
	require.Equal(t, byte(0x42), b[100])
}

func TestMapUnmap(t *testing.T) {
	ptr, err := Map(4096, false)
	require.NoError(t, err)
	require.NotNil(t, ptr)

	b := unsafe.Slice((*byte)(ptr), 4096)
	b[0] = 7
	require.Equal(t, byte(7), b[0])

	require.NoError(t, Unmap(ptr, 4096))
}
