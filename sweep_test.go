package customalloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestSweepExtraObject_OnlySweepableWhenFlagged(t *testing.T) {
	var e ExtraObjectData
	require.True(t, sweepExtraObject(&e), "freshly allocated data has no sweepable flag, must not be reclaimed")

	e.setFlag(flagSweepable)
	require.False(t, sweepExtraObject(&e))
}

func TestSweepObject_RepeatedFinalizationIsIdempotent(t *testing.T) {
	cb := Callbacks{TryResetMark: func(ObjectData) bool { return false }}
	buf := make([]byte, int(objectHeaderSize))
	header := headerAt(unsafe.Pointer(unsafe.SliceData(buf)))
	extra := &ExtraObjectData{}
	extra.baseObject = header.Pointer()
	header.SetExtraData(extra)

	fq := &FinalizerQueue{}
	require.True(t, sweepObject(header, fq, cb))
	require.True(t, extra.getFlag(flagInFinalizerQueue))

	fq.Pop()
	extra.setFlag(flagFinalized)
	require.False(t, sweepObject(header, fq, cb))

	// Sweeping the already-sweepable object again gives the same answer,
	// queues nothing new, and leaves the flags in the terminal state.
	require.False(t, sweepObject(header, fq, cb))
	require.True(t, fq.IsEmpty())
	require.True(t, extra.getFlag(flagSweepable))
	require.Nil(t, extra.BaseObject())
}
