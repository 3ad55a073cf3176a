package customalloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func testHeapForExtraObjects(t *testing.T, pageSize uint64) *Heap {
	t.Helper()
	cfg := DefaultConfig
	cfg.DisableMmap = true
	cfg.ExtraObjectPageSize = pageSize
	h := NewHeap(cfg, alwaysAliveCallbacks())
	t.Cleanup(h.ClearForTests)
	return h
}

func TestExtraObjectPage_AllocatesDistinctCellsUntilFull(t *testing.T) {
	h := testHeapForExtraObjects(t, 4096)
	p := newExtraObjectPage(h)

	seen := map[*ExtraObjectData]bool{}
	var count int
	for {
		e := p.tryAllocate()
		if e == nil {
			break
		}
		require.False(t, seen[e], "tryAllocate returned the same cell twice")
		seen[e] = true
		count++
	}
	require.EqualValues(t, p.count, count)
}

// TestExtraObjectPage_SweepReclaimsOnlySweepableCells exercises P11: a cell
// is only returned to the free list once SweepExtraObject reports it
// sweepable, never while its owning object is still finalizing.
func TestExtraObjectPage_SweepReclaimsOnlySweepableCells(t *testing.T) {
	h := testHeapForExtraObjects(t, 4096)
	p := newExtraObjectPage(h)

	a := p.tryAllocate()
	b := p.tryAllocate()
	require.NotNil(t, a)
	require.NotNil(t, b)

	b.setFlag(flagSweepable)

	hasSpace := p.sweep(&FinalizerQueue{})
	require.True(t, hasSpace, "a is still in use, page must report space used")

	var recovered []*ExtraObjectData
	for {
		e := p.tryAllocate()
		if e == nil {
			break
		}
		recovered = append(recovered, e)
	}
	require.Len(t, recovered, int(p.count)-1, "every cell except a's should be allocatable again")
}

// TestSweepObject_FinalizerLifecycle exercises S7/P11: the full
// in-finalizer-queue -> finalized -> sweepable state machine for an object
// with an attached ExtraObjectData.
func TestSweepObject_FinalizerLifecycle(t *testing.T) {
	h := testHeapForExtraObjects(t, 4096)
	p := newExtraObjectPage(h)
	extra := p.tryAllocate()
	require.NotNil(t, extra)

	buf := make([]byte, int(objectHeaderSize))
	header := headerAt(unsafe.Pointer(unsafe.SliceData(buf)))
	header.SetExtraData(extra)
	extra.baseObject = header.Pointer()

	fq := &FinalizerQueue{}
	dead := func(ObjectData) bool { return false }
	cb := Callbacks{TryResetMark: dead}

	// First sweep: object is dead and has an ExtraObjectData not yet queued,
	// so it survives this cycle (pending finalization) and is pushed onto fq.
	require.True(t, sweepObject(header, fq, cb))
	require.False(t, fq.IsEmpty())
	require.True(t, extra.getFlag(flagInFinalizerQueue))
	require.False(t, extra.getFlag(flagFinalized))

	// Second sweep: still waiting on the external finalizer to run.
	require.True(t, sweepObject(header, fq, cb))

	// The external finalizer processor runs and marks it finalized.
	popped := fq.Pop()
	require.Equal(t, extra, popped)
	popped.setFlag(flagFinalized)

	// Third sweep: finalization is done, object and its ExtraObjectData can
	// finally be reclaimed.
	require.False(t, sweepObject(header, fq, cb))
	require.True(t, extra.getFlag(flagSweepable))
	require.Nil(t, extra.BaseObject())
}

func TestSweepObject_AliveObjectIsKept(t *testing.T) {
	cb := Callbacks{TryResetMark: func(ObjectData) bool { return true }}
	buf := make([]byte, int(objectHeaderSize))
	header := headerAt(unsafe.Pointer(unsafe.SliceData(buf)))
	fq := &FinalizerQueue{}
	require.True(t, sweepObject(header, fq, cb))
	require.True(t, fq.IsEmpty())
}

func TestSweepObject_DeadWithoutExtraDataIsReclaimed(t *testing.T) {
	cb := Callbacks{TryResetMark: func(ObjectData) bool { return false }}
	buf := make([]byte, int(objectHeaderSize))
	header := headerAt(unsafe.Pointer(unsafe.SliceData(buf)))
	fq := &FinalizerQueue{}
	require.False(t, sweepObject(header, fq, cb))
}

func TestFinalizerQueue_MergeFrom(t *testing.T) {
	var a, b FinalizerQueue
	c1 := &extraObjectCell{}
	c2 := &extraObjectCell{}
	a.push(c1)
	b.push(c2)

	a.MergeFrom(&b)
	require.True(t, b.IsEmpty())
	require.Equal(t, 2, a.Size())
}
