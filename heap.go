package customalloc

import (
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Heap owns every page tier's PageStore, the heap-wide byte tracker, and the
// finalizer queue accumulated by threads that have already shut down.
// Grounded on the original Heap.hpp/.cpp.
type Heap struct {
	cfg Config
	cb  Callbacks

	fixedBlockPages   [MaxFixedBlockSize + 1]PageStore[fixedBlockPage, *fixedBlockPage]
	nextFitPages      PageStore[nextFitPage, *nextFitPage]
	singleObjectPages PageStore[singleObjectPage, *singleObjectPage]
	extraObjectPages  PageStore[extraObjectPage, *extraObjectPage]

	pendingFinalizerQueue      FinalizerQueue
	pendingFinalizerQueueMutex sync.Mutex

	concurrentSweepers atomic.Int64

	sizeTracker heapSizeTracker
}

// NewHeap constructs a Heap with the given configuration and GC callbacks.
// cb.TryResetMark must be non-nil: sweeping is meaningless without it.
func NewHeap(cfg Config, cb Callbacks) *Heap {
	if cb.TryResetMark == nil {
		panic("customalloc: Callbacks.TryResetMark is required")
	}
	h := &Heap{cfg: cfg, cb: cb}
	h.sizeTracker.onAlloc = cb.OnMemoryAllocation
	return h
}

// PrepareForGC is called once, by the GC thread, after every mutator thread
// has been suspended.
func (h *Heap) PrepareForGC() {
	logSweepDebug("Heap.PrepareForGC")
	h.nextFitPages.PrepareForGC()
	h.singleObjectPages.PrepareForGC()
	for i := range h.fixedBlockPages {
		h.fixedBlockPages[i].PrepareForGC()
	}
	h.extraObjectPages.PrepareForGC()
}

// Sweep sweeps every page tier, returning the finalizer queue accumulated
// during this pass. Safe to call concurrently with mutator threads that are
// cooperatively sweep-assisting via GetPage, but only one goroutine may call
// Sweep itself at a time (it is, like the original, driven by a single GC
// thread).
func (h *Heap) Sweep() *FinalizerQueue {
	logSweepDebug("Heap.Sweep")
	fq := &FinalizerQueue{}

	for i := range h.fixedBlockPages {
		h.fixedBlockPages[i].Sweep(func(p *fixedBlockPage) bool {
			return p.sweep(h.sweepObjectAt(fq))
		})
	}
	h.nextFitPages.Sweep(func(p *nextFitPage) bool {
		return p.sweep(h.sweepObjectAt(fq))
	})
	h.singleObjectPages.SweepAndFree(func(p *singleObjectPage) bool {
		return p.sweepAndDestroy(h.sweepObjectAt(fq))
	})

	h.extraObjectPages.Sweep(func(p *extraObjectPage) bool {
		return p.sweep(fq)
	})

	for h.concurrentSweepers.Load() > 0 {
		runtime.Gosched()
	}

	logSweepDebug("Heap.Sweep done")
	return fq
}

// sweepObjectAt returns a trySweep closure over a raw payload pointer,
// binding it to this heap's callbacks and the in-progress finalizer queue.
func (h *Heap) sweepObjectAt(fq *FinalizerQueue) func(unsafe.Pointer) bool {
	return func(ptr unsafe.Pointer) bool {
		return sweepObject(headerAt(ptr), fq, h.cb)
	}
}

// getFixedBlockPage returns a page ready to serve blockSize-cell blocks.
func (h *Heap) getFixedBlockPage(blockSize uint32, fq *FinalizerQueue) *fixedBlockPage {
	store := &h.fixedBlockPages[blockSize]
	return store.GetPage(
		func(p *fixedBlockPage) bool { return p.sweep(h.sweepObjectAt(fq)) },
		func() *fixedBlockPage { return newFixedBlockPage(h, blockSize) },
		&h.concurrentSweepers,
		h.cfg.MaxPageAcquireAttempts,
	)
}

// getNextFitPage returns a page ready to serve a cellCount-cell allocation.
func (h *Heap) getNextFitPage(fq *FinalizerQueue) *nextFitPage {
	return h.nextFitPages.GetPage(
		func(p *nextFitPage) bool { return p.sweep(h.sweepObjectAt(fq)) },
		func() *nextFitPage { return newNextFitPage(h) },
		&h.concurrentSweepers,
		h.cfg.MaxPageAcquireAttempts,
	)
}

// getSingleObjectPage procures a dedicated page for a cellCount-cell object.
// Always fresh: single-object pages are never reused.
func (h *Heap) getSingleObjectPage(objectSize AllocationSize) *singleObjectPage {
	return h.singleObjectPages.NewPage(func() *singleObjectPage { return newSingleObjectPage(h, objectSize) })
}

// getExtraObjectPage returns a page ready to serve ExtraObjectData slots.
func (h *Heap) getExtraObjectPage(fq *FinalizerQueue) *extraObjectPage {
	return h.extraObjectPages.GetPage(
		func(p *extraObjectPage) bool { return p.sweep(fq) },
		func() *extraObjectPage { return newExtraObjectPage(h) },
		&h.concurrentSweepers,
		h.cfg.MaxPageAcquireAttempts,
	)
}

// AddToFinalizerQueue merges queue into the heap's pending finalizer queue,
// called when a ThreadData shuts down with unflushed finalizations.
func (h *Heap) AddToFinalizerQueue(queue *FinalizerQueue) {
	h.pendingFinalizerQueueMutex.Lock()
	defer h.pendingFinalizerQueueMutex.Unlock()
	h.pendingFinalizerQueue.MergeFrom(queue)
}

// ExtractFinalizerQueue atomically takes and clears the heap's pending
// finalizer queue.
func (h *Heap) ExtractFinalizerQueue() *FinalizerQueue {
	h.pendingFinalizerQueueMutex.Lock()
	defer h.pendingFinalizerQueueMutex.Unlock()
	extracted := h.pendingFinalizerQueue
	h.pendingFinalizerQueue = FinalizerQueue{}
	return &extracted
}

// AllocatedBytes returns the heap's current live-allocated-byte estimate.
func (h *Heap) AllocatedBytes() int64 {
	return h.sizeTracker.AllocatedBytes()
}

// EstimateOverheadPerThread estimates the worst-case per-thread memory
// overhead under the assumption each thread holds on to one almost-empty
// page of every page type currently in use by the heap. Used by an external
// GC scheduler to pad its trigger threshold by (threadCount *
// EstimateOverheadPerThread()); this has two-sided error and pathological
// allocation patterns can still defeat it, matching the original's own
// documented caveat.
func (h *Heap) EstimateOverheadPerThread() uint64 {
	var overhead uint64
	if !h.nextFitPages.IsEmpty() {
		overhead += h.cfg.NextFitPageSize
	}
	for i := range h.fixedBlockPages {
		if !h.fixedBlockPages[i].IsEmpty() {
			overhead += h.cfg.FixedBlockPageSize
		}
	}
	if !h.extraObjectPages.IsEmpty() {
		overhead += h.cfg.ExtraObjectPageSize
	}
	return overhead
}

// ClearForTests destroys every page in every tier. Test teardown helper.
func (h *Heap) ClearForTests() {
	for i := range h.fixedBlockPages {
		h.fixedBlockPages[i].ClearForTests()
	}
	h.nextFitPages.ClearForTests()
	h.singleObjectPages.ClearForTests()
	h.extraObjectPages.ClearForTests()
}
