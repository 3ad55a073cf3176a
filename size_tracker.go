package customalloc

import (
	"fmt"
	"sync/atomic"
)

// pageSizeTracker is embedded in every FixedBlockPage and NextFitPage: it
// remembers the page's allocated-byte count as of the last time it was
// reported, so onPageOverflow/afterSweep can report only the delta to the
// heap-wide tracker. Grounded on the original AllocatedSizeTracker::Page.
type pageSizeTracker struct {
	lastRecorded uint64
}

// onPageOverflow is called when a page fills up (spec.md's page-overflow
// allocation-tracking hook): it reports the newly-allocated bytes since the
// last record and asks the heap to notify the GC scheduler immediately,
// since an overflow is the moment a mutator thread is about to block on
// acquiring a fresh page.
func (t *pageSizeTracker) onPageOverflow(heap *heapSizeTracker, allocatedBytes uint64) {
	diff := int64(allocatedBytes) - int64(t.lastRecorded)
	t.lastRecorded = allocatedBytes
	heap.recordDifference(diff)
	heap.notifyScheduler()
}

// afterSweep is called once per page at the end of a sweep pass: it reports
// the delta since the last record without notifying the scheduler, since a
// GC cycle just ran and the scheduler doesn't need telling that its own
// sweep changed the live byte count.
func (t *pageSizeTracker) afterSweep(heap *heapSizeTracker, allocatedBytes uint64) {
	diff := int64(allocatedBytes) - int64(t.lastRecorded)
	t.lastRecorded = allocatedBytes
	heap.recordDifference(diff)
}

// heapSizeTracker is the heap-wide running total of live allocated bytes,
// fed by every page's pageSizeTracker and consumed by Callbacks.OnMemoryAllocation.
// Grounded on the original AllocatedSizeTracker::Heap.
type heapSizeTracker struct {
	allocatedBytes atomic.Int64
	onAlloc        func(totalBytes int64)
}

// recordDifference adds diffBytes (which may be negative) to the running
// total, panicking if the total drops below zero.
func (h *heapSizeTracker) recordDifference(diffBytes int64) {
	if total := h.allocatedBytes.Add(diffBytes); total < 0 {
		panic(fmt.Sprintf("customalloc: heap allocated bytes went negative (%d)", total))
	}
}

// notifyScheduler reports the current total to Callbacks.OnMemoryAllocation,
// if one was configured.
func (h *heapSizeTracker) notifyScheduler() {
	if h.onAlloc != nil {
		h.onAlloc(h.allocatedBytes.Load())
	}
}

// AllocatedBytes returns the heap's current live-allocated-byte estimate.
func (h *heapSizeTracker) AllocatedBytes() int64 {
	return h.allocatedBytes.Load()
}
