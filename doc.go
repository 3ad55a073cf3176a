// Package customalloc implements a segregated-fit heap allocator for a managed
// runtime: the subsystem that supplies memory for managed objects and arrays,
// cooperates with an external tracing garbage collector through mark-and-sweep
// hooks, tracks allocated bytes to drive GC scheduling, and manages a pool of
// auxiliary "extra object data" used for finalization and native interop.
//
// # Overview
//
// Allocation is routed by size into one of three tiers:
//
//   - FixedBlockPage: bump-then-free-list pages serving one fixed block size
//     (2 to 128 cells), one 8-byte cell being the allocation quantum.
//   - NextFitPage: a next-fit walk over a linked cell sequence, for medium
//     variable-size allocations.
//   - SingleObjectPage: one whole OS page per large object.
//
// Each tier is backed by a PageStore, a lock-free four-queue state machine
// (empty / ready / used / unswept) that lets mutator threads allocate
// concurrently with an in-progress GC sweep by cooperatively sweeping pages
// themselves ("concurrent sweep assistance").
//
// # Allocator Interface
//
// Each OS thread (or goroutine pinned to one via runtime.LockOSThread) owns a
// *ThreadData, created with NewThreadData. ThreadData routes allocations to
// the right tier and caches one current page per size bucket so repeated
// same-size allocations stay on the same page until it fills.
//
// # Usage Example
//
//	h := customalloc.NewHeap(customalloc.DefaultConfig, customalloc.Callbacks{
//		OnMemoryAllocation: scheduler.OnMemoryAllocation,
//		TryResetMark:       gc.TryResetMark,
//	})
//	td := customalloc.NewThreadData(h)
//	defer td.Close()
//
//	obj, err := td.AllocateObject(myTypeInfo)
//	if err != nil {
//		return err
//	}
//
//	// Stop-the-world GC cycle:
//	h.PrepareForGC()
//	// ... mark phase runs externally ...
//	finalizers := h.Sweep()
//
// # Thread Safety
//
// Heap is safe for concurrent use by many ThreadData instances and the GC
// thread driving PrepareForGC/Sweep, per the concurrency model in spec.md §5.
// ThreadData itself is not safe for concurrent use — it is, by construction,
// owned by exactly one thread.
//
// # Related Packages
//
//   - internal/rawmem: platform-specific raw OS memory procurement (mmap on
//     unix, VirtualAlloc on windows, a calloc-equivalent fallback elsewhere).
package customalloc
