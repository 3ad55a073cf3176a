package customalloc

import "sync/atomic"

// pageLifecycle constrains the page types PageStore manages: every page
// type is an intrusive AtomicStack link, plus knows how to release itself
// back to the OS. Grounded on the original PageStore.hpp's `T` template
// parameter contract (T::Create/T::Destroy/T::Sweep).
type pageLifecycle[T any] interface {
	*T
	link() *atomic.Pointer[T]
	destroy()
}

// PageStore is a four-queue state machine shared by every page tier
// (FixedBlockPage, NextFitPage, SingleObjectPage, ExtraObjectPage):
//
//   - empty: fully-swept pages with nothing alive, kept around to avoid
//     OS alloc/free churn, destroyed at the next PrepareForGC.
//   - ready: swept pages known to have free space, not currently in use by
//     any thread.
//   - used: pages a thread is actively allocating into.
//   - unswept: pages pending the next GC sweep.
//
// GetPage lets a mutator thread cooperatively sweep a page itself rather
// than blocking on the GC thread, which is what lets allocation proceed
// concurrently with an in-progress sweep. Grounded on the original
// PageStore.hpp.
type PageStore[T any, PT pageLifecycle[T]] struct {
	empty, ready, used, unswept AtomicStack[T, PT]
}

// PrepareForGC is called once, by the GC thread, after all mutators are
// suspended: it folds ready and used into unswept (every page not already
// known-empty needs a fresh sweep pass) and destroys every page that was
// already fully empty from the previous cycle.
func (s *PageStore[T, PT]) PrepareForGC() {
	s.unswept.TransferAllFrom(&s.ready)
	s.unswept.TransferAllFrom(&s.used)
	for page := s.empty.Pop(); page != nil; page = s.empty.Pop() {
		page.destroy()
	}
}

// Sweep drains unswept, routing each page to ready if trySweep reports it
// still has live content, or to empty otherwise.
func (s *PageStore[T, PT]) Sweep(trySweep func(PT) bool) {
	for {
		page := s.unswept.Pop()
		if page == nil {
			return
		}
		if trySweep(page) {
			s.ready.Push(page)
		} else {
			s.empty.Push(page)
		}
	}
}

// SweepAndFree drains unswept like Sweep, but destroys dead pages
// immediately instead of recycling them through empty. Used for
// SingleObjectPage, where a page is sized for exactly one object and so has
// no reuse value once that object is gone.
func (s *PageStore[T, PT]) SweepAndFree(trySweep func(PT) bool) {
	for {
		page := s.unswept.Pop()
		if page == nil {
			return
		}
		if trySweep(page) {
			s.ready.Push(page)
		} else {
			page.destroy()
		}
	}
}

// GetPage returns a page ready to allocate into: a page already known to
// have space, or one swept on the spot (cooperating with a concurrent GC
// sweep, up to maxSweepAssist pages), or a recycled empty page, or finally a
// freshly procured one. newPage is called at most once.
//
// concurrentSweepers is incremented for the duration of the cooperative
// sweep-assist step, mirroring the original's ScopeGuard around
// concurrentSweepersCount_: Heap.Sweep waits for it to drain to zero before
// returning, so a page popped off unswept by an assisting mutator thread is
// never concurrently freed out from under it.
func (s *PageStore[T, PT]) GetPage(trySweep func(PT) bool, newPage func() PT, concurrentSweepers *atomic.Int64, maxSweepAssist int) PT {
	if page := s.ready.Pop(); page != nil {
		s.used.Push(page)
		return page
	}

	concurrentSweepers.Add(1)
	var found PT
	for attempts := 0; attempts < maxSweepAssist; attempts++ {
		page := s.unswept.Pop()
		if page == nil {
			break
		}
		if trySweep(page) {
			s.used.Push(page)
			found = page
			break
		}
		s.empty.Push(page)
	}
	concurrentSweepers.Add(-1)
	if found != nil {
		return found
	}

	if page := s.empty.Pop(); page != nil {
		s.used.Push(page)
		return page
	}
	page := newPage()
	s.used.Push(page)
	return page
}

// NewPage unconditionally procures a fresh page and marks it used. Used for
// SingleObjectPage, which is never reused across allocations so there is no
// point checking ready/empty first.
func (s *PageStore[T, PT]) NewPage(newPage func() PT) PT {
	page := newPage()
	s.used.Push(page)
	return page
}

// Close destroys every page still held by this store, across all four
// queues. Called when a Heap is torn down.
func (s *PageStore[T, PT]) Close() {
	for _, q := range [...]*AtomicStack[T, PT]{&s.empty, &s.ready, &s.used, &s.unswept} {
		for page := q.Pop(); page != nil; page = q.Pop() {
			page.destroy()
		}
	}
}

// IsEmpty reports whether this store currently holds no pages at all,
// across all four queues. Used by Heap.EstimateOverheadPerThread.
func (s *PageStore[T, PT]) IsEmpty() bool {
	return s.empty.IsEmpty() && s.ready.IsEmpty() && s.used.IsEmpty() && s.unswept.IsEmpty()
}

// GetPages returns every page not in the empty queue (ready, used, and
// unswept). Test/diagnostic helper.
func (s *PageStore[T, PT]) GetPages() []PT {
	var pages []PT
	pages = append(pages, s.ready.GetElements()...)
	pages = append(pages, s.used.GetElements()...)
	pages = append(pages, s.unswept.GetElements()...)
	return pages
}

// ClearForTests destroys every page in every queue, for test teardown.
func (s *PageStore[T, PT]) ClearForTests() {
	s.Close()
}
