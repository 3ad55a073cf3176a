package customalloc

// sweepObject is the per-object sweep predicate shared by every page type
// that holds whole objects (FixedBlockPage, NextFitPage, SingleObjectPage).
// It reports whether the object survives this GC cycle, pushing it onto fq
// if it needs finalization. Grounded on the original GCApi.cpp's SweepObject,
// translated from its ObjectSweepTraits template instantiation into a plain
// function, per spec.md §9's note that the compile-time sweep-trait
// polymorphism carries no benefit in Go.
func sweepObject(header ObjectHeader, fq *FinalizerQueue, cb Callbacks) bool {
	if cb.TryResetMark(header.GCData()) {
		return true
	}
	extra := header.ExtraData()
	if extra == nil {
		return false
	}
	if !extra.getFlag(flagInFinalizerQueue) {
		extra.setFlag(flagInFinalizerQueue)
		pushFinalizer(fq, extra)
		return true
	}
	if !extra.getFlag(flagFinalized) {
		// Still waiting on the external finalizer processor to run.
		return true
	}
	extra.UnlinkFromBaseObject()
	extra.setFlag(flagSweepable)
	return false
}

// sweepExtraObject is the per-cell sweep predicate for ExtraObjectPage: an
// ExtraObjectData can only be reclaimed once its owning object has finished
// finalization and marked it sweepable. Grounded on GCApi.cpp's
// SweepExtraObject.
func sweepExtraObject(e *ExtraObjectData) bool {
	return !e.getFlag(flagSweepable)
}
