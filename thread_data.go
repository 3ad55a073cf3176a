package customalloc

import "unsafe"

// ThreadData routes one thread's (or goroutine's, if pinned via
// runtime.LockOSThread) allocations to the right page tier, caching the
// current page per size bucket so consecutive same-size allocations reuse
// it until it fills. Grounded on the original CustomAllocator.hpp/.cpp —
// Go has no native thread-local storage, so where the original is a
// per-OS-thread singleton, this package makes that same state an explicit
// value the caller owns and threads through its own goroutine.
//
// Not safe for concurrent use: exactly one goroutine should hold a given
// *ThreadData at a time.
type ThreadData struct {
	heap *Heap

	nextFitPage     *nextFitPage
	fixedBlockPages [MaxFixedBlockSize + 1]*fixedBlockPage
	extraObjectPage *extraObjectPage

	finalizerQueue FinalizerQueue
	closed         bool
}

// NewThreadData creates a new ThreadData bound to h.
func NewThreadData(h *Heap) *ThreadData {
	return &ThreadData{heap: h}
}

// Close flushes this ThreadData's accumulated finalizer queue into the
// heap's pending queue. After Close, AllocateObject and AllocateArray return
// ErrThreadDataClosed instead of allocating.
func (td *ThreadData) Close() {
	if td.closed {
		return
	}
	td.closed = true
	td.heap.AddToFinalizerQueue(&td.finalizerQueue)
}

// AllocateObject allocates and zero-initializes a scalar object of typeInfo,
// attaching an ExtraObjectData if typeInfo.HasFinalizer().
func (td *ThreadData) AllocateObject(typeInfo TypeInfo) (ObjectHeader, error) {
	if typeInfo.IsArray() {
		panic("customalloc: AllocateObject called with an array TypeInfo")
	}
	size := AllocationSizeBytesAtLeast(uint64(objectHeaderSize) + typeInfo.InstanceSize())
	header, err := td.allocate(size)
	if err != nil {
		return ObjectHeader{}, err
	}
	if typeInfo.HasFinalizer() {
		extra, err := td.createExtraObjectData()
		if err != nil {
			return ObjectHeader{}, err
		}
		extra.baseObject = header.Pointer()
		header.SetExtraData(extra)
	}
	return header, nil
}

// AllocateArray allocates and zero-initializes an array of typeInfo with
// count elements. stride is typeInfo.InstanceSize(), the per-element byte
// size. The payload is sized as count*stride bytes and rounded to cells
// once, rather than rounding each element up to its own cell first: a
// sub-cell stride (e.g. a byte array) must not reserve a whole cell per
// element.
func (td *ThreadData) AllocateArray(typeInfo TypeInfo, count uint64) (ObjectHeader, error) {
	if !typeInfo.IsArray() {
		panic("customalloc: AllocateArray called with a non-array TypeInfo")
	}
	stride := typeInfo.InstanceSize()
	payloadBytes := stride * count
	if stride != 0 && payloadBytes/stride != count {
		return ObjectHeader{}, ErrObjectTooLarge
	}
	totalBytes := uint64(objectHeaderSize) + payloadBytes
	if totalBytes < payloadBytes {
		return ObjectHeader{}, ErrObjectTooLarge
	}
	header, err := td.allocate(AllocationSizeBytesAtLeast(totalBytes))
	if err != nil {
		return ObjectHeader{}, err
	}
	header.SetArrayCount(count)
	return header, nil
}

// createExtraObjectData allocates and zero-initializes an ExtraObjectData,
// reusing the current extra-object page until it fills.
func (td *ThreadData) createExtraObjectData() (*ExtraObjectData, error) {
	if td.extraObjectPage != nil {
		if e := td.extraObjectPage.tryAllocate(); e != nil {
			return e, nil
		}
	}
	for attempt := 0; attempt < td.heap.cfg.MaxPageAcquireAttempts; attempt++ {
		page := td.heap.getExtraObjectPage(&td.finalizerQueue)
		if e := page.tryAllocate(); e != nil {
			td.extraObjectPage = page
			return e, nil
		}
	}
	return nil, ErrPageAcquisitionFailed
}

// allocate routes size to the appropriate page tier and returns the new
// object's header, zero-initialized.
func (td *ThreadData) allocate(size AllocationSize) (ObjectHeader, error) {
	if td.closed {
		return ObjectHeader{}, ErrThreadDataClosed
	}
	if size.IsZero() {
		panic("customalloc: cannot allocate 0 bytes")
	}
	cells := size.InCells()
	if cells > uint64(MaxFixedBlockSize) && cells > td.heap.cfg.SingleObjectPageSizeThreshold {
		return td.allocateSingleObject(size)
	}
	var ptr unsafe.Pointer
	var err error
	if cells <= uint64(MaxFixedBlockSize) {
		ptr, err = td.allocateFixedBlock(uint32(cells))
	} else {
		ptr, err = td.allocateNextFit(uint32(cells))
	}
	if err != nil {
		return ObjectHeader{}, err
	}
	return headerAt(ptr), nil
}

func (td *ThreadData) allocateSingleObject(size AllocationSize) (ObjectHeader, error) {
	page := td.heap.getSingleObjectPage(size)
	return headerAt(page.data()), nil
}

func (td *ThreadData) allocateNextFit(cellCount uint32) (unsafe.Pointer, error) {
	if td.nextFitPage != nil {
		if ptr := td.nextFitPage.tryAllocate(cellCount); ptr != nil {
			return ptr, nil
		}
	}
	for attempt := 0; attempt < td.heap.cfg.MaxPageAcquireAttempts; attempt++ {
		page := td.heap.getNextFitPage(&td.finalizerQueue)
		td.nextFitPage = page
		if ptr := page.tryAllocate(cellCount); ptr != nil {
			return ptr, nil
		}
	}
	return nil, ErrPageAcquisitionFailed
}

func (td *ThreadData) allocateFixedBlock(cellCount uint32) (unsafe.Pointer, error) {
	if page := td.fixedBlockPages[cellCount]; page != nil {
		if ptr := page.tryAllocate(); ptr != nil {
			return ptr, nil
		}
	}
	for attempt := 0; attempt < td.heap.cfg.MaxPageAcquireAttempts; attempt++ {
		page := td.heap.getFixedBlockPage(cellCount, &td.finalizerQueue)
		if ptr := page.tryAllocate(); ptr != nil {
			td.fixedBlockPages[cellCount] = page
			return ptr, nil
		}
	}
	return nil, ErrPageAcquisitionFailed
}

// PrepareForGC clears this ThreadData's cached current pages, called after
// Heap.PrepareForGC moves them into the unswept queue: holding onto a stale
// pointer across a GC cycle would let this thread allocate into a page
// that's mid-sweep.
func (td *ThreadData) PrepareForGC() {
	td.nextFitPage = nil
	for i := range td.fixedBlockPages {
		td.fixedBlockPages[i] = nil
	}
	td.extraObjectPage = nil
}

// ExtractFinalizerQueue takes and clears this ThreadData's accumulated
// finalizer queue.
func (td *ThreadData) ExtractFinalizerQueue() *FinalizerQueue {
	extracted := td.finalizerQueue
	td.finalizerQueue = FinalizerQueue{}
	return &extracted
}
