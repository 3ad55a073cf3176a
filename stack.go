package customalloc

import "sync/atomic"

// linker constrains a stack element type T whose pointer type PT exposes the
// intrusive link field AtomicStack threads its free/used chains through.
// This is the Go analogue of the original's CRTP-free convention where every
// stack element simply has a `next_`/`atomicNext()` member: Go has no
// template base class to require that, so the constraint says it directly.
type linker[T any] interface {
	*T
	link() *atomic.Pointer[T]
}

// AtomicStack is a lock-free, intrusive Treiber stack: elements carry their
// own link field (via the linker constraint) rather than being wrapped in a
// separate node allocation. Grounded on the original AtomicStack.hpp.
//
// Pop is not fully thread-safe in the presence of concurrent frees: a
// popped element must not be reused or released while another goroutine
// might still be mid-Pop on the same stack, since that goroutine may hold a
// stale read of the element's link field. This package only frees page
// memory during a stop-the-world sweep, exactly as the original assumes, so
// the race never materializes in practice — it's a documented constraint on
// this stack's callers, not a bug to defend against here.
type AtomicStack[T any, PT linker[T]] struct {
	head atomic.Pointer[T]
}

// Push adds elm to the top of the stack.
func (s *AtomicStack[T, PT]) Push(elm PT) {
	link := elm.link()
	head := s.head.Load()
	for {
		link.Store(head)
		if s.head.CompareAndSwap(head, (*T)(elm)) {
			return
		}
		head = s.head.Load()
	}
}

// Pop removes and returns the top element, or nil if the stack is empty.
func (s *AtomicStack[T, PT]) Pop() PT {
	head := s.head.Load()
	for {
		if head == nil {
			return nil
		}
		next := PT(head).link().Load()
		if s.head.CompareAndSwap(head, next) {
			return PT(head)
		}
		head = s.head.Load()
	}
}

// PushNonAtomic adds elm to the top of the stack without the CAS retry loop.
// Only safe when the caller already has exclusive access to the stack (e.g.
// building up a freshly-constructed page's free list before it is published
// to any other goroutine).
func (s *AtomicStack[T, PT]) PushNonAtomic(elm PT) {
	elm.link().Store(s.head.Load())
	s.head.Store((*T)(elm))
}

// PopNonAtomic removes and returns the top element without the CAS retry
// loop. Same exclusivity requirement as PushNonAtomic.
func (s *AtomicStack[T, PT]) PopNonAtomic() PT {
	head := s.head.Load()
	if head == nil {
		return nil
	}
	s.head.Store(PT(head).link().Load())
	return PT(head)
}

// TransferAllFrom moves every element of other onto the top of s, leaving
// other empty. Safe to call concurrently with Push/Pop on either stack.
func (s *AtomicStack[T, PT]) TransferAllFrom(other *AtomicStack[T, PT]) {
	otherHead := other.head.Swap(nil)
	if otherHead == nil {
		return
	}
	if s.head.CompareAndSwap(nil, otherHead) {
		return
	}
	otherTail := PT(otherHead)
	for next := otherTail.link().Load(); next != nil; next = otherTail.link().Load() {
		otherTail = PT(next)
	}
	thisHead := s.head.Load()
	for {
		otherTail.link().Store(thisHead)
		if s.head.CompareAndSwap(thisHead, otherHead) {
			return
		}
		thisHead = s.head.Load()
	}
}

// IsEmpty reports whether the stack currently has no elements.
func (s *AtomicStack[T, PT]) IsEmpty() bool {
	return s.head.Load() == nil
}

// Size walks the whole chain and counts it. Not safe to call concurrently
// with mutation; intended for diagnostics and tests, matching the original's
// "not thread-safe" size().
func (s *AtomicStack[T, PT]) Size() int {
	n := 0
	for elm := s.head.Load(); elm != nil; elm = PT(elm).link().Load() {
		n++
	}
	return n
}

// TraverseElements calls f for every element from top to bottom.
func (s *AtomicStack[T, PT]) TraverseElements(f func(PT)) {
	for elm := s.head.Load(); elm != nil; elm = PT(elm).link().Load() {
		f(PT(elm))
	}
}

// GetElements returns every element from top to bottom. Test/diagnostic
// helper, matching the original's GetElements().
func (s *AtomicStack[T, PT]) GetElements() []PT {
	var out []PT
	s.TraverseElements(func(e PT) { out = append(out, e) })
	return out
}
