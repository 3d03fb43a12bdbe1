package hostrt

import "sync/atomic"

// Incref and Decref implement the host's reference-counted object
// model, which the engine defers ownership to. Every mutable slot in
// the engine (register, shadow-stack entry, cell, exception value) is
// required to hold exactly one owning reference and to incref/decref
// on every path, including unwind — see frame.Frame and the evaluator
// handlers.
//
// Singletons (None, True, False, small ints) are not specialized here;
// every Object, including None, carries its own refcount so that the
// hygiene tests can assert parity without a singleton carve-out
// muddying the count.
func Incref(h H) {
	if h == nil {
		return
	}
	atomic.AddInt32(&h.refs, 1)
}

// Decref drops one reference. It does not free the object (the reference
// Go runtime already owns the memory); it exists so LiveRefs and the
// hygiene tests (engine/hygiene_test.go) can detect over-release (refs going negative) and
// leaks (refs never reaching zero) the same way an instrumented CPython
// build would.
func Decref(h H) {
	if h == nil {
		return
	}
	atomic.AddInt32(&h.refs, -1)
}

// LiveRefs reports the current strong-reference count. Used only by
// tests; production code never inspects it.
func LiveRefs(h H) int32 {
	if h == nil {
		return 0
	}
	return atomic.LoadInt32(&h.refs)
}

// NewHandle allocates an object with a single owning reference,
// transferred to the caller — the convention every ops operation that
// returns a fresh handle follows.
func NewHandle(o *Object) H {
	o.refs = 1
	return o
}
