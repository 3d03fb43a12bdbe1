// Package ops is the object-protocol shim: the thin layer of typed
// operations over host object handles. Every operation here can fail;
// on failure it calls Host.SetError and returns ok=false, so the error
// stays inspectable out-of-band while the value channel stays simple.
//
// ops never decides how to propagate a failure — that is the
// Evaluator's job. ops only ever sets the error and returns.
package ops

import "github.com/ktstephano/gvm-reg/hostrt"

// ErrKind is the engine-internal error tag, mapped to a host exception
// class at the boundary.
type ErrKind int

const (
	ErrNone ErrKind = iota
	ErrBadArgument
	ErrAttributeMissing
	ErrKeyMissing
	ErrIndexOutOfRange
	ErrTypeMismatch
	ErrArithmetic
	ErrIterationStopped
	ErrUserRaised
	ErrInternal
)

func (k ErrKind) String() string {
	switch k {
	case ErrNone:
		return "NoError"
	case ErrBadArgument:
		return "BadArgument"
	case ErrAttributeMissing:
		return "AttributeMissing"
	case ErrKeyMissing:
		return "KeyMissing"
	case ErrIndexOutOfRange:
		return "IndexOutOfRange"
	case ErrTypeMismatch:
		return "TypeMismatch"
	case ErrArithmetic:
		return "ArithmeticError"
	case ErrIterationStopped:
		return "IterationStopped"
	case ErrUserRaised:
		return "UserRaised"
	case ErrInternal:
		return "Internal"
	default:
		return "?unknown?"
	}
}

// PendingError is what Host.SetError records and the Evaluator drains
// during unwind. Class is the host exception class
// name (e.g. "IndexError") the engine maps ErrKind onto; Value is the
// exception instance or argument tuple raised with it.
type PendingError struct {
	Kind  ErrKind
	Class string
	Value hostrt.H
}

// Host is the embedding host runtime's half of the bridge: reference
// counting, the error channel, and the Call Bridge's entry point for
// the CALL group of operations.
// hostrt.Runtime (wrapped by callbridge.Bridge to supply Call) is the
// reference implementation used by this repo's tests and CLI; any other
// embedder implements the same interface.
type Host interface {
	Incref(h hostrt.H)
	Decref(h hostrt.H)

	SetError(kind ErrKind, class string, value hostrt.H)
	ClearError()
	PendingError() (PendingError, bool)

	// Call binds and invokes callee(args, kwargs), re-entering the Call
	// Bridge for engine-compiled callees and the host's own call
	// machinery for builtins.
	Call(callee hostrt.H, args []hostrt.H, kwargs *hostrt.OrderedDict) (hostrt.H, bool)

	// ResumeGenerator drives a KindGenerator handle's suspended Frame
	// forward to its next YIELD_VALUE (done=false) or to a return
	// (done=true), re-entering the Evaluator. ok=false means the
	// generator body raised past the resume point and SetError has
	// recorded it.
	ResumeGenerator(v hostrt.H) (value hostrt.H, done bool, ok bool)
}

// Fail is a small helper so every OPS function reports failure the same
// way: set the error, return the zero handle and ok=false.
func Fail(h Host, kind ErrKind, class string, value hostrt.H) (hostrt.H, bool) {
	h.SetError(kind, class, value)
	return nil, false
}
