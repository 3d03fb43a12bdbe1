// Package callbridge is the call bridge: the piece that turns a bound
// callee and argument list into a running (or suspended) frame.Frame,
// and the piece ops.Host.Call/ResumeGenerator re-enter from inside the
// Evaluator's dispatch loop.
//
// Bridge embeds *hostrt.Runtime for reference counting and the error
// channel, and supplies the one method hostrt.Runtime deliberately
// leaves out — Call — plus ResumeGenerator, both of which need the
// Compiler and Evaluator that hostrt cannot import without a cycle.
package callbridge

import (
	"github.com/ktstephano/gvm-reg/compiler"
	"github.com/ktstephano/gvm-reg/evaluator"
	"github.com/ktstephano/gvm-reg/frame"
	"github.com/ktstephano/gvm-reg/hostrt"
	"github.com/ktstephano/gvm-reg/ops"
)

// Bridge is the reference ops.Host: hostrt.Runtime's bookkeeping plus a
// Compiler (with its RegCode cache) and the globals/builtins dicts every
// top-level Frame is constructed against.
type Bridge struct {
	*hostrt.Runtime
	Compiler *compiler.Compiler
	Globals  *hostrt.OrderedDict
	Builtins *hostrt.OrderedDict
}

// New returns a Bridge ready to run code compiled against globals, with
// builtins consulted as the name-resolution fallback scope.
func New(globals, builtins *hostrt.OrderedDict) *Bridge {
	return &Bridge{
		Runtime:  hostrt.NewRuntime(),
		Compiler: compiler.New(),
		Globals:  globals,
		Builtins: builtins,
	}
}

// SetError and PendingError translate between ops.ErrKind and the plain
// int hostrt.Runtime stores internally (hostrt cannot name ops.ErrKind
// without importing package ops, which imports hostrt — see
// hostrt/runtime.go). Both shadow the embedded Runtime's methods of the
// same name; Incref/Decref/ClearError are promoted unchanged.
func (b *Bridge) SetError(kind ops.ErrKind, class string, value hostrt.H) {
	b.Runtime.SetError(int(kind), class, value)
}

func (b *Bridge) PendingError() (ops.PendingError, bool) {
	kind, class, value, ok := b.Runtime.PendingErrorRaw()
	if !ok {
		return ops.PendingError{}, false
	}
	return ops.PendingError{Kind: ops.ErrKind(kind), Class: class, Value: value}, true
}

// Call dispatches on callee's kind: a host-compiled
// function is bound, compiled (cache hit on every call past the first),
// and run to completion or (for a generator) merely constructed as a
// fresh suspended Frame; a builtin is invoked directly; anything else is
// TypeError.
func (b *Bridge) Call(callee hostrt.H, args []hostrt.H, kwargs *hostrt.OrderedDict) (hostrt.H, bool) {
	switch callee.Kind {
	case hostrt.KindFunc:
		return b.callFunc(callee.Fn, args, kwargs)
	case hostrt.KindBuiltin:
		return b.callBuiltin(callee.Builtin, args, kwargs)
	default:
		releaseAll(b, args)
		return ops.Fail(b, ops.ErrTypeMismatch, "TypeError", errStr("'"+callee.Kind.String()+"' object is not callable"))
	}
}

func (b *Bridge) callFunc(fn *hostrt.FuncObject, args []hostrt.H, kwargs *hostrt.OrderedDict) (hostrt.H, bool) {
	locals, err := bindArgs(fn, args, kwargs, b)
	if err != nil {
		return ops.Fail(b, ops.ErrBadArgument, "TypeError", errStr(err.Error()))
	}

	rc, cerr := b.Compiler.Compile(fn.Code)
	if cerr != nil {
		for _, v := range locals {
			if v != nil {
				b.Decref(v)
			}
		}
		return ops.Fail(b, ops.ErrInternal, "InternalError", errStr(cerr.Error()))
	}

	fr := frame.New(rc, locals, fn.Globals, b.Builtins, nil)
	for i, c := range fn.Closure {
		b.Incref(c)
		fr.Cells[rc.Arity.CellCount+i] = c
	}

	// A generator call binds arguments and builds the Frame but never
	// runs a single instruction: the body starts executing on the first
	// resume, not at call time.
	if rc.Arity.IsGenerator {
		return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindGenerator, Gen: fr}), true
	}

	return b.runToCompletion(fr)
}

// runToCompletion drives a non-generator Frame from a fresh start; it
// never observes StatusYield (the Compiler only sets Arity.IsGenerator,
// and therefore only evaluator.Run ever returns StatusYield, for code
// containing a YIELD_VALUE).
func (b *Bridge) runToCompletion(fr *frame.Frame) (hostrt.H, bool) {
	val, status := evaluator.Run(fr, b, noneValue())
	switch status {
	case evaluator.StatusReturn:
		b.Incref(val) // one ref for the caller; Release drops the frame's own
		fr.Release(b)
		return val, true
	case evaluator.StatusError:
		fr.Release(b)
		return nil, false
	default:
		fr.Release(b)
		return ops.Fail(b, ops.ErrInternal, "InternalError", errStr("non-generator frame yielded"))
	}
}

func (b *Bridge) callBuiltin(fn hostrt.BuiltinFunc, args []hostrt.H, kwargs *hostrt.OrderedDict) (hostrt.H, bool) {
	v, err := fn(b.Runtime, args, kwargs)
	if err == nil && v != nil {
		// v may alias one of args' elements (min/max return one of their
		// own arguments); incref before releasing args so the result
		// keeps exactly one live reference of its own.
		b.Incref(v)
	}
	releaseAll(b, args)
	if err != nil {
		class, kind := "InternalError", ops.ErrInternal
		if be, ok := err.(*hostrt.BuiltinError); ok {
			class, kind = be.Class, ops.ErrBadArgument
		}
		return ops.Fail(b, kind, class, errStr(err.Error()))
	}
	return v, true
}

// ResumeGenerator drives v's suspended Frame to its next YIELD_VALUE or
// to completion. The reference host's
// generator protocol has no .send(value) surface: every resume injects
// None, matching plain iteration (next()/FOR_ITER) — the only two ways
// ops.GetIter/IterNext ever reach here.
func (b *Bridge) ResumeGenerator(v hostrt.H) (hostrt.H, bool, bool) {
	fr, isFrame := v.Gen.(*frame.Frame)
	if !isFrame || fr == nil {
		_, ok := ops.Fail(b, ops.ErrInternal, "InternalError", errStr("corrupt generator handle"))
		return nil, true, ok
	}
	if fr.Done {
		return noneValue(), true, true
	}

	val, status := evaluator.Run(fr, b, noneValue())
	switch status {
	case evaluator.StatusYield:
		// The suspended frame's register keeps its own reference until
		// the next resume overwrites it; the consumer gets a fresh one.
		b.Incref(val)
		return val, false, true
	case evaluator.StatusReturn:
		b.Incref(val)
		fr.Release(b)
		return val, true, true
	default:
		fr.Done = true
		fr.Release(b)
		return nil, true, false
	}
}

func errStr(s string) hostrt.H {
	return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindStr, Str: s})
}

func noneValue() hostrt.H {
	return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindNone})
}
