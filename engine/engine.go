// Package engine is the public embedder-facing surface: Compile, Run,
// and Wrap, backed by a callbridge.Bridge holding the Compiler's
// RegCode cache and the globals/builtins dicts a compiled CodeObject
// runs against.
package engine

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/ktstephano/gvm-reg/callbridge"
	"github.com/ktstephano/gvm-reg/hostrt"
	"github.com/ktstephano/gvm-reg/internal/diag"
	"github.com/ktstephano/gvm-reg/ops"
	"github.com/ktstephano/gvm-reg/regcode"
)

// Engine is one embedder-visible instance of the accelerator: a Bridge
// plus the default builtins dict every top-level call falls back to.
// Single-threaded per instance — an embedder wanting concurrency runs
// multiple Engines, one per host thread.
type Engine struct {
	bridge *callbridge.Bridge
	logger hclog.Logger
}

// New returns an Engine whose top-level code runs against globals (fresh
// empty dict if nil) with the reference builtins (len, range, sum,
// print, abs, min, max) as the fallback scope.
func New(globals *hostrt.OrderedDict) *Engine {
	if globals == nil {
		globals = hostrt.NewOrderedDict()
	}
	b := callbridge.New(globals, hostrt.NewBuiltins())
	logger := diag.New("gvm-engine")
	b.Compiler.SetLogger(logger)
	return &Engine{bridge: b, logger: logger}
}

// Globals returns the dict this Engine's top-level Frames run against,
// for a host that wants to seed or inspect module-level bindings.
func (e *Engine) Globals() *hostrt.OrderedDict { return e.bridge.Globals }

// Compile lowers a stack-oriented CodeObject into RegCode, memoized by
// the Compiler's cache.
func (e *Engine) Compile(co *hostrt.CodeObject) (*regcode.RegCode, error) {
	return e.bridge.Compiler.Compile(co)
}

// Run compiles callee if needed and evaluates it with args/kwargs. A
// pending engine error is returned as a *RunError carrying its ErrKind,
// host exception class and value, and the bridge's error channel is
// cleared before Run returns.
func (e *Engine) Run(callee hostrt.H, args []hostrt.H, kwargs *hostrt.OrderedDict) (hostrt.H, error) {
	for _, a := range args {
		e.bridge.Incref(a)
	}
	v, ok := e.bridge.Call(callee, args, kwargs)
	if ok {
		return v, nil
	}
	pe, hasErr := e.bridge.PendingError()
	e.bridge.ClearError()
	if !hasErr {
		return nil, fmt.Errorf("engine: run failed with no pending error recorded")
	}
	return nil, &RunError{Kind: pe.Kind, Class: pe.Class, Value: pe.Value}
}

// Wrap returns a host-callable that, when invoked through ops.Call (or
// directly through Run), routes through this Engine's Run — the
// decorator mechanism an embedder uses to drop
// an accelerated function into a slot a host builtin would otherwise
// occupy, transparently to its caller.
func (e *Engine) Wrap(callee hostrt.H) hostrt.H {
	e.bridge.Incref(callee)
	wrapped := func(rt *hostrt.Runtime, args []hostrt.H, kwargs *hostrt.OrderedDict) (hostrt.H, error) {
		v, err := e.Run(callee, args, kwargs)
		if err != nil {
			if re, ok := err.(*RunError); ok {
				return nil, &hostrt.BuiltinError{Class: re.Class, Msg: re.Error()}
			}
			return nil, &hostrt.BuiltinError{Class: "InternalError", Msg: err.Error()}
		}
		return v, nil
	}
	return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindBuiltin, Builtin: wrapped})
}

// Bridge exposes the underlying ops.Host for a caller that needs the raw
// Incref/Decref/SetError surface (constructing arguments by hand, e.g.
// from the CLI's assembler output).
func (e *Engine) Bridge() ops.Host { return e.bridge }

// RunError is Run's reported failure: the engine error kind plus the
// host exception class and value a pending error carried.
type RunError struct {
	Kind  ops.ErrKind
	Class string
	Value hostrt.H
}

func (e *RunError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %s", e.Class, e.Value.String())
	}
	return e.Class
}
