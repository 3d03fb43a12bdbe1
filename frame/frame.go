// Package frame is the Evaluator's per-call activation record: a
// register file, shadow stack, and block stack, plus the bookkeeping a
// single activation needs (pending error, generator suspension).
//
// A Frame is heap-resident for the lifetime of the call it represents,
// including across a generator's suspend/resume cycle: nothing about
// dispatch depends on the Go call stack.
package frame

import (
	"github.com/ktstephano/gvm-reg/hostrt"
	"github.com/ktstephano/gvm-reg/ops"
	"github.com/ktstephano/gvm-reg/regcode"
)

// Frame is one activation of a RegCode.
type Frame struct {
	Code *regcode.RegCode

	// Registers holds NumRegisters slots; [0, NumLocals) are the
	// argument/local prefix, the remainder the abstract operand stack's
	// depth-indexed slots.
	Registers []hostrt.H

	// Cells holds one slot per CellVars entry followed by one per
	// FreeVars entry, each a KindCell object shared with any closures
	// made from this frame or the enclosing one.
	Cells []hostrt.H

	ShadowStack []hostrt.H
	Blocks      []BlockEntry

	IP int

	Globals  *hostrt.OrderedDict
	Builtins *hostrt.OrderedDict

	Caller *Frame

	// Pending is not set by the evaluator or the call bridge; an error in
	// flight lives in the host's error channel (ops.Host.PendingError).
	Pending *ops.PendingError

	// CurrentExc is the exception value bound by the innermost active
	// handler, consulted by a bare RAISE (0 args) to re-raise it.
	CurrentExc hostrt.H

	// PendingReraise holds the class name an unwind is still carrying
	// through a FINALLY block, consumed by the first END_FINALLY it
	// reaches and cleared immediately after — scoped per unwind rather
	// than read off CurrentExc, which can be stale from an earlier,
	// unrelated catch in the same frame.
	PendingReraise string

	// Done marks a generator Frame that has returned or raised past its
	// last YIELD_VALUE: further Resume calls report exhaustion instead
	// of re-entering dispatch.
	Done bool

	// Suspended marks a Frame parked on a YIELD_VALUE: IP still points at
	// that instruction, and the next Resume must finish it (store the
	// sent value into its destination register) before advancing.
	Suspended bool

	// ReturnValue is set by RETURN_VALUE / a fallthrough at the end of
	// Instrs for the caller (or callbridge) to collect.
	ReturnValue hostrt.H
}

// New allocates a fresh Frame for one invocation of code. args are
// already-bound parameter values (including defaults) occupying the
// local-variable prefix; ownership of each transfers to the Frame.
func New(code *regcode.RegCode, args []hostrt.H, globals, builtins *hostrt.OrderedDict, caller *Frame) *Frame {
	f := &Frame{
		Code:      code,
		Registers: make([]hostrt.H, code.NumRegisters),
		Cells:     make([]hostrt.H, code.Arity.CellCount+code.Arity.FreeCount),
		Globals:   globals,
		Builtins:  builtins,
		Caller:    caller,
	}
	for i, a := range args {
		if i < len(f.Registers) {
			f.Registers[i] = a
		}
	}
	for i := range f.Cells {
		if i < code.Arity.CellCount {
			f.Cells[i] = hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindCell})
		}
	}
	return f
}

// Reg reads a register without transferring ownership; the caller must
// incref if it wants to keep a copy beyond the instruction that
// produced it.
func (f *Frame) Reg(i uint16) hostrt.H { return f.Registers[i] }

// SetReg releases whatever the slot previously held and stores v, which
// the caller must already own a reference to on v's behalf.
func (f *Frame) SetReg(i uint16, v hostrt.H, h ops.Host) {
	if old := f.Registers[i]; old != nil {
		h.Decref(old)
	}
	f.Registers[i] = v
}

// PushShadow transfers ownership of v onto the shadow stack.
func (f *Frame) PushShadow(v hostrt.H) {
	f.ShadowStack = append(f.ShadowStack, v)
}

// PopShadow removes and returns the shadow stack's top value,
// transferring ownership to the caller.
func (f *Frame) PopShadow() (hostrt.H, bool) {
	n := len(f.ShadowStack)
	if n == 0 {
		return nil, false
	}
	v := f.ShadowStack[n-1]
	f.ShadowStack = f.ShadowStack[:n-1]
	return v, true
}

// TopShadow peeks the shadow stack's top value without removing it.
func (f *Frame) TopShadow() (hostrt.H, bool) {
	n := len(f.ShadowStack)
	if n == 0 {
		return nil, false
	}
	return f.ShadowStack[n-1], true
}

// DiscardShadow pops and decrefs the shadow stack's top value.
func (f *Frame) DiscardShadow(h ops.Host) {
	if v, ok := f.PopShadow(); ok {
		h.Decref(v)
	}
}

// NumLocals is the size of the local-variable register prefix.
func (f *Frame) NumLocals() int { return f.Code.NumLocals }

// Release drops every reference this Frame owns: its register file,
// cells, shadow stack, and CurrentExc. Guaranteed on every exit path.
// callbridge.Bridge calls this once a Frame is done — normal return,
// uncaught error, or generator exhaustion — never while Suspended.
func (f *Frame) Release(h ops.Host) {
	for i, v := range f.Registers {
		if v != nil {
			h.Decref(v)
			f.Registers[i] = nil
		}
	}
	for i, v := range f.Cells {
		if v != nil {
			h.Decref(v)
			f.Cells[i] = nil
		}
	}
	for _, v := range f.ShadowStack {
		if v != nil {
			h.Decref(v)
		}
	}
	f.ShadowStack = nil
	if f.CurrentExc != nil {
		h.Decref(f.CurrentExc)
		f.CurrentExc = nil
	}
}
