// Package evaluator is the threaded-dispatch loop that executes a
// frame.Frame's RegCode: fetch-decode-execute over a register file
// instead of an operand stack, ops-mediated arithmetic/container/
// attribute access, structured exception unwind via the Frame's block
// stack, and generator suspend/resume on a Frame kept alive on the
// heap across calls.
//
// The Evaluator never imports package compiler: a CALL_FN's callee is
// resolved and (if needed) compiled by whatever implements ops.Host —
// callbridge.Bridge in this repo — so evaluator's only dependencies are
// hostrt, ops, frame, and regcode.
package evaluator

import (
	"github.com/ktstephano/gvm-reg/frame"
	"github.com/ktstephano/gvm-reg/hostrt"
	"github.com/ktstephano/gvm-reg/ops"
	"github.com/ktstephano/gvm-reg/regcode"
)

// Status reports why Run returned.
type Status int

const (
	// StatusReturn: the frame ran to RETURN_VALUE (or fell off the end,
	// an implicit "return None"). Done is set; the frame cannot be
	// resumed again.
	StatusReturn Status = iota
	// StatusYield: the frame hit YIELD_VALUE. Suspended is set; a later
	// Run/Resume call continues right after it.
	StatusYield
	// StatusError: an exception propagated past the frame's outermost
	// block with no handler. The pending error is still recorded on
	// host (ops.Host.PendingError); the caller (callbridge) is
	// responsible for deciding whether to propagate it further or
	// convert it into a Go error at the engine boundary.
	StatusError
)

// Run drives f's dispatch loop until it returns, yields, or an
// exception escapes unhandled. sendValue is the value written into the
// register a paused YIELD_VALUE was waiting on; it is ignored when f
// has never yielded (a fresh call passes hostrt' None).
func Run(f *frame.Frame, host ops.Host, sendValue hostrt.H) (hostrt.H, Status) {
	if f.Suspended {
		ins := f.Code.Instrs[f.IP]
		f.SetReg(ins.A, sendValue, host)
		f.Suspended = false
		f.IP++
	}

	instrs := f.Code.Instrs
	for {
		if f.IP < 0 || f.IP >= len(instrs) {
			f.Done = true
			f.ReturnValue = noneValue()
			return f.ReturnValue, StatusReturn
		}

		ins := instrs[f.IP]

		switch ins.Op {
		case regcode.OpReturnValue:
			val := f.Reg(ins.B)
			f.ReturnValue = val
			f.Done = true
			return val, StatusReturn

		case regcode.OpYieldValue:
			val := f.Reg(ins.B)
			f.Suspended = true
			return val, StatusYield

		default:
			jumped, ok := step(f, host, ins)
			if !ok {
				if !unwind(f, host) {
					return nil, StatusError
				}
				continue
			}
			if !jumped {
				f.IP++
			}
			continue
		}
	}
}

// step executes one non-terminal instruction, dispatching by opcode
// group. jumped reports whether the handler already updated f.IP (a
// taken branch, loop control, or a handler-entry jump); ok mirrors the
// OPS failure convention (false means host.SetError was called).
func step(f *frame.Frame, host ops.Host, ins regcode.RInstr) (jumped bool, ok bool) {
	switch ins.Op {
	case regcode.OpNop:
		return false, true
	default:
	}
	if j, handled, ok := execData(f, host, ins); handled {
		return j, ok
	}
	if j, handled, ok := execControl(f, host, ins); handled {
		return j, ok
	}
	if handled, ok := execArith(f, host, ins); handled {
		return false, ok
	}
	if handled, ok := execContainer(f, host, ins); handled {
		return false, ok
	}
	if j, handled, ok := execCall(f, host, ins); handled {
		return j, ok
	}
	_, ok = ops.Fail(host, ops.ErrInternal, "InternalError", errStr("unimplemented opcode "+ins.Op.String()))
	return false, ok
}

func errStr(s string) hostrt.H {
	return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindStr, Str: s})
}

func noneValue() hostrt.H {
	return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindNone})
}

// unwind looks for a handler for the error host currently has pending:
// walk the block stack innermost-out; if an EXCEPT/FINALLY entry
// matches, push the (class-name-only) exception value onto the shadow stack
// and jump to its handler. If none matches, leave the error pending on
// host and report failure so Run can return StatusError — the caller
// (callbridge, on behalf of the enclosing CALL_FN) re-raises it one
// frame up.
func unwind(f *frame.Frame, host ops.Host) bool {
	pe, ok := host.PendingError()
	if !ok {
		return false
	}
	entry, found := f.FindHandler()
	if !found {
		return false
	}
	host.ClearError()
	class := pe.Class
	if class == "" {
		class = "Exception"
	}
	excVal := hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindStr, Str: class})
	host.Incref(excVal) // one ref for CurrentExc, one transferred to the shadow stack below
	f.CurrentExc = excVal
	f.PushShadow(excVal)
	if entry.Kind == frame.BlockFinally {
		f.PendingReraise = class
	}
	f.IP = entry.Handler
	return true
}
