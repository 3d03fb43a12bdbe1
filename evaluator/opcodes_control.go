package evaluator

import (
	"github.com/ktstephano/gvm-reg/frame"
	"github.com/ktstephano/gvm-reg/hostrt"
	"github.com/ktstephano/gvm-reg/ops"
	"github.com/ktstephano/gvm-reg/regcode"
)

// execControl handles unconditional/conditional jumps, loop and
// exception-block setup/teardown, RAISE/END_FINALLY, and the shadow-
// stack primitives (PUSH/POP/DUP_TOP).
func execControl(f *frame.Frame, host ops.Host, ins regcode.RInstr) (jumped, handled, ok bool) {
	switch ins.Op {
	case regcode.OpJumpAbs:
		f.IP = int(ins.Ext)
		return true, true, true

	case regcode.OpJumpIfTrue:
		b, o := ops.ToBool(host, f.Reg(ins.B))
		if !o {
			return false, true, false
		}
		if b {
			f.IP = int(ins.Ext)
			return true, true, true
		}
		return false, true, true

	case regcode.OpJumpIfFalse:
		b, o := ops.ToBool(host, f.Reg(ins.B))
		if !o {
			return false, true, false
		}
		if !b {
			f.IP = int(ins.Ext)
			return true, true, true
		}
		return false, true, true

	case regcode.OpJumpIfTruePop:
		v := f.Reg(ins.B)
		b, o := ops.ToBool(host, v)
		host.Decref(v)
		f.Registers[ins.B] = nil
		if !o {
			return false, true, false
		}
		if b {
			f.IP = int(ins.Ext)
			return true, true, true
		}
		return false, true, true

	case regcode.OpJumpIfFalsePop:
		v := f.Reg(ins.B)
		b, o := ops.ToBool(host, v)
		host.Decref(v)
		f.Registers[ins.B] = nil
		if !o {
			return false, true, false
		}
		if !b {
			f.IP = int(ins.Ext)
			return true, true, true
		}
		return false, true, true

	case regcode.OpCmpJumpIfTrue, regcode.OpCmpJumpIfFalse:
		fn, known := binTable[regcode.Op(ins.Imm)]
		if !known {
			_, o := ops.Fail(host, ops.ErrInternal, "InternalError", errStr("bad fused compare opcode"))
			return false, true, o
		}
		v, o := fn(host, f.Reg(ins.B), f.Reg(ins.C))
		if !o {
			return false, true, false
		}
		b, o2 := ops.ToBool(host, v)
		host.Decref(v)
		if !o2 {
			return false, true, false
		}
		if b == (ins.Op == regcode.OpCmpJumpIfTrue) {
			f.IP = int(ins.Ext)
			return true, true, true
		}
		return false, true, true

	case regcode.OpSetupLoop:
		f.PushBlock(frame.BlockEntry{Kind: frame.BlockLoop, Handler: int(ins.Ext), StackDepth: int(ins.Imm)})
		return false, true, true
	case regcode.OpSetupExcept:
		f.PushBlock(frame.BlockEntry{Kind: frame.BlockExcept, Handler: int(ins.Ext), StackDepth: int(ins.Imm)})
		return false, true, true
	case regcode.OpSetupFinally:
		f.PushBlock(frame.BlockEntry{Kind: frame.BlockFinally, Handler: int(ins.Ext), StackDepth: int(ins.Imm)})
		return false, true, true
	case regcode.OpPopBlock:
		f.PopBlock()
		return false, true, true

	case regcode.OpBreakLoop:
		entry, idx, found := f.TopLoop()
		if !found {
			_, o := ops.Fail(host, ops.ErrInternal, "InternalError", errStr("break outside loop"))
			return false, true, o
		}
		f.Blocks = f.Blocks[:idx]
		f.IP = entry.Handler
		return true, true, true

	case regcode.OpContinueLoop:
		f.IP = int(ins.Ext)
		return true, true, true

	case regcode.OpForIter:
		// The iterator handle in B is left in place across iterations
		// (it is not re-read from a stack slot each time); only a
		// stop-marker result retires it and takes the exit edge.
		it := f.Reg(ins.B)
		v, o := ops.IterNext(host, it)
		if !o {
			return false, true, false
		}
		if v == ops.StopMarker() {
			host.Decref(it)
			f.Registers[ins.B] = nil
			f.IP = int(ins.Ext)
			return true, true, true
		}
		f.SetReg(ins.A, v, host)
		return false, true, true

	case regcode.OpRaise:
		n := int(ins.Imm)
		var class string
		var value hostrt.H
		switch n {
		case 0:
			if f.CurrentExc == nil {
				_, o := ops.Fail(host, ops.ErrInternal, "RuntimeError", errStr("no active exception to re-raise"))
				return false, true, o
			}
			class = f.CurrentExc.Str
		case 1:
			class = classNameOf(f.Reg(ins.A))
		default:
			class = classNameOf(f.Reg(ins.A))
			value = f.Reg(ins.A + 1)
		}
		host.SetError(ops.ErrUserRaised, class, value)
		return false, true, false

	case regcode.OpEndFinally:
		if f.PendingReraise != "" {
			class := f.PendingReraise
			f.PendingReraise = ""
			host.SetError(ops.ErrUserRaised, class, nil)
			return false, true, false
		}
		return false, true, true

	case regcode.OpReraise:
		if f.CurrentExc == nil {
			_, o := ops.Fail(host, ops.ErrInternal, "RuntimeError", errStr("no active exception to re-raise"))
			return false, true, o
		}
		host.SetError(ops.ErrUserRaised, f.CurrentExc.Str, nil)
		return false, true, false

	case regcode.OpPush:
		v := f.Reg(ins.A)
		host.Incref(v)
		f.PushShadow(v)
		return false, true, true
	case regcode.OpPop:
		if ins.Imm == 1 {
			v, had := f.PopShadow()
			if had {
				f.SetReg(ins.A, v, host)
			}
		} else {
			f.DiscardShadow(host)
		}
		return false, true, true
	case regcode.OpDupTop:
		if v, has := f.TopShadow(); has {
			host.Incref(v)
			f.PushShadow(v)
		}
		return false, true, true
	}
	return false, false, true
}

func classNameOf(h hostrt.H) string {
	if h != nil && h.Kind == hostrt.KindStr {
		return h.Str
	}
	return h.String()
}
