package evaluator

import (
	"github.com/ktstephano/gvm-reg/frame"
	"github.com/ktstephano/gvm-reg/hostrt"
	"github.com/ktstephano/gvm-reg/ops"
	"github.com/ktstephano/gvm-reg/regcode"
)

// execData handles data movement, name/global/cell access, and the
// attribute protocol — every opcode whose effect never branches.
// handled reports whether ins.Op belonged to this group; jumped is
// always false here but kept in the signature so step's dispatch table
// is uniform.
func execData(f *frame.Frame, host ops.Host, ins regcode.RInstr) (jumped, handled, ok bool) {
	switch ins.Op {
	case regcode.OpMove:
		v := f.Reg(ins.B)
		host.Incref(v)
		f.SetReg(ins.A, v, host)
		return false, true, true

	case regcode.OpXchg:
		a, b := f.Reg(ins.A), f.Reg(ins.B)
		f.Registers[ins.A], f.Registers[ins.B] = b, a
		return false, true, true

	case regcode.OpClearReg:
		if v := f.Reg(ins.A); v != nil {
			host.Decref(v)
			f.Registers[ins.A] = nil
		}
		return false, true, true

	case regcode.OpLoadConst:
		v := constAt(f, ins.Ext)
		host.Incref(v)
		f.SetReg(ins.A, v, host)
		return false, true, true

	case regcode.OpLoadName:
		v, found := lookupName(f, nameAt(f, ins.Ext))
		if !found {
			_, ok := ops.Fail(host, ops.ErrAttributeMissing, "NameError", errStr("name '"+nameAt(f, ins.Ext)+"' is not defined"))
			return false, true, ok
		}
		host.Incref(v)
		f.SetReg(ins.A, v, host)
		return false, true, true

	case regcode.OpStoreName:
		v := f.Reg(ins.B)
		host.Incref(v) // the dict's reference; the source register keeps its own
		old, had := f.Globals.SetStr2(nameAt(f, ins.Ext), v)
		if had {
			host.Decref(old)
		}
		return false, true, true

	case regcode.OpLoadGlobal:
		v, found := lookupName(f, nameAt(f, ins.Ext))
		if !found {
			_, ok := ops.Fail(host, ops.ErrAttributeMissing, "NameError", errStr("global name '"+nameAt(f, ins.Ext)+"' is not defined"))
			return false, true, ok
		}
		host.Incref(v)
		f.SetReg(ins.A, v, host)
		return false, true, true

	case regcode.OpStoreGlobal:
		v := f.Reg(ins.B)
		host.Incref(v)
		old, had := f.Globals.SetStr2(nameAt(f, ins.Ext), v)
		if had {
			host.Decref(old)
		}
		return false, true, true

	case regcode.OpLoadDeref:
		cell := f.Cells[ins.Ext]
		v := cell.Cell
		if v == nil {
			_, ok := ops.Fail(host, ops.ErrAttributeMissing, "UnboundLocalError", errStr("local variable referenced before assignment"))
			return false, true, ok
		}
		host.Incref(v)
		f.SetReg(ins.A, v, host)
		return false, true, true

	case regcode.OpStoreDeref:
		cell := f.Cells[ins.Ext]
		v := f.Reg(ins.B)
		host.Incref(v)
		if cell.Cell != nil {
			host.Decref(cell.Cell)
		}
		cell.Cell = v
		return false, true, true

	case regcode.OpLoadClosure:
		cell := f.Cells[ins.Ext]
		host.Incref(cell)
		f.SetReg(ins.A, cell, host)
		return false, true, true

	case regcode.OpGetAttr:
		v, o := ops.GetAttr(host, f.Reg(ins.B), nameAt(f, ins.Ext))
		if !o {
			return false, true, false
		}
		f.SetReg(ins.A, v, host)
		return false, true, true

	case regcode.OpSetAttr:
		_, o := ops.SetAttr(host, f.Reg(ins.B), nameAt(f, ins.Ext), f.Reg(ins.C))
		return false, true, o

	case regcode.OpDelAttr:
		_, o := ops.DelAttr(host, f.Reg(ins.B), nameAt(f, ins.Ext))
		return false, true, o

	case regcode.OpToBool:
		b, o := ops.ToBool(host, f.Reg(ins.B))
		if !o {
			return false, true, false
		}
		f.SetReg(ins.A, boolHandle(b), host)
		return false, true, true
	case regcode.OpToInt:
		v, o := ops.ToInt(host, f.Reg(ins.B))
		if !o {
			return false, true, false
		}
		f.SetReg(ins.A, v, host)
		return false, true, true
	case regcode.OpToFloat:
		v, o := ops.ToFloat(host, f.Reg(ins.B))
		if !o {
			return false, true, false
		}
		f.SetReg(ins.A, v, host)
		return false, true, true
	case regcode.OpToStr:
		v, o := ops.ToStr(host, f.Reg(ins.B))
		if !o {
			return false, true, false
		}
		f.SetReg(ins.A, v, host)
		return false, true, true
	}
	return false, false, true
}

func constAt(f *frame.Frame, idx uint32) hostrt.H {
	return f.Code.Consts[idx].(hostrt.H)
}

func nameAt(f *frame.Frame, idx uint32) string {
	return f.Code.Names[idx]
}

// lookupName implements the LOAD_NAME/LOAD_GLOBAL resolution chain:
// module globals first, then builtins — the only two scopes this
// repo's fixtures ever need, matching CPython's own load-name fallback
// order.
func lookupName(f *frame.Frame, name string) (hostrt.H, bool) {
	if v, ok := f.Globals.GetStr(name); ok {
		return v, true
	}
	if f.Builtins != nil {
		if v, ok := f.Builtins.GetStr(name); ok {
			return v, true
		}
	}
	return nil, false
}

func boolHandle(b bool) hostrt.H {
	return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindBool, Bool: b})
}
