package evaluator

import (
	"github.com/ktstephano/gvm-reg/frame"
	"github.com/ktstephano/gvm-reg/hostrt"
	"github.com/ktstephano/gvm-reg/ops"
	"github.com/ktstephano/gvm-reg/regcode"
)

// execContainer handles item/slice/attribute-free container access and
// the BUILD_* construct family. None of these opcodes branch, so unlike
// execControl they report only (handled, ok) back to step.
func execContainer(f *frame.Frame, host ops.Host, ins regcode.RInstr) (handled, ok bool) {
	switch ins.Op {
	case regcode.OpGetItem:
		v, o := ops.GetItem(host, f.Reg(ins.B), f.Reg(ins.C))
		if !o {
			return true, false
		}
		f.SetReg(ins.A, v, host)
		return true, true

	case regcode.OpSetItem:
		// compiler/lower.go's STORE_SUBSCR lowering puts the assigned
		// value at A, the container at B, and the key/index at C —
		// mirroring CPython's "TOS1[TOS] = TOS2" stack order.
		_, o := ops.SetItem(host, f.Reg(ins.B), f.Reg(ins.C), f.Reg(ins.A))
		return true, o

	case regcode.OpDelItem:
		_, o := ops.DelItem(host, f.Reg(ins.A), f.Reg(ins.B))
		return true, o

	case regcode.OpGetSlice:
		v, o := ops.GetSlice(host, f.Reg(ins.B), f.Reg(ins.C))
		if !o {
			return true, false
		}
		f.SetReg(ins.A, v, host)
		return true, true

	case regcode.OpSetSlice:
		_, o := ops.SetSlice(host, f.Reg(ins.B), f.Reg(ins.C), f.Reg(ins.A))
		return true, o

	case regcode.OpDelSlice:
		_, o := ops.DelSlice(host, f.Reg(ins.A), f.Reg(ins.B))
		return true, o

	case regcode.OpGetLength:
		v, o := ops.GetLength(host, f.Reg(ins.B))
		if !o {
			return true, false
		}
		f.SetReg(ins.A, v, host)
		return true, true

	case regcode.OpBuildTuple:
		n := int(ins.Imm)
		v, o := ops.BuildTuple(host, regSpan(f, ins.A, n))
		if !o {
			return true, false
		}
		f.SetReg(ins.A, v, host)
		return true, true

	case regcode.OpBuildList:
		n := int(ins.Imm)
		v, o := ops.BuildList(host, regSpan(f, ins.A, n))
		if !o {
			return true, false
		}
		f.SetReg(ins.A, v, host)
		return true, true

	case regcode.OpBuildSet:
		n := int(ins.Imm)
		v, o := ops.BuildSet(host, regSpan(f, ins.A, n))
		if !o {
			return true, false
		}
		f.SetReg(ins.A, v, host)
		return true, true

	case regcode.OpBuildDict:
		n := int(ins.Imm)
		keys := make([]hostrt.H, n)
		vals := make([]hostrt.H, n)
		base := ins.A
		for i := 0; i < n; i++ {
			keys[i] = f.Reg(base + uint16(2*i))
			vals[i] = f.Reg(base + uint16(2*i+1))
		}
		v, o := ops.BuildDict(host, keys, vals)
		if !o {
			return true, false
		}
		f.SetReg(ins.A, v, host)
		return true, true

	case regcode.OpBuildSlice:
		n := int(ins.Imm)
		base := ins.A
		start := f.Reg(base)
		stop := f.Reg(base + 1)
		step := noneValue()
		if n == 3 {
			step = f.Reg(base + 2)
		}
		v, o := ops.BuildSlice(host, start, stop, step)
		if !o {
			return true, false
		}
		f.SetReg(ins.A, v, host)
		return true, true

	case regcode.OpUnpackSeq:
		return true, execUnpackSeq(f, host, ins)

	case regcode.OpGetIter:
		v, o := ops.GetIter(host, f.Reg(ins.B))
		if !o {
			return true, false
		}
		f.SetReg(ins.A, v, host)
		return true, true
	}
	return false, true
}

// regSpan returns the n registers [base, base+n) without transferring
// ownership — used by the BUILD_TUPLE/LIST/SET family, which incref
// each item themselves (the span's original slots stay owned until the
// caller's depth-slot reuse or Frame.Release retires them).
func regSpan(f *frame.Frame, base uint16, n int) []hostrt.H {
	out := make([]hostrt.H, n)
	for i := 0; i < n; i++ {
		out[i] = f.Reg(base + uint16(i))
	}
	return out
}

// execUnpackSeq implements UNPACK_SEQ: the source sequence at ins.A is
// replaced by its n elements written into [ins.A, ins.A+n), in reverse
// element order so the first STORE_FAST the compiler emits afterward
// (the leftmost assignment target) pops the correct element off what is
// now the top of the depth range — matching CPython's own
// UNPACK_SEQUENCE stack order.
func execUnpackSeq(f *frame.Frame, host ops.Host, ins regcode.RInstr) bool {
	n := int(ins.Imm)
	src := f.Reg(ins.A)
	var items []hostrt.H
	switch src.Kind {
	case hostrt.KindTuple, hostrt.KindList, hostrt.KindSet:
		items = src.Items
	default:
		_, ok := ops.Fail(host, ops.ErrTypeMismatch, "TypeError", errStr("cannot unpack non-sequence "+src.Kind.String()))
		return ok
	}
	if len(items) != n {
		msg := "not enough values to unpack"
		if len(items) > n {
			msg = "too many values to unpack"
		}
		_, ok := ops.Fail(host, ops.ErrBadArgument, "ValueError", errStr(msg))
		return ok
	}
	f.Registers[ins.A] = nil
	host.Decref(src)
	for k := 0; k < n; k++ {
		v := items[n-1-k]
		host.Incref(v)
		f.SetReg(ins.A+uint16(k), v, host)
	}
	return true
}
