package evaluator

import (
	"github.com/ktstephano/gvm-reg/frame"
	"github.com/ktstephano/gvm-reg/hostrt"
	"github.com/ktstephano/gvm-reg/ops"
	"github.com/ktstephano/gvm-reg/regcode"
)

// execCall handles the CALL_FN family and MAKE_FUNCTION/MAKE_CLOSURE.
// None of these branch directly, but a call can re-enter the Compiler
// and a fresh Evaluator.Run by way of Host.Call — jumped is always
// false here, kept in the signature only so step's dispatch table is
// uniform with execControl.
func execCall(f *frame.Frame, host ops.Host, ins regcode.RInstr) (jumped, handled, ok bool) {
	switch ins.Op {
	case regcode.OpCallFn:
		n := int(ins.Imm)
		base := ins.A
		callee := f.Reg(base)
		args := takeArgs(f, host, base+1, n)
		v, o := ops.Call(host, callee, args, nil)
		if !o {
			return false, true, false
		}
		f.SetReg(ins.A, v, host)
		return false, true, true

	case regcode.OpCallFnKw:
		n := int(ins.Imm)
		base := ins.A
		callee := f.Reg(base)
		args := takeArgs(f, host, base+1, n)
		kwargs, o := takeKwargs(f, host, base+1+uint16(n))
		if !o {
			return false, true, false
		}
		v, o := ops.Call(host, callee, args, kwargs)
		if !o {
			return false, true, false
		}
		f.SetReg(ins.A, v, host)
		return false, true, true

	case regcode.OpCallFnVar:
		n := int(ins.Imm)
		base := ins.A
		callee := f.Reg(base)
		args := takeArgs(f, host, base+1, n)
		extra, o := takeVarargs(f, host, base+1+uint16(n))
		if !o {
			return false, true, false
		}
		v, o := ops.Call(host, callee, append(args, extra...), nil)
		if !o {
			return false, true, false
		}
		f.SetReg(ins.A, v, host)
		return false, true, true

	case regcode.OpCallFnVarKw:
		n := int(ins.Imm)
		base := ins.A
		callee := f.Reg(base)
		args := takeArgs(f, host, base+1, n)
		extra, o := takeVarargs(f, host, base+1+uint16(n))
		if !o {
			return false, true, false
		}
		kwargs, o := takeKwargs(f, host, base+2+uint16(n))
		if !o {
			return false, true, false
		}
		v, o := ops.Call(host, callee, append(args, extra...), kwargs)
		if !o {
			return false, true, false
		}
		f.SetReg(ins.A, v, host)
		return false, true, true

	case regcode.OpMakeFunction:
		n := int(ins.Imm)
		base := ins.A
		codeH := f.Reg(base)
		if codeH.Kind != hostrt.KindCode {
			_, o := ops.Fail(host, ops.ErrInternal, "InternalError", errStr("MAKE_FUNCTION on a non-code object"))
			return false, true, o
		}
		defaults := takeArgs(f, host, base+1, n)
		fn := hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindFunc, Fn: &hostrt.FuncObject{
			Code:     codeH.CodeVal,
			Defaults: defaults,
			Globals:  f.Globals,
			Name:     codeH.CodeVal.Name,
		}})
		f.SetReg(base, fn, host)
		return false, true, true

	case regcode.OpMakeClosure:
		n := int(ins.Imm)
		base := ins.A
		codeH := f.Reg(base)
		if codeH.Kind != hostrt.KindCode {
			_, o := ops.Fail(host, ops.ErrInternal, "InternalError", errStr("MAKE_CLOSURE on a non-code object"))
			return false, true, o
		}
		defaults := takeArgs(f, host, base+1, n)
		cellsH := f.Reg(base + 1 + uint16(n))
		if cellsH.Kind != hostrt.KindTuple {
			_, o := ops.Fail(host, ops.ErrInternal, "InternalError", errStr("MAKE_CLOSURE without a cell tuple"))
			return false, true, o
		}
		closure := takeItems(host, cellsH.Items)
		fn := hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindFunc, Fn: &hostrt.FuncObject{
			Code:     codeH.CodeVal,
			Defaults: defaults,
			Closure:  closure,
			Globals:  f.Globals,
			Name:     codeH.CodeVal.Name,
		}})
		f.SetReg(base, fn, host)
		return false, true, true
	}
	return false, false, true
}

// takeArgs copies n register values starting at base into a fresh
// owned slice: each one gets an extra incref since its originating
// register is left in place (stale, cleaned up by the next write to
// that depth slot or by Frame.Release) while the new slice's reference
// travels into the callee's bound parameters.
func takeArgs(f *frame.Frame, host ops.Host, base uint16, n int) []hostrt.H {
	out := make([]hostrt.H, n)
	for i := 0; i < n; i++ {
		v := f.Reg(base + uint16(i))
		host.Incref(v)
		out[i] = v
	}
	return out
}

func takeItems(host ops.Host, items []hostrt.H) []hostrt.H {
	out := make([]hostrt.H, len(items))
	for i, v := range items {
		host.Incref(v)
		out[i] = v
	}
	return out
}

// takeKwargs reads the pre-built keyword-argument dict CALL_FN_KW/
// CALL_FN_VAR_KW leaves in a single register; argument binding consumes
// it as one OrderedDict, not a names-tuple/values pair.
func takeKwargs(f *frame.Frame, host ops.Host, reg uint16) (*hostrt.OrderedDict, bool) {
	v := f.Reg(reg)
	if v.Kind != hostrt.KindDict {
		_, o := ops.Fail(host, ops.ErrInternal, "InternalError", errStr("CALL_FN_KW without a keyword dict"))
		return nil, o
	}
	return v.Dict, true
}

// takeVarargs reads the pre-built *args tuple/list CALL_FN_VAR/
// CALL_FN_VAR_KW leaves in a single register and returns its elements
// as a fresh owned slice, same ownership rule as takeArgs.
func takeVarargs(f *frame.Frame, host ops.Host, reg uint16) ([]hostrt.H, bool) {
	v := f.Reg(reg)
	if v.Kind != hostrt.KindTuple && v.Kind != hostrt.KindList {
		_, o := ops.Fail(host, ops.ErrInternal, "InternalError", errStr("CALL_FN_VAR without a varargs sequence"))
		return nil, o
	}
	return takeItems(host, v.Items), true
}
