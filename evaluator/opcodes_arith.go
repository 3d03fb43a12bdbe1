package evaluator

import (
	"github.com/ktstephano/gvm-reg/frame"
	"github.com/ktstephano/gvm-reg/hostrt"
	"github.com/ktstephano/gvm-reg/ops"
	"github.com/ktstephano/gvm-reg/regcode"
)

type binFn func(ops.Host, hostrt.H, hostrt.H) (hostrt.H, bool)
type unFn func(ops.Host, hostrt.H) (hostrt.H, bool)

var binTable = map[regcode.Op]binFn{
	regcode.OpAdd: ops.Add, regcode.OpSub: ops.Sub, regcode.OpMul: ops.Mul,
	regcode.OpDiv: ops.Div, regcode.OpFloorDiv: ops.FloorDiv, regcode.OpTrueDiv: ops.TrueDiv,
	regcode.OpMod: ops.Mod, regcode.OpPow: ops.Pow,
	regcode.OpLshift: ops.Lshift, regcode.OpRshift: ops.Rshift,
	regcode.OpBitAnd: ops.And, regcode.OpBitOr: ops.Or, regcode.OpBitXor: ops.Xor,
	regcode.OpIAdd: ops.IAdd, regcode.OpISub: ops.ISub, regcode.OpIMul: ops.IMul,
	regcode.OpIDiv: ops.IDiv, regcode.OpIFloorDiv: ops.IFloorDiv, regcode.OpIMod: ops.IMod,
	regcode.OpIPow: ops.IPow,
	regcode.OpLt:   ops.Lt, regcode.OpLe: ops.Le, regcode.OpEq: ops.Eq, regcode.OpNe: ops.Ne,
	regcode.OpGt: ops.Gt, regcode.OpGe: ops.Ge, regcode.OpIs: ops.Is, regcode.OpIsNot: ops.IsNot,
	regcode.OpIn: ops.In, regcode.OpNotIn: ops.NotIn, regcode.OpExcMatch: ops.ExcMatch,
}

var unTable = map[regcode.Op]unFn{
	regcode.OpNeg: ops.Neg, regcode.OpPos: ops.Pos, regcode.OpInvert: ops.Invert, regcode.OpNot: ops.Not,
}

// execArith handles every binary/unary arithmetic, bitwise, and rich-
// compare opcode — all of them straight-line (no branch), which is why
// handled opcodes here never set jumped.
func execArith(f *frame.Frame, host ops.Host, ins regcode.RInstr) (handled, ok bool) {
	if fn, isBin := binTable[ins.Op]; isBin {
		v, o := fn(host, f.Reg(ins.B), f.Reg(ins.C))
		if !o {
			return true, false
		}
		f.SetReg(ins.A, v, host)
		return true, true
	}
	if fn, isUn := unTable[ins.Op]; isUn {
		v, o := fn(host, f.Reg(ins.B))
		if !o {
			return true, false
		}
		f.SetReg(ins.A, v, host)
		return true, true
	}
	return false, true
}
