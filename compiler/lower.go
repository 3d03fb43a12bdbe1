package compiler

import (
	"fmt"

	"github.com/ktstephano/gvm-reg/hostrt"
	"github.com/ktstephano/gvm-reg/regcode"
)

// fixup is a not-yet-resolved jump operand: outIdx's Ext field should
// be set to the final register-instruction index corresponding to
// stackTarget once the whole function has been lowered — the same
// two-pass label resolution hostrt.Assemble uses.
type fixup struct {
	outIdx      int
	stackTarget int
}

type pendingException struct {
	startStack   int
	handlerStack int
	depth        int
}

// lowerResult is everything emit.go needs to finish producing a RegCode.
type lowerResult struct {
	instrs       []regcode.RInstr
	stackToReg   []int // len(co.Instrs)+1; stackToReg[i] = index in instrs where stack instr i begins
	fixups       []fixup
	exceptions   []pendingException
	numRegisters int
}

// lower translates every stack instruction into zero or more register
// instructions using the depth-indexed register assignment computed by
// simulate: the register holding the operand stack's depth-d slot is
// always NumLocals+d, so two different predecessors of a basic block
// agree on where a given logical stack slot lives without any separate
// reconciliation step.
func lower(co *hostrt.CodeObject, dep *depths) (*lowerResult, error) {
	numLocals := co.NumLocals()
	reg := func(d int) uint16 { return uint16(numLocals + d) }

	res := &lowerResult{stackToReg: make([]int, len(co.Instrs)+1)}
	emit := func(ri regcode.RInstr) int {
		res.instrs = append(res.instrs, ri)
		return len(res.instrs) - 1
	}
	addFixup := func(stackTarget int) {
		res.fixups = append(res.fixups, fixup{outIdx: len(res.instrs) - 1, stackTarget: stackTarget})
	}

	for i, instr := range co.Instrs {
		res.stackToReg[i] = len(res.instrs)
		d := dep.before[i]

		switch instr.Op {
		case hostrt.OpNop, hostrt.OpPopBlock, hostrt.OpEndFinally, hostrt.OpBreakLoop:
			emit(regcode.RInstr{Op: passThroughOp(instr.Op)})

		case hostrt.OpLoadConst:
			emit(regcode.RInstr{Op: regcode.OpLoadConst, A: reg(d), Ext: uint32(instr.Arg)})
		case hostrt.OpLoadFast:
			emit(regcode.RInstr{Op: regcode.OpMove, A: reg(d), B: uint16(instr.Arg)})
		case hostrt.OpStoreFast:
			emit(regcode.RInstr{Op: regcode.OpMove, A: uint16(instr.Arg), B: reg(d - 1)})
		case hostrt.OpLoadName:
			emit(regcode.RInstr{Op: regcode.OpLoadName, A: reg(d), Ext: uint32(instr.Arg)})
		case hostrt.OpStoreName:
			emit(regcode.RInstr{Op: regcode.OpStoreName, B: reg(d - 1), Ext: uint32(instr.Arg)})
		case hostrt.OpLoadGlobal:
			emit(regcode.RInstr{Op: regcode.OpLoadGlobal, A: reg(d), Ext: uint32(instr.Arg)})
		case hostrt.OpStoreGlobal:
			emit(regcode.RInstr{Op: regcode.OpStoreGlobal, B: reg(d - 1), Ext: uint32(instr.Arg)})
		case hostrt.OpLoadDeref:
			emit(regcode.RInstr{Op: regcode.OpLoadDeref, A: reg(d), Ext: uint32(instr.Arg)})
		case hostrt.OpStoreDeref:
			emit(regcode.RInstr{Op: regcode.OpStoreDeref, B: reg(d - 1), Ext: uint32(instr.Arg)})
		case hostrt.OpLoadClosure:
			emit(regcode.RInstr{Op: regcode.OpLoadClosure, A: reg(d), Ext: uint32(instr.Arg)})
		case hostrt.OpLoadAttr:
			emit(regcode.RInstr{Op: regcode.OpGetAttr, A: reg(d - 1), B: reg(d - 1), Ext: uint32(instr.Arg)})
		case hostrt.OpStoreAttr:
			emit(regcode.RInstr{Op: regcode.OpSetAttr, B: reg(d - 1), C: reg(d - 2), Ext: uint32(instr.Arg)})
		case hostrt.OpDeleteAttr:
			emit(regcode.RInstr{Op: regcode.OpDelAttr, B: reg(d - 1), Ext: uint32(instr.Arg)})

		case hostrt.OpBinaryAdd, hostrt.OpBinarySub, hostrt.OpBinaryMul, hostrt.OpBinaryDiv,
			hostrt.OpBinaryFloorDiv, hostrt.OpBinaryTrueDiv, hostrt.OpBinaryMod, hostrt.OpBinaryPow,
			hostrt.OpBinaryLshift, hostrt.OpBinaryRshift, hostrt.OpBinaryAnd, hostrt.OpBinaryOr,
			hostrt.OpBinaryXor, hostrt.OpInplaceAdd, hostrt.OpInplaceSub, hostrt.OpInplaceMul,
			hostrt.OpInplaceDiv, hostrt.OpInplaceFloorDiv, hostrt.OpInplaceMod, hostrt.OpInplacePow,
			hostrt.OpCompareLt, hostrt.OpCompareLe, hostrt.OpCompareEq, hostrt.OpCompareNe,
			hostrt.OpCompareGt, hostrt.OpCompareGe, hostrt.OpCompareIs, hostrt.OpCompareIsNot,
			hostrt.OpCompareIn, hostrt.OpCompareNotIn, hostrt.OpCompareExcMatch:
			emit(regcode.RInstr{Op: binOp(instr.Op), A: reg(d - 2), B: reg(d - 2), C: reg(d - 1)})

		case hostrt.OpUnaryNeg, hostrt.OpUnaryPos, hostrt.OpUnaryInvert, hostrt.OpUnaryNot:
			emit(regcode.RInstr{Op: unOp(instr.Op), A: reg(d - 1), B: reg(d - 1)})

		case hostrt.OpBinarySubscr:
			emit(regcode.RInstr{Op: regcode.OpGetItem, A: reg(d - 2), B: reg(d - 2), C: reg(d - 1)})
		case hostrt.OpStoreSubscr:
			emit(regcode.RInstr{Op: regcode.OpSetItem, A: reg(d - 3), B: reg(d - 2), C: reg(d - 1)})
		case hostrt.OpDeleteSubscr:
			emit(regcode.RInstr{Op: regcode.OpDelItem, A: reg(d - 2), B: reg(d - 1)})
		case hostrt.OpBuildSlice:
			n := int(instr.Arg)
			emit(regcode.RInstr{Op: regcode.OpBuildSlice, A: reg(d - n), Imm: uint16(n)})

		case hostrt.OpGetIter:
			emit(regcode.RInstr{Op: regcode.OpGetIter, A: reg(d - 1), B: reg(d - 1)})
		case hostrt.OpForIter:
			idx := emit(regcode.RInstr{Op: regcode.OpForIter, A: reg(d), B: reg(d - 1)})
			_ = idx
			addFixup(int(instr.Arg))

		case hostrt.OpPopTop:
			emit(regcode.RInstr{Op: regcode.OpClearReg, A: reg(d - 1)})
		case hostrt.OpDupTop:
			emit(regcode.RInstr{Op: regcode.OpMove, A: reg(d), B: reg(d - 1)})
		case hostrt.OpRotTwo:
			emit(regcode.RInstr{Op: regcode.OpXchg, A: reg(d - 1), B: reg(d - 2)})
		case hostrt.OpRotThree:
			emit(regcode.RInstr{Op: regcode.OpXchg, A: reg(d - 1), B: reg(d - 2)})
			emit(regcode.RInstr{Op: regcode.OpXchg, A: reg(d - 2), B: reg(d - 3)})

		case hostrt.OpJumpAbsolute:
			emit(regcode.RInstr{Op: regcode.OpJumpAbs})
			addFixup(int(instr.Arg))
		case hostrt.OpJumpIfTrue:
			emit(regcode.RInstr{Op: regcode.OpJumpIfTrue, B: reg(d - 1)})
			addFixup(int(instr.Arg))
		case hostrt.OpJumpIfFalse:
			emit(regcode.RInstr{Op: regcode.OpJumpIfFalse, B: reg(d - 1)})
			addFixup(int(instr.Arg))
		case hostrt.OpPopJumpIfTrue:
			emit(regcode.RInstr{Op: regcode.OpJumpIfTruePop, B: reg(d - 1)})
			addFixup(int(instr.Arg))
		case hostrt.OpPopJumpIfFalse:
			emit(regcode.RInstr{Op: regcode.OpJumpIfFalsePop, B: reg(d - 1)})
			addFixup(int(instr.Arg))

		case hostrt.OpSetupLoop:
			emit(regcode.RInstr{Op: regcode.OpSetupLoop, Imm: uint16(d)})
			addFixup(int(instr.Arg))
		case hostrt.OpSetupExcept:
			emit(regcode.RInstr{Op: regcode.OpSetupExcept, Imm: uint16(d)})
			addFixup(int(instr.Arg))
			res.exceptions = append(res.exceptions, pendingException{startStack: i + 1, handlerStack: int(instr.Arg), depth: d})
		case hostrt.OpSetupFinally:
			emit(regcode.RInstr{Op: regcode.OpSetupFinally, Imm: uint16(d)})
			addFixup(int(instr.Arg))
			res.exceptions = append(res.exceptions, pendingException{startStack: i + 1, handlerStack: int(instr.Arg), depth: d})
		case hostrt.OpContinueLoop:
			emit(regcode.RInstr{Op: regcode.OpContinueLoop})
			addFixup(int(instr.Arg))

		case hostrt.OpRaiseVarargs:
			n := int(instr.Arg)
			base := uint16(0)
			if n > 0 {
				base = reg(d - n)
			}
			emit(regcode.RInstr{Op: regcode.OpRaise, A: base, Imm: uint16(n)})
		case hostrt.OpExcBind:
			emit(regcode.RInstr{Op: regcode.OpPop, A: reg(d), Imm: 1})
		case hostrt.OpExcDiscard:
			emit(regcode.RInstr{Op: regcode.OpPop, Imm: 0})

		case hostrt.OpCallFunction:
			n := int(instr.Arg)
			base := reg(d - n - 1)
			emit(regcode.RInstr{Op: regcode.OpCallFn, A: base, B: base, Imm: uint16(n)})
		case hostrt.OpCallFunctionKw:
			n := int(instr.Arg)
			base := reg(d - n - 2)
			emit(regcode.RInstr{Op: regcode.OpCallFnKw, A: base, B: base, Imm: uint16(n)})
		case hostrt.OpCallFunctionVar:
			n := int(instr.Arg)
			base := reg(d - n - 2)
			emit(regcode.RInstr{Op: regcode.OpCallFnVar, A: base, B: base, Imm: uint16(n)})
		case hostrt.OpCallFunctionVarKw:
			n := int(instr.Arg)
			base := reg(d - n - 3)
			emit(regcode.RInstr{Op: regcode.OpCallFnVarKw, A: base, B: base, Imm: uint16(n)})
		case hostrt.OpReturnValue:
			emit(regcode.RInstr{Op: regcode.OpReturnValue, B: reg(d - 1)})
		case hostrt.OpYieldValue:
			emit(regcode.RInstr{Op: regcode.OpYieldValue, A: reg(d - 1), B: reg(d - 1)})

		case hostrt.OpBuildTuple:
			n := int(instr.Arg)
			emit(regcode.RInstr{Op: regcode.OpBuildTuple, A: reg(d - n), Imm: uint16(n)})
		case hostrt.OpBuildList:
			n := int(instr.Arg)
			emit(regcode.RInstr{Op: regcode.OpBuildList, A: reg(d - n), Imm: uint16(n)})
		case hostrt.OpBuildSet:
			n := int(instr.Arg)
			emit(regcode.RInstr{Op: regcode.OpBuildSet, A: reg(d - n), Imm: uint16(n)})
		case hostrt.OpBuildDict:
			n := int(instr.Arg)
			emit(regcode.RInstr{Op: regcode.OpBuildDict, A: reg(d - 2*n), Imm: uint16(n)})
		case hostrt.OpMakeFunction:
			n := int(instr.Arg)
			emit(regcode.RInstr{Op: regcode.OpMakeFunction, A: reg(d - n - 1), Imm: uint16(n)})
		case hostrt.OpMakeClosure:
			n := int(instr.Arg)
			emit(regcode.RInstr{Op: regcode.OpMakeClosure, A: reg(d - n - 2), Imm: uint16(n)})
		case hostrt.OpUnpackSequence:
			n := int(instr.Arg)
			emit(regcode.RInstr{Op: regcode.OpUnpackSeq, A: reg(d - 1), Imm: uint16(n)})

		default:
			return nil, fmt.Errorf("compiler: unsupported stack opcode %d", instr.Op)
		}
	}
	res.stackToReg[len(co.Instrs)] = len(res.instrs)
	res.numRegisters = numLocals + dep.maxDepth + 1 // +1: scratch slot, reserved for future use
	return res, nil
}

func passThroughOp(op hostrt.StackOp) regcode.Op {
	switch op {
	case hostrt.OpPopBlock:
		return regcode.OpPopBlock
	case hostrt.OpEndFinally:
		return regcode.OpEndFinally
	case hostrt.OpBreakLoop:
		return regcode.OpBreakLoop
	default:
		return regcode.OpNop
	}
}

func binOp(op hostrt.StackOp) regcode.Op {
	switch op {
	case hostrt.OpBinaryAdd:
		return regcode.OpAdd
	case hostrt.OpBinarySub:
		return regcode.OpSub
	case hostrt.OpBinaryMul:
		return regcode.OpMul
	case hostrt.OpBinaryDiv:
		return regcode.OpDiv
	case hostrt.OpBinaryFloorDiv:
		return regcode.OpFloorDiv
	case hostrt.OpBinaryTrueDiv:
		return regcode.OpTrueDiv
	case hostrt.OpBinaryMod:
		return regcode.OpMod
	case hostrt.OpBinaryPow:
		return regcode.OpPow
	case hostrt.OpBinaryLshift:
		return regcode.OpLshift
	case hostrt.OpBinaryRshift:
		return regcode.OpRshift
	case hostrt.OpBinaryAnd:
		return regcode.OpBitAnd
	case hostrt.OpBinaryOr:
		return regcode.OpBitOr
	case hostrt.OpBinaryXor:
		return regcode.OpBitXor
	case hostrt.OpInplaceAdd:
		return regcode.OpIAdd
	case hostrt.OpInplaceSub:
		return regcode.OpISub
	case hostrt.OpInplaceMul:
		return regcode.OpIMul
	case hostrt.OpInplaceDiv:
		return regcode.OpIDiv
	case hostrt.OpInplaceFloorDiv:
		return regcode.OpIFloorDiv
	case hostrt.OpInplaceMod:
		return regcode.OpIMod
	case hostrt.OpInplacePow:
		return regcode.OpIPow
	case hostrt.OpCompareLt:
		return regcode.OpLt
	case hostrt.OpCompareLe:
		return regcode.OpLe
	case hostrt.OpCompareEq:
		return regcode.OpEq
	case hostrt.OpCompareNe:
		return regcode.OpNe
	case hostrt.OpCompareGt:
		return regcode.OpGt
	case hostrt.OpCompareGe:
		return regcode.OpGe
	case hostrt.OpCompareIs:
		return regcode.OpIs
	case hostrt.OpCompareIsNot:
		return regcode.OpIsNot
	case hostrt.OpCompareIn:
		return regcode.OpIn
	case hostrt.OpCompareNotIn:
		return regcode.OpNotIn
	case hostrt.OpCompareExcMatch:
		return regcode.OpExcMatch
	default:
		return regcode.OpNop
	}
}

func unOp(op hostrt.StackOp) regcode.Op {
	switch op {
	case hostrt.OpUnaryNeg:
		return regcode.OpNeg
	case hostrt.OpUnaryPos:
		return regcode.OpPos
	case hostrt.OpUnaryInvert:
		return regcode.OpInvert
	case hostrt.OpUnaryNot:
		return regcode.OpNot
	default:
		return regcode.OpNop
	}
}
