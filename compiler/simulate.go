package compiler

import (
	"fmt"

	"github.com/ktstephano/gvm-reg/hostrt"
)

// depths holds, for every stack-instruction index (plus one virtual
// "off the end" index at len(Instrs)), the abstract operand-stack depth
// in effect immediately before that instruction executes. Because every
// block-entry point is reached with a depth that is a pure function of
// control flow (never of which predecessor was taken — the canonical
// register-per-stack-depth mapping), recording one depth per index is
// enough to assign registers with no further reconciliation at merges.
type depths struct {
	before   []int
	maxDepth int
}

// simulate computes depths via a worklist fixed-point over the stack
// instruction graph.
// A depth conflict at a merge point (two predecessors disagreeing on
// depth) is an Internal compiler error: it means the host CodeObject is
// not well-formed stack bytecode.
func simulate(co *hostrt.CodeObject) (*depths, error) {
	n := len(co.Instrs)
	before := make([]int, n+1)
	seen := make([]bool, n+1)
	before[0], seen[0] = 0, true

	queue := []int{0}
	maxDepth := 0

	set := func(idx, d int) error {
		if idx > n {
			return fmt.Errorf("compiler: jump target %d out of range", idx)
		}
		if seen[idx] {
			if before[idx] != d {
				return fmt.Errorf("compiler: inconsistent stack depth at instruction %d (%d vs %d)", idx, before[idx], d)
			}
			return nil
		}
		before[idx], seen[idx] = d, true
		queue = append(queue, idx)
		return nil
	}

	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		if i >= n {
			continue // virtual exit node
		}
		d := before[i]
		if d > maxDepth {
			maxDepth = d
		}
		instr := co.Instrs[i]
		pop, push, terminal := stackEffect(instr)

		if instr.Op == hostrt.OpForIter {
			if err := set(i+1, d+1); err != nil {
				return nil, err
			}
			if err := set(int(instr.Arg), d-1); err != nil {
				return nil, err
			}
			continue
		}

		after := d - pop + push
		if after < 0 {
			return nil, fmt.Errorf("compiler: stack underflow at instruction %d (%d)", i, instr.Op)
		}
		if after > maxDepth {
			maxDepth = after
		}

		if target, ok := jumpTarget(instr); ok {
			tgtDepth := after
			switch instr.Op {
			case hostrt.OpSetupLoop, hostrt.OpSetupExcept, hostrt.OpSetupFinally:
				// Handler/loop-exit entry depth equals the depth recorded
				// when the block was set up, not the post-instruction
				// depth (both are equal here since these ops are net
				// zero, but stated explicitly for clarity).
				tgtDepth = d
			}
			if err := set(target, tgtDepth); err != nil {
				return nil, err
			}
		}
		if !terminal && instr.Op != hostrt.OpJumpAbsolute && instr.Op != hostrt.OpContinueLoop {
			if err := set(i+1, after); err != nil {
				return nil, err
			}
		}
	}

	return &depths{before: before, maxDepth: maxDepth}, nil
}

// stackEffect returns the (pop, push) counts for every opcode except
// OpForIter, whose effect depends on which edge is taken and is handled
// directly by simulate. terminal is true for instructions with no
// fallthrough successor (their only edges, if any, are explicit jump
// targets).
func stackEffect(instr hostrt.Instr) (pop, push int, terminal bool) {
	switch instr.Op {
	case hostrt.OpNop, hostrt.OpPopBlock, hostrt.OpRotTwo, hostrt.OpRotThree,
		hostrt.OpEndFinally, hostrt.OpExcDiscard:
		return 0, 0, false
	case hostrt.OpLoadConst, hostrt.OpLoadFast, hostrt.OpLoadName, hostrt.OpLoadGlobal,
		hostrt.OpLoadDeref, hostrt.OpLoadClosure, hostrt.OpExcBind:
		return 0, 1, false
	case hostrt.OpStoreFast, hostrt.OpStoreName, hostrt.OpStoreGlobal, hostrt.OpStoreDeref,
		hostrt.OpPopTop, hostrt.OpDeleteAttr:
		return 1, 0, false
	case hostrt.OpLoadAttr, hostrt.OpUnaryNeg, hostrt.OpUnaryPos, hostrt.OpUnaryInvert,
		hostrt.OpUnaryNot, hostrt.OpGetIter, hostrt.OpDupTop, hostrt.OpYieldValue:
		return 1, 1, false
	case hostrt.OpStoreAttr:
		return 2, 0, false
	case hostrt.OpBinaryAdd, hostrt.OpBinarySub, hostrt.OpBinaryMul, hostrt.OpBinaryDiv,
		hostrt.OpBinaryFloorDiv, hostrt.OpBinaryTrueDiv, hostrt.OpBinaryMod, hostrt.OpBinaryPow,
		hostrt.OpBinaryLshift, hostrt.OpBinaryRshift, hostrt.OpBinaryAnd, hostrt.OpBinaryOr,
		hostrt.OpBinaryXor, hostrt.OpInplaceAdd, hostrt.OpInplaceSub, hostrt.OpInplaceMul,
		hostrt.OpInplaceDiv, hostrt.OpInplaceFloorDiv, hostrt.OpInplaceMod, hostrt.OpInplacePow,
		hostrt.OpCompareLt, hostrt.OpCompareLe, hostrt.OpCompareEq, hostrt.OpCompareNe,
		hostrt.OpCompareGt, hostrt.OpCompareGe, hostrt.OpCompareIs, hostrt.OpCompareIsNot,
		hostrt.OpCompareIn, hostrt.OpCompareNotIn, hostrt.OpCompareExcMatch, hostrt.OpBinarySubscr:
		return 2, 1, false
	case hostrt.OpStoreSubscr:
		return 3, 0, false
	case hostrt.OpDeleteSubscr:
		return 2, 0, false
	case hostrt.OpBuildSlice:
		return int(instr.Arg), 1, false
	case hostrt.OpJumpAbsolute:
		return 0, 0, true
	case hostrt.OpJumpIfTrue, hostrt.OpJumpIfFalse:
		return 0, 0, false
	case hostrt.OpPopJumpIfTrue, hostrt.OpPopJumpIfFalse:
		return 1, 0, false
	case hostrt.OpBreakLoop:
		return 0, 0, true
	case hostrt.OpContinueLoop:
		return 0, 0, true
	case hostrt.OpRaiseVarargs:
		return int(instr.Arg), 0, true
	case hostrt.OpCallFunction:
		return int(instr.Arg) + 1, 1, false
	case hostrt.OpCallFunctionKw, hostrt.OpCallFunctionVar:
		return int(instr.Arg) + 2, 1, false
	case hostrt.OpCallFunctionVarKw:
		return int(instr.Arg) + 3, 1, false
	case hostrt.OpReturnValue:
		return 1, 0, true
	case hostrt.OpBuildTuple, hostrt.OpBuildList, hostrt.OpBuildSet:
		return int(instr.Arg), 1, false
	case hostrt.OpBuildDict:
		return int(instr.Arg) * 2, 1, false
	case hostrt.OpMakeFunction:
		return int(instr.Arg) + 1, 1, false
	case hostrt.OpMakeClosure:
		return int(instr.Arg) + 2, 1, false
	case hostrt.OpUnpackSequence:
		return 1, int(instr.Arg), false
	default:
		return 0, 0, false
	}
}
