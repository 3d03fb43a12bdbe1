package compiler

import "github.com/ktstephano/gvm-reg/hostrt"

// leaders returns the sorted, de-duplicated set of stack-instruction
// indices that begin a basic block: index 0, every jump target, and
// every instruction immediately following a jump/return/raise.
func leaders(co *hostrt.CodeObject) []int {
	set := map[int]bool{0: true}
	for i, instr := range co.Instrs {
		if target, ok := jumpTarget(instr); ok {
			set[target] = true
		}
		if isBlockEnd(instr.Op) && i+1 < len(co.Instrs) {
			set[i+1] = true
		}
	}
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	// insertion sort: basic-block counts are small (fixture-scale code),
	// and this keeps the package free of a sort.Ints import for one call site.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// jumpTarget returns the stack-instruction index an instruction can
// transfer control to (besides falling through), if any.
func jumpTarget(instr hostrt.Instr) (int, bool) {
	switch instr.Op {
	case hostrt.OpJumpAbsolute, hostrt.OpJumpIfTrue, hostrt.OpJumpIfFalse,
		hostrt.OpPopJumpIfTrue, hostrt.OpPopJumpIfFalse, hostrt.OpForIter,
		hostrt.OpSetupExcept, hostrt.OpSetupFinally, hostrt.OpContinueLoop:
		return int(instr.Arg), true
	case hostrt.OpSetupLoop:
		return int(instr.Arg), true
	}
	return 0, false
}

func isBlockEnd(op hostrt.StackOp) bool {
	switch op {
	case hostrt.OpJumpAbsolute, hostrt.OpPopJumpIfTrue, hostrt.OpPopJumpIfFalse,
		hostrt.OpJumpIfTrue, hostrt.OpJumpIfFalse, hostrt.OpReturnValue,
		hostrt.OpRaiseVarargs, hostrt.OpBreakLoop, hostrt.OpContinueLoop,
		hostrt.OpYieldValue:
		return true
	}
	return false
}

// blockOf maps every instruction index to the index (in leaders) of the
// block it belongs to.
func blockOf(leaders []int, n int) []int {
	owner := make([]int, n)
	b := 0
	for i := 0; i < n; i++ {
		for b+1 < len(leaders) && leaders[b+1] <= i {
			b++
		}
		owner[i] = b
	}
	return owner
}
