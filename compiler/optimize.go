package compiler

import (
	"math/big"

	"github.com/ktstephano/gvm-reg/hostrt"
	"github.com/ktstephano/gvm-reg/regcode"
)

func newBigInt(v int64) *big.Int { return big.NewInt(v) }

// optimize runs the fixed-point peephole passes over an already
// jump-resolved instruction stream. Every pass neutralizes an
// instruction to NOP rather than physically removing it: removing an
// instruction would shift every later index and require re-walking
// every jump/exception-table entry a second time, which is unnecessary
// cost for fixture-scale code objects. A NOP costs one dispatch but
// changes nothing observable.
//
// Passes are block-local: they never reason across a basic-block
// boundary, since depth-indexed register reuse at merge points makes
// cross-block liveness reasoning considerably more delicate than the
// payoff justifies here.
func optimize(rc *regcode.RegCode) {
	owner := blockOwnerOf(rc)
	for {
		changed := false
		changed = deadStorePass(rc, owner) || changed
		changed = copyPropPass(rc, owner) || changed
		changed = constFoldPass(rc, owner) || changed
		if !changed {
			break
		}
	}
	fuseCompareBranchPass(rc, owner)
	coalesceJumps(rc)
}

// compareOps is the set of rich-compare opcodes fuseCompareBranchPass
// looks for immediately before a POP-consuming conditional jump.
var compareOps = map[regcode.Op]bool{
	regcode.OpLt: true, regcode.OpLe: true, regcode.OpEq: true, regcode.OpNe: true,
	regcode.OpGt: true, regcode.OpGe: true, regcode.OpIs: true, regcode.OpIsNot: true,
	regcode.OpIn: true, regcode.OpNotIn: true, regcode.OpExcMatch: true,
}

// fuseCompareBranchPass replaces a `CMP rA, rB -> rC; JUMP_IF_*_POP rC`
// pair with a single fused conditional-branch instruction, so the
// Evaluator never materializes the intermediate bool. Runs once after
// the copy-prop/dead-store/const-fold fixed point, since fusion only
// recognizes the exact two-instruction shape those passes converge to —
// fusing first would hide dead-store and copy-prop opportunities on the
// compare's destination register from the earlier passes.
func fuseCompareBranchPass(rc *regcode.RegCode, owner []int) {
	for i := 0; i+1 < len(rc.Instrs); i++ {
		cmp := rc.Instrs[i]
		if !compareOps[cmp.Op] {
			continue
		}
		// i+1 must be in the same block as i: if it is itself a jump
		// target, some other path enters directly on the pop-jump with
		// the compare's bool already sitting in cmp.A, and fusing would
		// delete that instruction out from under it.
		if owner[i+1] != owner[i] {
			continue
		}
		br := rc.Instrs[i+1]
		var fused regcode.Op
		switch br.Op {
		case regcode.OpJumpIfTruePop:
			fused = regcode.OpCmpJumpIfTrue
		case regcode.OpJumpIfFalsePop:
			fused = regcode.OpCmpJumpIfFalse
		default:
			continue
		}
		if br.B != cmp.A {
			continue
		}
		rc.Instrs[i] = regcode.RInstr{Op: fused, B: cmp.B, C: cmp.C, Imm: uint16(cmp.Op), Ext: br.Ext}
		rc.Instrs[i+1] = regcode.RInstr{Op: regcode.OpNop}
	}
}

// blockOwnerOf computes block membership directly from the final
// (post-jump-resolution) instruction stream, independent of blocks.go
// (which operates on the pre-lowering stack form).
func blockOwnerOf(rc *regcode.RegCode) []int {
	n := len(rc.Instrs)
	isLeader := make([]bool, n+1)
	isLeader[0] = true
	for i, ins := range rc.Instrs {
		if ins.Op.IsJump() {
			if int(ins.Ext) <= n {
				isLeader[ins.Ext] = true
			}
		}
		switch ins.Op {
		case regcode.OpJumpAbs, regcode.OpReturnValue, regcode.OpRaise,
			regcode.OpBreakLoop, regcode.OpContinueLoop:
			if i+1 < n {
				isLeader[i+1] = true
			}
		}
	}
	owner := make([]int, n)
	b := -1
	for i := 0; i < n; i++ {
		if isLeader[i] {
			b++
		}
		owner[i] = b
	}
	return owner
}

// deadStorePass drops a pure, side-effect-free instruction whose
// destination register is overwritten before any instruction reads it,
// within the same block.
func deadStorePass(rc *regcode.RegCode, owner []int) bool {
	changed := false
	for i, ins := range rc.Instrs {
		if ins.Op == regcode.OpNop || !ins.Op.IsPure() {
			continue
		}
		if readBeforeNextWrite(rc, owner, i, ins.A) {
			continue
		}
		rc.Instrs[i] = regcode.RInstr{Op: regcode.OpNop}
		changed = true
	}
	return changed
}

// readBeforeNextWrite scans forward within i's block for a read of reg
// before any instruction overwrites it. A block that ends with reg still
// holding the value counts as a read: the pass is block-local, so a
// successor block may legitimately consume it (a local assigned just
// before a loop header, say) and the store must survive.
func readBeforeNextWrite(rc *regcode.RegCode, owner []int, i int, reg uint16) bool {
	for j := i + 1; j < len(rc.Instrs) && owner[j] == owner[i]; j++ {
		ins := rc.Instrs[j]
		if reads(ins, reg) {
			return true
		}
		if writesOnly(ins, reg) {
			return false
		}
	}
	return true
}

// operandSpan returns the contiguous register range [base, base+n) an
// instruction consumes when its operands are laid out as a span rather
// than named in B/C: the CALL_FN family, the BUILD_* constructors,
// MAKE_FUNCTION/MAKE_CLOSURE, and RAISE. UNPACK_SEQ reads only its
// source slot (it writes the rest of its range).
func operandSpan(ins regcode.RInstr) (uint16, int, bool) {
	n := int(ins.Imm)
	switch ins.Op {
	case regcode.OpCallFn:
		return ins.A, n + 1, true
	case regcode.OpCallFnKw, regcode.OpCallFnVar:
		return ins.A, n + 2, true
	case regcode.OpCallFnVarKw:
		return ins.A, n + 3, true
	case regcode.OpBuildTuple, regcode.OpBuildList, regcode.OpBuildSet, regcode.OpBuildSlice:
		return ins.A, n, true
	case regcode.OpBuildDict:
		return ins.A, 2 * n, true
	case regcode.OpMakeFunction:
		return ins.A, n + 1, true
	case regcode.OpMakeClosure:
		return ins.A, n + 2, true
	case regcode.OpRaise:
		return ins.A, n, true
	case regcode.OpUnpackSeq:
		return ins.A, 1, true
	}
	return 0, 0, false
}

func reads(ins regcode.RInstr, reg uint16) bool {
	if base, n, spanned := operandSpan(ins); spanned {
		return reg >= base && int(reg) < int(base)+n
	}
	switch ins.Op {
	case regcode.OpMove, regcode.OpXchg:
		return ins.B == reg || (ins.Op == regcode.OpXchg && ins.A == reg)
	case regcode.OpLoadConst, regcode.OpLoadName, regcode.OpLoadGlobal,
		regcode.OpLoadDeref, regcode.OpLoadClosure:
		return false
	case regcode.OpClearReg:
		return ins.A == reg
	default:
		return ins.A == reg || ins.B == reg || ins.C == reg
	}
}

// writesOnly reports whether ins overwrites reg as its sole destination
// without also reading the prior value (so the earlier producer's value
// is provably dead from this point on).
func writesOnly(ins regcode.RInstr, reg uint16) bool {
	switch ins.Op {
	case regcode.OpMove, regcode.OpLoadConst, regcode.OpLoadName, regcode.OpLoadGlobal,
		regcode.OpLoadDeref, regcode.OpLoadClosure:
		return ins.A == reg
	default:
		return false
	}
}

// copyPropPass rewrites a read of a register that was last assigned by
// an unconditional MOVE, earlier in the same block, to read the MOVE's
// source directly — letting the now-redundant MOVE fall to
// deadStorePass on the next fixed-point iteration.
func copyPropPass(rc *regcode.RegCode, owner []int) bool {
	changed := false
	for i, ins := range rc.Instrs {
		if ins.Op != regcode.OpMove {
			continue
		}
		src, dst := ins.B, ins.A
		for j := i + 1; j < len(rc.Instrs) && owner[j] == owner[i]; j++ {
			cur := rc.Instrs[j]
			if writesOnly(cur, src) || touchesAsDest(cur, src) {
				break
			}
			// The popping jumps and FOR_ITER release and clear their B
			// register; pointing them at src would consume the source.
			consumesB := cur.Op == regcode.OpJumpIfTruePop || cur.Op == regcode.OpJumpIfFalsePop || cur.Op == regcode.OpForIter
			if !consumesB && (cur.Op != regcode.OpMove || cur.A != dst) {
				if rewriteRead(&rc.Instrs[j], dst, src) {
					changed = true
				}
			}
			if touchesAsDest(cur, dst) {
				break
			}
		}
	}
	return changed
}

func touchesAsDest(ins regcode.RInstr, reg uint16) bool {
	switch ins.Op {
	case regcode.OpXchg:
		return ins.A == reg || ins.B == reg
	case regcode.OpClearReg:
		return ins.A == reg
	case regcode.OpUnpackSeq:
		// writes its whole destination range, not just A
		return reg >= ins.A && int(reg) < int(ins.A)+int(ins.Imm)
	default:
		return ins.A == reg
	}
}

func rewriteRead(ins *regcode.RInstr, from, to uint16) bool {
	changed := false
	if ins.B == from && ins.Op != regcode.OpLoadConst {
		ins.B = to
		changed = true
	}
	if ins.C == from {
		ins.C = to
		changed = true
	}
	return changed
}

// constFoldPass folds a pure arithmetic instruction whose two operands
// were each produced by an immediately-reachable LOAD_CONST of a small
// integer, replacing it with a single LOAD_CONST of the computed
// result. Anything that could raise (division, shifts with a negative
// count, overflow of the fixed-width cases) is left for runtime, since
// folding it here would require re-deriving OPS' exact error text at
// compile time.
func constFoldPass(rc *regcode.RegCode, owner []int) bool {
	changed := false
	for i, ins := range rc.Instrs {
		if ins.Op != regcode.OpAdd && ins.Op != regcode.OpSub && ins.Op != regcode.OpMul {
			continue
		}
		av, aok := constIntBefore(rc, owner, i, ins.B)
		bv, bok := constIntBefore(rc, owner, i, ins.C)
		if !aok || !bok {
			continue
		}
		var result int64
		switch ins.Op {
		case regcode.OpAdd:
			result = av + bv
		case regcode.OpSub:
			result = av - bv
		case regcode.OpMul:
			result = av * bv
		}
		if result > 1<<30 || result < -(1<<30) {
			continue // stay clear of overflow; let the runtime big.Int path handle it
		}
		idx := internConst(rc, result)
		rc.Instrs[i] = regcode.RInstr{Op: regcode.OpLoadConst, A: ins.A, Ext: uint32(idx)}
		changed = true
	}
	return changed
}

// constIntBefore reports the small-integer constant reg holds at
// instruction i, if its value traces back to a LOAD_CONST of a
// *big.Int-backed constant within [0, i) in the same block with no
// intervening write.
func constIntBefore(rc *regcode.RegCode, owner []int, i int, reg uint16) (int64, bool) {
	for j := i - 1; j >= 0 && owner[j] == owner[i]; j-- {
		ins := rc.Instrs[j]
		if ins.Op == regcode.OpLoadConst && ins.A == reg {
			return constAsInt64(rc, int(ins.Ext))
		}
		if writesOnly(ins, reg) || touchesAsDest(ins, reg) {
			return 0, false
		}
	}
	return 0, false
}

func internConst(rc *regcode.RegCode, v int64) int {
	for i, c := range rc.Consts {
		if n, ok := asInt64(c); ok && n == v {
			return i
		}
	}
	rc.Consts = append(rc.Consts, hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindInt, Int: newBigInt(v)}))
	return len(rc.Consts) - 1
}

func constAsInt64(rc *regcode.RegCode, idx int) (int64, bool) {
	if idx < 0 || idx >= len(rc.Consts) {
		return 0, false
	}
	return asInt64(rc.Consts[idx])
}

func asInt64(c interface{}) (int64, bool) {
	h, ok := c.(hostrt.H)
	if !ok || h.Kind != hostrt.KindInt || !h.Int.IsInt64() {
		return 0, false
	}
	return h.Int.Int64(), true
}

// coalesceJumps neutralizes an unconditional jump whose target is the
// very next instruction — the degenerate case of block coalescing: two
// blocks joined only by a fallthrough-equivalent jump collapse into
// one.
func coalesceJumps(rc *regcode.RegCode) {
	for i, ins := range rc.Instrs {
		if ins.Op == regcode.OpJumpAbs && int(ins.Ext) == i+1 {
			rc.Instrs[i] = regcode.RInstr{Op: regcode.OpNop}
		}
	}
}
