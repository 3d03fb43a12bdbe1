package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ktstephano/gvm-reg/hostrt"
	"github.com/ktstephano/gvm-reg/regcode"
)

const countdownSrc = `
.name countdown
.args 1
.locals n, total
LOAD_CONST 0
STORE_FAST total
loop:
LOAD_FAST n
LOAD_CONST 0
COMPARE_GT
POP_JUMP_IF_FALSE done
LOAD_FAST total
LOAD_FAST n
BINARY_ADD
STORE_FAST total
LOAD_FAST n
LOAD_CONST 1
BINARY_SUB
STORE_FAST n
JUMP_ABSOLUTE loop
done:
LOAD_FAST total
RETURN_VALUE
`

func assemble(t *testing.T, src string) *hostrt.CodeObject {
	t.Helper()
	co, err := hostrt.Assemble(src)
	require.NoError(t, err)
	return co
}

// Two independent Compilers over the same CodeObject must produce the
// same instruction stream, register count, and exception table.
func TestCompileDeterminism(t *testing.T) {
	co := assemble(t, countdownSrc)

	a, err := New().Compile(co)
	require.NoError(t, err)
	b, err := New().Compile(co)
	require.NoError(t, err)

	require.Equal(t, a.Instrs, b.Instrs)
	require.Equal(t, a.NumRegisters, b.NumRegisters)
	require.Equal(t, a.Exceptions, b.Exceptions)
	require.Equal(t, a.Arity, b.Arity)
}

// The same Compiler must hand back the identical *RegCode on a second
// Compile of the same CodeObject, not a recompilation.
func TestCompileMemoizesByIdentity(t *testing.T) {
	co := assemble(t, countdownSrc)
	c := New()

	first, err := c.Compile(co)
	require.NoError(t, err)
	second, err := c.Compile(co)
	require.NoError(t, err)
	require.Same(t, first, second)
}

// COMPARE_*; POP_JUMP_IF_* pairs inside one block fuse into a single
// conditional-branch instruction; the intermediate bool is never
// materialized.
func TestCompareBranchFusion(t *testing.T) {
	rc, err := New().Compile(assemble(t, countdownSrc))
	require.NoError(t, err)

	fused := 0
	for _, ins := range rc.Instrs {
		switch ins.Op {
		case regcode.OpCmpJumpIfTrue, regcode.OpCmpJumpIfFalse:
			fused++
			require.Equal(t, regcode.Op(ins.Imm), regcode.OpGt)
		case regcode.OpJumpIfTruePop, regcode.OpJumpIfFalsePop:
			t.Fatalf("unfused pop-jump survived next to its compare: %s", ins.Op)
		}
	}
	require.Equal(t, 1, fused)
}

// A store to a local in one block that is only read in a later block is
// live and must survive dead-store elimination: the pass is block-local
// and cannot prove anything about successor reads.
func TestDeadStoreKeepsCrossBlockLocal(t *testing.T) {
	rc, err := New().Compile(assemble(t, `
.locals x
LOAD_CONST 7
STORE_FAST x
JUMP_ABSOLUTE target
target:
LOAD_FAST x
RETURN_VALUE
`))
	require.NoError(t, err)

	storesToX := 0
	for _, ins := range rc.Instrs {
		if ins.Op == regcode.OpMove && ins.A == 0 {
			storesToX++
		}
	}
	require.GreaterOrEqual(t, storesToX, 1, "initialization of a cross-block local was eliminated")
}

// A register load feeding a call's argument span counts as read even
// when a later instruction reuses the same depth slot: the second call
// here overwrites the first call's argument registers, which must not
// license deleting the first call's argument loads.
func TestDeadStoreSeesCallArgumentSpan(t *testing.T) {
	rc, err := New().Compile(assemble(t, `
.locals f, a, b
LOAD_FAST f
LOAD_CONST 11
CALL_FUNCTION 1
STORE_FAST a
LOAD_FAST f
LOAD_CONST 22
CALL_FUNCTION 1
STORE_FAST b
LOAD_FAST a
LOAD_FAST b
BINARY_ADD
RETURN_VALUE
`))
	require.NoError(t, err)

	loads := map[uint32]bool{}
	for _, ins := range rc.Instrs {
		if ins.Op == regcode.OpLoadConst {
			loads[ins.Ext] = true
		}
	}
	// Both argument constants must still be loaded somewhere.
	require.Len(t, loads, 2)
}

// Jump targets in the emitted stream stay within bounds and land on the
// instruction the stack-level label named, across the optimizer's
// rewrites.
func TestEmittedJumpsValidate(t *testing.T) {
	rc, err := New().Compile(assemble(t, countdownSrc))
	require.NoError(t, err)
	require.Empty(t, rc.Validate())
}
