package engine_test

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ktstephano/gvm-reg/engine"
	"github.com/ktstephano/gvm-reg/hostrt"
)

// runFixture assembles an examples/*.src listing and runs its "main"
// function through a fresh Engine: one small driver reused across a
// table of source listings.
func runFixture(t *testing.T, name string) hostrt.H {
	t.Helper()
	src, err := os.ReadFile(filepath.Join("..", "examples", name))
	require.NoError(t, err)

	co, err := hostrt.Assemble(string(src))
	require.NoError(t, err)

	eng := engine.New(nil)
	fn := hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindFunc, Fn: &hostrt.FuncObject{
		Code:    co,
		Globals: eng.Globals(),
		Name:    co.Name,
	}})

	result, err := eng.Run(fn, nil, nil)
	require.NoError(t, err)
	return result
}

func toInts(t *testing.T, v hostrt.H) []int64 {
	t.Helper()
	require.Equal(t, hostrt.KindList, v.Kind)
	out := make([]int64, len(v.Items))
	for i, item := range v.Items {
		require.Equal(t, hostrt.KindInt, item.Kind)
		out[i] = item.Int.Int64()
	}
	return out
}

func toIntMatrix(t *testing.T, v hostrt.H) [][]int64 {
	t.Helper()
	require.Equal(t, hostrt.KindList, v.Kind)
	out := make([][]int64, len(v.Items))
	for i, row := range v.Items {
		out[i] = toInts(t, row)
	}
	return out
}

func TestQuicksortSortsInPlace(t *testing.T) {
	result := runFixture(t, "quicksort.src")
	// [3,1,2,3,1] has duplicate keys, exercising the three-way
	// (Dutch-flag) partition's equal-to-pivot band rather than just its
	// less-than/greater-than arms.
	require.Equal(t, []int64{1, 1, 2, 3, 3}, toInts(t, result))
}

func TestMergesortSortsAFreshList(t *testing.T) {
	result := runFixture(t, "mergesort.src")
	require.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8}, toInts(t, result))
}

func TestFannkuchSumsFlipCounts(t *testing.T) {
	result := runFixture(t, "fannkuch.src")
	require.Equal(t, hostrt.KindInt, result.Kind)
	// fannkuch(7), the fannkuch-redux benchmark's well-known checksum.
	require.Equal(t, big.NewInt(228), result.Int)
}

func TestGensumDrainsGeneratorOverRange(t *testing.T) {
	result := runFixture(t, "gensum.src")
	require.Equal(t, hostrt.KindInt, result.Kind)
	// len([i for i in range(1000) if i > 490]) == 999-491+1 == 509.
	require.Equal(t, big.NewInt(509), result.Int)
}

func TestAddBignumAndString(t *testing.T) {
	result := runFixture(t, "addbignum.src")
	require.Equal(t, hostrt.KindTuple, result.Kind)
	require.Len(t, result.Items, 3)

	require.Equal(t, hostrt.KindInt, result.Items[0].Kind)
	require.Equal(t, int64(3), result.Items[0].Int.Int64())

	tenToFifty := new(big.Int).Exp(big.NewInt(10), big.NewInt(50), nil)
	require.Equal(t, hostrt.KindInt, result.Items[1].Kind)
	require.Equal(t, new(big.Int).Add(tenToFifty, big.NewInt(200)), result.Items[1].Int)

	require.Equal(t, hostrt.KindStr, result.Items[2].Kind)
	require.Equal(t, "hello world", result.Items[2].Str)
}

func TestCountThresholdCounts(t *testing.T) {
	result := runFixture(t, "countthreshold.src")
	require.Equal(t, hostrt.KindInt, result.Kind)
	require.Equal(t, big.NewInt(499), result.Int)
}

func TestCaptureCatchesSubscriptAssignmentError(t *testing.T) {
	result := runFixture(t, "capture.src")
	require.Equal(t, hostrt.KindInt, result.Kind)
	// x[100] = 0 on a 1-tuple always raises TypeMismatch/"TypeError"
	// (tuples never support item assignment), which the bare except
	// clause catches, returning 1.
	require.Equal(t, big.NewInt(1), result.Int)
}

func TestNestedClosureCapturesArgument(t *testing.T) {
	result := runFixture(t, "nestedclosure.src")
	require.Equal(t, hostrt.KindInt, result.Kind)
	require.Equal(t, big.NewInt(6), result.Int)
}

// TestDeadBinaryAddStillRaisesTypeError guards against regressing
// compiler/optimize.go's deadStorePass into deleting a binary op whose
// result happens to be unread: "x" + 1 must still raise TypeError even
// though the sum is stored into a local that's never loaded again.
func TestDeadBinaryAddStillRaisesTypeError(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "examples", "deadtypeerror.src"))
	require.NoError(t, err)

	co, err := hostrt.Assemble(string(src))
	require.NoError(t, err)

	eng := engine.New(nil)
	fn := hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindFunc, Fn: &hostrt.FuncObject{
		Code:    co,
		Globals: eng.Globals(),
		Name:    co.Name,
	}})

	_, err = eng.Run(fn, nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "TypeError")
}

// TestDeadUnaryNegStillRaisesTypeError is TestDeadBinaryAddStillRaisesTypeError's
// unary counterpart: -"x" must still raise TypeError even with its
// result stored into a local that's never loaded again.
func TestDeadUnaryNegStillRaisesTypeError(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "examples", "deadunaryneg.src"))
	require.NoError(t, err)

	co, err := hostrt.Assemble(string(src))
	require.NoError(t, err)

	eng := engine.New(nil)
	fn := hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindFunc, Fn: &hostrt.FuncObject{
		Code:    co,
		Globals: eng.Globals(),
		Name:    co.Name,
	}})

	_, err = eng.Run(fn, nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "TypeError")
}

// TestExtendedSliceDeleteRaises guards DelSlice's extended-slice path:
// it must raise TypeError like SetSlice does, rather than silently
// leaving the list untouched.
func TestExtendedSliceDeleteRaises(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "examples", "delslice_extended.src"))
	require.NoError(t, err)

	co, err := hostrt.Assemble(string(src))
	require.NoError(t, err)

	eng := engine.New(nil)
	fn := hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindFunc, Fn: &hostrt.FuncObject{
		Code:    co,
		Globals: eng.Globals(),
		Name:    co.Name,
	}})

	_, err = eng.Run(fn, nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "TypeError")
}

func TestMatmultIntComputesProduct(t *testing.T) {
	result := runFixture(t, "matmult_int.src")
	require.Equal(t, [][]int64{{19, 22}, {43, 50}}, toIntMatrix(t, result))
}

func TestMatmultFloatComputesProduct(t *testing.T) {
	result := runFixture(t, "matmult_float.src")
	require.Equal(t, hostrt.KindList, result.Kind)
	require.Len(t, result.Items, 2)
	row0 := result.Items[0]
	require.Equal(t, hostrt.KindList, row0.Kind)
	require.InDelta(t, 1.5*0.5+2.5*2.5, row0.Items[0].Float, 1e-9)
	require.InDelta(t, 1.5*1.5+2.5*3.5, row0.Items[1].Float, 1e-9)
}
