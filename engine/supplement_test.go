package engine_test

import (
	"math"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ktstephano/gvm-reg/engine"
	"github.com/ktstephano/gvm-reg/hostrt"
)

// structurallyEqual is container-aware equality over handles: structural
// for tuples/lists/sets/dicts, value equality for scalars, identity for
// everything else — the equality the differential harness below compares
// results under.
func structurallyEqual(a, b hostrt.H) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case hostrt.KindNone:
		return true
	case hostrt.KindBool:
		return a.Bool == b.Bool
	case hostrt.KindInt:
		return a.Int.Cmp(b.Int) == 0
	case hostrt.KindFloat:
		return a.Float == b.Float
	case hostrt.KindStr:
		return a.Str == b.Str
	case hostrt.KindTuple, hostrt.KindList, hostrt.KindSet:
		if len(a.Items) != len(b.Items) {
			return false
		}
		for i := range a.Items {
			if !structurallyEqual(a.Items[i], b.Items[i]) {
				return false
			}
		}
		return true
	case hostrt.KindDict:
		if a.Dict.Len() != b.Dict.Len() {
			return false
		}
		equal := true
		a.Dict.Each(func(k, v hostrt.H) {
			bv, ok := b.Dict.Get(k)
			if !ok || !structurallyEqual(v, bv) {
				equal = false
			}
		})
		return equal
	default:
		return a == b
	}
}

// TestWrapMatchesHost is the differential harness for the master
// property: for each fixture, the result of calling the compiled main
// through Wrap (the decorator path) must structurally equal the result
// of running it directly.
func TestWrapMatchesHost(t *testing.T) {
	fixtures := []string{
		"quicksort.src",
		"mergesort.src",
		"countthreshold.src",
		"addbignum.src",
		"gensum.src",
		"nestedclosure.src",
	}
	for _, name := range fixtures {
		t.Run(name, func(t *testing.T) {
			src, err := os.ReadFile(filepath.Join("..", "examples", name))
			require.NoError(t, err)
			co, err := hostrt.Assemble(string(src))
			require.NoError(t, err)

			runOn := func(wrap bool) hostrt.H {
				eng := engine.New(nil)
				fn := hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindFunc, Fn: &hostrt.FuncObject{
					Code:    co,
					Globals: eng.Globals(),
					Name:    co.Name,
				}})
				callee := fn
				if wrap {
					callee = eng.Wrap(fn)
				}
				result, err := eng.Run(callee, nil, nil)
				require.NoError(t, err)
				return result
			}

			direct := runOn(false)
			wrapped := runOn(true)
			require.True(t, structurallyEqual(direct, wrapped),
				"wrap result %s differs from direct result %s", wrapped, direct)
		})
	}
}

func newInstance(cls *hostrt.ClassObject, attrs map[string]hostrt.H) hostrt.H {
	d := hostrt.NewOrderedDict()
	for k, v := range attrs {
		d.SetStr(k, v)
	}
	return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindInstance, Instance: &hostrt.InstanceObject{
		Class: cls,
		Attrs: d,
	}})
}

func intH(v int64) hostrt.H {
	return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindInt, Int: big.NewInt(v)})
}

func strH(s string) hostrt.H {
	return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindStr, Str: s})
}

func boolH(b bool) hostrt.H {
	return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindBool, Bool: b})
}

// TestAttributeProtocol drives GET_ATTR/SET_ATTR against a host-seeded
// instance: attr.src doubles obj.threshold into obj.scaled and returns
// scaled + threshold.
func TestAttributeProtocol(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "examples", "attr.src"))
	require.NoError(t, err)
	co, err := hostrt.Assemble(string(src))
	require.NoError(t, err)

	eng := engine.New(nil)
	cls := &hostrt.ClassObject{Name: "Config", Methods: hostrt.NewOrderedDict()}
	obj := newInstance(cls, map[string]hostrt.H{"threshold": intH(21)})
	eng.Globals().SetStr("obj", obj)

	fn := hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindFunc, Fn: &hostrt.FuncObject{
		Code:    co,
		Globals: eng.Globals(),
		Name:    co.Name,
	}})
	result, err := eng.Run(fn, nil, nil)
	require.NoError(t, err)
	require.Equal(t, hostrt.KindInt, result.Kind)
	require.Equal(t, big.NewInt(63), result.Int)

	scaled, ok := obj.Instance.Attrs.GetStr("scaled")
	require.True(t, ok)
	require.Equal(t, big.NewInt(42), scaled.Int)
}

// TestHostBuiltinCalls exercises the Call Bridge's host-implemented
// path exclusively: mathcalls.src calls a test-seeded sqrt builtin and
// the stock abs, never an engine-compiled function.
func TestHostBuiltinCalls(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "examples", "mathcalls.src"))
	require.NoError(t, err)
	co, err := hostrt.Assemble(string(src))
	require.NoError(t, err)

	eng := engine.New(nil)
	sqrt := hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindBuiltin, Builtin: func(rt *hostrt.Runtime, args []hostrt.H, kwargs *hostrt.OrderedDict) (hostrt.H, error) {
		if len(args) != 1 {
			return nil, &hostrt.BuiltinError{Class: "TypeError", Msg: "sqrt() takes exactly one argument"}
		}
		var v float64
		switch args[0].Kind {
		case hostrt.KindFloat:
			v = args[0].Float
		case hostrt.KindInt:
			f, _ := new(big.Float).SetInt(args[0].Int).Float64()
			v = f
		default:
			return nil, &hostrt.BuiltinError{Class: "TypeError", Msg: "sqrt() argument must be a number"}
		}
		if v < 0 {
			return nil, &hostrt.BuiltinError{Class: "ValueError", Msg: "math domain error"}
		}
		return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindFloat, Float: math.Sqrt(v)}), nil
	}})
	eng.Globals().SetStr("sqrt", sqrt)

	fn := hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindFunc, Fn: &hostrt.FuncObject{
		Code:    co,
		Globals: eng.Globals(),
		Name:    co.Name,
	}})
	result, err := eng.Run(fn, nil, nil)
	require.NoError(t, err)
	require.Equal(t, hostrt.KindFloat, result.Kind)
	require.InDelta(t, 7.0, result.Float, 1e-12)
}

// TestDecisionTreeClassifies runs the larger integration fixture: a
// closure over a host-seeded tree of instances, walked with attribute
// loads, subscripts, and conditional branches.
func TestDecisionTreeClassifies(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "examples", "decision_tree.src"))
	require.NoError(t, err)
	co, err := hostrt.Assemble(string(src))
	require.NoError(t, err)

	eng := engine.New(nil)
	cls := &hostrt.ClassObject{Name: "Node", Methods: hostrt.NewOrderedDict()}
	low := newInstance(cls, map[string]hostrt.H{"is_leaf": boolH(true), "label": strH("low")})
	high := newInstance(cls, map[string]hostrt.H{"is_leaf": boolH(true), "label": strH("high")})
	root := newInstance(cls, map[string]hostrt.H{
		"is_leaf": boolH(false),
		"feature": intH(0),
		"thresh":  intH(5),
		"left":    low,
		"right":   high,
	})
	eng.Globals().SetStr("tree", root)

	fn := hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindFunc, Fn: &hostrt.FuncObject{
		Code:    co,
		Globals: eng.Globals(),
		Name:    co.Name,
	}})
	result, err := eng.Run(fn, nil, nil)
	require.NoError(t, err)
	require.Equal(t, hostrt.KindTuple, result.Kind)
	require.Len(t, result.Items, 2)
	require.Equal(t, "low", result.Items[0].Str)
	require.Equal(t, "high", result.Items[1].Str)
}
