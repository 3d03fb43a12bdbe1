package hostrt

import (
	"fmt"
	"math/big"
	"strings"
)

// BuiltinError is the error shape a BuiltinFunc raises for a
// user-triggerable failure (bad argument count/type); Class names the
// host exception callbridge.Bridge reports the error under. A plain
// (non-BuiltinError) error from a builtin is treated as internal.
type BuiltinError struct {
	Class string
	Msg   string
}

func (e *BuiltinError) Error() string { return e.Msg }

func argErr(class, msg string) error { return &BuiltinError{Class: class, Msg: msg} }

// NewBuiltins returns the builtins dict every Frame falls back to once
// its own globals miss (frame.Frame.Builtins, consulted by LOAD_NAME/
// LOAD_GLOBAL's lookupName chain) — the reference host's stand-in for
// the builtins fallback scope: len, range, sum, print, plus
// abs/min/max, enough for the benchmark fixtures in examples/.
func NewBuiltins() *OrderedDict {
	d := NewOrderedDict()
	add := func(name string, fn BuiltinFunc) {
		d.SetStr(name, NewHandle(&Object{Kind: KindBuiltin, Builtin: fn}))
	}
	add("len", builtinLen)
	add("range", builtinRange)
	add("sum", builtinSum)
	add("print", builtinPrint)
	add("abs", builtinAbs)
	add("min", builtinMinMax(false))
	add("max", builtinMinMax(true))
	return d
}

func builtinLen(rt *Runtime, args []H, kwargs *OrderedDict) (H, error) {
	if len(args) != 1 {
		return nil, argErr("TypeError", "len() takes exactly one argument")
	}
	v := args[0]
	switch v.Kind {
	case KindTuple, KindList, KindSet:
		return NewHandle(&Object{Kind: KindInt, Int: big.NewInt(int64(len(v.Items)))}), nil
	case KindStr:
		return NewHandle(&Object{Kind: KindInt, Int: big.NewInt(int64(len(v.Str)))}), nil
	case KindDict:
		return NewHandle(&Object{Kind: KindInt, Int: big.NewInt(int64(v.Dict.Len()))}), nil
	}
	return nil, argErr("TypeError", "object of type '"+v.Kind.String()+"' has no len()")
}

// builtinRange mirrors the 1/2/3-argument forms of the host language's
// range(): all arguments must be ints. The result is a plain KindList
// rather than a lazy iterator — GET_ITER already knows how to walk one,
// and none of the fixtures need range() to be memory-sublinear.
func builtinRange(rt *Runtime, args []H, kwargs *OrderedDict) (H, error) {
	var start, stop, step int64 = 0, 0, 1
	switch len(args) {
	case 1:
		n, err := asInt64(args[0])
		if err != nil {
			return nil, err
		}
		stop = n
	case 2:
		a, err := asInt64(args[0])
		if err != nil {
			return nil, err
		}
		b, err := asInt64(args[1])
		if err != nil {
			return nil, err
		}
		start, stop = a, b
	case 3:
		a, err := asInt64(args[0])
		if err != nil {
			return nil, err
		}
		b, err := asInt64(args[1])
		if err != nil {
			return nil, err
		}
		c, err := asInt64(args[2])
		if err != nil {
			return nil, err
		}
		if c == 0 {
			return nil, argErr("ValueError", "range() step argument must not be zero")
		}
		start, stop, step = a, b, c
	default:
		return nil, argErr("TypeError", "range() takes 1 to 3 arguments")
	}
	var items []H
	if step > 0 {
		for i := start; i < stop; i += step {
			items = append(items, NewHandle(&Object{Kind: KindInt, Int: big.NewInt(i)}))
		}
	} else {
		for i := start; i > stop; i += step {
			items = append(items, NewHandle(&Object{Kind: KindInt, Int: big.NewInt(i)}))
		}
	}
	return NewHandle(&Object{Kind: KindList, Items: items}), nil
}

func builtinSum(rt *Runtime, args []H, kwargs *OrderedDict) (H, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, argErr("TypeError", "sum() takes 1 or 2 arguments")
	}
	items, err := asItems(args[0])
	if err != nil {
		return nil, err
	}
	total := new(big.Int)
	floatTotal := 0.0
	isFloat := false
	if len(args) == 2 {
		if args[1].Kind == KindFloat {
			isFloat, floatTotal = true, args[1].Float
		} else if args[1].Kind == KindInt {
			total.Set(args[1].Int)
		}
	}
	for _, it := range items {
		switch it.Kind {
		case KindInt:
			if isFloat {
				f, _ := new(big.Float).SetInt(it.Int).Float64()
				floatTotal += f
			} else {
				total.Add(total, it.Int)
			}
		case KindFloat:
			if !isFloat {
				f, _ := new(big.Float).SetInt(total).Float64()
				floatTotal = f
				isFloat = true
			}
			floatTotal += it.Float
		default:
			return nil, argErr("TypeError", "sum() of non-numeric element")
		}
	}
	if isFloat {
		return NewHandle(&Object{Kind: KindFloat, Float: floatTotal}), nil
	}
	return NewHandle(&Object{Kind: KindInt, Int: total}), nil
}

func builtinPrint(rt *Runtime, args []H, kwargs *OrderedDict) (H, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	fmt.Println(strings.Join(parts, " "))
	return NewHandle(&Object{Kind: KindNone}), nil
}

func builtinAbs(rt *Runtime, args []H, kwargs *OrderedDict) (H, error) {
	if len(args) != 1 {
		return nil, argErr("TypeError", "abs() takes exactly one argument")
	}
	switch args[0].Kind {
	case KindInt:
		return NewHandle(&Object{Kind: KindInt, Int: new(big.Int).Abs(args[0].Int)}), nil
	case KindFloat:
		f := args[0].Float
		if f < 0 {
			f = -f
		}
		return NewHandle(&Object{Kind: KindFloat, Float: f}), nil
	}
	return nil, argErr("TypeError", "bad operand type for abs()")
}

func builtinMinMax(wantMax bool) BuiltinFunc {
	return func(rt *Runtime, args []H, kwargs *OrderedDict) (H, error) {
		var items []H
		var err error
		if len(args) == 1 {
			items, err = asItems(args[0])
			if err != nil {
				return nil, err
			}
		} else {
			items = args
		}
		if len(items) == 0 {
			return nil, argErr("ValueError", "min()/max() arg is an empty sequence")
		}
		best := items[0]
		for _, it := range items[1:] {
			less, err := numericLess(it, best)
			if err != nil {
				return nil, err
			}
			if wantMax {
				if !less && !numericEqual(it, best) {
					best = it
				}
			} else if less {
				best = it
			}
		}
		return best, nil
	}
}

func asInt64(v H) (int64, error) {
	if v.Kind != KindInt && v.Kind != KindBool {
		return 0, argErr("TypeError", "expected an integer argument")
	}
	if v.Kind == KindBool {
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	}
	return v.Int.Int64(), nil
}

func asItems(v H) ([]H, error) {
	switch v.Kind {
	case KindTuple, KindList, KindSet:
		return v.Items, nil
	case KindStr:
		out := make([]H, len(v.Str))
		for i, b := range []byte(v.Str) {
			out[i] = NewHandle(&Object{Kind: KindStr, Str: string(b)})
		}
		return out, nil
	}
	return nil, argErr("TypeError", "'"+v.Kind.String()+"' object is not iterable")
}

func numericLess(a, b H) (bool, error) {
	af, aok := numericFloat(a)
	bf, bok := numericFloat(b)
	if aok && bok {
		return af < bf, nil
	}
	if a.Kind == KindStr && b.Kind == KindStr {
		return a.Str < b.Str, nil
	}
	return false, argErr("TypeError", "unorderable types")
}

func numericEqual(a, b H) bool {
	af, aok := numericFloat(a)
	bf, bok := numericFloat(b)
	if aok && bok {
		return af == bf
	}
	return a.Kind == KindStr && b.Kind == KindStr && a.Str == b.Str
}

func numericFloat(v H) (float64, bool) {
	switch v.Kind {
	case KindInt:
		f, _ := new(big.Float).SetInt(v.Int).Float64()
		return f, true
	case KindFloat:
		return v.Float, true
	case KindBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
