package ops

import (
	"math"
	"math/big"

	"github.com/ktstephano/gvm-reg/hostrt"
)

func newInt(i *big.Int) hostrt.H   { return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindInt, Int: i}) }
func newFloat(f float64) hostrt.H  { return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindFloat, Float: f}) }
func newBool(b bool) hostrt.H      { return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindBool, Bool: b}) }
func newStr(s string) hostrt.H     { return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindStr, Str: s}) }

func isNumeric(h hostrt.H) bool {
	return h != nil && (h.Kind == hostrt.KindInt || h.Kind == hostrt.KindFloat || h.Kind == hostrt.KindBool)
}

func asFloat(h hostrt.H) float64 {
	switch h.Kind {
	case hostrt.KindFloat:
		return h.Float
	case hostrt.KindInt:
		f := new(big.Float).SetInt(h.Int)
		v, _ := f.Float64()
		return v
	case hostrt.KindBool:
		if h.Bool {
			return 1
		}
		return 0
	}
	return math.NaN()
}

func asBigInt(h hostrt.H) *big.Int {
	switch h.Kind {
	case hostrt.KindInt:
		return h.Int
	case hostrt.KindBool:
		if h.Bool {
			return big.NewInt(1)
		}
		return big.NewInt(0)
	}
	return nil
}

func bothIntLike(a, b hostrt.H) bool {
	return (a.Kind == hostrt.KindInt || a.Kind == hostrt.KindBool) && (b.Kind == hostrt.KindInt || b.Kind == hostrt.KindBool)
}

func typeErr(h Host, op string, a, b hostrt.H) (hostrt.H, bool) {
	return Fail(h, ErrTypeMismatch, "TypeError", newStr("unsupported operand type(s) for "+op+": '"+a.Kind.String()+"' and '"+b.Kind.String()+"'"))
}

// Add: int+int stays arbitrary precision, int+float and float+float
// promote to float, str+str concatenates, and same-kind sequences
// concatenate.
func Add(h Host, a, b hostrt.H) (hostrt.H, bool) {
	if a.Kind == hostrt.KindStr && b.Kind == hostrt.KindStr {
		return newStr(a.Str + b.Str), true
	}
	if a.Kind == hostrt.KindTuple && b.Kind == hostrt.KindTuple {
		items := append(append([]hostrt.H{}, a.Items...), b.Items...)
		for _, it := range items {
			h.Incref(it)
		}
		return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindTuple, Items: items}), true
	}
	if a.Kind == hostrt.KindList && b.Kind == hostrt.KindList {
		items := append(append([]hostrt.H{}, a.Items...), b.Items...)
		for _, it := range items {
			h.Incref(it)
		}
		return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindList, Items: items}), true
	}
	if !isNumeric(a) || !isNumeric(b) {
		return typeErr(h, "+", a, b)
	}
	if bothIntLike(a, b) {
		return newInt(new(big.Int).Add(asBigInt(a), asBigInt(b))), true
	}
	return newFloat(asFloat(a) + asFloat(b)), true
}

func Sub(h Host, a, b hostrt.H) (hostrt.H, bool) {
	if !isNumeric(a) || !isNumeric(b) {
		return typeErr(h, "-", a, b)
	}
	if bothIntLike(a, b) {
		return newInt(new(big.Int).Sub(asBigInt(a), asBigInt(b))), true
	}
	return newFloat(asFloat(a) - asFloat(b)), true
}

func Mul(h Host, a, b hostrt.H) (hostrt.H, bool) {
	if a.Kind == hostrt.KindStr && (b.Kind == hostrt.KindInt || b.Kind == hostrt.KindBool) {
		n := asBigInt(b).Int64()
		if n < 0 {
			n = 0
		}
		out := make([]byte, 0, len(a.Str)*int(n))
		for i := int64(0); i < n; i++ {
			out = append(out, a.Str...)
		}
		return newStr(string(out)), true
	}
	if a.Kind == hostrt.KindList && (b.Kind == hostrt.KindInt || b.Kind == hostrt.KindBool) {
		n := asBigInt(b).Int64()
		if n < 0 {
			n = 0
		}
		items := make([]hostrt.H, 0, len(a.Items)*int(n))
		for i := int64(0); i < n; i++ {
			items = append(items, a.Items...)
		}
		for _, it := range items {
			h.Incref(it)
		}
		return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindList, Items: items}), true
	}
	if !isNumeric(a) || !isNumeric(b) {
		return typeErr(h, "*", a, b)
	}
	if bothIntLike(a, b) {
		return newInt(new(big.Int).Mul(asBigInt(a), asBigInt(b))), true
	}
	return newFloat(asFloat(a) * asFloat(b)), true
}

// TrueDiv always produces a float, matching Python 3 "/" semantics.
// Div is the legacy alias used by the INPLACE_DIV/BINARY_DIV fixtures
// and behaves like TrueDiv, since the host language targeted by the
// fixtures has no separate classic-division opcode in play.
func TrueDiv(h Host, a, b hostrt.H) (hostrt.H, bool) {
	if !isNumeric(a) || !isNumeric(b) {
		return typeErr(h, "/", a, b)
	}
	denom := asFloat(b)
	if denom == 0 {
		return Fail(h, ErrArithmetic, "ZeroDivisionError", newStr("division by zero"))
	}
	return newFloat(asFloat(a) / denom), true
}

func Div(h Host, a, b hostrt.H) (hostrt.H, bool) { return TrueDiv(h, a, b) }

func FloorDiv(h Host, a, b hostrt.H) (hostrt.H, bool) {
	if !isNumeric(a) || !isNumeric(b) {
		return typeErr(h, "//", a, b)
	}
	if bothIntLike(a, b) {
		bb := asBigInt(b)
		if bb.Sign() == 0 {
			return Fail(h, ErrArithmetic, "ZeroDivisionError", newStr("integer division or modulo by zero"))
		}
		q, m := new(big.Int).QuoRem(asBigInt(a), bb, new(big.Int))
		// Python floor division rounds toward negative infinity.
		if m.Sign() != 0 && (m.Sign() < 0) != (bb.Sign() < 0) {
			q.Sub(q, big.NewInt(1))
		}
		return newInt(q), true
	}
	denom := asFloat(b)
	if denom == 0 {
		return Fail(h, ErrArithmetic, "ZeroDivisionError", newStr("float floor division by zero"))
	}
	return newFloat(math.Floor(asFloat(a) / denom)), true
}

func Mod(h Host, a, b hostrt.H) (hostrt.H, bool) {
	if a.Kind == hostrt.KindStr {
		// %-style string formatting is out of scope; only numeric % is implemented.
		return typeErr(h, "%", a, b)
	}
	if !isNumeric(a) || !isNumeric(b) {
		return typeErr(h, "%", a, b)
	}
	if bothIntLike(a, b) {
		bb := asBigInt(b)
		if bb.Sign() == 0 {
			return Fail(h, ErrArithmetic, "ZeroDivisionError", newStr("integer division or modulo by zero"))
		}
		m := new(big.Int).Mod(asBigInt(a), bb)
		if m.Sign() != 0 && bb.Sign() < 0 {
			m.Add(m, bb)
		}
		return newInt(m), true
	}
	denom := asFloat(b)
	if denom == 0 {
		return Fail(h, ErrArithmetic, "ZeroDivisionError", newStr("float modulo by zero"))
	}
	return newFloat(math.Mod(asFloat(a), denom)), true
}

func Pow(h Host, a, b hostrt.H) (hostrt.H, bool) {
	if !isNumeric(a) || !isNumeric(b) {
		return typeErr(h, "**", a, b)
	}
	if bothIntLike(a, b) && asBigInt(b).Sign() >= 0 {
		return newInt(new(big.Int).Exp(asBigInt(a), asBigInt(b), nil)), true
	}
	return newFloat(math.Pow(asFloat(a), asFloat(b))), true
}

func intBitwise(h Host, op string, a, b hostrt.H, fn func(z, x, y *big.Int) *big.Int) (hostrt.H, bool) {
	if !bothIntLike(a, b) {
		return typeErr(h, op, a, b)
	}
	return newInt(fn(new(big.Int), asBigInt(a), asBigInt(b))), true
}

func And(h Host, a, b hostrt.H) (hostrt.H, bool) { return intBitwise(h, "&", a, b, (*big.Int).And) }
func Or(h Host, a, b hostrt.H) (hostrt.H, bool)  { return intBitwise(h, "|", a, b, (*big.Int).Or) }
func Xor(h Host, a, b hostrt.H) (hostrt.H, bool) { return intBitwise(h, "^", a, b, (*big.Int).Xor) }

func Lshift(h Host, a, b hostrt.H) (hostrt.H, bool) {
	if !bothIntLike(a, b) {
		return typeErr(h, "<<", a, b)
	}
	n := asBigInt(b)
	if n.Sign() < 0 {
		return Fail(h, ErrArithmetic, "ValueError", newStr("negative shift count"))
	}
	return newInt(new(big.Int).Lsh(asBigInt(a), uint(n.Uint64()))), true
}

func Rshift(h Host, a, b hostrt.H) (hostrt.H, bool) {
	if !bothIntLike(a, b) {
		return typeErr(h, ">>", a, b)
	}
	n := asBigInt(b)
	if n.Sign() < 0 {
		return Fail(h, ErrArithmetic, "ValueError", newStr("negative shift count"))
	}
	return newInt(new(big.Int).Rsh(asBigInt(a), uint(n.Uint64()))), true
}

func Neg(h Host, a hostrt.H) (hostrt.H, bool) {
	switch a.Kind {
	case hostrt.KindInt, hostrt.KindBool:
		return newInt(new(big.Int).Neg(asBigInt(a))), true
	case hostrt.KindFloat:
		return newFloat(-a.Float), true
	}
	return Fail(h, ErrTypeMismatch, "TypeError", newStr("bad operand type for unary -: '"+a.Kind.String()+"'"))
}

func Pos(h Host, a hostrt.H) (hostrt.H, bool) {
	switch a.Kind {
	case hostrt.KindInt, hostrt.KindBool:
		return newInt(new(big.Int).Set(asBigInt(a))), true
	case hostrt.KindFloat:
		return newFloat(a.Float), true
	}
	return Fail(h, ErrTypeMismatch, "TypeError", newStr("bad operand type for unary +: '"+a.Kind.String()+"'"))
}

func Invert(h Host, a hostrt.H) (hostrt.H, bool) {
	if a.Kind != hostrt.KindInt && a.Kind != hostrt.KindBool {
		return Fail(h, ErrTypeMismatch, "TypeError", newStr("bad operand type for unary ~: '"+a.Kind.String()+"'"))
	}
	return newInt(new(big.Int).Not(asBigInt(a))), true
}

func Not(h Host, a hostrt.H) (hostrt.H, bool) {
	b, ok := ToBool(h, a)
	if !ok {
		return nil, false
	}
	return newBool(!b), true
}

// Inplace* operations reuse the binary implementation: none of this
// repo's supported types define a separate __iadd__-style mutation
// protocol, so augmented assignment is binary-op-then-store, matching
// how the host language treats inplace ops on immutable types.
func IAdd(h Host, a, b hostrt.H) (hostrt.H, bool)      { return Add(h, a, b) }
func ISub(h Host, a, b hostrt.H) (hostrt.H, bool)      { return Sub(h, a, b) }
func IMul(h Host, a, b hostrt.H) (hostrt.H, bool)      { return Mul(h, a, b) }
func IDiv(h Host, a, b hostrt.H) (hostrt.H, bool)      { return Div(h, a, b) }
func IFloorDiv(h Host, a, b hostrt.H) (hostrt.H, bool) { return FloorDiv(h, a, b) }
func IMod(h Host, a, b hostrt.H) (hostrt.H, bool)      { return Mod(h, a, b) }
func IPow(h Host, a, b hostrt.H) (hostrt.H, bool)      { return Pow(h, a, b) }
