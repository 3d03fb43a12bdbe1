package ops

import (
	"github.com/ktstephano/gvm-reg/hostrt"
)

func numCompare(a, b hostrt.H) int {
	if bothIntLike(a, b) {
		return asBigInt(a).Cmp(asBigInt(b))
	}
	af, bf := asFloat(a), asFloat(b)
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

func richCompare(h Host, op string, a, b hostrt.H, want func(int) bool, eqFallback bool) (hostrt.H, bool) {
	if isNumeric(a) && isNumeric(b) {
		return newBool(want(numCompare(a, b))), true
	}
	if a.Kind == hostrt.KindStr && b.Kind == hostrt.KindStr {
		cmp := 0
		switch {
		case a.Str < b.Str:
			cmp = -1
		case a.Str > b.Str:
			cmp = 1
		}
		return newBool(want(cmp)), true
	}
	if eqFallback && (op == "==" || op == "!=") {
		eq := structuralEqual(a, b)
		if op == "!=" {
			eq = !eq
		}
		return newBool(eq), true
	}
	return typeErr(h, op, a, b)
}

func structuralEqual(a, b hostrt.H) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Kind != b.Kind {
		if isNumeric(a) && isNumeric(b) {
			return numCompare(a, b) == 0
		}
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
	case hostrt.KindTuple, hostrt.KindList:
		if len(a.Items) != len(b.Items) {
			return false
		}
		for i := range a.Items {
			if !structuralEqual(a.Items[i], b.Items[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func Lt(h Host, a, b hostrt.H) (hostrt.H, bool) {
	return richCompare(h, "<", a, b, func(c int) bool { return c < 0 }, false)
}
func Le(h Host, a, b hostrt.H) (hostrt.H, bool) {
	return richCompare(h, "<=", a, b, func(c int) bool { return c <= 0 }, false)
}
func Gt(h Host, a, b hostrt.H) (hostrt.H, bool) {
	return richCompare(h, ">", a, b, func(c int) bool { return c > 0 }, false)
}
func Ge(h Host, a, b hostrt.H) (hostrt.H, bool) {
	return richCompare(h, ">=", a, b, func(c int) bool { return c >= 0 }, false)
}
func Eq(h Host, a, b hostrt.H) (hostrt.H, bool) {
	return richCompare(h, "==", a, b, func(c int) bool { return c == 0 }, true)
}
func Ne(h Host, a, b hostrt.H) (hostrt.H, bool) {
	return richCompare(h, "!=", a, b, func(c int) bool { return c != 0 }, true)
}

func Is(h Host, a, b hostrt.H) (hostrt.H, bool)    { return newBool(a == b), true }
func IsNot(h Host, a, b hostrt.H) (hostrt.H, bool) { return newBool(a != b), true }

func In(h Host, item, container hostrt.H) (hostrt.H, bool) {
	switch container.Kind {
	case hostrt.KindTuple, hostrt.KindList, hostrt.KindSet:
		for _, it := range container.Items {
			if structuralEqual(item, it) {
				return newBool(true), true
			}
		}
		return newBool(false), true
	case hostrt.KindStr:
		if item.Kind != hostrt.KindStr {
			return Fail(h, ErrTypeMismatch, "TypeError", newStr("'in <string>' requires string as left operand"))
		}
		return newBool(containsSubstr(container.Str, item.Str)), true
	case hostrt.KindDict:
		return newBool(container.Dict.Contains(item)), true
	}
	return Fail(h, ErrTypeMismatch, "TypeError", newStr("argument of type '"+container.Kind.String()+"' is not iterable"))
}

func NotIn(h Host, item, container hostrt.H) (hostrt.H, bool) {
	v, ok := In(h, item, container)
	if !ok {
		return nil, false
	}
	return newBool(!v.Bool), true
}

// ExcMatch implements COMPARE_EXC_MATCH: whether the raised exception's
// class name matches (or, for a tuple of classes, is one of) the handler
// clause's expected class name(s).
func ExcMatch(h Host, excValue, clause hostrt.H) (hostrt.H, bool) {
	match := func(className string) bool {
		return excValue != nil && excValue.Kind == hostrt.KindStr && excValue.Str == className
	}
	if clause.Kind == hostrt.KindTuple {
		for _, c := range clause.Items {
			if c.Kind == hostrt.KindStr && match(c.Str) {
				return newBool(true), true
			}
		}
		return newBool(false), true
	}
	if clause.Kind == hostrt.KindStr && clause.Str == "BaseException" {
		return newBool(true), true
	}
	return newBool(match(clause.Str)), true
}

func containsSubstr(s, sub string) bool {
	if sub == "" {
		return true
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
