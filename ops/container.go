package ops

import (
	"math/big"
	"strconv"

	"github.com/ktstephano/gvm-reg/hostrt"
)

func indexToInt(h Host, idx hostrt.H, length int) (int, bool) {
	if idx.Kind != hostrt.KindInt && idx.Kind != hostrt.KindBool {
		_, ok := Fail(h, ErrTypeMismatch, "TypeError", newStr("indices must be integers"))
		return 0, ok
	}
	n := asBigInt(idx)
	if !n.IsInt64() {
		_, ok := Fail(h, ErrIndexOutOfRange, "IndexError", newStr("index out of range"))
		return 0, ok
	}
	i := int(n.Int64())
	if i < 0 {
		i += length
	}
	return i, true
}

// GetItem resolves container[idx] for tuples, lists, strings, and
// dicts; a slice handle as the index diverts to the slice protocol,
// the same dispatch the host performs for a slice object on the stack.
func GetItem(h Host, container, idx hostrt.H) (hostrt.H, bool) {
	if idx.Kind == hostrt.KindSlice {
		return GetSlice(h, container, idx)
	}
	switch container.Kind {
	case hostrt.KindTuple, hostrt.KindList:
		i, ok := indexToInt(h, idx, len(container.Items))
		if !ok {
			return nil, false
		}
		if i < 0 || i >= len(container.Items) {
			return Fail(h, ErrIndexOutOfRange, "IndexError", newStr(container.Kind.String()+" index out of range"))
		}
		v := container.Items[i]
		h.Incref(v)
		return v, true
	case hostrt.KindStr:
		i, ok := indexToInt(h, idx, len(container.Str))
		if !ok {
			return nil, false
		}
		if i < 0 || i >= len(container.Str) {
			return Fail(h, ErrIndexOutOfRange, "IndexError", newStr("string index out of range"))
		}
		return newStr(string(container.Str[i])), true
	case hostrt.KindDict:
		v, ok := container.Dict.Get(idx)
		if !ok {
			return Fail(h, ErrKeyMissing, "KeyError", idx)
		}
		h.Incref(v)
		return v, true
	}
	return Fail(h, ErrTypeMismatch, "TypeError", newStr("'"+container.Kind.String()+"' object is not subscriptable"))
}

// SetItem: tuples are immutable, so x[100] = 0 on a tuple is always
// "'tuple' object does not support item assignment" — the index is
// never consulted, matching the reference host.
func SetItem(h Host, container, idx, val hostrt.H) (hostrt.H, bool) {
	if idx.Kind == hostrt.KindSlice {
		return SetSlice(h, container, idx, val)
	}
	switch container.Kind {
	case hostrt.KindTuple:
		return Fail(h, ErrTypeMismatch, "TypeError", newStr("'tuple' object does not support item assignment"))
	case hostrt.KindList:
		i, ok := indexToInt(h, idx, len(container.Items))
		if !ok {
			return nil, false
		}
		if i < 0 || i >= len(container.Items) {
			return Fail(h, ErrIndexOutOfRange, "IndexError", newStr("list assignment index out of range"))
		}
		h.Incref(val)
		h.Decref(container.Items[i])
		container.Items[i] = val
		return nil, true
	case hostrt.KindDict:
		h.Incref(val)
		h.Incref(idx)
		old, hadOld := container.Dict.Set(idx, val)
		if hadOld {
			h.Decref(old)
		}
		return nil, true
	}
	return Fail(h, ErrTypeMismatch, "TypeError", newStr("'"+container.Kind.String()+"' object does not support item assignment"))
}

func DelItem(h Host, container, idx hostrt.H) (hostrt.H, bool) {
	if idx.Kind == hostrt.KindSlice {
		return DelSlice(h, container, idx)
	}
	switch container.Kind {
	case hostrt.KindList:
		i, ok := indexToInt(h, idx, len(container.Items))
		if !ok {
			return nil, false
		}
		if i < 0 || i >= len(container.Items) {
			return Fail(h, ErrIndexOutOfRange, "IndexError", newStr("list assignment index out of range"))
		}
		h.Decref(container.Items[i])
		container.Items = append(container.Items[:i], container.Items[i+1:]...)
		return nil, true
	case hostrt.KindDict:
		old, ok := container.Dict.Del(idx)
		if !ok {
			return Fail(h, ErrKeyMissing, "KeyError", idx)
		}
		h.Decref(old)
		return nil, true
	}
	return Fail(h, ErrTypeMismatch, "TypeError", newStr("'"+container.Kind.String()+"' object doesn't support item deletion"))
}

func sliceBounds(sl hostrt.H, length int) (start, stop, step int) {
	step = 1
	if sl.SliceStep != nil && sl.SliceStep.Kind != hostrt.KindNone {
		step = int(asBigInt(sl.SliceStep).Int64())
	}
	if step == 0 {
		step = 1
	}
	if step > 0 {
		start, stop = 0, length
	} else {
		start, stop = length-1, -1
	}
	if sl.SliceStart != nil && sl.SliceStart.Kind != hostrt.KindNone {
		start = clampIndex(int(asBigInt(sl.SliceStart).Int64()), length, step > 0)
	}
	if sl.SliceStop != nil && sl.SliceStop.Kind != hostrt.KindNone {
		stop = clampIndex(int(asBigInt(sl.SliceStop).Int64()), length, step > 0)
	}
	return
}

func clampIndex(i, length int, forward bool) int {
	if i < 0 {
		i += length
	}
	if forward {
		if i < 0 {
			i = 0
		}
		if i > length {
			i = length
		}
	} else {
		if i < -1 {
			i = -1
		}
		if i >= length {
			i = length - 1
		}
	}
	return i
}

func GetSlice(h Host, container, sl hostrt.H) (hostrt.H, bool) {
	if sl.Kind != hostrt.KindSlice {
		return Fail(h, ErrTypeMismatch, "TypeError", newStr("slice indices must be a slice"))
	}
	switch container.Kind {
	case hostrt.KindList, hostrt.KindTuple:
		start, stop, step := sliceBounds(sl, len(container.Items))
		var out []hostrt.H
		for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
			if i < 0 || i >= len(container.Items) {
				break
			}
			out = append(out, container.Items[i])
		}
		for _, it := range out {
			h.Incref(it)
		}
		return hostrt.NewHandle(&hostrt.Object{Kind: container.Kind, Items: out}), true
	case hostrt.KindStr:
		start, stop, step := sliceBounds(sl, len(container.Str))
		var out []byte
		for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
			if i < 0 || i >= len(container.Str) {
				break
			}
			out = append(out, container.Str[i])
		}
		return newStr(string(out)), true
	}
	return Fail(h, ErrTypeMismatch, "TypeError", newStr("'"+container.Kind.String()+"' object is not sliceable"))
}

func SetSlice(h Host, container, sl, val hostrt.H) (hostrt.H, bool) {
	if container.Kind != hostrt.KindList || sl.Kind != hostrt.KindSlice {
		return Fail(h, ErrTypeMismatch, "TypeError", newStr("object does not support slice assignment"))
	}
	if val.Kind != hostrt.KindList && val.Kind != hostrt.KindTuple {
		return Fail(h, ErrTypeMismatch, "TypeError", newStr("can only assign an iterable"))
	}
	start, stop, step := sliceBounds(sl, len(container.Items))
	if step != 1 {
		return Fail(h, ErrTypeMismatch, "TypeError", newStr("extended slice assignment unsupported"))
	}
	if start > stop {
		stop = start
	}
	for _, it := range container.Items[start:stop] {
		h.Decref(it)
	}
	for _, it := range val.Items {
		h.Incref(it)
	}
	tail := append([]hostrt.H{}, container.Items[stop:]...)
	container.Items = append(append(container.Items[:start:start], val.Items...), tail...)
	return nil, true
}

func DelSlice(h Host, container, sl hostrt.H) (hostrt.H, bool) {
	if container.Kind != hostrt.KindList || sl.Kind != hostrt.KindSlice {
		return Fail(h, ErrTypeMismatch, "TypeError", newStr("object does not support slice deletion"))
	}
	start, stop, step := sliceBounds(sl, len(container.Items))
	if step != 1 {
		return Fail(h, ErrTypeMismatch, "TypeError", newStr("extended slice deletion unsupported"))
	}
	if start > stop {
		stop = start
	}
	for _, it := range container.Items[start:stop] {
		h.Decref(it)
	}
	container.Items = append(container.Items[:start:start], container.Items[stop:]...)
	return nil, true
}

func GetLength(h Host, container hostrt.H) (hostrt.H, bool) {
	switch container.Kind {
	case hostrt.KindTuple, hostrt.KindList, hostrt.KindSet:
		return newInt(big.NewInt(int64(len(container.Items)))), true
	case hostrt.KindStr:
		return newInt(big.NewInt(int64(len(container.Str)))), true
	case hostrt.KindDict:
		return newInt(big.NewInt(int64(container.Dict.Len()))), true
	}
	return Fail(h, ErrTypeMismatch, "TypeError", newStr("object of type '"+container.Kind.String()+"' has no len()"))
}

// GetAttr consults an instance's own attribute dict first, then its
// class's method table.
func GetAttr(h Host, obj hostrt.H, name string) (hostrt.H, bool) {
	if obj.Kind == hostrt.KindInstance {
		if v, ok := obj.Instance.Attrs.GetStr(name); ok {
			h.Incref(v)
			return v, true
		}
		if obj.Instance.Class != nil {
			if v, ok := obj.Instance.Class.Methods.GetStr(name); ok {
				h.Incref(v)
				return v, true
			}
		}
	}
	if obj.Kind == hostrt.KindClass {
		if v, ok := obj.Class.Methods.GetStr(name); ok {
			h.Incref(v)
			return v, true
		}
	}
	return Fail(h, ErrAttributeMissing, "AttributeError", newStr("'"+obj.Kind.String()+"' object has no attribute '"+name+"'"))
}

func SetAttr(h Host, obj hostrt.H, name string, val hostrt.H) (hostrt.H, bool) {
	if obj.Kind != hostrt.KindInstance {
		return Fail(h, ErrTypeMismatch, "TypeError", newStr("'"+obj.Kind.String()+"' object attributes are read-only"))
	}
	h.Incref(val)
	old, hadOld := obj.Instance.Attrs.SetStr2(name, val)
	if hadOld {
		h.Decref(old)
	}
	return nil, true
}

func DelAttr(h Host, obj hostrt.H, name string) (hostrt.H, bool) {
	if obj.Kind != hostrt.KindInstance {
		return Fail(h, ErrTypeMismatch, "TypeError", newStr("'"+obj.Kind.String()+"' object attributes are read-only"))
	}
	old, ok := obj.Instance.Attrs.Del(&hostrt.Object{Kind: hostrt.KindStr, Str: name})
	if !ok {
		return Fail(h, ErrAttributeMissing, "AttributeError", newStr("'"+obj.Kind.String()+"' object has no attribute '"+name+"'"))
	}
	h.Decref(old)
	return nil, true
}

// GetIter / IterNext: iter-next returns a stop-marker handle rather
// than an error, since running out of items is not itself a failure —
// it is the one signal the iteration protocol delivers in-band.
func GetIter(h Host, container hostrt.H) (hostrt.H, bool) {
	switch container.Kind {
	case hostrt.KindTuple, hostrt.KindList, hostrt.KindSet, hostrt.KindStr, hostrt.KindIterator, hostrt.KindGenerator:
		h.Incref(container)
		return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindIterator, Iter: container}), true
	}
	return Fail(h, ErrTypeMismatch, "TypeError", newStr("'"+container.Kind.String()+"' object is not iterable"))
}

var stopMarker = hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindStopMarker})

// StopMarker is the sentinel handle FOR_ITER checks for.
func StopMarker() hostrt.H { return stopMarker }

func IterNext(h Host, it hostrt.H) (hostrt.H, bool) {
	if it.Kind != hostrt.KindIterator {
		return Fail(h, ErrTypeMismatch, "TypeError", newStr("'"+it.Kind.String()+"' object is not an iterator"))
	}
	backing := it.Iter
	switch backing.Kind {
	case hostrt.KindGenerator:
		v, done, ok := h.ResumeGenerator(backing)
		if !ok {
			return nil, false
		}
		if done {
			if v != nil {
				h.Decref(v)
			}
			return stopMarker, true
		}
		return v, true
	case hostrt.KindStr:
		if it.IterPos >= len(backing.Str) {
			return stopMarker, true
		}
		v := newStr(string(backing.Str[it.IterPos]))
		it.IterPos++
		return v, true
	default:
		if it.IterPos >= len(backing.Items) {
			return stopMarker, true
		}
		v := backing.Items[it.IterPos]
		h.Incref(v)
		it.IterPos++
		return v, true
	}
}

func ToBool(h Host, v hostrt.H) (bool, bool) {
	switch v.Kind {
	case hostrt.KindNone:
		return false, true
	case hostrt.KindBool:
		return v.Bool, true
	case hostrt.KindInt:
		return v.Int.Sign() != 0, true
	case hostrt.KindFloat:
		return v.Float != 0, true
	case hostrt.KindStr:
		return len(v.Str) != 0, true
	case hostrt.KindTuple, hostrt.KindList, hostrt.KindSet:
		return len(v.Items) != 0, true
	case hostrt.KindDict:
		return v.Dict.Len() != 0, true
	default:
		return true, true
	}
}

func ToInt(h Host, v hostrt.H) (hostrt.H, bool) {
	switch v.Kind {
	case hostrt.KindInt:
		return newInt(new(big.Int).Set(v.Int)), true
	case hostrt.KindBool:
		return newInt(asBigInt(v)), true
	case hostrt.KindFloat:
		bi, _ := big.NewFloat(v.Float).Int(nil)
		return newInt(bi), true
	case hostrt.KindStr:
		n, ok := new(big.Int).SetString(v.Str, 10)
		if !ok {
			return Fail(h, ErrBadArgument, "ValueError", newStr("invalid literal for int(): "+strconv.Quote(v.Str)))
		}
		return newInt(n), true
	}
	return Fail(h, ErrTypeMismatch, "TypeError", newStr("int() argument must be a string or a number"))
}

func ToFloat(h Host, v hostrt.H) (hostrt.H, bool) {
	if !isNumeric(v) && v.Kind != hostrt.KindStr {
		return Fail(h, ErrTypeMismatch, "TypeError", newStr("float() argument must be a string or a number"))
	}
	if v.Kind == hostrt.KindStr {
		f, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return Fail(h, ErrBadArgument, "ValueError", newStr("could not convert string to float: "+strconv.Quote(v.Str)))
		}
		return newFloat(f), true
	}
	return newFloat(asFloat(v)), true
}

func ToStr(h Host, v hostrt.H) (hostrt.H, bool) {
	return newStr(v.String()), true
}

func BuildTuple(h Host, items []hostrt.H) (hostrt.H, bool) {
	cp := append([]hostrt.H{}, items...)
	for _, it := range cp {
		h.Incref(it)
	}
	return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindTuple, Items: cp}), true
}

func BuildList(h Host, items []hostrt.H) (hostrt.H, bool) {
	cp := append([]hostrt.H{}, items...)
	for _, it := range cp {
		h.Incref(it)
	}
	return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindList, Items: cp}), true
}

func BuildSet(h Host, items []hostrt.H) (hostrt.H, bool) {
	var out []hostrt.H
	for _, it := range items {
		dup := false
		for _, o := range out {
			if structuralEqual(it, o) {
				dup = true
				break
			}
		}
		if !dup {
			h.Incref(it)
			out = append(out, it)
		}
	}
	return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindSet, Items: out}), true
}

func BuildDict(h Host, keys, vals []hostrt.H) (hostrt.H, bool) {
	d := hostrt.NewOrderedDict()
	for i := range keys {
		h.Incref(keys[i])
		h.Incref(vals[i])
		old, hadOld := d.Set(keys[i], vals[i])
		if hadOld {
			h.Decref(old)
		}
	}
	return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindDict, Dict: d}), true
}

func BuildSlice(h Host, start, stop, step hostrt.H) (hostrt.H, bool) {
	h.Incref(start)
	h.Incref(stop)
	h.Incref(step)
	return hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindSlice, SliceStart: start, SliceStop: stop, SliceStep: step}), true
}

// Call delegates to the Host, which is responsible for distinguishing
// engine-compiled callees (re-entering the Compiler/Evaluator via the
// Call Bridge) from host-implemented ones.
func Call(h Host, callee hostrt.H, args []hostrt.H, kwargs *hostrt.OrderedDict) (hostrt.H, bool) {
	return h.Call(callee, args, kwargs)
}
