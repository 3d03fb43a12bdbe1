package hostrt

// OrderedDict backs the host's dict-like objects: globals, builtins,
// attribute dicts, and the dict literal type. Insertion order is
// preserved (as in the host language's actual dict), which keeps
// RegCode compilation and dict iteration deterministic.
type OrderedDict struct {
	keys []H
	vals []H
	idx  map[string]int
}

func NewOrderedDict() *OrderedDict {
	return &OrderedDict{idx: make(map[string]int)}
}

func dictKey(k H) string {
	if k == nil {
		return ""
	}
	switch k.Kind {
	case KindStr:
		return "s:" + k.Str
	case KindInt:
		return "i:" + k.Int.String()
	default:
		return "p:" + k.String()
	}
}

// Get returns the value for k and whether it was present.
func (d *OrderedDict) Get(k H) (H, bool) {
	i, ok := d.idx[dictKey(k)]
	if !ok {
		return nil, false
	}
	return d.vals[i], true
}

func (d *OrderedDict) GetStr(name string) (H, bool) {
	i, ok := d.idx["s:"+name]
	if !ok {
		return nil, false
	}
	return d.vals[i], true
}

// Set inserts or overwrites k -> v, returning the replaced value (if any)
// so the caller can decref it.
func (d *OrderedDict) Set(k, v H) (old H, hadOld bool) {
	key := dictKey(k)
	if i, ok := d.idx[key]; ok {
		old, hadOld = d.vals[i], true
		d.vals[i] = v
		return
	}
	d.idx[key] = len(d.keys)
	d.keys = append(d.keys, k)
	d.vals = append(d.vals, v)
	return nil, false
}

func (d *OrderedDict) SetStr(name string, v H) {
	d.Set(&Object{Kind: KindStr, Str: name}, v)
}

// SetStr2 is SetStr that also reports the replaced value, for callers
// that must decref it.
func (d *OrderedDict) SetStr2(name string, v H) (old H, hadOld bool) {
	return d.Set(&Object{Kind: KindStr, Str: name}, v)
}

// Del removes k, returning the removed value.
func (d *OrderedDict) Del(k H) (H, bool) {
	key := dictKey(k)
	i, ok := d.idx[key]
	if !ok {
		return nil, false
	}
	old := d.vals[i]
	d.keys = append(d.keys[:i], d.keys[i+1:]...)
	d.vals = append(d.vals[:i], d.vals[i+1:]...)
	delete(d.idx, key)
	for j := i; j < len(d.keys); j++ {
		d.idx[dictKey(d.keys[j])] = j
	}
	return old, true
}

func (d *OrderedDict) Contains(k H) bool {
	_, ok := d.idx[dictKey(k)]
	return ok
}

func (d *OrderedDict) Len() int { return len(d.keys) }

// Each iterates in insertion order. The callback must not mutate d.
func (d *OrderedDict) Each(fn func(k, v H)) {
	for i := range d.keys {
		fn(d.keys[i], d.vals[i])
	}
}
