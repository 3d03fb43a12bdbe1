package hostrt

import (
	"math/big"
	"testing"
)

func strH(s string) H { return &Object{Kind: KindStr, Str: s} }
func intH(i int64) H  { return &Object{Kind: KindInt, Int: big.NewInt(i)} }

func TestOrderedDictPreservesInsertionOrder(t *testing.T) {
	d := NewOrderedDict()
	d.SetStr("c", intH(3))
	d.SetStr("a", intH(1))
	d.SetStr("b", intH(2))

	var order []string
	d.Each(func(k, v H) { order = append(order, k.Str) })

	want := []string{"c", "a", "b"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestOrderedDictSetReplacesInPlace(t *testing.T) {
	d := NewOrderedDict()
	d.SetStr("x", intH(1))
	old, hadOld := d.SetStr2("x", intH(2))
	if !hadOld || old.Int.Int64() != 1 {
		t.Fatalf("expected replaced value 1, got hadOld=%v old=%v", hadOld, old)
	}
	if d.Len() != 1 {
		t.Fatalf("expected len 1 after replace, got %d", d.Len())
	}
	v, ok := d.GetStr("x")
	if !ok || v.Int.Int64() != 2 {
		t.Fatalf("expected x=2, got %v ok=%v", v, ok)
	}
}

func TestOrderedDictDelReindexes(t *testing.T) {
	d := NewOrderedDict()
	d.SetStr("a", intH(1))
	d.SetStr("b", intH(2))
	d.SetStr("c", intH(3))

	if _, ok := d.Del(strH("a")); !ok {
		t.Fatalf("expected a to be present")
	}
	if d.Len() != 2 {
		t.Fatalf("expected len 2, got %d", d.Len())
	}
	if v, ok := d.GetStr("b"); !ok || v.Int.Int64() != 2 {
		t.Fatalf("expected b=2 still reachable after delete, got %v ok=%v", v, ok)
	}
	if v, ok := d.GetStr("c"); !ok || v.Int.Int64() != 3 {
		t.Fatalf("expected c=3 still reachable after delete, got %v ok=%v", v, ok)
	}
}

func TestOrderedDictContains(t *testing.T) {
	d := NewOrderedDict()
	if d.Contains(strH("missing")) {
		t.Fatalf("empty dict should not contain anything")
	}
	d.SetStr("present", intH(0))
	if !d.Contains(strH("present")) {
		t.Fatalf("expected present to be found")
	}
}
