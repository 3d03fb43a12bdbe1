// Package hostrt is a reference implementation of the embedding host
// runtime described by the engine's external interfaces: a reference-
// counted, dynamically-typed object model plus a toy stack-bytecode
// compiler used to produce CodeObjects for tests and the CLI. A real
// embedder supplies its own implementation of ops.Host; this package
// exists so the engine can be compiled, run, and tested without one.
package hostrt

import (
	"fmt"
	"math/big"
)

// Kind tags the dynamic type of an object handle.
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindStr
	KindTuple
	KindList
	KindDict
	KindSet
	KindSlice
	KindFunc
	KindBuiltin
	KindCell
	KindIterator
	KindStopMarker
	KindClass
	KindInstance
	KindCode
	KindGenerator
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "NoneType"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindStr:
		return "str"
	case KindTuple:
		return "tuple"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	case KindSet:
		return "set"
	case KindSlice:
		return "slice"
	case KindFunc:
		return "function"
	case KindBuiltin:
		return "builtin_function"
	case KindCell:
		return "cell"
	case KindIterator:
		return "iterator"
	case KindStopMarker:
		return "StopIteration"
	case KindClass:
		return "type"
	case KindInstance:
		return "instance"
	case KindCode:
		return "code"
	case KindGenerator:
		return "generator"
	default:
		return "?unknown?"
	}
}

// Object is the concrete representation behind an opaque handle H.
// Every field set is exclusive to Kind; the struct is intentionally a
// single allocation instead of an interface hierarchy so refcount.go has
// one place to hook incref/decref regardless of dynamic type.
type Object struct {
	Kind Kind

	Bool  bool
	Int   *big.Int // host language ints are arbitrary precision
	Float float64
	Str   string

	Items []H         // tuple, list, set
	Dict  *OrderedDict // dict

	SliceStart, SliceStop, SliceStep H

	Fn      *FuncObject
	Builtin BuiltinFunc
	Cell    H // cell contents (nil = empty cell)

	Iter     H   // backing container for a simple sequence iterator
	IterPos  int
	Class    *ClassObject
	Instance *InstanceObject
	CodeVal  *CodeObject // KindCode: a nested function body captured by MAKE_FUNCTION/MAKE_CLOSURE

	// Gen is a KindGenerator object's suspended activation: an opaque
	// *frame.Frame. hostrt cannot name that type directly (frame imports
	// hostrt), so callbridge and evaluator type-assert it back; see
	// ops.Host.ResumeGenerator.
	Gen interface{}

	refs int32
}

// H is the opaque object handle the rest of the engine deals in. It
// carries one strong reference while stored in any register, constant
// slot, stack slot, or cell — see refcount.go.
type H = *Object

// FuncObject is a host-compiled function: a CodeObject plus the closure
// state captured at MAKE_FUNCTION/MAKE_CLOSURE time.
type FuncObject struct {
	Code     *CodeObject
	Defaults []H
	Closure  []H // cell handles, parallel to Code.FreeVars
	Globals  *OrderedDict
	Name     string
}

// BuiltinFunc is a host-implemented callable the Call Bridge invokes
// directly rather than compiling.
type BuiltinFunc func(rt *Runtime, args []H, kwargs *OrderedDict) (H, error)

// ClassObject is the minimal class record needed to exercise the
// attribute protocol. It is not a general object system: no
// inheritance, no metaclasses, no descriptors.
type ClassObject struct {
	Name    string
	Methods *OrderedDict // name -> H(KindFunc|KindBuiltin)
}

// InstanceObject is an instance of a ClassObject with its own attribute
// dict, consulted before the class's Methods dict on GET_ATTR.
type InstanceObject struct {
	Class *ClassObject
	Attrs *OrderedDict
}

func (o H) String() string {
	if o == nil {
		return "<nil>"
	}
	switch o.Kind {
	case KindNone:
		return "None"
	case KindBool:
		if o.Bool {
			return "True"
		}
		return "False"
	case KindInt:
		return o.Int.String()
	case KindFloat:
		return fmt.Sprintf("%g", o.Float)
	case KindStr:
		return o.Str
	default:
		return fmt.Sprintf("<%s object>", o.Kind)
	}
}
