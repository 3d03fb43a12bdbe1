package hostrt

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Assemble turns a line-oriented stack-bytecode assembly listing into a
// CodeObject: a thin, forgiving text format for fixtures and the CLI,
// not a host-language front end.
//
// Grammar (one directive or instruction per line; '#' starts a comment):
//
//	.name NAME
//	.args N
//	.defaults N
//	.locals a, b, c        (declares the locals table; args occupy the prefix)
//	.cellvars a, b
//	.freevars a, b
//	.flags GENERATOR,VARARGS,VARKWARGS
//	label:                  (defines a jump target at the next instruction)
//	OPNAME [operand]
//
// Operand resolution by opcode:
//   - LOAD_CONST takes a literal: an int, a float (has '.'), 'true'/'false',
//     'none', or a double-quoted string.
//   - LOAD_FAST/STORE_FAST, LOAD_DEREF/STORE_DEREF/LOAD_CLOSURE take a
//     name already declared via .locals/.cellvars/.freevars.
//   - LOAD_NAME/STORE_NAME/LOAD_GLOBAL/STORE_GLOBAL/LOAD_ATTR/STORE_ATTR/
//     DELETE_ATTR take an identifier, auto-interned into Names.
//   - Jump-carrying opcodes (JUMP_ABSOLUTE, JUMP_IF_TRUE, JUMP_IF_FALSE,
//     POP_JUMP_IF_TRUE, POP_JUMP_IF_FALSE, FOR_ITER, SETUP_LOOP,
//     SETUP_EXCEPT, SETUP_FINALLY, CONTINUE_LOOP) take a label name.
//   - BUILD_TUPLE/LIST/DICT/SET, BUILD_SLICE, CALL_FUNCTION*,
//     RAISE_VARARGS, UNPACK_SEQUENCE, MAKE_FUNCTION, MAKE_CLOSURE take an
//     integer.
//   - Everything else takes no operand.
//
// A source listing may also define more than one function, each
// introduced by a ".function NAME" header line; LOAD_CONST "@NAME"
// embeds another function of the listing as a KindCode constant, for
// MAKE_FUNCTION/MAKE_CLOSURE to wrap into a callable. Assemble returns
// the function named "main" if one exists, else the first function in
// the listing.
func Assemble(source string) (*CodeObject, error) {
	blocks := splitFunctions(source)
	funcs := map[string]*CodeObject{}
	order := make([]string, 0, len(blocks))
	for _, b := range blocks {
		co, err := assembleOne(b.body)
		if err != nil {
			return nil, fmt.Errorf("function %q: %w", b.name, err)
		}
		if co.Name == "" {
			co.Name = b.name
		}
		funcs[b.name] = co
		order = append(order, b.name)
	}
	for _, co := range funcs {
		if err := resolveCodeConsts(co, funcs); err != nil {
			return nil, err
		}
	}
	if co, ok := funcs["main"]; ok {
		return co, nil
	}
	if len(order) > 0 {
		return funcs[order[0]], nil
	}
	return nil, fmt.Errorf("empty module")
}

type funcBlock struct {
	name string
	body string
}

// splitFunctions breaks a listing into one block per ".function NAME"
// header; a listing with no such headers is a single unnamed block
// (named "main"), preserving single-function listings used throughout
// this repo's fixtures and tests.
func splitFunctions(source string) []funcBlock {
	lines := strings.Split(source, "\n")
	var blocks []funcBlock
	cur := funcBlock{name: "main"}
	var body []string
	seenHeader := false
	flush := func() {
		cur.body = strings.Join(body, "\n")
		blocks = append(blocks, cur)
		body = nil
	}
	// Blank and comment-only lines ahead of the first header do not make
	// an implicit "main" block of their own.
	hasContent := func() bool {
		for _, l := range body {
			if idx := strings.Index(l, "#"); idx >= 0 {
				l = l[:idx]
			}
			if strings.TrimSpace(l) != "" {
				return true
			}
		}
		return false
	}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, ".function ") {
			if seenHeader || hasContent() {
				flush()
			}
			seenHeader = true
			cur = funcBlock{name: strings.TrimSpace(strings.TrimPrefix(trimmed, ".function "))}
			continue
		}
		body = append(body, line)
	}
	flush()
	return blocks
}

// resolveCodeConsts fills in KindCode constants created as placeholders
// for "@NAME" LOAD_CONST operands once every function in the module has
// been assembled.
func resolveCodeConsts(co *CodeObject, funcs map[string]*CodeObject) error {
	for _, c := range co.Consts {
		if c.Kind == KindCode && c.CodeVal == nil {
			target, ok := funcs[c.Str]
			if !ok {
				return fmt.Errorf("undefined function %q referenced by @%s", c.Str, c.Str)
			}
			c.CodeVal = target
		}
	}
	return nil
}

func assembleOne(source string) (*CodeObject, error) {
	co := &CodeObject{}
	nameIdx := map[string]int{}
	localIdx := map[string]int{}
	cellIdx := map[string]int{}
	freeIdx := map[string]int{}

	labels := map[string]int{}
	type pending struct {
		instrIdx int
		label    string
	}
	var fixups []pending

	internName := func(n string) int {
		if i, ok := nameIdx[n]; ok {
			return i
		}
		i := len(co.Names)
		co.Names = append(co.Names, n)
		nameIdx[n] = i
		return i
	}

	lines := strings.Split(source, "\n")
	for lineNo, raw := range lines {
		line := raw
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasSuffix(line, ":") {
			labels[strings.TrimSuffix(line, ":")] = len(co.Instrs)
			continue
		}

		if strings.HasPrefix(line, ".") {
			fields := strings.SplitN(line, " ", 2)
			directive := fields[0]
			rest := ""
			if len(fields) > 1 {
				rest = strings.TrimSpace(fields[1])
			}
			switch directive {
			case ".name":
				co.Name = rest
			case ".args":
				n, err := strconv.Atoi(rest)
				if err != nil {
					return nil, fmt.Errorf("line %d: bad .args: %w", lineNo+1, err)
				}
				co.ArgCount = n
			case ".defaults":
				n, err := strconv.Atoi(rest)
				if err != nil {
					return nil, fmt.Errorf("line %d: bad .defaults: %w", lineNo+1, err)
				}
				co.DefaultCount = n
			case ".locals":
				for _, name := range splitCSV(rest) {
					localIdx[name] = len(co.Varnames)
					co.Varnames = append(co.Varnames, name)
				}
			case ".cellvars":
				for _, name := range splitCSV(rest) {
					cellIdx[name] = len(co.CellVars)
					co.CellVars = append(co.CellVars, name)
				}
			case ".freevars":
				for _, name := range splitCSV(rest) {
					freeIdx[name] = len(co.FreeVars)
					co.FreeVars = append(co.FreeVars, name)
				}
			case ".flags":
				for _, f := range splitCSV(rest) {
					switch strings.ToUpper(f) {
					case "GENERATOR":
						co.Flags |= FlagGenerator
					case "VARARGS":
						co.Flags |= FlagVarargs
					case "VARKWARGS":
						co.Flags |= FlagVarKwargs
					}
				}
			default:
				return nil, fmt.Errorf("line %d: unknown directive %q", lineNo+1, directive)
			}
			continue
		}

		fields := strings.SplitN(line, " ", 2)
		mnemonic := strings.ToUpper(fields[0])
		operand := ""
		if len(fields) > 1 {
			operand = strings.TrimSpace(fields[1])
		}

		op, ok := mnemonicToOp[mnemonic]
		if !ok {
			return nil, fmt.Errorf("line %d: unknown opcode %q", lineNo+1, mnemonic)
		}

		instr := Instr{Op: op, Line: lineNo + 1}

		switch op {
		case OpLoadConst:
			v, err := parseLiteral(operand)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
			}
			co.Consts = append(co.Consts, v)
			instr.Arg = int32(len(co.Consts) - 1)

		case OpLoadFast, OpStoreFast:
			i, ok := localIdx[operand]
			if !ok {
				return nil, fmt.Errorf("line %d: undeclared local %q", lineNo+1, operand)
			}
			instr.Arg = int32(i)

		case OpLoadDeref, OpStoreDeref, OpLoadClosure:
			if i, ok := cellIdx[operand]; ok {
				instr.Arg = int32(i)
			} else if i, ok := freeIdx[operand]; ok {
				instr.Arg = int32(len(co.CellVars) + i)
			} else {
				return nil, fmt.Errorf("line %d: undeclared cell/free var %q", lineNo+1, operand)
			}

		case OpLoadName, OpStoreName, OpLoadGlobal, OpStoreGlobal,
			OpLoadAttr, OpStoreAttr, OpDeleteAttr:
			instr.Arg = int32(internName(operand))

		case OpJumpAbsolute, OpJumpIfTrue, OpJumpIfFalse,
			OpPopJumpIfTrue, OpPopJumpIfFalse, OpForIter,
			OpSetupLoop, OpSetupExcept, OpSetupFinally, OpContinueLoop:
			fixups = append(fixups, pending{instrIdx: len(co.Instrs), label: operand})

		case OpBuildTuple, OpBuildList, OpBuildDict, OpBuildSet,
			OpCallFunction, OpCallFunctionKw, OpCallFunctionVar, OpCallFunctionVarKw,
			OpRaiseVarargs, OpUnpackSequence, OpMakeFunction, OpMakeClosure, OpBuildSlice:
			n, err := strconv.Atoi(operand)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad integer operand %q: %w", lineNo+1, operand, err)
			}
			instr.Arg = int32(n)
		}

		co.Instrs = append(co.Instrs, instr)
	}

	for _, fx := range fixups {
		target, ok := labels[fx.label]
		if !ok {
			return nil, fmt.Errorf("undefined label %q", fx.label)
		}
		co.Instrs[fx.instrIdx].Arg = int32(target)
	}

	return co, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLiteral(s string) (H, error) {
	if strings.HasPrefix(s, "@") {
		// Placeholder resolved by resolveCodeConsts once every function
		// in the module has been assembled; Str carries the target name.
		return NewHandle(&Object{Kind: KindCode, Str: s[1:]}), nil
	}
	switch strings.ToLower(s) {
	case "none":
		return NewHandle(&Object{Kind: KindNone}), nil
	case "true":
		return NewHandle(&Object{Kind: KindBool, Bool: true}), nil
	case "false":
		return NewHandle(&Object{Kind: KindBool, Bool: false}), nil
	}
	if strings.HasPrefix(s, "\"") && strings.HasSuffix(s, "\"") && len(s) >= 2 {
		return NewHandle(&Object{Kind: KindStr, Str: s[1 : len(s)-1]}), nil
	}
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("bad float literal %q: %w", s, err)
		}
		return NewHandle(&Object{Kind: KindFloat, Float: f}), nil
	}
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("bad literal %q", s)
	}
	return NewHandle(&Object{Kind: KindInt, Int: i}), nil
}

var mnemonicToOp = map[string]StackOp{
	"NOP": OpNop,

	"LOAD_CONST":    OpLoadConst,
	"LOAD_FAST":     OpLoadFast,
	"STORE_FAST":    OpStoreFast,
	"LOAD_NAME":     OpLoadName,
	"STORE_NAME":    OpStoreName,
	"LOAD_GLOBAL":   OpLoadGlobal,
	"STORE_GLOBAL":  OpStoreGlobal,
	"LOAD_DEREF":    OpLoadDeref,
	"STORE_DEREF":   OpStoreDeref,
	"LOAD_CLOSURE":  OpLoadClosure,
	"LOAD_ATTR":     OpLoadAttr,
	"STORE_ATTR":    OpStoreAttr,
	"DELETE_ATTR":   OpDeleteAttr,

	"BINARY_ADD":       OpBinaryAdd,
	"BINARY_SUB":       OpBinarySub,
	"BINARY_MUL":       OpBinaryMul,
	"BINARY_DIV":       OpBinaryDiv,
	"BINARY_FLOORDIV":  OpBinaryFloorDiv,
	"BINARY_TRUEDIV":   OpBinaryTrueDiv,
	"BINARY_MOD":       OpBinaryMod,
	"BINARY_POW":       OpBinaryPow,
	"BINARY_LSHIFT":    OpBinaryLshift,
	"BINARY_RSHIFT":    OpBinaryRshift,
	"BINARY_AND":       OpBinaryAnd,
	"BINARY_OR":        OpBinaryOr,
	"BINARY_XOR":       OpBinaryXor,
	"UNARY_NEGATIVE":   OpUnaryNeg,
	"UNARY_POSITIVE":   OpUnaryPos,
	"UNARY_INVERT":     OpUnaryInvert,
	"UNARY_NOT":        OpUnaryNot,

	"INPLACE_ADD":      OpInplaceAdd,
	"INPLACE_SUB":      OpInplaceSub,
	"INPLACE_MUL":      OpInplaceMul,
	"INPLACE_DIV":      OpInplaceDiv,
	"INPLACE_FLOORDIV": OpInplaceFloorDiv,
	"INPLACE_MOD":      OpInplaceMod,
	"INPLACE_POW":      OpInplacePow,

	"COMPARE_LT":        OpCompareLt,
	"COMPARE_LE":        OpCompareLe,
	"COMPARE_EQ":        OpCompareEq,
	"COMPARE_NE":        OpCompareNe,
	"COMPARE_GT":        OpCompareGt,
	"COMPARE_GE":        OpCompareGe,
	"COMPARE_IS":        OpCompareIs,
	"COMPARE_IS_NOT":    OpCompareIsNot,
	"COMPARE_IN":        OpCompareIn,
	"COMPARE_NOT_IN":    OpCompareNotIn,
	"COMPARE_EXC_MATCH": OpCompareExcMatch,

	"BINARY_SUBSCR": OpBinarySubscr,
	"STORE_SUBSCR":  OpStoreSubscr,
	"DELETE_SUBSCR": OpDeleteSubscr,
	"BUILD_SLICE":   OpBuildSlice,

	"GET_ITER": OpGetIter,
	"FOR_ITER": OpForIter,

	"POP_TOP":   OpPopTop,
	"DUP_TOP":   OpDupTop,
	"ROT_TWO":   OpRotTwo,
	"ROT_THREE": OpRotThree,

	"JUMP_ABSOLUTE":      OpJumpAbsolute,
	"JUMP_IF_TRUE":       OpJumpIfTrue,
	"JUMP_IF_FALSE":      OpJumpIfFalse,
	"POP_JUMP_IF_TRUE":   OpPopJumpIfTrue,
	"POP_JUMP_IF_FALSE":  OpPopJumpIfFalse,

	"SETUP_LOOP":    OpSetupLoop,
	"SETUP_EXCEPT":  OpSetupExcept,
	"SETUP_FINALLY": OpSetupFinally,
	"POP_BLOCK":     OpPopBlock,
	"BREAK_LOOP":    OpBreakLoop,
	"CONTINUE_LOOP": OpContinueLoop,

	"RAISE_VARARGS": OpRaiseVarargs,
	"END_FINALLY":   OpEndFinally,
	"EXC_BIND":      OpExcBind,
	"EXC_DISCARD":   OpExcDiscard,

	"CALL_FUNCTION":        OpCallFunction,
	"CALL_FUNCTION_KW":     OpCallFunctionKw,
	"CALL_FUNCTION_VAR":    OpCallFunctionVar,
	"CALL_FUNCTION_VAR_KW": OpCallFunctionVarKw,
	"RETURN_VALUE":         OpReturnValue,
	"YIELD_VALUE":          OpYieldValue,

	"BUILD_TUPLE":      OpBuildTuple,
	"BUILD_LIST":       OpBuildList,
	"BUILD_DICT":       OpBuildDict,
	"BUILD_SET":        OpBuildSet,
	"MAKE_FUNCTION":    OpMakeFunction,
	"MAKE_CLOSURE":     OpMakeClosure,
	"UNPACK_SEQUENCE":  OpUnpackSequence,
}
