package hostrt

// StackOp is one opcode in the host's stack-oriented instruction set —
// the input contract the Compiler consumes. The set mirrors a classic
// stack-machine bytecode (CPython 2-era opcodes) closely enough that
// the compiler's lowering rules map one-for-one onto it, without this
// repo implementing the host language itself.
type StackOp uint8

const (
	OpNop StackOp = iota

	OpLoadConst
	OpLoadFast
	OpStoreFast
	OpLoadName
	OpStoreName
	OpLoadGlobal
	OpStoreGlobal
	OpLoadDeref
	OpStoreDeref
	OpLoadClosure
	OpLoadAttr
	OpStoreAttr
	OpDeleteAttr

	OpBinaryAdd
	OpBinarySub
	OpBinaryMul
	OpBinaryDiv
	OpBinaryFloorDiv
	OpBinaryTrueDiv
	OpBinaryMod
	OpBinaryPow
	OpBinaryLshift
	OpBinaryRshift
	OpBinaryAnd
	OpBinaryOr
	OpBinaryXor
	OpUnaryNeg
	OpUnaryPos
	OpUnaryInvert
	OpUnaryNot

	OpInplaceAdd
	OpInplaceSub
	OpInplaceMul
	OpInplaceDiv
	OpInplaceFloorDiv
	OpInplaceMod
	OpInplacePow

	OpCompareLt
	OpCompareLe
	OpCompareEq
	OpCompareNe
	OpCompareGt
	OpCompareGe
	OpCompareIs
	OpCompareIsNot
	OpCompareIn
	OpCompareNotIn
	OpCompareExcMatch

	OpBinarySubscr
	OpStoreSubscr
	OpDeleteSubscr
	OpBuildSlice

	OpGetIter
	OpForIter // arg = fall-through offset on StopIteration

	OpPopTop
	OpDupTop
	OpRotTwo
	OpRotThree

	OpJumpAbsolute
	OpJumpIfTrue
	OpJumpIfFalse
	OpPopJumpIfTrue
	OpPopJumpIfFalse

	OpSetupLoop
	OpSetupExcept
	OpSetupFinally
	OpPopBlock
	OpBreakLoop
	OpContinueLoop // arg = loop-start offset

	OpRaiseVarargs // arg = 0,1,2 args already on stack
	OpEndFinally

	// OpExcBind and OpExcDiscard are the only instructions that read the
	// Evaluator's shadow stack directly; they appear solely at the start
	// of a compiled exception-handler block, where the Evaluator has
	// just pushed the in-flight exception value onto it. OpExcBind
	// moves that value onto the ordinary operand stack (for an EXC_MATCH
	// test or an "as e" binding); OpExcDiscard drops it unread (a bare
	// "except:" clause).
	OpExcBind
	OpExcDiscard

	OpCallFunction   // arg = positional argc
	OpCallFunctionKw // arg = positional argc; kwargs dict already on stack
	OpCallFunctionVar
	OpCallFunctionVarKw
	OpReturnValue
	OpYieldValue

	OpBuildTuple
	OpBuildList
	OpBuildDict
	OpBuildSet
	OpMakeFunction  // arg = number of default values already on stack
	OpMakeClosure   // arg = number of default values; free-var cells tuple is also on stack
	OpUnpackSequence
)

// Instr is one stack instruction with its (optional) immediate operand
// and the source line it was compiled from, for diagnostics only.
type Instr struct {
	Op   StackOp
	Arg  int32
	Line int
}

// CodeFlags is the code-object introspection surface the host exposes:
// generator, varargs, varkwargs.
type CodeFlags uint8

const (
	FlagGenerator CodeFlags = 1 << iota
	FlagVarargs
	FlagVarKwargs
)

// CodeObject is the compiled, immutable unit handed to the engine's
// Compiler: a sequence of stack-oriented instructions with associated
// constants, names, and metadata.
type CodeObject struct {
	Name string

	Instrs []Instr
	Consts []H
	Names  []string // globals/attribute/builtin lookup keys

	Varnames  []string // locals, args occupy the prefix
	ArgCount  int
	DefaultCount int // how many of ArgCount's tail positions have defaults (consts, by name order)

	CellVars []string // variables captured by inner closures
	FreeVars []string // variables captured from an enclosing scope

	Flags CodeFlags

	// Jump targets in Instrs are instruction indices, not byte offsets —
	// the Compiler resolves these during basic-block construction
	// (§4.2 step 2) independent of any host-side encoding.
}

func (c *CodeObject) IsGenerator() bool  { return c.Flags&FlagGenerator != 0 }
func (c *CodeObject) HasVarargs() bool   { return c.Flags&FlagVarargs != 0 }
func (c *CodeObject) HasVarKwargs() bool { return c.Flags&FlagVarKwargs != 0 }

// NumLocals is the size of the register-zero prefix reserved for
// arguments plus ordinary locals.
func (c *CodeObject) NumLocals() int { return len(c.Varnames) }
