package compiler

import (
	"github.com/hashicorp/go-multierror"

	"github.com/ktstephano/gvm-reg/hostrt"
	"github.com/ktstephano/gvm-reg/regcode"
)

// emit resolves every jump fixup against the stack-index -> register-
// index map and assembles the final RegCode, mirroring the two-pass
// label-fixup style hostrt.Assemble itself uses.
func emitRegCode(co *hostrt.CodeObject, lr *lowerResult) (*regcode.RegCode, error) {
	for _, fx := range lr.fixups {
		target := lr.stackToReg[fx.stackTarget]
		lr.instrs[fx.outIdx].Ext = uint32(target)
	}

	consts := make([]interface{}, len(co.Consts))
	for i, c := range co.Consts {
		consts[i] = c
	}

	var exceptions []regcode.ExceptionEntry
	for _, pe := range lr.exceptions {
		exceptions = append(exceptions, regcode.ExceptionEntry{
			Start:      lr.stackToReg[pe.startStack],
			End:        lr.stackToReg[pe.handlerStack],
			Handler:    lr.stackToReg[pe.handlerStack],
			StackDepth: pe.depth,
		})
	}

	rc := &regcode.RegCode{
		Name:         co.Name,
		Instrs:       lr.instrs,
		NumRegisters: lr.numRegisters,
		NumLocals:    co.NumLocals(),
		Arity: regcode.Arity{
			PosArgCount:  co.ArgCount,
			DefaultCount: co.DefaultCount,
			CellCount:    len(co.CellVars),
			FreeCount:    len(co.FreeVars),
			HasVarargs:   co.HasVarargs(),
			HasVarKwargs: co.HasVarKwargs(),
			IsGenerator:  co.IsGenerator(),
		},
		Consts:     consts,
		Names:      co.Names,
		Exceptions: exceptions,
		Lines:      linesOf(co, lr),
	}

	if errs := rc.Validate(); len(errs) > 0 {
		var merr *multierror.Error
		for _, e := range errs {
			merr = multierror.Append(merr, e)
		}
		return nil, merr.ErrorOrNil()
	}
	return rc, nil
}

// linesOf maps each lowered instruction back to the source line of the
// stack instruction it was lowered from, for disassembly only.
func linesOf(co *hostrt.CodeObject, lr *lowerResult) []int {
	lines := make([]int, len(lr.instrs))
	for i := 0; i < len(co.Instrs); i++ {
		start, end := lr.stackToReg[i], lr.stackToReg[i+1]
		for j := start; j < end; j++ {
			lines[j] = co.Instrs[i].Line
		}
	}
	return lines
}
