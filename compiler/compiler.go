// Package compiler lowers a stack-oriented hostrt.CodeObject into the
// register-oriented regcode.RegCode the Evaluator runs: basic-block
// discovery, abstract stack-depth simulation, depth-indexed register
// assignment, jump-fixup emission, and a fixed-point peephole
// optimizer — then memoizes the result.
package compiler

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/ktstephano/gvm-reg/hostrt"
	"github.com/ktstephano/gvm-reg/internal/diag"
	"github.com/ktstephano/gvm-reg/regcode"
)

const defaultCacheSize = 256

// Compiler turns CodeObjects into RegCode, caching by CodeObject identity
// so a function compiled once (e.g. the entry point of a recursive
// benchmark like quicksort or fannkuch) is never re-lowered on a later
// call.
type Compiler struct {
	mu     sync.Mutex
	cache  *Cache
	logger hclog.Logger
}

// New returns a Compiler with a default-sized RegCode cache and a
// discarding logger; use SetLogger to observe cache-miss compiles.
func New() *Compiler {
	return &Compiler{cache: NewCache(defaultCacheSize), logger: hclog.NewNullLogger()}
}

// NewWithCacheSize is New with an explicit cache capacity, for an
// embedder that compiles an unusually large or small number of distinct
// functions.
func NewWithCacheSize(size int) *Compiler {
	return &Compiler{cache: NewCache(size), logger: hclog.NewNullLogger()}
}

// SetLogger replaces the Compiler's logger (engine.New wires the
// process-wide diag logger in here; tests and the default host leave it
// as the null logger).
func (c *Compiler) SetLogger(l hclog.Logger) {
	if l != nil {
		c.logger = l
	}
}

// Compile returns the RegCode for co, compiling and caching it on first
// use. Nested CodeObjects reachable through MAKE_FUNCTION/MAKE_CLOSURE
// constants are compiled lazily, the first time a function value built
// from them is called (callbridge.go), not eagerly here —
// a module with many never-called nested defs shouldn't pay to lower
// all of them up front.
func (c *Compiler) Compile(co *hostrt.CodeObject) (*regcode.RegCode, error) {
	if co == nil {
		return nil, fmt.Errorf("compiler: nil code object")
	}

	c.mu.Lock()
	if rc, ok := c.cache.Get(co); ok {
		c.mu.Unlock()
		return rc, nil
	}
	c.mu.Unlock()

	id := diag.CompileID()
	c.logger.Debug("compiling code object", "id", id, "name", co.Name, "argcount", co.ArgCount)

	rc, err := compileUncached(co)
	if err != nil {
		c.logger.Error("compile failed", "id", id, "name", co.Name, "err", err)
		return nil, err
	}

	c.mu.Lock()
	c.cache.Put(co, rc)
	c.mu.Unlock()
	c.logger.Debug("compiled code object", "id", id, "name", co.Name, "instrs", len(rc.Instrs), "registers", rc.NumRegisters)
	return rc, nil
}

// compileUncached runs the full pipeline once: simulate -> lower ->
// emit -> optimize.
func compileUncached(co *hostrt.CodeObject) (*regcode.RegCode, error) {
	dep, err := simulate(co)
	if err != nil {
		return nil, fmt.Errorf("compiler: simulate %s: %w", co.Name, err)
	}

	lr, err := lower(co, dep)
	if err != nil {
		return nil, fmt.Errorf("compiler: lower %s: %w", co.Name, err)
	}

	rc, err := emitRegCode(co, lr)
	if err != nil {
		return nil, fmt.Errorf("compiler: emit %s: %w", co.Name, err)
	}

	optimize(rc)

	if errs := rc.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("compiler: %s failed post-optimize validation: %v", co.Name, errs[0])
	}
	return rc, nil
}
