// Package diag supplies the engine's structured logging and per-compile
// correlation IDs: hashicorp/go-hclog for levelled, key/value
// structured output, google/uuid for a per-CodeObject-compile
// correlation ID. Neither is ever consulted from the Evaluator's
// dispatch loop — only around the Compiler's cache miss path and the
// CLI, where the cost of a log call or a UUID allocation does not
// matter.
package diag

import (
	"os"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// New returns the engine's default logger: human-readable output to
// stderr at Info level, overridable with GVM_LOG_LEVEL.
func New(name string) hclog.Logger {
	level := hclog.Info
	if v := os.Getenv("GVM_LOG_LEVEL"); v != "" {
		level = hclog.LevelFromString(v)
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  level,
		Output: os.Stderr,
	})
}

// CompileID returns a fresh correlation ID to tag the log lines around
// one Compiler.Compile call (its start, failure or completion), so a
// slow or failing compile can be traced without threading a request ID
// through every function signature.
func CompileID() string {
	return uuid.NewString()
}
