// Command regrun is the CLI entry point for the register-machine
// accelerator: a script path goes in, compiled with the reference
// hostrt assembler, and its top-level code object executes inside a
// Frame.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ktstephano/gvm-reg/engine"
)

// verbose is parsed with the stdlib flag package ahead of cobra taking
// over subcommand routing: "regrun -v run file.src". flag.Parse stops
// at the first non-flag argument, so the subcommand name and its own
// args pass through to cobra untouched.
var verbose = flag.Bool("v", false, "enable debug-level engine logging")

func main() {
	flag.Parse()
	if *verbose {
		os.Setenv("GVM_LOG_LEVEL", "debug")
	}

	root := &cobra.Command{
		Use:   "regrun",
		Short: "Compile and run register-machine bytecode assembly listings",
	}
	root.AddCommand(runCmd(), compileCmd(), benchCmd())
	root.SetArgs(flag.Args())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		// An error that surfaced from inside a running frame propagates
		// as an ordinary nonzero exit; everything else (unreadable file,
		// unparseable listing, unknown subcommand) is a bad invocation.
		var re *engine.RunError
		if errors.As(err, &re) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}
