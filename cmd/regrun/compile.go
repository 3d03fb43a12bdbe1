package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ktstephano/gvm-reg/engine"
)

func compileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile <file.src>",
		Short: "Assemble a listing and report the register-code it lowers to",
		Args:  cobra.ExactArgs(1),
		RunE:  runCompile,
	}
}

func runCompile(cmd *cobra.Command, args []string) error {
	co, err := loadCodeObject(args[0])
	if err != nil {
		return err
	}

	eng := engine.New(nil)
	rc, err := eng.Compile(co)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	fmt.Printf("function %q\n", rc.Name)
	fmt.Printf("  instructions: %d\n", len(rc.Instrs))
	fmt.Printf("  registers:    %d (locals: %d)\n", rc.NumRegisters, rc.NumLocals)
	fmt.Printf("  cells:        %d + %d free\n", rc.Arity.CellCount, rc.Arity.FreeCount)
	fmt.Printf("  exceptions:   %d\n", len(rc.Exceptions))
	if rc.Arity.IsGenerator {
		fmt.Println("  generator:    yes")
	}
	return nil
}
