package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ktstephano/gvm-reg/engine"
	"github.com/ktstephano/gvm-reg/hostrt"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file.src>",
		Short: "Assemble and run a stack-bytecode listing's main function",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	co, err := loadCodeObject(args[0])
	if err != nil {
		return err
	}

	eng := engine.New(nil)
	fn := hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindFunc, Fn: &hostrt.FuncObject{
		Code:    co,
		Globals: eng.Globals(),
		Name:    co.Name,
	}})

	result, err := eng.Run(fn, nil, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	fmt.Fprintln(os.Stdout, result.String())
	return nil
}

func loadCodeObject(path string) (*hostrt.CodeObject, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	co, err := hostrt.Assemble(string(src))
	if err != nil {
		return nil, fmt.Errorf("assembling %s: %w", path, err)
	}
	return co, nil
}
