package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ktstephano/gvm-reg/engine"
	"github.com/ktstephano/gvm-reg/hostrt"
)

var benchIters int

func benchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench <file.src>",
		Short: "Run a listing's main function repeatedly and report timing",
		Args:  cobra.ExactArgs(1),
		RunE:  runBench,
	}
	cmd.Flags().IntVar(&benchIters, "iters", 10, "number of timed invocations")
	return cmd
}

func runBench(cmd *cobra.Command, args []string) error {
	co, err := loadCodeObject(args[0])
	if err != nil {
		return err
	}

	eng := engine.New(nil)
	// Compile once up front so the first iteration's cache-miss compile
	// doesn't skew the per-call timing the way it would if left to the
	// Compiler's own lazy cache.
	if _, err := eng.Compile(co); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	fn := hostrt.NewHandle(&hostrt.Object{Kind: hostrt.KindFunc, Fn: &hostrt.FuncObject{
		Code:    co,
		Globals: eng.Globals(),
		Name:    co.Name,
	}})

	start := time.Now()
	for i := 0; i < benchIters; i++ {
		if _, err := eng.Run(fn, nil, nil); err != nil {
			return fmt.Errorf("%s: iteration %d: %w", args[0], i, err)
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("%s: %d iterations in %s (%s/iter)\n", args[0], benchIters, elapsed, elapsed/time.Duration(benchIters))
	return nil
}
