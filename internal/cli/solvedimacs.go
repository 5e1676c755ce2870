package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clues/demystify/internal/sat"
)

// newSolveDIMACSCommand builds the "solve-dimacs" debug subcommand: it
// runs the SAT Gateway directly against a raw DIMACS CNF file, bypassing
// the model compiler entirely. It exists for diagnosing the solver in
// isolation from a puzzle encoding, and for sanity-checking third-party
// CNF fixtures.
func newSolveDIMACSCommand() *cobra.Command {
	var assumeVars []int

	cmd := &cobra.Command{
		Use:   "solve-dimacs <file>",
		Short: "Solve a raw DIMACS CNF file with the SAT Gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolveDIMACS(cmd.Context(), args[0], assumeVars, cmd)
		},
	}
	cmd.Flags().IntSliceVar(&assumeVars, "assume", nil, "signed variable literals to assume, e.g. --assume=1,-2")
	return cmd
}

func runSolveDIMACS(ctx context.Context, path string, assumeVars []int, cmd *cobra.Command) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	nbVars, clauses, err := sat.ParseDIMACS(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	solver := sat.New(nbVars)
	if err := solver.AddClauses(clauses); err != nil {
		return fmt.Errorf("loading clauses: %w", err)
	}

	assumptions := make([]sat.Lit, len(assumeVars))
	for i, n := range assumeVars {
		if n == 0 {
			return fmt.Errorf("--assume: 0 is not a valid literal")
		}
		v := n
		neg := false
		if v < 0 {
			v, neg = -v, true
		}
		assumptions[i] = sat.MkLit(sat.Var(v), neg)
	}

	result, err := solver.Solve(ctx, assumptions)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, result.Outcome)
	switch result.Outcome {
	case sat.Sat:
		for v := 1; v <= nbVars; v++ {
			val := result.Value(sat.MkLit(sat.Var(v), false))
			fmt.Fprintf(out, "%d=%t\n", v, val)
		}
	case sat.Unsat:
		fmt.Fprintf(out, "core: %v\n", result.Core)
	}
	return nil
}
