package cli

import (
	"errors"
	"testing"

	"github.com/clues/demystify/internal/puzzleerr"
)

func TestExitCodeMapsKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"stuck", puzzleerr.New(puzzleerr.Stuck, "x"), 1},
		{"contradictory input", puzzleerr.New(puzzleerr.ContradictoryInput, "x"), 2},
		{"contradiction", puzzleerr.New(puzzleerr.Contradiction, "x"), 2},
		{"compiler failure", puzzleerr.New(puzzleerr.CompilerFailure, "x"), 3},
		{"solver fatal", puzzleerr.New(puzzleerr.SolverFatal, "x"), 10},
		{"solver transient", puzzleerr.New(puzzleerr.SolverTransient, "x"), 10},
		{"plain error", errors.New("boom"), 11},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ExitCode(c.err); got != c.want {
				t.Errorf("ExitCode(%v) = %d, want %d", c.err, got, c.want)
			}
		})
	}
}

func TestNewRootCommandRegistersFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"model", "param", "merge", "html", "quick", "trace", "compiler", "cache-dir", "workers"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing flag %q", name)
		}
	}
}

func TestNewRootCommandRegistersSolveDIMACSSubcommand(t *testing.T) {
	cmd := NewRootCommand()
	sub, _, err := cmd.Find([]string{"solve-dimacs"})
	if err != nil {
		t.Fatalf("Find(solve-dimacs): %v", err)
	}
	if sub.Use != "solve-dimacs <file>" {
		t.Errorf("unexpected subcommand: %q", sub.Use)
	}
}
