// Package cli wires the demystify command line: flag/config parsing via
// cobra, pflag and viper, structured logging via logrus, and the
// pipeline from Model Compiler Client through Step Scheduler to Trace
// Renderer.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clues/demystify/internal/compiler"
	"github.com/clues/demystify/internal/knowledge"
	"github.com/clues/demystify/internal/paramfile"
	"github.com/clues/demystify/internal/puzzleerr"
	"github.com/clues/demystify/internal/scheduler"
	"github.com/clues/demystify/internal/trace"
	"github.com/clues/demystify/internal/workpool"
)

// NewRootCommand builds the demystify cobra command tree per spec §6's
// CLI surface.
func NewRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "demystify",
		Short: "Explain human-style solving of a constraint puzzle",
		Long: `demystify compiles a puzzle model and parameter file, then explains
how a solver could reach the solution by hand: at every step it names a
value that can be ruled out and the minimal set of clues that rules it
out.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.String("model", "", "path to the puzzle model file")
	flags.String("param", "", "path to the parameter file")
	flags.Int("merge", 1, "maximum number of distinct MUSes to report per deduced literal")
	flags.Bool("html", false, "emit an HTML trace instead of text")
	flags.Bool("quick", false, "prefer the first refutable candidate with a single-clue MUS")
	flags.Bool("trace", false, "verbose per-step logging")
	flags.String("compiler", "demystify-compile", "path to the model compiler binary")
	flags.String("cache-dir", "", "directory for cached compiler output (disabled if empty)")
	flags.Int("workers", 0, "worker pool size (0 = number of CPUs)")

	cobra.CheckErr(v.BindPFlags(flags))
	v.SetEnvPrefix("DEMYSTIFY")
	v.AutomaticEnv()

	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("param")

	cmd.AddCommand(newSolveDIMACSCommand())

	return cmd
}

func run(ctx context.Context, v *viper.Viper) error {
	runID := uuid.New()
	log := newLogger(v.GetBool("trace")).WithField("run_id", runID)

	if _, err := paramfile.Load(v.GetString("param")); err != nil {
		return err
	}

	comp := compiler.New(v.GetString("compiler"), v.GetString("cache-dir"), log)
	puzzle, err := comp.Compile(ctx, v.GetString("model"), v.GetString("param"))
	if err != nil {
		return err
	}

	baseSolver, err := puzzle.NewSolver()
	if err != nil {
		return puzzleerr.Wrap(puzzleerr.SolverFatal, err, "loading compiled CNF")
	}

	ks := knowledge.New(puzzle)
	pool := workpool.New(v.GetInt("workers"))
	sched := scheduler.New(puzzle, ks, baseSolver, scheduler.Options{
		Merge:      v.GetInt("merge"),
		Quick:      v.GetBool("quick"),
		FilterPool: pool,
		MUSPool:    pool,
	}, log)

	status, err := sched.Run(ctx)
	if err != nil {
		return err
	}

	renderer := trace.New(puzzle, v.GetBool("html"))
	rendered, err := renderer.RenderTrace(sched.Records())
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, rendered)

	switch status {
	case scheduler.Done:
		return nil
	case scheduler.Stuck:
		return puzzleerr.New(puzzleerr.Stuck, "knowledge state is not fully determined by the given clues")
	default:
		return puzzleerr.New(puzzleerr.Unknown, fmt.Sprintf("unexpected terminal status %v", status))
	}
}

func newLogger(verbose bool) *logrus.Entry {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return logrus.NewEntry(l)
}

// ExitCode maps an error returned from the root command to the process
// exit code described in spec §6.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch puzzleerr.KindOf(err) {
	case puzzleerr.Stuck:
		return 1
	case puzzleerr.ContradictoryInput, puzzleerr.Contradiction:
		return 2
	case puzzleerr.CompilerFailure:
		return 3
	case puzzleerr.SolverFatal, puzzleerr.SolverTransient:
		return 10
	default:
		return 11
	}
}
