// Package filter implements the Quick Filter: two cheap single-solver
// passes run before the MUS Engine, to rule out easy candidates and to
// seed harder ones with a core to shrink.
package filter

import (
	"context"
	"fmt"

	"github.com/clues/demystify/internal/knowledge"
	"github.com/clues/demystify/internal/model"
	"github.com/clues/demystify/internal/sat"
	"github.com/clues/demystify/internal/workpool"
)

// ErrPuzzleUnsat is returned by the solver-value sweep when asserting
// every switch true is itself UNSAT: the puzzle has no solution under
// its full clue set.
type ErrPuzzleUnsat struct{}

func (ErrPuzzleUnsat) Error() string { return "filter: puzzle is unsatisfiable under all clues" }

// Candidate is one surviving, not-yet-refuted candidate literal along
// with the seed core the single-assumption sweep collected for it,
// ready to hand to the MUS Engine.
type Candidate struct {
	Literal model.LiteralKey
	Seed    []sat.Lit
}

// Result is the outcome of running the Quick Filter once.
type Result struct {
	// Model is the baseline satisfying assignment found by the
	// solver-value sweep, keyed by puzzle literal.
	Model map[model.LiteralKey]bool
	// Refutable holds the candidate literals the single-assumption
	// sweep found UNSAT, each with its seed core.
	Refutable []Candidate
}

// Run executes both sweeps described in spec §4.4 over the given base
// solver (never mutated; each sweep clones it) and Knowledge State
// snapshot. pool bounds the concurrency of the per-literal sweep.
func Run(ctx context.Context, base *sat.Solver, p *model.Puzzle, ks *knowledge.State, pool *workpool.Pool) (Result, error) {
	switches := p.Switches()

	baseline := base.Clone()
	res, err := baseline.Solve(ctx, switches)
	if err != nil {
		return Result{}, fmt.Errorf("filter: solver-value sweep: %w", err)
	}
	if res.Outcome == sat.Unsat {
		return Result{}, ErrPuzzleUnsat{}
	}

	modelVals := make(map[model.LiteralKey]bool, len(p.Literals()))
	for _, lk := range p.Literals() {
		cnfLit, ok := p.CNFOfLiteral(lk)
		if !ok {
			continue
		}
		modelVals[lk] = res.Value(cnfLit)
	}

	candidates := ks.CandidateLiterals()
	jobs := make([]workpool.Job, len(candidates))
	found := make([]Candidate, len(candidates))
	hasFound := make([]bool, len(candidates))

	for i, lk := range candidates {
		i, lk := i, lk
		jobs[i] = func(ctx context.Context, workerID int) error {
			cnfLit, ok := p.CNFOfLiteral(lk)
			if !ok {
				return fmt.Errorf("filter: literal %s has no CNF encoding", lk)
			}
			clone := base.Clone()
			assumptions := append(append([]sat.Lit(nil), switches...), cnfLit)
			r, err := clone.Solve(ctx, assumptions)
			if err != nil {
				return fmt.Errorf("filter: single-assumption sweep for %s: %w", lk, err)
			}
			if r.Outcome == sat.Unsat {
				found[i] = Candidate{Literal: lk, Seed: r.Core}
				hasFound[i] = true
			}
			return nil
		}
	}

	if err := workpool.Run(ctx, pool, jobs); err != nil {
		return Result{}, err
	}

	out := Result{Model: modelVals}
	for i, ok := range hasFound {
		if ok {
			out.Refutable = append(out.Refutable, found[i])
		}
	}
	return out, nil
}
