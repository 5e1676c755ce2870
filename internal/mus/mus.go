// Package mus implements the MUS Engine: deletion-based shrinking of a
// sufficient UNSAT core (from the Quick Filter) down to a set-minimal
// unsatisfiable subset of active switch literals.
package mus

import (
	"context"
	"fmt"
	"sort"

	"github.com/clues/demystify/internal/model"
	"github.com/clues/demystify/internal/sat"
)

// ErrNotRefutable is returned when the seed core cannot be reproduced as
// UNSAT even after retrying from the full active switch set: the
// candidate literal is not refutable at the current knowledge level and
// the scheduler should report "no step" for it.
type ErrNotRefutable struct {
	Literal model.LiteralKey
}

func (e ErrNotRefutable) Error() string {
	return fmt.Sprintf("mus: candidate %s is not refutable from the current switch set", e.Literal)
}

// MUS is one minimal unsatisfiable subset found for a candidate literal.
type MUS struct {
	Literal  model.LiteralKey
	Switches []sat.Lit
	Clues    []model.Clue // resolved, sorted by id
}

// Engine runs the shrinking algorithm against a fixed puzzle, cloning
// its own solver instances from base for every trial solve.
type Engine struct {
	puzzle   *model.Puzzle
	base     *sat.Solver
	clueOfSw map[sat.Lit]string
}

// New builds a MUS Engine over puzzle, using base as the template solver
// every shrinking trial clones from.
func New(puzzle *model.Puzzle, base *sat.Solver) *Engine {
	e := &Engine{puzzle: puzzle, base: base, clueOfSw: make(map[sat.Lit]string)}
	for _, c := range puzzle.Clues() {
		e.clueOfSw[c.Switch] = c.ID
	}
	return e
}

// Shrink computes up to merge distinct set-minimal unsatisfiable
// subsets of seed (the Quick Filter's seed core) that refute lit, per
// spec §4.5. merge must be >= 1.
func (e *Engine) Shrink(ctx context.Context, lit model.LiteralKey, seed []sat.Lit, merge int) ([]MUS, error) {
	if merge < 1 {
		merge = 1
	}
	target, ok := e.puzzle.CNFOfLiteral(lit)
	if !ok {
		return nil, fmt.Errorf("mus: literal %s has no CNF encoding", lit)
	}

	active := dedupe(seed)
	if ok, err := e.reproduces(ctx, active, target); err != nil {
		return nil, err
	} else if !ok {
		active = dedupe(e.puzzle.Switches())
		if ok, err := e.reproduces(ctx, active, target); err != nil {
			return nil, err
		} else if !ok {
			return nil, ErrNotRefutable{Literal: lit}
		}
	}

	var results []MUS
	seen := make(map[string]bool)

	for attempt := 0; attempt < merge*3 && len(results) < merge; attempt++ {
		order := e.ordering(active, attempt)
		m, err := e.shrinkOnce(ctx, active, order, target)
		if err != nil {
			return nil, err
		}
		key := setKey(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		results = append(results, e.toMUS(lit, m))
	}
	return results, nil
}

// reproduces checks that active ∪ {target} is UNSAT, per the failure-mode
// retry described in spec §4.5.
func (e *Engine) reproduces(ctx context.Context, active []sat.Lit, target sat.Lit) (bool, error) {
	clone := e.base.Clone()
	res, err := clone.Solve(ctx, append(append([]sat.Lit(nil), active...), target))
	if err != nil {
		return false, fmt.Errorf("mus: reproduction solve: %w", err)
	}
	return res.Outcome == sat.Unsat, nil
}

// shrinkOnce runs one deletion pass over order, returning a set-minimal
// subset of active.
func (e *Engine) shrinkOnce(ctx context.Context, active []sat.Lit, order []sat.Lit, target sat.Lit) ([]sat.Lit, error) {
	m := make(map[sat.Lit]bool, len(active))
	for _, l := range active {
		m[l] = true
	}

	for _, s := range order {
		if !m[s] {
			continue
		}
		trial := make([]sat.Lit, 0, len(m))
		for l := range m {
			if l != s {
				trial = append(trial, l)
			}
		}
		sortLits(trial)

		clone := e.base.Clone()
		res, err := clone.Solve(ctx, append(append([]sat.Lit(nil), trial...), target))
		if err != nil {
			return nil, fmt.Errorf("mus: shrink solve: %w", err)
		}
		if res.Outcome == sat.Unsat {
			delete(m, s)
			kept := make(map[sat.Lit]bool, len(res.Core))
			for _, l := range res.Core {
				if l != target {
					kept[l] = true
				}
			}
			for l := range m {
				if !kept[l] {
					delete(m, l)
				}
			}
		}
		// else: s is necessary, keep it.
	}

	out := make([]sat.Lit, 0, len(m))
	for l := range m {
		out = append(out, l)
	}
	sortLits(out)
	return out, nil
}

// ordering returns a deterministic permutation of active for the nth
// shrinking attempt: ascending clue id for attempt 0, descending for
// attempt 1, and rotations of the ascending order thereafter, so
// successive attempts are likely to land on distinct minimal subsets.
func (e *Engine) ordering(active []sat.Lit, attempt int) []sat.Lit {
	order := append([]sat.Lit(nil), active...)
	sort.Slice(order, func(i, j int) bool { return e.clueOfSw[order[i]] < e.clueOfSw[order[j]] })
	switch {
	case attempt == 0:
		return order
	case attempt == 1:
		reverse(order)
		return order
	default:
		n := len(order)
		if n == 0 {
			return order
		}
		k := attempt % n
		return append(append([]sat.Lit(nil), order[k:]...), order[:k]...)
	}
}

func (e *Engine) toMUS(lit model.LiteralKey, switches []sat.Lit) MUS {
	clues := e.puzzle.CluesForSwitches(switches)
	return MUS{Literal: lit, Switches: switches, Clues: clues}
}

func dedupe(lits []sat.Lit) []sat.Lit {
	seen := make(map[sat.Lit]bool, len(lits))
	out := make([]sat.Lit, 0, len(lits))
	for _, l := range lits {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sortLits(out)
	return out
}

func sortLits(lits []sat.Lit) {
	sort.Slice(lits, func(i, j int) bool { return lits[i] < lits[j] })
}

func reverse(lits []sat.Lit) {
	for i, j := 0, len(lits)-1; i < j; i, j = i+1, j-1 {
		lits[i], lits[j] = lits[j], lits[i]
	}
}

func setKey(lits []sat.Lit) string {
	key := ""
	for _, l := range lits {
		key += l.String() + ","
	}
	return key
}
