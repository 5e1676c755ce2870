package sat

import (
	"context"
	"fmt"
)

// decisionRec records one decision pushed onto the search stack, whether
// it came from an assumption (pinned, never flipped) or from the
// solver's own branching (free, chronologically flippable).
type decisionRec struct {
	lit       Lit
	pinned    bool
	triedBoth bool
	trailIdx  int
}

// Solver is an incremental CNF solver: the SAT Gateway of the design. Its
// clause database is append-only; Solve may be called repeatedly with
// different assumption sets.
//
// A Solver is not safe for concurrent use; callers that need to explore
// several assumption sets in parallel should call Clone and hand each
// worker its own copy, per the design's "parallelism over candidates, not
// over a single MUS" rule.
type Solver struct {
	nbVars  int
	clauses []*Clause
	watches [][]int32 // indexed by Lit.index(); values are indices into clauses
	units   []Lit     // permanent unit clauses, applied fresh each Solve

	assign   []int8 // 0 unassigned, 1 true, 2 false; reset every Solve
	reason   []*Clause
	fromUnit []bool
	trail    []Lit
	propIdx  int

	decisions       []decisionRec
	sawFreeDecision bool

	assumeSet       map[Lit]bool
	lastAssumptions []Lit
	lastCore        []Lit
}

// New creates a Solver over variables 1..nbVars.
func New(nbVars int) *Solver {
	return &Solver{
		nbVars:   nbVars,
		watches:  make([][]int32, nbVars*2),
		assign:   make([]int8, nbVars),
		reason:   make([]*Clause, nbVars),
		fromUnit: make([]bool, nbVars),
	}
}

// NbVars returns the number of variables the solver was built with.
func (s *Solver) NbVars() int { return s.nbVars }

// AddClause extends the permanent clause set. It is never retracted.
// Clauses of length zero are rejected; clauses of length one are
// remembered as permanent units and re-applied at the start of every
// Solve call rather than being watched.
func (s *Solver) AddClause(lits []Lit) error {
	if len(lits) == 0 {
		return ErrEmptyClause{}
	}
	for _, l := range lits {
		if int(l.Var()) < 1 || int(l.Var()) > s.nbVars {
			return ErrBadVar{Var: l.Var(), NbVars: s.nbVars}
		}
	}
	cl := &Clause{Lits: append([]Lit(nil), lits...)}
	if len(cl.Lits) == 1 {
		s.units = append(s.units, cl.Lits[0])
		return nil
	}
	idx := int32(len(s.clauses))
	s.clauses = append(s.clauses, cl)
	s.watches[cl.Lits[0].index()] = append(s.watches[cl.Lits[0].index()], idx)
	s.watches[cl.Lits[1].index()] = append(s.watches[cl.Lits[1].index()], idx)
	return nil
}

// AddClauses is a convenience wrapper around AddClause for a batch of
// clauses, stopping at the first error.
func (s *Solver) AddClauses(clauses [][]Lit) error {
	for _, cl := range clauses {
		if err := s.AddClause(cl); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an independent Solver over the same permanent clause set.
// The clause set is shared logically: clauses already added are visible
// to the clone, but clauses added to either solver afterward are not
// visible to the other. Per-call search state is not shared.
func (s *Solver) Clone() *Solver {
	clone := &Solver{
		nbVars:   s.nbVars,
		clauses:  make([]*Clause, len(s.clauses)),
		units:    append([]Lit(nil), s.units...),
		watches:  make([][]int32, len(s.watches)),
		assign:   make([]int8, s.nbVars),
		reason:   make([]*Clause, s.nbVars),
		fromUnit: make([]bool, s.nbVars),
	}
	// Clauses are deep-copied, not just the slice of pointers: propagate
	// reorders a clause's watched literals in place, so two clones that
	// shared *Clause values would race (or silently corrupt each other's
	// watch bookkeeping) once used concurrently by different workers.
	for i, c := range s.clauses {
		clone.clauses[i] = &Clause{Lits: append([]Lit(nil), c.Lits...)}
	}
	for i, w := range s.watches {
		clone.watches[i] = append([]int32(nil), w...)
	}
	return clone
}

func (s *Solver) reset() {
	for i := range s.assign {
		s.assign[i] = 0
		s.reason[i] = nil
		s.fromUnit[i] = false
	}
	s.trail = s.trail[:0]
	s.propIdx = 0
	s.decisions = s.decisions[:0]
	s.sawFreeDecision = false
	s.assumeSet = nil
	s.lastAssumptions = nil
	s.lastCore = nil
}

func (s *Solver) assignVal(v Var) int8 { return s.assign[v-1] }

func litValue(neg bool) int8 {
	if neg {
		return 2
	}
	return 1
}

// assignedLit returns the currently assigned literal for v. v must be
// assigned.
func (s *Solver) assignedLit(v Var) Lit {
	if s.assign[v-1] == 1 {
		return MkLit(v, false)
	}
	return MkLit(v, true)
}

// enqueue assigns lit (if unassigned) with the given reason clause (nil
// for a decision) and pushes it onto the trail. It reports whether the
// assignment is consistent with any prior assignment of the same
// variable; false means a conflict was found (the variable was already
// assigned the opposite way).
func (s *Solver) enqueue(lit Lit, reason *Clause) bool {
	v := lit.Var()
	want := litValue(lit.Negated())
	if cur := s.assign[v-1]; cur != 0 {
		return cur == want
	}
	s.assign[v-1] = want
	s.reason[v-1] = reason
	s.trail = append(s.trail, lit)
	return true
}

// pushUnit applies a permanent unit clause at the start of a Solve call.
// It returns false if the literal directly contradicts an already
// assigned variable (another permanent unit), in which case s.lastCore
// is set to the (always empty, since units are not assumptions) blame
// set: the formula is unconditionally unsatisfiable.
func (s *Solver) pushUnit(lit Lit) bool {
	v := lit.Var()
	if s.assign[v-1] != 0 {
		if s.assignVal(v) == litValue(lit.Negated()) {
			return true
		}
		s.lastCore = dedupLits(s.blameFrom([]Lit{s.assignedLit(v)}))
		return false
	}
	s.enqueue(lit, nil)
	s.fromUnit[v-1] = true
	return true
}

// pushAssumption pins an assumption literal as a non-flippable decision.
func (s *Solver) pushAssumption(lit Lit) bool {
	v := lit.Var()
	if s.assign[v-1] != 0 {
		if s.assignVal(v) == litValue(lit.Negated()) {
			return true
		}
		core := s.blameFrom([]Lit{s.assignedLit(v)})
		core = append(core, lit)
		s.lastCore = dedupLits(core)
		return false
	}
	trailIdx := len(s.trail)
	s.enqueue(lit, nil)
	s.decisions = append(s.decisions, decisionRec{lit: lit, pinned: true, trailIdx: trailIdx})
	return true
}

func (s *Solver) pushFreeDecision(lit Lit) {
	trailIdx := len(s.trail)
	s.enqueue(lit, nil)
	s.decisions = append(s.decisions, decisionRec{lit: lit, pinned: false, trailIdx: trailIdx})
	s.sawFreeDecision = true
}

// propagate runs unit propagation (boolean constraint propagation) over
// the watched-literal clause database. It returns (conflict, false) if
// propagation derives a contradiction, or (nil, true) once it reaches a
// fixed point.
func (s *Solver) propagate() (*Clause, bool) {
	for s.propIdx < len(s.trail) {
		lit := s.trail[s.propIdx]
		s.propIdx++
		neg := lit.Not()
		watches := s.watches[neg.index()]
		i := 0
		for i < len(watches) {
			ci := watches[i]
			cl := s.clauses[ci]
			if cl.Lits[0] == neg {
				cl.Lits[0], cl.Lits[1] = cl.Lits[1], cl.Lits[0]
			}
			first := cl.Lits[0]
			if s.litIsTrue(first) {
				i++
				continue
			}
			replaced := false
			for j := 2; j < len(cl.Lits); j++ {
				cand := cl.Lits[j]
				if !s.litIsFalse(cand) {
					cl.Lits[1], cl.Lits[j] = cl.Lits[j], cl.Lits[1]
					s.watches[cand.index()] = append(s.watches[cand.index()], ci)
					watches[i] = watches[len(watches)-1]
					watches = watches[:len(watches)-1]
					s.watches[neg.index()] = watches
					replaced = true
					break
				}
			}
			if replaced {
				continue
			}
			if s.litIsFalse(first) {
				return cl, false
			}
			if !s.enqueue(first, cl) {
				return cl, false
			}
			i++
		}
	}
	return nil, true
}

func (s *Solver) litIsTrue(l Lit) bool {
	v := l.Var()
	a := s.assign[v-1]
	if a == 0 {
		return false
	}
	return a == litValue(l.Negated())
}

func (s *Solver) litIsFalse(l Lit) bool {
	v := l.Var()
	a := s.assign[v-1]
	if a == 0 {
		return false
	}
	return a != litValue(l.Negated())
}

// resolveConflict tries to recover from a conflict by flipping the most
// recent free (non-pinned) decision not yet tried both ways. It reports
// whether recovery was possible; false means the assumptions currently
// pinned (if no free decision was ever made this Solve call) or the full
// search space (otherwise) is exhausted, i.e. genuinely unsatisfiable.
func (s *Solver) resolveConflict(conflict *Clause) bool {
	for i := len(s.decisions) - 1; i >= 0; i-- {
		d := s.decisions[i]
		if d.pinned || d.triedBoth {
			continue
		}
		for j := len(s.trail) - 1; j >= d.trailIdx; j-- {
			v := s.trail[j].Var()
			s.assign[v-1] = 0
			s.reason[v-1] = nil
		}
		s.trail = s.trail[:d.trailIdx]
		flipped := d.lit.Not()
		s.decisions = s.decisions[:i+1]
		s.decisions[i] = decisionRec{lit: flipped, pinned: false, triedBoth: true, trailIdx: d.trailIdx}
		s.propIdx = d.trailIdx
		s.enqueue(flipped, nil)
		return true
	}
	if !s.sawFreeDecision {
		s.lastCore = dedupLits(s.blameFrom(conflict.Lits))
	} else {
		s.lastCore = nil
	}
	return false
}

// blameFrom walks the implication graph backward from seed, following
// reason clauses, and collects the assumption literals (members of
// s.assumeSet) it bottoms out at. Literals fixed by permanent unit
// clauses contribute nothing, since they hold regardless of assumptions.
func (s *Solver) blameFrom(seed []Lit) []Lit {
	seen := make(map[Var]bool)
	var blamed []Lit
	queue := append([]Lit(nil), seed...)
	for len(queue) > 0 {
		lit := queue[0]
		queue = queue[1:]
		v := lit.Var()
		if seen[v] {
			continue
		}
		seen[v] = true
		if s.fromUnit[v-1] {
			continue
		}
		if r := s.reason[v-1]; r != nil {
			for _, rl := range r.Lits {
				if rl.Var() != v {
					queue = append(queue, rl)
				}
			}
			continue
		}
		if s.assumeSet[s.assignedLit(v)] {
			blamed = append(blamed, s.assignedLit(v))
		}
	}
	return blamed
}

func dedupLits(lits []Lit) []Lit {
	seen := make(map[Lit]bool, len(lits))
	out := make([]Lit, 0, len(lits))
	for _, l := range lits {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// filterCore intersects core with the assumptions given to this Solve
// call and orders the result the same way the assumptions were given,
// so that Solve's output is deterministic regardless of map iteration
// order used during blame analysis (Testable Property P4).
func (s *Solver) filterCore(core []Lit) []Lit {
	set := make(map[Lit]bool, len(core))
	for _, l := range core {
		set[l] = true
	}
	out := make([]Lit, 0, len(core))
	for _, a := range s.lastAssumptions {
		if set[a] {
			out = append(out, a)
		}
	}
	return out
}

// pickDecision chooses the next unassigned variable, lowest index first,
// trying the positive literal. Always picking the lowest free index
// (rather than an activity-driven heuristic) keeps Solve deterministic
// given identical inputs regardless of worker count, per Testable
// Property P4; it sacrifices the teacher's watch-count decision
// heuristic for that guarantee.
func (s *Solver) pickDecision() (Lit, bool) {
	for v := 1; v <= s.nbVars; v++ {
		if s.assign[v-1] == 0 {
			return MkLit(Var(v), false), true
		}
	}
	return 0, false
}

// Solve determines whether the clause database, together with the given
// assumptions, is satisfiable. It returns a deterministic Result given
// identical clauses and assumptions (Testable Property P4). ctx is
// checked cooperatively between decisions; a cancelled context aborts
// the search and returns a non-nil error.
func (s *Solver) Solve(ctx context.Context, assumptions []Lit) (Result, error) {
	s.reset()
	for _, u := range s.units {
		if !s.pushUnit(u) {
			return Result{Outcome: Unsat}, nil
		}
	}
	if conflict, ok := s.propagate(); !ok {
		_ = conflict
		return Result{Outcome: Unsat}, nil
	}

	s.lastAssumptions = assumptions
	s.assumeSet = make(map[Lit]bool, len(assumptions))
	for _, a := range assumptions {
		s.assumeSet[a] = true
	}

	for _, a := range assumptions {
		if !s.pushAssumption(a) {
			return Result{Outcome: Unsat, Core: s.filterCore(s.lastCore)}, nil
		}
		conflict, ok := s.propagate()
		if ok {
			continue
		}
		if !s.resolveConflict(conflict) {
			core := s.lastCore
			if core == nil {
				core = assumptions
			}
			return Result{Outcome: Unsat, Core: s.filterCore(core)}, nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return Result{}, fmt.Errorf("sat: solve cancelled: %w", ctx.Err())
		default:
		}
		conflict, ok := s.propagate()
		if !ok {
			if !s.resolveConflict(conflict) {
				core := s.lastCore
				if core == nil {
					core = assumptions
				}
				return Result{Outcome: Unsat, Core: s.filterCore(core)}, nil
			}
			continue
		}
		lit, found := s.pickDecision()
		if !found {
			return Result{Outcome: Sat, Model: s.extractModel()}, nil
		}
		s.pushFreeDecision(lit)
	}
}

func (s *Solver) extractModel() []bool {
	model := make([]bool, s.nbVars)
	for v := 0; v < s.nbVars; v++ {
		model[v] = s.assign[v] == 1
	}
	return model
}
