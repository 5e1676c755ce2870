// Package scheduler drives the solve loop: it forms the candidate work
// list from the Knowledge State, fans Quick Filter and MUS Engine work
// out across a worker pool, ranks the results, applies the winning
// deduction (or tied group), and appends a Step Record.
package scheduler

import (
	"context"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clues/demystify/internal/filter"
	"github.com/clues/demystify/internal/knowledge"
	"github.com/clues/demystify/internal/model"
	"github.com/clues/demystify/internal/mus"
	"github.com/clues/demystify/internal/puzzleerr"
	"github.com/clues/demystify/internal/sat"
	"github.com/clues/demystify/internal/workpool"
)

// Status is the Step Scheduler's state machine position, per spec §4.6:
// Idle -> Planning -> Dispatching -> Collecting -> Applying -> (Idle |
// Done | Stuck).
type Status int

const (
	Idle Status = iota
	Planning
	Dispatching
	Collecting
	Applying
	Done
	Stuck
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Planning:
		return "Planning"
	case Dispatching:
		return "Dispatching"
	case Collecting:
		return "Collecting"
	case Applying:
		return "Applying"
	case Done:
		return "Done"
	case Stuck:
		return "Stuck"
	default:
		return "Unknown"
	}
}

// StepMUS is one deduced literal and the clue ids of the MUS that
// refuted it, as recorded in a Step Record.
type StepMUS struct {
	Literal model.LiteralKey
	Clues   []string
}

// Record is one append-only Step Record.
type Record struct {
	StepIndex       int
	ChosenLiterals  []model.LiteralKey
	Muses           []StepMUS
	KnowledgeBefore knowledge.Snapshot
	KnowledgeAfter  knowledge.Snapshot
}

// Options configures a Scheduler.
type Options struct {
	// Merge is the MUS Engine's merge parameter: how many distinct
	// MUSes to compute (and record) per deduced literal.
	Merge int
	// Quick enables the "prefer the first refutable candidate with a
	// MUS of size <= 1" aggressiveness mode, per spec §9's resolved
	// ambiguity around --quick.
	Quick bool
	// FilterPool bounds concurrency of the Quick Filter's per-literal
	// sweep. MUSPool bounds concurrency of per-candidate MUS shrinking.
	FilterPool *workpool.Pool
	MUSPool    *workpool.Pool
}

// Scheduler is the sole mutator of a Knowledge State.
type Scheduler struct {
	puzzle     *model.Puzzle
	knowledge  *knowledge.State
	baseSolver *sat.Solver
	opts       Options
	log        *logrus.Entry

	records []Record
}

// New builds a Scheduler over puzzle and an already-seeded Knowledge
// State, using baseSolver as the template every worker clones from.
func New(puzzle *model.Puzzle, ks *knowledge.State, baseSolver *sat.Solver, opts Options, log *logrus.Entry) *Scheduler {
	if opts.FilterPool == nil {
		opts.FilterPool = workpool.New(0)
	}
	if opts.MUSPool == nil {
		opts.MUSPool = workpool.New(0)
	}
	if opts.Merge < 1 {
		opts.Merge = 1
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{puzzle: puzzle, knowledge: ks, baseSolver: baseSolver, opts: opts, log: log}
}

// Records returns every Step Record emitted so far.
func (s *Scheduler) Records() []Record { return s.records }

// Run drives the state machine to completion, returning the terminal
// status (Done or Stuck) or a fatal error.
func (s *Scheduler) Run(ctx context.Context) (Status, error) {
	if s.knowledge.IsSolved() {
		return Done, nil
	}
	for {
		status, err := s.step(ctx)
		if err != nil {
			return Idle, err
		}
		switch status {
		case Done, Stuck:
			return status, nil
		}
	}
}

// step runs one Planning -> Dispatching -> Collecting -> Applying cycle.
func (s *Scheduler) step(ctx context.Context) (Status, error) {
	stepIndex := len(s.records)
	log := s.log.WithField("step", stepIndex)

	// Planning.
	log.WithField("phase", Planning).Debug("planning: candidate literals from knowledge state")

	// Dispatching: Quick Filter.
	log = log.WithField("phase", Dispatching)
	filterRes, err := filter.Run(ctx, s.baseSolver, s.puzzle, s.knowledge, s.opts.FilterPool)
	if err != nil {
		if _, ok := err.(filter.ErrPuzzleUnsat); ok {
			return Idle, puzzleerr.Wrap(puzzleerr.ContradictoryInput, err, "initial solve under all switches is unsatisfiable")
		}
		return Idle, puzzleerr.Wrap(puzzleerr.SolverFatal, err, "quick filter")
	}
	if len(filterRes.Refutable) == 0 {
		log.Info("stuck: no refutable candidates remain")
		return Stuck, nil
	}

	// Dispatching: MUS Engine, one job per refutable candidate.
	engine := mus.New(s.puzzle, s.baseSolver)
	type outcome struct {
		muses []mus.MUS
		err   error
	}
	outcomes := make([]outcome, len(filterRes.Refutable))
	jobs := make([]workpool.Job, len(filterRes.Refutable))
	for i, c := range filterRes.Refutable {
		i, c := i, c
		jobs[i] = func(ctx context.Context, workerID int) error {
			result, err := engine.Shrink(ctx, c.Literal, c.Seed, s.opts.Merge)
			if err != nil {
				// Per spec §7, a solver error on a single job is retried
				// once with a fresh clone before being demoted to a skip;
				// ErrNotRefutable is deterministic, so retrying it is a
				// harmless no-op rather than a real second attempt.
				result, err = engine.Shrink(ctx, c.Literal, c.Seed, s.opts.Merge)
			}
			outcomes[i] = outcome{muses: result, err: err}
			return nil
		}
	}
	if err := workpool.Run(ctx, s.opts.MUSPool, jobs); err != nil {
		return Idle, puzzleerr.Wrap(puzzleerr.SolverFatal, err, "mus engine dispatch")
	}

	// Collecting.
	log = log.WithField("phase", Collecting)
	type candidateResult struct {
		literal model.LiteralKey
		best    mus.MUS
		alt     []mus.MUS
	}
	var results []candidateResult
	for i, o := range outcomes {
		if o.err != nil {
			if _, ok := o.err.(mus.ErrNotRefutable); ok {
				log.WithField("literal", filterRes.Refutable[i].Literal).Debug("no step for candidate this round")
				continue
			}
			if ctx.Err() != nil {
				return Idle, puzzleerr.Wrap(puzzleerr.SolverTransient, o.err, "mus shrink")
			}
			log.WithError(o.err).WithField("literal", filterRes.Refutable[i].Literal).Warn("skipping candidate this round after a retried solver error")
			continue
		}
		if len(o.muses) == 0 {
			continue
		}
		results = append(results, candidateResult{literal: filterRes.Refutable[i].Literal, best: o.muses[0], alt: o.muses})
	}
	if len(results) == 0 {
		log.Info("stuck: no candidate could be refuted to a MUS")
		return Stuck, nil
	}

	if s.opts.Quick {
		for _, r := range results {
			if len(r.best.Switches) <= 1 {
				results = []candidateResult{r}
				break
			}
		}
	}

	// Applying: group by identical MUS (same switch-literal set), rank
	// groups, apply the winning group.
	log = log.WithField("phase", Applying)
	groups := make(map[string][]candidateResult)
	var groupOrder []string
	for _, r := range results {
		key := musKey(r.best)
		if _, ok := groups[key]; !ok {
			groupOrder = append(groupOrder, key)
		}
		groups[key] = append(groups[key], r)
	}

	sort.Slice(groupOrder, func(i, j int) bool {
		return rankLess(groups[groupOrder[i]][0].best, groups[groupOrder[j]][0].best)
	})
	winningKey := groupOrder[0]
	winners := groups[winningKey]

	sort.Slice(winners, func(i, j int) bool {
		return literalLess(winners[i].literal, winners[j].literal)
	})

	before := s.knowledge.Snapshot()
	rec := Record{StepIndex: stepIndex, KnowledgeBefore: before}
	for _, w := range winners {
		if err := s.knowledge.Remove(w.literal.Variable, w.literal.Value); err != nil {
			return Idle, puzzleerr.Wrap(puzzleerr.Contradiction, err, "applying step")
		}
		rec.ChosenLiterals = append(rec.ChosenLiterals, w.literal)
		for _, m := range w.alt {
			clueIDs := make([]string, len(m.Clues))
			for i, c := range m.Clues {
				clueIDs[i] = c.ID
			}
			rec.Muses = append(rec.Muses, StepMUS{Literal: w.literal, Clues: clueIDs})
		}
	}
	rec.KnowledgeAfter = s.knowledge.Snapshot()
	s.records = append(s.records, rec)

	log.WithField("chosen", rec.ChosenLiterals).Info("applied step")

	if s.knowledge.IsSolved() {
		return Done, nil
	}
	return Idle, nil
}

// rankLess implements spec §4.5's tie-break order: smaller size, fewer
// distinct clue kinds, lexicographically smaller sorted clue id tuple.
func rankLess(a, b mus.MUS) bool {
	if len(a.Switches) != len(b.Switches) {
		return len(a.Switches) < len(b.Switches)
	}
	ka, kb := kindCount(a), kindCount(b)
	if ka != kb {
		return ka < kb
	}
	return lexTuple(a) < lexTuple(b)
}

func kindCount(m mus.MUS) int {
	kinds := make(map[string]bool, len(m.Clues))
	for _, c := range m.Clues {
		kinds[c.Template] = true
	}
	return len(kinds)
}

func lexTuple(m mus.MUS) string {
	ids := make([]string, len(m.Clues))
	for i, c := range m.Clues {
		ids[i] = c.ID
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

func musKey(m mus.MUS) string {
	sw := append([]sat.Lit(nil), m.Switches...)
	sort.Slice(sw, func(i, j int) bool { return sw[i] < sw[j] })
	parts := make([]string, len(sw))
	for i, l := range sw {
		parts[i] = l.String()
	}
	return strings.Join(parts, ",")
}

func literalLess(a, b model.LiteralKey) bool {
	if a.Variable != b.Variable {
		return a.Variable < b.Variable
	}
	return a.Value < b.Value
}
