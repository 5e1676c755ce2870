package scheduler

import (
	"context"
	"testing"

	"github.com/clues/demystify/internal/knowledge"
	"github.com/clues/demystify/internal/model"
	"github.com/clues/demystify/internal/puzzleerr"
	"github.com/clues/demystify/internal/sat"
	"github.com/clues/demystify/internal/workpool"
)

// tinyOrderedPuzzle encodes grid[1..3] with domain {1,2,3} and two
// "ordered[i] => grid[i] < grid[i+1]" clues, matching spec §8's tiny
// ordered scenario: a strictly increasing chain over a 3-value domain
// has exactly one solution, (1,2,3).
func tinyOrderedPuzzle(t *testing.T) (*model.Puzzle, *sat.Solver) {
	t.Helper()
	vars := []model.Variable{
		{Name: "grid1", Domain: []string{"1", "2", "3"}},
		{Name: "grid2", Domain: []string{"1", "2", "3"}},
		{Name: "grid3", Domain: []string{"1", "2", "3"}},
	}
	v := func(grid string, val int) sat.Lit {
		base := map[string]int{"grid1": 0, "grid2": 3, "grid3": 6}[grid]
		return sat.MkLit(sat.Var(base+val), false)
	}
	lits := map[model.LiteralKey]sat.Lit{}
	for _, g := range []string{"grid1", "grid2", "grid3"} {
		for val := 1; val <= 3; val++ {
			lits[model.LiteralKey{Variable: g, Value: itoa(val)}] = v(g, val)
		}
	}
	clues := []model.Clue{
		{ID: "ordered1", Template: "grid[i] < grid[i+1]", Switch: sat.MkLit(10, false)},
		{ID: "ordered2", Template: "grid[i] < grid[i+1]", Switch: sat.MkLit(11, false)},
	}

	var cnf [][]sat.Lit
	for _, g := range []string{"grid1", "grid2", "grid3"} {
		cnf = append(cnf, []sat.Lit{v(g, 1), v(g, 2), v(g, 3)})
		cnf = append(cnf, []sat.Lit{v(g, 1).Not(), v(g, 2).Not()})
		cnf = append(cnf, []sat.Lit{v(g, 1).Not(), v(g, 3).Not()})
		cnf = append(cnf, []sat.Lit{v(g, 2).Not(), v(g, 3).Not()})
	}
	orderedPairs := func(sw sat.Lit, lo, hi string) {
		for a := 1; a <= 3; a++ {
			for b := 1; b <= 3; b++ {
				if a >= b {
					cnf = append(cnf, []sat.Lit{sw.Not(), v(lo, a).Not(), v(hi, b).Not()})
				}
			}
		}
	}
	orderedPairs(sat.MkLit(10, false), "grid1", "grid2")
	orderedPairs(sat.MkLit(11, false), "grid2", "grid3")

	p, err := model.New(11, cnf, vars, lits, clues, []string{"grid1", "grid2", "grid3"})
	if err != nil {
		t.Fatalf("model.New: %v", err)
	}
	s, err := p.NewSolver()
	if err != nil {
		t.Fatalf("NewSolver: %v", err)
	}
	return p, s
}

func itoa(n int) string { return string(rune('0' + n)) }

func TestRunSolvesTinyOrdered(t *testing.T) {
	p, s := tinyOrderedPuzzle(t)
	ks := knowledge.New(p)
	sched := New(p, ks, s, Options{Merge: 1, FilterPool: workpool.New(2), MUSPool: workpool.New(2)}, nil)

	status, err := sched.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != Done {
		t.Fatalf("status = %v, want Done", status)
	}
	if !ks.IsSolved() {
		t.Fatal("expected a fully solved knowledge state")
	}
	want := map[string]string{"grid1": "1", "grid2": "2", "grid3": "3"}
	for g, val := range want {
		got := ks.Candidates(g)
		if len(got) != 1 || got[0] != val {
			t.Errorf("Candidates(%s) = %v, want [%s]", g, got, val)
		}
	}
	if len(sched.Records()) == 0 {
		t.Error("expected at least one step record")
	}
	for _, rec := range sched.Records() {
		if len(rec.ChosenLiterals) != len(rec.Muses) {
			t.Errorf("step %d: %d chosen literals but %d muses", rec.StepIndex, len(rec.ChosenLiterals), len(rec.Muses))
		}
	}
}

func TestRunReturnsStuckWithoutRefutableCandidates(t *testing.T) {
	vars := []model.Variable{{Name: "a", Domain: []string{"1", "2"}}}
	lits := map[model.LiteralKey]sat.Lit{
		{Variable: "a", Value: "1"}: sat.MkLit(1, false),
		{Variable: "a", Value: "2"}: sat.MkLit(1, true),
	}
	p, err := model.New(1, nil, vars, lits, nil, nil)
	if err != nil {
		t.Fatalf("model.New: %v", err)
	}
	s, err := p.NewSolver()
	if err != nil {
		t.Fatalf("NewSolver: %v", err)
	}
	ks := knowledge.New(p)
	sched := New(p, ks, s, Options{}, nil)

	status, err := sched.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != Stuck {
		t.Fatalf("status = %v, want Stuck", status)
	}
}

func TestRunReportsContradictoryInput(t *testing.T) {
	vars := []model.Variable{{Name: "a", Domain: []string{"1", "2"}}}
	lits := map[model.LiteralKey]sat.Lit{
		{Variable: "a", Value: "1"}: sat.MkLit(1, false),
		{Variable: "a", Value: "2"}: sat.MkLit(1, true),
	}
	clues := []model.Clue{{ID: "c1", Template: "impossible", Switch: sat.MkLit(2, false)}}
	cnf := [][]sat.Lit{
		{sat.MkLit(2, true), sat.MkLit(1, false)},
		{sat.MkLit(2, true), sat.MkLit(1, true)},
	}
	p, err := model.New(2, cnf, vars, lits, clues, nil)
	if err != nil {
		t.Fatalf("model.New: %v", err)
	}
	s, err := p.NewSolver()
	if err != nil {
		t.Fatalf("NewSolver: %v", err)
	}
	ks := knowledge.New(p)
	sched := New(p, ks, s, Options{}, nil)

	_, err = sched.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if kind := puzzleerr.KindOf(err); kind != puzzleerr.ContradictoryInput {
		t.Fatalf("KindOf(err) = %v, want ContradictoryInput", kind)
	}
}
