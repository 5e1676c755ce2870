package knowledge

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/clues/demystify/internal/model"
	"github.com/clues/demystify/internal/sat"
)

func tinyPuzzle(t *testing.T) *model.Puzzle {
	t.Helper()
	vars := []model.Variable{
		{Name: "a", Domain: []string{"1", "2", "3"}},
		{Name: "b", Domain: []string{"1", "2"}},
	}
	lits := map[model.LiteralKey]sat.Lit{
		{Variable: "a", Value: "1"}: sat.MkLit(1, false),
		{Variable: "a", Value: "2"}: sat.MkLit(2, false),
		{Variable: "a", Value: "3"}: sat.MkLit(3, false),
		{Variable: "b", Value: "1"}: sat.MkLit(4, false),
		{Variable: "b", Value: "2"}: sat.MkLit(5, false),
	}
	p, err := model.New(5, nil, vars, lits, nil, nil)
	if err != nil {
		t.Fatalf("model.New: %v", err)
	}
	return p
}

func TestNewSeedsFullDomains(t *testing.T) {
	s := New(tinyPuzzle(t))
	if diff := cmp.Diff([]string{"1", "2", "3"}, s.Candidates("a")); diff != "" {
		t.Errorf("Candidates(a) mismatch (-want +got):\n%s", diff)
	}
	if s.IsKnown("a") {
		t.Error("a should not be known with 3 candidates")
	}
	if s.IsSolved() {
		t.Error("fresh state should not be solved")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := New(tinyPuzzle(t))
	if err := s.Remove("a", "2"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove("a", "2"); err != nil {
		t.Fatalf("Remove (idempotent repeat): %v", err)
	}
	if diff := cmp.Diff([]string{"1", "3"}, s.Candidates("a")); diff != "" {
		t.Errorf("Candidates(a) mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoveLastCandidateIsContradiction(t *testing.T) {
	s := New(tinyPuzzle(t))
	if err := s.Remove("b", "1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	err := s.Remove("b", "2")
	var c Contradiction
	if err == nil {
		t.Fatal("expected Contradiction")
	}
	if !asContradiction(err, &c) || c.Variable != "b" {
		t.Fatalf("got error %v, want Contradiction{Variable: b}", err)
	}
}

func asContradiction(err error, c *Contradiction) bool {
	got, ok := err.(Contradiction)
	if ok {
		*c = got
	}
	return ok
}

func TestFixReducesToSingleCandidate(t *testing.T) {
	s := New(tinyPuzzle(t))
	if err := s.Fix("a", "2"); err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if !s.IsKnown("a") {
		t.Error("a should be known after Fix")
	}
	if diff := cmp.Diff([]string{"2"}, s.Candidates("a")); diff != "" {
		t.Errorf("Candidates(a) mismatch (-want +got):\n%s", diff)
	}
}

func TestIsSolvedWhenAllKnown(t *testing.T) {
	s := New(tinyPuzzle(t))
	if err := s.Fix("a", "1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Fix("b", "2"); err != nil {
		t.Fatal(err)
	}
	if !s.IsSolved() {
		t.Error("expected solved state")
	}
}

func TestCandidateLiteralsExcludesKnownVariables(t *testing.T) {
	s := New(tinyPuzzle(t))
	if err := s.Fix("b", "1"); err != nil {
		t.Fatal(err)
	}
	want := []model.LiteralKey{
		{Variable: "a", Value: "1"},
		{Variable: "a", Value: "2"},
		{Variable: "a", Value: "3"},
	}
	if diff := cmp.Diff(want, s.CandidateLiterals()); diff != "" {
		t.Errorf("CandidateLiterals() mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotAndDiff(t *testing.T) {
	s := New(tinyPuzzle(t))
	before := s.Snapshot()
	if err := s.Remove("a", "2"); err != nil {
		t.Fatal(err)
	}
	after := s.Snapshot()

	if diff := cmp.Diff([]string{"1", "2", "3"}, before["a"]); diff != "" {
		t.Errorf("before snapshot mutated (-want +got):\n%s", diff)
	}

	want := map[string][]string{"a": {"2"}}
	if diff := cmp.Diff(want, Diff(before, after)); diff != "" {
		t.Errorf("Diff() mismatch (-want +got):\n%s", diff)
	}
}
