// Package knowledge implements the Knowledge State: the mutable,
// monotonically shrinking map from each puzzle variable to its remaining
// candidate values.
package knowledge

import (
	"fmt"
	"sort"

	"github.com/clues/demystify/internal/model"
)

// Contradiction is returned by Remove when removing a value would empty
// a variable's candidate set (spec invariant I3): the puzzle is
// unsatisfiable given the deductions made so far.
type Contradiction struct {
	Variable string
}

func (c Contradiction) Error() string {
	return fmt.Sprintf("knowledge: candidates for %q are now empty", c.Variable)
}

// State is the mutable Knowledge State. It is owned by exactly one
// goroutine (the Step Scheduler); all mutation goes through Remove.
type State struct {
	puzzle     *model.Puzzle
	candidates map[string]map[string]bool
}

// New seeds a Knowledge State with every variable's full domain as its
// initial candidate set.
func New(p *model.Puzzle) *State {
	s := &State{
		puzzle:     p,
		candidates: make(map[string]map[string]bool, len(p.Variables())),
	}
	for _, v := range p.Variables() {
		set := make(map[string]bool, len(v.Domain))
		for _, val := range v.Domain {
			set[val] = true
		}
		s.candidates[v.Name] = set
	}
	return s
}

// Candidates returns the remaining candidate values for v, in the
// variable's domain order.
func (s *State) Candidates(v string) []string {
	dom, ok := s.puzzle.Variable(v)
	if !ok {
		return nil
	}
	set := s.candidates[v]
	out := make([]string, 0, len(set))
	for _, val := range dom.Domain {
		if set[val] {
			out = append(out, val)
		}
	}
	return out
}

// IsKnown reports whether v has exactly one remaining candidate.
func (s *State) IsKnown(v string) bool { return len(s.candidates[v]) == 1 }

// IsSolved reports whether every variable has exactly one remaining
// candidate.
func (s *State) IsSolved() bool {
	for _, set := range s.candidates {
		if len(set) != 1 {
			return false
		}
	}
	return true
}

// Remove eliminates val from v's candidate set. It is idempotent: removing
// a value already absent is a no-op. It returns Contradiction if val was
// the last remaining candidate for v (spec invariant I3).
func (s *State) Remove(v, val string) error {
	set := s.candidates[v]
	if !set[val] {
		return nil
	}
	if len(set) == 1 {
		return Contradiction{Variable: v}
	}
	delete(set, val)
	return nil
}

// Fix reduces v's candidate set to exactly {val}, removing every other
// current candidate. val must already be a candidate.
func (s *State) Fix(v, val string) error {
	for _, other := range s.Candidates(v) {
		if other == val {
			continue
		}
		if err := s.Remove(v, other); err != nil {
			return err
		}
	}
	return nil
}

// CandidateLiterals returns every (variable, value) pair that is a
// candidate literal per spec.md §3: val is a current candidate of v, and
// v has at least two remaining candidates. The order is deterministic:
// variables in Puzzle load order, values in domain order.
func (s *State) CandidateLiterals() []model.LiteralKey {
	var out []model.LiteralKey
	for _, v := range s.puzzle.Variables() {
		if len(s.candidates[v.Name]) < 2 {
			continue
		}
		for _, val := range v.Domain {
			if s.candidates[v.Name][val] {
				out = append(out, model.LiteralKey{Variable: v.Name, Value: val})
			}
		}
	}
	return out
}

// Snapshot is an immutable, independently owned copy of the Knowledge
// State at one point in time, suitable for embedding in a Step Record.
type Snapshot map[string][]string

// Snapshot captures the current candidate sets for every variable.
func (s *State) Snapshot() Snapshot {
	snap := make(Snapshot, len(s.puzzle.Variables()))
	for _, v := range s.puzzle.Variables() {
		snap[v.Name] = s.Candidates(v.Name)
	}
	return snap
}

// Diff reports, per variable, the candidates present in before but not
// in after: the values this step ruled out. Variables with no change are
// omitted. Used when rendering a Step Record's Knowledge State diff.
func Diff(before, after Snapshot) map[string][]string {
	diff := make(map[string][]string)
	for v, beforeVals := range before {
		afterSet := make(map[string]bool, len(after[v]))
		for _, val := range after[v] {
			afterSet[val] = true
		}
		var removed []string
		for _, val := range beforeVals {
			if !afterSet[val] {
				removed = append(removed, val)
			}
		}
		if len(removed) > 0 {
			sort.Strings(removed)
			diff[v] = removed
		}
	}
	return diff
}
