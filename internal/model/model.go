// Package model holds the immutable Puzzle Model: the variable universe,
// the literal universe, the clue set with its switch literals, and the
// compiled CNF, together with the lookups that tie puzzle-level concepts
// to the underlying CNF the SAT Gateway solves.
//
// A Puzzle is built once, by the compiler client (see the compiler
// package) from the external model-refinement tool's output, and is
// never mutated afterward.
package model

import (
	"fmt"
	"sort"

	"github.com/clues/demystify/internal/sat"
)

// Variable is a puzzle variable with a finite, totally ordered domain of
// candidate values fixed at load time.
type Variable struct {
	Name   string
	Domain []string
}

// LiteralKey identifies a puzzle literal: "Variable equals Value".
type LiteralKey struct {
	Variable string
	Value    string
}

func (lk LiteralKey) String() string { return fmt.Sprintf("%s=%s", lk.Variable, lk.Value) }

// Clue is one constraint of the puzzle, reified behind a switch literal:
// asserting Switch true activates the clue's constraint in the CNF.
type Clue struct {
	ID       string
	Template string
	Switch   sat.Lit
	// Index is the clue instance's index tuple (e.g. row/column/box),
	// exposed to template rendering as index[k].
	Index []int
	// Params carries scalars/arrays from the parameter file, exposed to
	// template rendering as params[...].
	Params map[string]interface{}
}

// Puzzle is the immutable compiled model: variables, literals, clues,
// and the CNF that encodes them.
type Puzzle struct {
	nbCNFVars int
	cnf       [][]sat.Lit

	variables []Variable
	varIndex  map[string]int

	litCNF map[LiteralKey]sat.Lit

	clues     []Clue
	clueIndex map[string]int

	reveal []string
}

// New validates and builds a Puzzle. It rejects a model where any clue
// lacks a switch literal, any two clues share a switch literal, or any
// (variable, domain value) pair used by a variable's domain has no CNF
// encoding, per the Puzzle Model's build-time contract.
func New(nbCNFVars int, cnf [][]sat.Lit, variables []Variable, litEncodings map[LiteralKey]sat.Lit, clues []Clue, reveal []string) (*Puzzle, error) {
	p := &Puzzle{
		nbCNFVars: nbCNFVars,
		cnf:       cnf,
		variables: append([]Variable(nil), variables...),
		varIndex:  make(map[string]int, len(variables)),
		litCNF:    make(map[LiteralKey]sat.Lit, len(litEncodings)),
		clues:     append([]Clue(nil), clues...),
		clueIndex: make(map[string]int, len(clues)),
		reveal:    append([]string(nil), reveal...),
	}
	for i, v := range p.variables {
		if len(v.Domain) == 0 {
			return nil, fmt.Errorf("model: variable %q has an empty domain", v.Name)
		}
		if _, dup := p.varIndex[v.Name]; dup {
			return nil, fmt.Errorf("model: duplicate variable %q", v.Name)
		}
		p.varIndex[v.Name] = i
	}
	for lk, l := range litEncodings {
		if l == 0 {
			return nil, fmt.Errorf("model: literal %s has no CNF encoding", lk)
		}
		p.litCNF[lk] = l
	}
	for _, v := range p.variables {
		for _, val := range v.Domain {
			lk := LiteralKey{Variable: v.Name, Value: val}
			if _, ok := p.litCNF[lk]; !ok {
				return nil, fmt.Errorf("model: literal %s has no CNF encoding", lk)
			}
		}
	}
	seenSwitch := make(map[sat.Lit]string, len(p.clues))
	for i, c := range p.clues {
		if c.Switch == 0 {
			return nil, fmt.Errorf("model: clue %q has no switch literal", c.ID)
		}
		if other, dup := seenSwitch[c.Switch]; dup {
			return nil, fmt.Errorf("model: clues %q and %q share switch literal %v", other, c.ID, c.Switch)
		}
		seenSwitch[c.Switch] = c.ID
		if _, dup := p.clueIndex[c.ID]; dup {
			return nil, fmt.Errorf("model: duplicate clue id %q", c.ID)
		}
		p.clueIndex[c.ID] = i
	}
	return p, nil
}

// NbCNFVars is the number of boolean variables in the compiled CNF.
func (p *Puzzle) NbCNFVars() int { return p.nbCNFVars }

// NewSolver builds a fresh SAT Gateway solver over the compiled CNF. Each
// caller that needs its own mutable search state (e.g. the Step
// Scheduler building a base solver to clone per worker) should call this
// once and Clone it thereafter.
func (p *Puzzle) NewSolver() (*sat.Solver, error) {
	s := sat.New(p.nbCNFVars)
	if err := s.AddClauses(p.cnf); err != nil {
		return nil, fmt.Errorf("model: loading compiled CNF: %w", err)
	}
	return s, nil
}

// Variables returns all puzzle variables in load order.
func (p *Puzzle) Variables() []Variable { return p.variables }

// Variable looks up a variable by name.
func (p *Puzzle) Variable(name string) (Variable, bool) {
	i, ok := p.varIndex[name]
	if !ok {
		return Variable{}, false
	}
	return p.variables[i], true
}

// Literals returns every puzzle literal (variable, value) in the
// universe, ordered by variable then by domain position.
func (p *Puzzle) Literals() []LiteralKey {
	var out []LiteralKey
	for _, v := range p.variables {
		for _, val := range v.Domain {
			out = append(out, LiteralKey{Variable: v.Name, Value: val})
		}
	}
	return out
}

// CNFOfLiteral returns the CNF encoding of a puzzle literal.
func (p *Puzzle) CNFOfLiteral(lk LiteralKey) (sat.Lit, bool) {
	l, ok := p.litCNF[lk]
	return l, ok
}

// Clues returns all clues in load order.
func (p *Puzzle) Clues() []Clue { return p.clues }

// Clue looks up a clue by id.
func (p *Puzzle) Clue(id string) (Clue, bool) {
	i, ok := p.clueIndex[id]
	if !ok {
		return Clue{}, false
	}
	return p.clues[i], true
}

// Switches returns the switch literals of every clue: the baseline
// Active Switch Set used as the assumption set when no clue has been
// conceptually removed.
func (p *Puzzle) Switches() []sat.Lit {
	out := make([]sat.Lit, len(p.clues))
	for i, c := range p.clues {
		out[i] = c.Switch
	}
	return out
}

// CluesForSwitches maps a set of switch literals back to their clues,
// sorted by clue id for deterministic rendering.
func (p *Puzzle) CluesForSwitches(switches []sat.Lit) []Clue {
	want := make(map[sat.Lit]bool, len(switches))
	for _, s := range switches {
		want[s] = true
	}
	var out []Clue
	for _, c := range p.clues {
		if want[c.Switch] {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Reveal lists the variable names the compiler marked as the
// user-visible grid via REVEAL directives.
func (p *Puzzle) Reveal() []string { return p.reveal }
