package compiler

import (
	"testing"

	"github.com/clues/demystify/internal/sat"
)

func TestToPuzzleBuildsModelFromCompilerOutput(t *testing.T) {
	out := output{
		NbVars: 2,
		CNF:    [][]int{{1, 2}, {-1, -2}},
		Variables: []variableOut{
			{Name: "a", Domain: []string{"1", "2"}},
		},
		Literals: []literalOut{
			{Variable: "a", Value: "1", CNFLiteral: 1},
			{Variable: "a", Value: "2", CNFLiteral: -1},
		},
		Clues: []clueOut{
			{ID: "c1", Template: "a is {{.val}}", Switch: 2, Index: []int{0}, Params: map[string]interface{}{"val": "x"}},
		},
		Reveal: []string{"a"},
	}

	p, err := toPuzzle(out)
	if err != nil {
		t.Fatalf("toPuzzle: %v", err)
	}
	if p.NbCNFVars() != 2 {
		t.Errorf("NbCNFVars() = %d, want 2", p.NbCNFVars())
	}
	s, err := p.NewSolver()
	if err != nil {
		t.Fatalf("NewSolver: %v", err)
	}
	if s.NbVars() != 2 {
		t.Errorf("NbVars() = %d, want 2", s.NbVars())
	}
	clue, ok := p.Clue("c1")
	if !ok || clue.Switch != sat.MkLit(2, false) {
		t.Errorf("Clue(c1) = %+v, %v", clue, ok)
	}
}

func TestCacheKeyDisabledWithoutCacheDir(t *testing.T) {
	c := New("compiler-binary", "", nil)
	key, err := c.cacheKey("model.txt", "param.txt")
	if err != nil {
		t.Fatalf("cacheKey: %v", err)
	}
	if key != "" {
		t.Errorf("cacheKey() = %q, want empty string when caching is disabled", key)
	}
}
