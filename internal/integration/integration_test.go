// Package integration exercises the Model Compiler Client, parameter
// file loading, Knowledge State, Step Scheduler and Trace Renderer
// together against fixed JSON/YAML fixtures under testdata/, standing
// in for the external model compiler's output in spec §8's end-to-end
// scenarios.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clues/demystify/internal/compiler"
	"github.com/clues/demystify/internal/knowledge"
	"github.com/clues/demystify/internal/paramfile"
	"github.com/clues/demystify/internal/puzzleerr"
	"github.com/clues/demystify/internal/scheduler"
	"github.com/clues/demystify/internal/trace"
	"github.com/clues/demystify/internal/workpool"
)

func testdataPath(name string) string {
	return filepath.Join("..", "..", "testdata", name)
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(testdataPath(name))
	require.NoError(t, err, "reading fixture %s", name)
	return data
}

func TestTinyOrderedSolvesAndTracesSteps(t *testing.T) {
	params, err := paramfile.Load(testdataPath("tiny_ordered_param.yaml"))
	require.NoError(t, err)
	require.Equal(t, 3, params["size"])

	expected, ok := paramfile.ExpectedSolution(testdataPath("tiny_ordered_param.yaml"))
	require.True(t, ok, "fixture should carry a documented solution")
	require.Equal(t, "grid1=1 grid2=2 grid3=3", expected)

	puzzle, err := compiler.FromJSON(fixture(t, "tiny_ordered.json"))
	require.NoError(t, err)
	base, err := puzzle.NewSolver()
	require.NoError(t, err)

	ks := knowledge.New(puzzle)
	pool := workpool.New(2)
	sched := scheduler.New(puzzle, ks, base, scheduler.Options{Merge: 1, FilterPool: pool, MUSPool: pool}, nil)

	status, err := sched.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, scheduler.Done, status)

	want := map[string]string{"grid1": "1", "grid2": "2", "grid3": "3"}
	for name, val := range want {
		got := ks.Candidates(name)
		require.Equal(t, []string{val}, got, "Candidates(%s)", name)
	}

	gotSolution := strings.Join([]string{
		"grid1=" + ks.Candidates("grid1")[0],
		"grid2=" + ks.Candidates("grid2")[0],
		"grid3=" + ks.Candidates("grid3")[0],
	}, " ")
	require.Equal(t, expected, gotSolution, "solved grid should match the fixture's documented solution")

	renderer := trace.New(puzzle, false)
	rendered, err := renderer.RenderTrace(sched.Records())
	require.NoError(t, err)
	require.True(t, strings.Contains(rendered, "{ordered1}") || strings.Contains(rendered, "{ordered2}"),
		"rendered trace %q mentions neither clue", rendered)
}

func TestOverConstrainedReportsContradictoryInput(t *testing.T) {
	puzzle, err := compiler.FromJSON(fixture(t, "over_constrained.json"))
	require.NoError(t, err)
	base, err := puzzle.NewSolver()
	require.NoError(t, err)

	ks := knowledge.New(puzzle)
	sched := scheduler.New(puzzle, ks, base, scheduler.Options{}, nil)

	_, err = sched.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, puzzleerr.ContradictoryInput, puzzleerr.KindOf(err))
}

func TestUnderConstrainedReportsStuck(t *testing.T) {
	puzzle, err := compiler.FromJSON(fixture(t, "under_constrained.json"))
	require.NoError(t, err)
	base, err := puzzle.NewSolver()
	require.NoError(t, err)

	ks := knowledge.New(puzzle)
	sched := scheduler.New(puzzle, ks, base, scheduler.Options{}, nil)

	status, err := sched.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, scheduler.Stuck, status)
	require.Empty(t, sched.Records())
}
