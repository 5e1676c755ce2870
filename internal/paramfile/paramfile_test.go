package paramfile

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadParsesYAML(t *testing.T) {
	path := writeTemp(t, "param.yaml", "n: 3\npreset:\n  - [1, 1, 5]\n")
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p["n"] != 3 {
		t.Errorf("p[n] = %v, want 3", p["n"])
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeTemp(t, "param.yaml", "n: [unterminated\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}

func TestExpectedSolutionFindsTrailingComment(t *testing.T) {
	path := writeTemp(t, "param.yaml", "n: 3\n# solution: 1,2,3\n")
	sol, ok := ExpectedSolution(path)
	if !ok || sol != "1,2,3" {
		t.Errorf("ExpectedSolution() = %q, %v, want \"1,2,3\", true", sol, ok)
	}
}

func TestExpectedSolutionAbsent(t *testing.T) {
	path := writeTemp(t, "param.yaml", "n: 3\n")
	if _, ok := ExpectedSolution(path); ok {
		t.Error("expected no solution comment to be found")
	}
}
