// Package paramfile handles the optional YAML parameter file passed
// alongside a model file to the Model Compiler Client: validating its
// syntax up front (so a malformed file is reported before the compiler
// subprocess is even spawned) and, for test fixtures, recovering the
// expected-solution comment some shipped params carry.
package paramfile

import (
	"bufio"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/clues/demystify/internal/puzzleerr"
)

// Params is the generic decoded form of a parameter file: scalars and
// arrays keyed by name, handed to the compiler subprocess verbatim on
// disk (the compiler does its own binding to clue index/params
// placeholders) but validated here so syntax errors surface early.
type Params map[string]interface{}

// Load reads and YAML-decodes path, returning a CompilerFailure-kind
// error (so the CLI maps it to the same exit code as a compiler-side
// failure) if the file cannot be parsed.
func Load(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, puzzleerr.Wrap(puzzleerr.CompilerFailure, err, "reading parameter file")
	}
	var p Params
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, puzzleerr.Wrap(puzzleerr.CompilerFailure, err, "parsing parameter file")
	}
	return p, nil
}

// ExpectedSolution recovers the first "# solution: ..." comment line
// (anywhere in the file) some shipped parameter files carry, used by end-to-end tests to assert the
// engine's final grid matches the file's documented answer. It returns
// ok=false if no such comment is present; this is not part of the
// compiler contract, just a convention the shipped fixtures follow.
func ExpectedSolution(path string) (solution string, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	const prefix = "# solution:"
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
		}
	}
	return "", false
}
