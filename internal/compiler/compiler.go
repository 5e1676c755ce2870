// Package compiler is the Model Compiler Client: it invokes the
// external model-refinement tool as a subprocess, decodes its compiled
// output into a Puzzle Model, and caches that output on disk keyed by a
// hash of its inputs so repeat runs over an unchanged model skip the
// subprocess entirely.
package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/mitchellh/hashstructure"
	"github.com/sirupsen/logrus"

	"github.com/clues/demystify/internal/model"
	"github.com/clues/demystify/internal/puzzleerr"
	"github.com/clues/demystify/internal/sat"
)

// Version identifies this client's understanding of the compiler's
// output schema; it participates in the cache key so a schema change
// invalidates stale cache entries.
const Version = "1"

// output is the JSON document the compiler emits on stdout.
type output struct {
	NbVars    int           `json:"nb_vars"`
	CNF       [][]int       `json:"cnf"`
	Variables []variableOut `json:"variables"`
	Literals  []literalOut  `json:"literals"`
	Clues     []clueOut     `json:"clues"`
	Reveal    []string      `json:"reveal"`
}

type variableOut struct {
	Name   string   `json:"name"`
	Domain []string `json:"domain"`
}

type literalOut struct {
	Variable   string `json:"variable"`
	Value      string `json:"value"`
	CNFLiteral int    `json:"cnf_literal"`
}

type clueOut struct {
	ID       string                 `json:"id"`
	Template string                 `json:"template"`
	Switch   int                    `json:"switch"`
	Index    []int                  `json:"index"`
	Params   map[string]interface{} `json:"params"`
}

// Client runs the external compiler binary and caches its output.
type Client struct {
	BinaryPath string
	CacheDir   string
	Log        *logrus.Entry
}

// New builds a Client. If cacheDir is empty, caching is disabled and
// the compiler is invoked on every Compile call.
func New(binaryPath, cacheDir string, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{BinaryPath: binaryPath, CacheDir: cacheDir, Log: log}
}

// Compile invokes (or reuses a cached run of) the compiler over
// modelPath and paramPath, and builds the resulting Puzzle Model.
func (c *Client) Compile(ctx context.Context, modelPath, paramPath string) (*model.Puzzle, error) {
	key, err := c.cacheKey(modelPath, paramPath)
	if err != nil {
		c.Log.WithError(err).Warn("compiler: could not compute cache key, skipping cache")
	}

	var raw []byte
	if key != "" {
		if cached, ok := c.readCache(key); ok {
			c.Log.WithField("cache_key", key).Debug("compiler: cache hit")
			raw = cached
		}
	}

	if raw == nil {
		raw, err = c.run(ctx, modelPath, paramPath)
		if err != nil {
			return nil, err
		}
		if key != "" {
			c.writeCache(key, raw)
		}
	}

	return FromJSON(raw)
}

// FromJSON decodes a compiler output document directly into a Puzzle
// Model, bypassing subprocess invocation and caching. It is exposed so
// tests and the solve-dimacs-style debug tooling can exercise the
// scheduler against a fixed fixture without a real compiler binary on
// PATH.
func FromJSON(raw []byte) (*model.Puzzle, error) {
	var out output
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, puzzleerr.Wrap(puzzleerr.CompilerFailure, err, "decoding compiler output")
	}
	return toPuzzle(out)
}

func (c *Client) run(ctx context.Context, modelPath, paramPath string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.BinaryPath, "--model", modelPath, "--param", paramPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, puzzleerr.Wrap(puzzleerr.CompilerFailure, err, "compiler exited: "+stderr.String())
	}
	return stdout.Bytes(), nil
}

func toPuzzle(out output) (*model.Puzzle, error) {
	vars := make([]model.Variable, len(out.Variables))
	for i, v := range out.Variables {
		vars[i] = model.Variable{Name: v.Name, Domain: v.Domain}
	}

	lits := make(map[model.LiteralKey]sat.Lit, len(out.Literals))
	for _, l := range out.Literals {
		lits[model.LiteralKey{Variable: l.Variable, Value: l.Value}] = sat.Lit(l.CNFLiteral)
	}

	clues := make([]model.Clue, len(out.Clues))
	for i, cl := range out.Clues {
		clues[i] = model.Clue{
			ID:       cl.ID,
			Template: cl.Template,
			Switch:   sat.Lit(cl.Switch),
			Index:    cl.Index,
			Params:   cl.Params,
		}
	}

	cnf := make([][]sat.Lit, len(out.CNF))
	for i, clause := range out.CNF {
		lits := make([]sat.Lit, len(clause))
		for j, n := range clause {
			lits[j] = sat.Lit(n)
		}
		cnf[i] = lits
	}

	p, err := model.New(out.NbVars, cnf, vars, lits, clues, out.Reveal)
	if err != nil {
		return nil, puzzleerr.Wrap(puzzleerr.CompilerFailure, err, "building puzzle model from compiler output")
	}
	return p, nil
}

type cacheKeyInput struct {
	ModelPath    string
	ParamPath    string
	ModelContent string
	ParamContent string
	Version      string
}

func (c *Client) cacheKey(modelPath, paramPath string) (string, error) {
	if c.CacheDir == "" {
		return "", nil
	}
	modelContent, err := os.ReadFile(modelPath)
	if err != nil {
		return "", err
	}
	paramContent, err := os.ReadFile(paramPath)
	if err != nil {
		return "", err
	}
	h, err := hashstructure.Hash(cacheKeyInput{
		ModelPath:    modelPath,
		ParamPath:    paramPath,
		ModelContent: string(modelContent),
		ParamContent: string(paramContent),
		Version:      Version,
	}, nil)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.CacheDir, formatHash(h)+".json"), nil
}

func formatHash(h uint64) string {
	const hex = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hex[h&0xF]
		h >>= 4
	}
	return string(buf)
}

func (c *Client) readCache(path string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *Client) writeCache(path string, data []byte) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		c.Log.WithError(err).Warn("compiler: could not create cache dir")
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.Log.WithError(err).Warn("compiler: could not write cache entry")
	}
}
