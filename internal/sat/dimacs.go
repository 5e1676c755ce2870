package sat

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseDIMACS parses text in the DIMACS CNF format into a clause set
// suitable for AddClauses, plus the declared variable count. It exists
// for debugging the SAT Gateway directly against hand-written or
// third-party CNF files, outside the puzzle pipeline.
//
// A few non-standard variations are accepted for convenience:
//
//   - Comments (lines beginning with 'c') may appear anywhere, not just
//     in the preamble.
//   - The problem line may be missing, in which case the variable count
//     is inferred from the highest variable referenced.
func ParseDIMACS(r io.Reader) (nbVars int, clauses [][]Lit, err error) {
	var declared int
	var clause []Lit
	maxVar := 0
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := s.Text()
		if len(line) == 0 || line[0] == 'c' {
			continue
		}
		if line == "%" {
			break
		}
		if line[0] == 'p' {
			if len(clauses) > 0 {
				return 0, nil, errors.New("sat: problem line appears after clauses")
			}
			if declared > 0 {
				return 0, nil, errors.New("sat: multiple problem lines")
			}
			fields := strings.Fields(line)
			if len(fields) != 4 {
				return 0, nil, fmt.Errorf("sat: malformed problem line %q", line)
			}
			if fields[1] != "cnf" {
				return 0, nil, fmt.Errorf("sat: only cnf supported; got %q", fields[1])
			}
			declared, err = strconv.Atoi(fields[2])
			if err != nil {
				return 0, nil, fmt.Errorf("sat: malformed #vars in problem line: %w", err)
			}
			if declared < 0 {
				return 0, nil, fmt.Errorf("sat: invalid #vars %d", declared)
			}
			continue
		}
		for _, field := range strings.Fields(line) {
			n, err := strconv.Atoi(field)
			if err != nil {
				return 0, nil, fmt.Errorf("sat: invalid literal %q: %w", field, err)
			}
			if n == 0 {
				clauses = append(clauses, clause)
				clause = nil
				continue
			}
			v := n
			if v < 0 {
				v = -v
			}
			if v > maxVar {
				maxVar = v
			}
			clause = append(clause, Lit(n))
		}
	}
	if err := s.Err(); err != nil {
		return 0, nil, err
	}
	if len(clause) > 0 {
		clauses = append(clauses, clause)
	}
	if declared > maxVar {
		maxVar = declared
	}
	return maxVar, clauses, nil
}
