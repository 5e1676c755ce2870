// Package puzzleerr defines the distinct error kinds the Step Scheduler
// and CLI use to decide between retry, skip, and abort, and to pick the
// process exit code.
package puzzleerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error per spec §7.
type Kind int

const (
	Unknown Kind = iota
	// ContradictoryInput: the initial solve(all switches) is UNSAT.
	ContradictoryInput
	// Contradiction: a candidate removal emptied a domain mid-solve.
	Contradiction
	// SolverTransient: a single job's solver call errored or timed out;
	// retried once before being demoted to a skip.
	SolverTransient
	// SolverFatal: a solver instance is unrecoverable; the run aborts.
	SolverFatal
	// Stuck is not an error condition but a legitimate terminal state;
	// callers that want exit-code mapping should check for it via
	// KindOf rather than treating every puzzleerr.Error as fatal.
	Stuck
	// CompilerFailure: the external model compiler exited non-zero or
	// produced malformed output.
	CompilerFailure
)

func (k Kind) String() string {
	switch k {
	case ContradictoryInput:
		return "contradictory input"
	case Contradiction:
		return "contradiction"
	case SolverTransient:
		return "solver transient error"
	case SolverFatal:
		return "solver fatal error"
	case Stuck:
		return "stuck"
	case CompilerFailure:
		return "compiler failure"
	default:
		return "unknown error"
	}
}

// Error wraps a Kind with its underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Wrap builds a puzzleerr.Error of the given kind, attaching msg as
// context via github.com/pkg/errors so a stack trace is captured at the
// point of failure.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: errors.Wrap(err, msg)}
}

// New builds a puzzleerr.Error of the given kind from a plain message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

// As reports whether err (or something it wraps) is a *Error. It mirrors
// errors.As so callers don't need to import both packages to inspect a
// returned error's Kind.
func As(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, else
// Unknown.
func KindOf(err error) Kind {
	if pe, ok := As(err); ok {
		return pe.Kind
	}
	return Unknown
}
