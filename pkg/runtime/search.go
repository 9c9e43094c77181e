package runtime

import (
	"errors"
	"fmt"

	"flic-compiler/ast"
	"flic-compiler/ast/flat"
	"flic-compiler/common"
)

// Result is one outcome of the search: either a value in head normal form
// (fully forced when the entry goes through the normal-form combinator), or
// an explicit pattern-match failure.
type Result struct {
	Term         Term
	MatchFailure bool
}

func (r Result) String() string {
	if r.MatchFailure {
		return "!! pattern match failure"
	}
	return r.Term.String()
}

// Results is the lazy, pull-based sequence of outcomes of one execution.
// Exploration is depth first, left before right at every choice point, so
// the sequence is deterministic for a fixed program. Stopping early is
// always safe: the only side effect anywhere is graph mutation.
type Results struct {
	m       *Machine
	root    NodeID
	started bool
	done    bool
	err     error
	cur     Result
}

// Next advances to the next outcome. It returns false when the search space
// is exhausted or a fatal error occurred; check Err afterwards.
func (r *Results) Next() bool {
	if r.done || r.err != nil {
		return false
	}
	if r.started && !r.m.backtrack() {
		r.done = true
		return false
	}
	r.started = true

	for {
		id, err := r.m.hnf(r.root)
		switch {
		case err == nil:
			r.cur = Result{Term: r.m.materialize(id)}
			return true
		case errors.Is(err, errNoBranches):
			r.cur = Result{MatchFailure: true}
			return true
		case errors.Is(err, errPathFailed):
			if !r.m.backtrack() {
				r.done = true
				return false
			}
		default:
			r.err = err
			r.done = true
			return false
		}
	}
}

// Result returns the outcome the last successful Next moved to.
func (r *Results) Result() Result {
	return r.cur
}

func (r *Results) Err() error {
	return r.err
}

// Machine exposes the machine driving this search, for snapshot emission
// between results.
func (r *Results) Machine() *Machine {
	return r.m
}

// Execute sets up a search for the given entry function and returns its
// result sequence. Nothing is reduced until the first Next.
func Execute(cfg Config, prog flat.Program, opts ...Option) (*Results, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	entry := ast.QualifiedIdentifier(cfg.Entry)
	decl, ok := prog.Func(entry)
	if !ok {
		return nil, common.Error{Fn: entry, Message: "entry function is not declared"}
	}
	if decl.Arity != 0 {
		return nil, common.Error{Fn: entry, Message: fmt.Sprintf("entry function must have arity 0, has %d", decl.Arity)}
	}
	if cfg.ShowGraphLevel >= 3 {
		opts = append(opts, WithVerboseTrace())
	}

	m := NewMachine(prog, opts...)
	root := m.suspend(flat.Comb{Kind: flat.FuncCall, Name: entry}, nil)
	return &Results{m: m, root: root}, nil
}
