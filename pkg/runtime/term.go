package runtime

import (
	"fmt"
	"strings"

	"flic-compiler/ast"
	"flic-compiler/common"
)

// Term is a result value detached from the graph. Results must be
// materialized before the next alternative is pulled: backtracking truncates
// the node arena a live result would otherwise alias.
type Term interface {
	fmt.Stringer
	_term()
}

// TermLit is a literal result.
type TermLit struct {
	Value ast.Literal
}

func (TermLit) _term() {}

func (t TermLit) String() string {
	return t.Value.String()
}

// TermConstr is a constructor term. In a head-normal-form result its
// arguments may be thunks.
type TermConstr struct {
	Name ast.QualifiedIdentifier
	Args []Term
}

func (TermConstr) _term() {}

func (t TermConstr) String() string {
	if len(t.Args) == 0 {
		return string(t.Name)
	}
	parts := common.Map(func(a Term) string { return a.String() }, t.Args)
	return fmt.Sprintf("(%s %s)", t.Name, strings.Join(parts, " "))
}

// TermFreeVar is a logic variable the search left unbound.
type TermFreeVar struct {
	ID NodeID
}

func (TermFreeVar) _term() {}

func (t TermFreeVar) String() string {
	return fmt.Sprintf("_v%d", t.ID)
}

// TermThunk stands for a field the result's head normal form never demanded,
// or a cycle back into the term.
type TermThunk struct{}

func (TermThunk) _term() {}

func (TermThunk) String() string {
	return "_"
}

// materialize copies a reduced node out of the graph without forcing
// anything further.
func (m *Machine) materialize(id NodeID) Term {
	return m.materializeSeen(id, map[NodeID]bool{})
}

func (m *Machine) materializeSeen(id NodeID, seen map[NodeID]bool) Term {
	id = m.store.deref(id)
	if seen[id] {
		return TermThunk{}
	}
	seen[id] = true
	defer delete(seen, id)

	n := m.store.Get(id)
	switch n.Tag {
	case TagValue:
		return TermLit{Value: n.Value}
	case TagConstructor:
		return TermConstr{
			Name: n.Name,
			Args: common.Map(func(f NodeID) Term { return m.materializeSeen(f, seen) }, n.Fields),
		}
	case TagLogicVar:
		return TermFreeVar{ID: id}
	default:
		return TermThunk{}
	}
}
