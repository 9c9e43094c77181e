package runtime

import (
	"flic-compiler/ast"
	"flic-compiler/ast/flat"
)

// NodeID is a stable handle into the store's node arena. Handles survive
// in-place rewrites; native pointers are never handed out.
type NodeID int

const invalidNode = NodeID(-1)

type Tag uint8

const (
	// TagUnevaluated suspends an expression together with the environment
	// it must be evaluated in.
	TagUnevaluated Tag = iota
	// TagConstructor is a constructor application in head normal form.
	TagConstructor
	// TagValue is a literal in head normal form.
	TagValue
	// TagReference redirects to the node a reduction rewrote this one to.
	TagReference
	// TagLogicVar is a logic variable, bound at most once per search path.
	TagLogicVar
)

func (t Tag) String() string {
	switch t {
	case TagUnevaluated:
		return "unevaluated"
	case TagConstructor:
		return "constructor"
	case TagValue:
		return "value"
	case TagReference:
		return "reference"
	case TagLogicVar:
		return "logicvar"
	}
	return "unknown"
}

// Node is one graph node. Which fields are meaningful depends on Tag:
// Unevaluated uses Expr/Env/Scrut, or, when Expr is nil, Name/AppKind/
// Fields/Scrut as a suspended application over nodes that already exist;
// Constructor uses Name/Fields, Value uses Value, Reference uses Target,
// LogicVar uses Bound/Target.
//
// The suspended-application form is what keeps backtracking sound: once an
// application's arguments have been turned into nodes, the application is
// rewritten into this form before anything is forced, so re-running after a
// restore reuses the same argument nodes instead of re-suspending them.
type Node struct {
	Tag     Tag
	Expr    flat.Expression
	Env     *Env
	Scrut   NodeID // demanded scrutinee or strict argument, invalidNode until set
	Name    ast.QualifiedIdentifier
	AppKind flat.CombKind
	Fields  []NodeID
	Value   ast.Literal
	Target  NodeID
	Bound   bool
}

// Env maps local variable indices to graph nodes, scoped per activation.
// Scopes chain instead of copying so that multiple occurrences of one
// variable resolve to the same node; that is the sharing mechanism for
// call-by-need.
type Env struct {
	vars   map[ast.VarIndex]NodeID
	parent *Env
	// fn names the function whose activation opened this scope; it
	// attributes runtime errors to their owning function.
	fn ast.QualifiedIdentifier
}

func newEnv(parent *Env) *Env {
	return &Env{vars: map[ast.VarIndex]NodeID{}, parent: parent}
}

func (e *Env) owner() ast.QualifiedIdentifier {
	for scope := e; scope != nil; scope = scope.parent {
		if scope.fn != "" {
			return scope.fn
		}
	}
	return ""
}

func (e *Env) bind(v ast.VarIndex, id NodeID) {
	e.vars[v] = id
}

func (e *Env) lookup(v ast.VarIndex) (NodeID, bool) {
	for scope := e; scope != nil; scope = scope.parent {
		if id, ok := scope.vars[v]; ok {
			return id, true
		}
	}
	return invalidNode, false
}

// Store owns the mutable node graph. Every mutation goes through update and
// is journaled, so any prior state can be restored for backtracking.
type Store struct {
	nodes   []Node
	journal []journalEntry
}

type journalEntry struct {
	id   NodeID
	prev Node
}

// Mark is a checkpoint: restoring it reverts every mutation recorded since
// and discards every node created since.
type Mark struct {
	nodes   int
	journal int
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) New(n Node) NodeID {
	s.nodes = append(s.nodes, n)
	return NodeID(len(s.nodes) - 1)
}

func (s *Store) Get(id NodeID) Node {
	return s.nodes[id]
}

func (s *Store) Len() int {
	return len(s.nodes)
}

// update rewrites a node in place, journaling the previous content.
func (s *Store) update(id NodeID, n Node) {
	s.journal = append(s.journal, journalEntry{id: id, prev: s.nodes[id]})
	s.nodes[id] = n
}

func (s *Store) Mark() Mark {
	return Mark{nodes: len(s.nodes), journal: len(s.journal)}
}

// Restore reverts to the state at the mark. Journal entries are undone in
// reverse; mutations of nodes that are about to be truncated are skipped.
func (s *Store) Restore(m Mark) {
	for i := len(s.journal) - 1; i >= m.journal; i-- {
		e := s.journal[i]
		if int(e.id) < m.nodes {
			s.nodes[e.id] = e.prev
		}
	}
	s.journal = s.journal[:m.journal]
	s.nodes = s.nodes[:m.nodes]
}

// deref follows reference chains and bound logic variables to the node that
// currently represents the value. It never mutates.
func (s *Store) deref(id NodeID) NodeID {
	for {
		n := s.nodes[id]
		switch {
		case n.Tag == TagReference:
			id = n.Target
		case n.Tag == TagLogicVar && n.Bound:
			id = n.Target
		default:
			return id
		}
	}
}
