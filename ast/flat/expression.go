package flat

import (
	"flic-compiler/ast"
)

// Expression is one node of a flattened function body. The set of variants is
// fixed; anything the front end cannot express with them is desugared before
// it reaches this package.
type Expression interface {
	_expression()
}

type Var struct {
	Index ast.VarIndex
}

func (Var) _expression() {}

type Const struct {
	Value ast.Literal
}

func (Const) _expression() {}

type CombKind int

const (
	FuncCall CombKind = iota
	ConstrCall
)

// Comb is a saturated application of a function or a data constructor.
type Comb struct {
	Kind CombKind
	Name ast.QualifiedIdentifier
	Args []Expression
}

func (Comb) _expression() {}

type Case struct {
	Scrutinee Expression
	Branches  []Branch
}

func (Case) _expression() {}

type Binding struct {
	Var   ast.VarIndex
	Value Expression
}

// Let binds expressions to variables. Bindings may reference each other and
// themselves; the bound names scope over every bound expression and the body.
type Let struct {
	Bindings []Binding
	Body     Expression
}

func (Let) _expression() {}

// Free introduces logic variables scoping over the body.
type Free struct {
	Vars []ast.VarIndex
	Body Expression
}

func (Free) _expression() {}

// Or is a don't-know choice between two alternative computations.
type Or struct {
	Left, Right Expression
}

func (Or) _expression() {}

// Typed wraps an expression with a type annotation the evaluator ignores.
type Typed struct {
	Expression Expression
	Type       string
}

func (Typed) _expression() {}

// Pattern is the left-hand side of a case branch: either a constructor with
// fresh variables for its fields, or a literal.
type Pattern interface {
	_pattern()
}

type PConstr struct {
	Name ast.QualifiedIdentifier
	Vars []ast.VarIndex
}

func (PConstr) _pattern() {}

type PLit struct {
	Value ast.Literal
}

func (PLit) _pattern() {}

type Branch struct {
	Pattern Pattern
	Body    Expression
}
