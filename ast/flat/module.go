package flat

import (
	"flic-compiler/ast"
)

// FuncBody is either a rule (parameters plus a flat expression) or a marker
// naming an externally implemented operation.
type FuncBody interface {
	_funcBody()
}

type Rule struct {
	Params []ast.VarIndex
	Body   Expression
}

func (Rule) _funcBody() {}

type External struct {
	Marker string
}

func (External) _funcBody() {}

type FuncDecl struct {
	Name       ast.QualifiedIdentifier
	Arity      int
	Visibility ast.Visibility
	// Type is a placeholder carried through from the front end; it is
	// meaningless after lifting and never consulted.
	Type string
	Body FuncBody
}

// TypeDecl is opaque to this implementation: only constructor arities written
// in patterns matter, never the declared constructor set.
type TypeDecl struct {
	Name       ast.QualifiedIdentifier
	Visibility ast.Visibility
	Params     []ast.Identifier
}

type Fixity int

const (
	InfixNone Fixity = iota
	InfixLeft
	InfixRight
)

// OpDecl carries operator fixity information; it is preserved verbatim and
// never interpreted.
type OpDecl struct {
	Name       ast.QualifiedIdentifier
	Fixity     Fixity
	Precedence int
}

// Program is a whole flattened module. Funcs keeps declaration order;
// functions synthesized by lifting are appended right after their originator.
type Program struct {
	Module  string
	Imports []string
	Types   []TypeDecl
	Funcs   []FuncDecl
	Ops     []OpDecl
}

// Func returns the declaration of a qualified name.
func (p Program) Func(name ast.QualifiedIdentifier) (FuncDecl, bool) {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f, true
		}
	}
	return FuncDecl{}, false
}

// FuncNames returns the set of declared top-level names.
func (p Program) FuncNames() map[ast.QualifiedIdentifier]bool {
	names := make(map[ast.QualifiedIdentifier]bool, len(p.Funcs))
	for _, f := range p.Funcs {
		names[f.Name] = true
	}
	return names
}
