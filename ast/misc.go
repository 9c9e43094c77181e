package ast

// Identifier is a plain unqualified name.
type Identifier string

// QualifiedIdentifier is a name prefixed with its module, e.g. "Prelude.add".
type QualifiedIdentifier string

// VarIndex identifies a local variable within one function body. Indices are
// assigned by the front end; this implementation never renames them.
type VarIndex int

type Visibility int

const (
	Private Visibility = iota
	Public
)

func (v Visibility) String() string {
	if v == Public {
		return "public"
	}
	return "private"
}
