package ast

import (
	"fmt"
	"strconv"
)

// Literal is a constant value occurring in expressions and case patterns.
type Literal interface {
	fmt.Stringer
	_literal()
}

type LInt struct {
	Value int64
}

func (LInt) _literal() {}

func (l LInt) String() string {
	return strconv.FormatInt(l.Value, 10)
}

type LFloat struct {
	Value float64
}

func (LFloat) _literal() {}

func (l LFloat) String() string {
	return strconv.FormatFloat(l.Value, 'g', -1, 64)
}

type LChar struct {
	Value rune
}

func (LChar) _literal() {}

func (l LChar) String() string {
	return strconv.QuoteRune(l.Value)
}

type LString struct {
	Value string
}

func (LString) _literal() {}

func (l LString) String() string {
	return strconv.Quote(l.Value)
}

// LiteralsEqual compares two literals for case dispatch.
func LiteralsEqual(a, b Literal) bool {
	return a == b
}
