package common

import (
	"fmt"

	"flic-compiler/ast"
)

// Error is a fatal static or internal error attributed to the function whose
// processing raised it. It aborts the whole invocation.
type Error struct {
	Fn      ast.QualifiedIdentifier
	Message string
}

func (e Error) Error() string {
	if e.Fn == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Fn, e.Message)
}

// SystemError marks a broken precondition inside this implementation rather
// than a problem with the input program.
type SystemError struct {
	Message string
}

func (e SystemError) Error() string {
	return e.Message
}

// Guard recovers Error and SystemError panics into the given error slot.
// Anything else keeps unwinding.
func Guard(err *error) {
	switch x := recover().(type) {
	case nil:
	case Error:
		*err = x
	case SystemError:
		*err = x
	default:
		panic(x)
	}
}
