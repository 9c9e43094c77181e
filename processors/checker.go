package processors

import (
	"fmt"

	"flic-compiler/ast"
	"flic-compiler/ast/flat"
	"flic-compiler/common"
)

// Check resolves every function application in the program: the callee must
// be declared and the argument count must match its arity. Constructor
// applications are not checked (type declarations are opaque). The first
// problem found aborts with the owning function's qualified name.
func Check(prog flat.Program) (err error) {
	defer common.Guard(&err)

	for _, fn := range prog.Funcs {
		if rule, ok := fn.Body.(flat.Rule); ok {
			checkExpr(prog, fn.Name, rule.Body)
		}
	}
	return nil
}

func checkExpr(prog flat.Program, owner ast.QualifiedIdentifier, expr flat.Expression) {
	switch e := expr.(type) {
	case flat.Var, flat.Const:
	case flat.Comb:
		if e.Kind == flat.FuncCall {
			decl, ok := prog.Func(e.Name)
			if !ok {
				panic(common.Error{Fn: owner, Message: fmt.Sprintf("unresolved function %q", e.Name)})
			}
			if len(e.Args) != decl.Arity {
				panic(common.Error{
					Fn:      owner,
					Message: fmt.Sprintf("%q applied to %d arguments, arity is %d", e.Name, len(e.Args), decl.Arity),
				})
			}
			if ext, isExt := decl.Body.(flat.External); isExt && IsApplyMarker(ext.Marker) {
				checkApplyCall(prog, owner, e)
				return
			}
		}
		for _, a := range e.Args {
			checkExpr(prog, owner, a)
		}
	case flat.Case:
		checkExpr(prog, owner, e.Scrutinee)
		for _, b := range e.Branches {
			checkExpr(prog, owner, b.Body)
		}
	case flat.Let:
		for _, b := range e.Bindings {
			checkExpr(prog, owner, b.Value)
		}
		checkExpr(prog, owner, e.Body)
	case flat.Free:
		checkExpr(prog, owner, e.Body)
	case flat.Or:
		checkExpr(prog, owner, e.Left)
		checkExpr(prog, owner, e.Right)
	case flat.Typed:
		checkExpr(prog, owner, e.Expression)
	default:
		panic(common.SystemError{Message: "impossible expression variant"})
	}
}

// checkApplyCall validates the first-order shape required by the apply
// combinators: their first operand must itself be an application missing
// exactly one argument.
func checkApplyCall(prog flat.Program, owner ast.QualifiedIdentifier, call flat.Comb) {
	operand, ok := call.Args[0].(flat.Comb)
	if !ok {
		panic(common.Error{Fn: owner, Message: "apply operand must be an application"})
	}
	if operand.Kind == flat.FuncCall {
		target, ok := prog.Func(operand.Name)
		if !ok {
			panic(common.Error{Fn: owner, Message: fmt.Sprintf("unresolved function %q", operand.Name)})
		}
		if len(operand.Args) != target.Arity-1 {
			panic(common.Error{
				Fn:      owner,
				Message: fmt.Sprintf("apply operand %q must be missing exactly one argument", operand.Name),
			})
		}
	}
	for _, a := range operand.Args {
		checkExpr(prog, owner, a)
	}
	checkExpr(prog, owner, call.Args[1])
}

// IsApplyMarker reports whether an external marker names one of the apply
// combinators, whose operands the checker treats specially.
func IsApplyMarker(marker string) bool {
	return marker == "prim_apply" || marker == "prim_applyStrict"
}
