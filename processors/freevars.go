package processors

import (
	"flic-compiler/ast"
	"flic-compiler/ast/flat"
	"flic-compiler/common"
)

// FreeVars returns the free variables of an expression, deduplicated, in
// first-occurrence order. The order is load-bearing: it fixes the parameter
// order of functions synthesized by lifting.
//
// Dangling indices are a front-end precondition and are not validated here.
func FreeVars(expr flat.Expression) []ast.VarIndex {
	return common.Dedup(collectFreeVars(expr))
}

func collectFreeVars(expr flat.Expression) []ast.VarIndex {
	switch e := expr.(type) {
	case flat.Var:
		return []ast.VarIndex{e.Index}
	case flat.Const:
		return nil
	case flat.Comb:
		var vars []ast.VarIndex
		for _, arg := range e.Args {
			vars = append(vars, collectFreeVars(arg)...)
		}
		return vars
	case flat.Case:
		vars := collectFreeVars(e.Scrutinee)
		for _, b := range e.Branches {
			vars = append(vars, common.Without(collectFreeVars(b.Body), patternVars(b.Pattern))...)
		}
		return vars
	case flat.Let:
		// Bound expressions may reference the let's own names, so the
		// subtraction applies uniformly to the body and every binding.
		bound := common.Map(func(b flat.Binding) ast.VarIndex { return b.Var }, e.Bindings)
		vars := collectFreeVars(e.Body)
		for _, b := range e.Bindings {
			vars = append(vars, collectFreeVars(b.Value)...)
		}
		return common.Without(vars, bound)
	case flat.Free:
		return common.Without(collectFreeVars(e.Body), e.Vars)
	case flat.Or:
		return append(collectFreeVars(e.Left), collectFreeVars(e.Right)...)
	case flat.Typed:
		return collectFreeVars(e.Expression)
	}
	panic(common.SystemError{Message: "impossible expression variant"})
}

func patternVars(p flat.Pattern) []ast.VarIndex {
	if c, ok := p.(flat.PConstr); ok {
		return c.Vars
	}
	return nil
}
