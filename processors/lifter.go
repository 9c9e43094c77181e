package processors

import (
	"fmt"

	"flic-compiler/ast"
	"flic-compiler/ast/flat"
	"flic-compiler/common"
)

// Options selects which constructs the lifter extracts beyond the ones it
// must always extract.
type Options struct {
	// LiftCase extracts case expressions found in case branch bodies.
	LiftCase bool
	// LiftComplexScrutinee extracts any case whose scrutinee is not a bare
	// variable into a function taking the scrutinee as its last parameter.
	LiftComplexScrutinee bool
}

func DefaultOptions() Options {
	return Options{LiftCase: true, LiftComplexScrutinee: true}
}

const (
	tagCase        = "CASE"
	tagComplexCase = "COMPLEXCASE"
	tagLet         = "LET"
	tagFree        = "FREE"
)

// Lift rewrites nested case/let/free/choice constructs into calls to fresh
// top-level functions so that every function body is flat. It is a pure
// function of (options, program): the input program is not modified.
//
// Synthesized functions are appended right after the function they were
// extracted from, and their bodies are recursively lifted before emission.
func Lift(opts Options, prog flat.Program) flat.Program {
	out := prog
	out.Funcs = nil

	taken := prog.FuncNames()
	for _, fn := range prog.Funcs {
		ctx := &liftContext{opts: opts, taken: taken, owner: fn.Name}
		if rule, ok := fn.Body.(flat.Rule); ok {
			rule.Body = ctx.lift(rule.Body, false)
			fn.Body = rule
		}
		out.Funcs = append(out.Funcs, fn)
		out.Funcs = append(out.Funcs, ctx.synthesized...)
	}
	return out
}

// liftContext threads the transformation state through the recursion: the
// names already in use (shared across the whole run), the originating
// top-level function, its fresh-name counter, and the functions synthesized
// for it so far.
type liftContext struct {
	opts        Options
	taken       map[ast.QualifiedIdentifier]bool
	owner       ast.QualifiedIdentifier
	counter     int
	synthesized []flat.FuncDecl
}

// lift rewrites one expression. nested marks a position where a control
// construct cannot be represented inline and must be extracted if it is one.
func (ctx *liftContext) lift(expr flat.Expression, nested bool) flat.Expression {
	switch e := expr.(type) {
	case flat.Var, flat.Const:
		return e

	case flat.Comb:
		// Argument positions can never hold control constructs.
		e.Args = common.Map(func(a flat.Expression) flat.Expression {
			return ctx.lift(a, true)
		}, e.Args)
		return e

	case flat.Case:
		if _, bare := e.Scrutinee.(flat.Var); !bare && ctx.opts.LiftComplexScrutinee {
			return ctx.liftComplexCase(e)
		}
		if nested {
			return ctx.extract(tagCase, e)
		}
		e.Scrutinee = ctx.lift(e.Scrutinee, true)
		e.Branches = append([]flat.Branch(nil), e.Branches...)
		for i := range e.Branches {
			// Patterns and their bound variables are never renamed.
			e.Branches[i].Body = ctx.lift(e.Branches[i].Body, ctx.opts.LiftCase)
		}
		return e

	case flat.Let:
		if nested {
			return ctx.extract(tagLet, e)
		}
		e.Bindings = append([]flat.Binding(nil), e.Bindings...)
		for i := range e.Bindings {
			e.Bindings[i].Value = ctx.lift(e.Bindings[i].Value, true)
		}
		e.Body = ctx.lift(e.Body, true)
		return e

	case flat.Free:
		if nested {
			return ctx.extract(tagFree, e)
		}
		e.Body = ctx.lift(e.Body, true)
		return e

	case flat.Or:
		// A choice point itself is never extracted, only its sides.
		e.Left = ctx.lift(e.Left, true)
		e.Right = ctx.lift(e.Right, true)
		return e

	case flat.Typed:
		e.Expression = ctx.lift(e.Expression, nested)
		return e
	}
	panic(common.SystemError{Message: "impossible expression variant"})
}

// extract synthesizes a fresh function over the free variables of expr with
// expr as its body and returns the replacing call.
func (ctx *liftContext) extract(tag string, expr flat.Expression) flat.Expression {
	fvs := FreeVars(expr)
	name := ctx.synthesize(tag, fvs, expr)
	return flat.Comb{Kind: flat.FuncCall, Name: name, Args: varRefs(fvs)}
}

// liftComplexCase extracts a case over a non-variable scrutinee. The
// synthesized function takes the free variables of the branches plus one
// trailing parameter the scrutinee is passed through.
func (ctx *liftContext) liftComplexCase(e flat.Case) flat.Expression {
	scrutinee := ctx.lift(e.Scrutinee, true)

	var branchVars []ast.VarIndex
	for _, b := range e.Branches {
		branchVars = append(branchVars, common.Without(collectFreeVars(b.Body), patternVars(b.Pattern))...)
	}
	fvs := common.Dedup(branchVars)

	scrutVar := maxVarIndex(e) + 1
	params := append(append([]ast.VarIndex{}, fvs...), scrutVar)
	body := flat.Case{Scrutinee: flat.Var{Index: scrutVar}, Branches: e.Branches}

	name := ctx.synthesize(tagComplexCase, params, body)
	return flat.Comb{
		Kind: flat.FuncCall,
		Name: name,
		Args: append(varRefs(fvs), scrutinee),
	}
}

// synthesize allocates a fresh name, emits a new private function with the
// given parameters and recursively lifted body, and returns its name. The
// declaration slot is reserved before the body is lifted so functions come
// out in the order they were conceived.
func (ctx *liftContext) synthesize(tag string, params []ast.VarIndex, body flat.Expression) ast.QualifiedIdentifier {
	name := ctx.freshName(tag)
	slot := len(ctx.synthesized)
	ctx.synthesized = append(ctx.synthesized, flat.FuncDecl{
		Name:       name,
		Arity:      len(params),
		Visibility: ast.Private,
		Type:       "_",
	})
	ctx.synthesized[slot].Body = flat.Rule{Params: params, Body: ctx.lift(body, false)}
	return name
}

// freshName generates "<owner>_<TAG><counter>", skipping any name already in
// use. The counter strictly increases, so a finite set of taken names cannot
// keep it from terminating.
func (ctx *liftContext) freshName(tag string) ast.QualifiedIdentifier {
	for {
		name := ast.QualifiedIdentifier(fmt.Sprintf("%s_%s%d", ctx.owner, tag, ctx.counter))
		ctx.counter++
		if !ctx.taken[name] {
			ctx.taken[name] = true
			return name
		}
	}
}

func varRefs(vars []ast.VarIndex) []flat.Expression {
	return common.Map(func(v ast.VarIndex) flat.Expression {
		return flat.Var{Index: v}
	}, vars)
}

// maxVarIndex returns the largest variable index mentioned anywhere in the
// expression, or -1 if none occurs. Used to pick indices that cannot collide.
func maxVarIndex(expr flat.Expression) ast.VarIndex {
	max := ast.VarIndex(-1)
	grow := func(v ast.VarIndex) {
		if v > max {
			max = v
		}
	}
	var walk func(flat.Expression)
	walk = func(expr flat.Expression) {
		switch e := expr.(type) {
		case flat.Var:
			grow(e.Index)
		case flat.Const:
		case flat.Comb:
			for _, a := range e.Args {
				walk(a)
			}
		case flat.Case:
			walk(e.Scrutinee)
			for _, b := range e.Branches {
				for _, v := range patternVars(b.Pattern) {
					grow(v)
				}
				walk(b.Body)
			}
		case flat.Let:
			for _, b := range e.Bindings {
				grow(b.Var)
				walk(b.Value)
			}
			walk(e.Body)
		case flat.Free:
			for _, v := range e.Vars {
				grow(v)
			}
			walk(e.Body)
		case flat.Or:
			walk(e.Left)
			walk(e.Right)
		case flat.Typed:
			walk(e.Expression)
		}
	}
	walk(expr)
	return max
}
