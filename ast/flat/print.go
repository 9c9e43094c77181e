package flat

import (
	"fmt"
	"strings"

	"flic-compiler/ast"
	"flic-compiler/common"
)

// ExprString renders an expression on one line, for reports and snapshots.
func ExprString(expr Expression) string {
	switch e := expr.(type) {
	case Var:
		return fmt.Sprintf("v%d", e.Index)
	case Const:
		return e.Value.String()
	case Comb:
		if len(e.Args) == 0 {
			return string(e.Name)
		}
		return fmt.Sprintf("(%s %s)", e.Name, strings.Join(common.Map(ExprString, e.Args), " "))
	case Case:
		var sb strings.Builder
		fmt.Fprintf(&sb, "case %s of {", ExprString(e.Scrutinee))
		for i, b := range e.Branches {
			if i > 0 {
				sb.WriteString("; ")
			}
			fmt.Fprintf(&sb, "%s -> %s", PatternString(b.Pattern), ExprString(b.Body))
		}
		sb.WriteString("}")
		return sb.String()
	case Let:
		bindings := common.Map(func(b Binding) string {
			return fmt.Sprintf("v%d = %s", b.Var, ExprString(b.Value))
		}, e.Bindings)
		return fmt.Sprintf("let {%s} in %s", strings.Join(bindings, "; "), ExprString(e.Body))
	case Free:
		vars := common.Map(func(v ast.VarIndex) string { return fmt.Sprintf("v%d", v) }, e.Vars)
		return fmt.Sprintf("let %s free in %s", strings.Join(vars, ", "), ExprString(e.Body))
	case Or:
		return fmt.Sprintf("(%s ? %s)", ExprString(e.Left), ExprString(e.Right))
	case Typed:
		return fmt.Sprintf("(%s :: %s)", ExprString(e.Expression), e.Type)
	}
	return "<invalid>"
}

func PatternString(p Pattern) string {
	switch p := p.(type) {
	case PConstr:
		if len(p.Vars) == 0 {
			return string(p.Name)
		}
		vars := common.Map(func(v ast.VarIndex) string { return fmt.Sprintf("v%d", v) }, p.Vars)
		return fmt.Sprintf("%s %s", p.Name, strings.Join(vars, " "))
	case PLit:
		return p.Value.String()
	}
	return "<invalid>"
}

// Render writes a human-readable listing of the whole program.
func (p Program) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "module %s\n", p.Module)
	for _, imp := range p.Imports {
		fmt.Fprintf(&sb, "import %s\n", imp)
	}
	for _, f := range p.Funcs {
		sb.WriteString("\n")
		sb.WriteString(f.Render())
	}
	return sb.String()
}

func (f FuncDecl) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s/%d [%s]\n", f.Name, f.Arity, f.Visibility)
	switch body := f.Body.(type) {
	case Rule:
		params := strings.Join(common.Map(func(v ast.VarIndex) string {
			return fmt.Sprintf("v%d", v)
		}, body.Params), " ")
		if params != "" {
			params += " "
		}
		fmt.Fprintf(&sb, "  %s %s= %s\n", f.Name, params, ExprString(body.Body))
	case External:
		fmt.Fprintf(&sb, "  %s external %q\n", f.Name, body.Marker)
	}
	return sb.String()
}
