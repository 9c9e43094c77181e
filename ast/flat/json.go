package flat

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"flic-compiler/ast"
	"flic-compiler/common"
)

// Suffix is the fixed file-name convention for serialized programs.
const Suffix = ".flic.json"

// Save serializes the program, appending the fixed suffix when the path does
// not carry it yet.
func Save(prog Program, path string) error {
	if !strings.HasSuffix(path, Suffix) {
		path += Suffix
	}
	data, err := json.MarshalIndent(encodeProgram(prog), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Load reads a serialized program back.
func Load(path string) (Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Program{}, err
	}
	var doc progDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return Program{}, fmt.Errorf("%s: %w", path, err)
	}
	return decodeProgram(doc)
}

type progDoc struct {
	Module  string    `json:"module"`
	Imports []string  `json:"imports,omitempty"`
	Types   []typeDoc `json:"types,omitempty"`
	Funcs   []funcDoc `json:"functions"`
	Ops     []opDoc   `json:"operators,omitempty"`
}

type typeDoc struct {
	Name   string   `json:"name"`
	Public bool     `json:"public,omitempty"`
	Params []string `json:"params,omitempty"`
}

type opDoc struct {
	Name       string `json:"name"`
	Fixity     string `json:"fixity"`
	Precedence int    `json:"precedence"`
}

type funcDoc struct {
	Name     string   `json:"name"`
	Arity    int      `json:"arity"`
	Public   bool     `json:"public,omitempty"`
	Type     string   `json:"type,omitempty"`
	External string   `json:"external,omitempty"`
	Params   []int    `json:"params,omitempty"`
	Body     *exprDoc `json:"body,omitempty"`
}

type exprDoc struct {
	Kind      string       `json:"kind"`
	Index     int          `json:"index,omitempty"`
	Lit       *litDoc      `json:"lit,omitempty"`
	Comb      string       `json:"comb,omitempty"`
	Name      string       `json:"name,omitempty"`
	Args      []exprDoc    `json:"args,omitempty"`
	Scrutinee *exprDoc     `json:"scrutinee,omitempty"`
	Branches  []branchDoc  `json:"branches,omitempty"`
	Bindings  []bindingDoc `json:"bindings,omitempty"`
	Vars      []int        `json:"vars,omitempty"`
	Body      *exprDoc     `json:"body,omitempty"`
	Left      *exprDoc     `json:"left,omitempty"`
	Right     *exprDoc     `json:"right,omitempty"`
	Type      string       `json:"type,omitempty"`
}

type branchDoc struct {
	Constr string  `json:"constr,omitempty"`
	Lit    *litDoc `json:"lit,omitempty"`
	Vars   []int   `json:"vars,omitempty"`
	Body   exprDoc `json:"body"`
}

type bindingDoc struct {
	Var   int     `json:"var"`
	Value exprDoc `json:"value"`
}

type litDoc struct {
	Kind  string  `json:"kind"`
	Int   int64   `json:"int,omitempty"`
	Float float64 `json:"float,omitempty"`
	Str   string  `json:"str,omitempty"`
}

func encodeProgram(p Program) progDoc {
	return progDoc{
		Module:  p.Module,
		Imports: p.Imports,
		Types: common.Map(func(t TypeDecl) typeDoc {
			return typeDoc{
				Name:   string(t.Name),
				Public: t.Visibility == ast.Public,
				Params: common.Map(func(i ast.Identifier) string { return string(i) }, t.Params),
			}
		}, p.Types),
		Funcs: common.Map(encodeFunc, p.Funcs),
		Ops: common.Map(func(o OpDecl) opDoc {
			return opDoc{Name: string(o.Name), Fixity: fixityName(o.Fixity), Precedence: o.Precedence}
		}, p.Ops),
	}
}

func encodeFunc(f FuncDecl) funcDoc {
	doc := funcDoc{
		Name:   string(f.Name),
		Arity:  f.Arity,
		Public: f.Visibility == ast.Public,
		Type:   f.Type,
	}
	switch body := f.Body.(type) {
	case External:
		doc.External = body.Marker
	case Rule:
		doc.Params = varIndices(body.Params)
		e := encodeExpr(body.Body)
		doc.Body = &e
	}
	return doc
}

func encodeExpr(expr Expression) exprDoc {
	ref := func(e Expression) *exprDoc {
		d := encodeExpr(e)
		return &d
	}
	switch e := expr.(type) {
	case Var:
		return exprDoc{Kind: "var", Index: int(e.Index)}
	case Const:
		l := encodeLit(e.Value)
		return exprDoc{Kind: "lit", Lit: &l}
	case Comb:
		comb := "func"
		if e.Kind == ConstrCall {
			comb = "constr"
		}
		return exprDoc{Kind: "comb", Comb: comb, Name: string(e.Name), Args: common.Map(encodeExpr, e.Args)}
	case Case:
		return exprDoc{Kind: "case", Scrutinee: ref(e.Scrutinee), Branches: common.Map(encodeBranch, e.Branches)}
	case Let:
		return exprDoc{
			Kind: "let",
			Bindings: common.Map(func(b Binding) bindingDoc {
				return bindingDoc{Var: int(b.Var), Value: encodeExpr(b.Value)}
			}, e.Bindings),
			Body: ref(e.Body),
		}
	case Free:
		return exprDoc{Kind: "free", Vars: varIndices(e.Vars), Body: ref(e.Body)}
	case Or:
		return exprDoc{Kind: "or", Left: ref(e.Left), Right: ref(e.Right)}
	case Typed:
		return exprDoc{Kind: "typed", Body: ref(e.Expression), Type: e.Type}
	}
	panic(common.SystemError{Message: "impossible expression variant"})
}

func encodeBranch(b Branch) branchDoc {
	doc := branchDoc{Body: encodeExpr(b.Body)}
	switch p := b.Pattern.(type) {
	case PConstr:
		doc.Constr = string(p.Name)
		doc.Vars = varIndices(p.Vars)
	case PLit:
		l := encodeLit(p.Value)
		doc.Lit = &l
	}
	return doc
}

func encodeLit(lit ast.Literal) litDoc {
	switch l := lit.(type) {
	case ast.LInt:
		return litDoc{Kind: "int", Int: l.Value}
	case ast.LFloat:
		return litDoc{Kind: "float", Float: l.Value}
	case ast.LChar:
		return litDoc{Kind: "char", Str: string(l.Value)}
	case ast.LString:
		return litDoc{Kind: "string", Str: l.Value}
	}
	panic(common.SystemError{Message: "impossible literal variant"})
}

func decodeProgram(doc progDoc) (Program, error) {
	prog := Program{
		Module:  doc.Module,
		Imports: doc.Imports,
		Types: common.Map(func(t typeDoc) TypeDecl {
			return TypeDecl{
				Name:       ast.QualifiedIdentifier(t.Name),
				Visibility: visibility(t.Public),
				Params:     common.Map(func(s string) ast.Identifier { return ast.Identifier(s) }, t.Params),
			}
		}, doc.Types),
	}
	for _, o := range doc.Ops {
		fixity, err := parseFixity(o.Fixity)
		if err != nil {
			return Program{}, err
		}
		prog.Ops = append(prog.Ops, OpDecl{Name: ast.QualifiedIdentifier(o.Name), Fixity: fixity, Precedence: o.Precedence})
	}
	for _, f := range doc.Funcs {
		decl, err := decodeFunc(f)
		if err != nil {
			return Program{}, err
		}
		prog.Funcs = append(prog.Funcs, decl)
	}
	return prog, nil
}

func decodeFunc(doc funcDoc) (FuncDecl, error) {
	decl := FuncDecl{
		Name:       ast.QualifiedIdentifier(doc.Name),
		Arity:      doc.Arity,
		Visibility: visibility(doc.Public),
		Type:       doc.Type,
	}
	if doc.External != "" {
		decl.Body = External{Marker: doc.External}
		return decl, nil
	}
	if doc.Body == nil {
		return FuncDecl{}, fmt.Errorf("function %q has neither body nor external marker", doc.Name)
	}
	body, err := decodeExpr(*doc.Body)
	if err != nil {
		return FuncDecl{}, fmt.Errorf("function %q: %w", doc.Name, err)
	}
	decl.Body = Rule{Params: varsFromInts(doc.Params), Body: body}
	return decl, nil
}

func decodeExpr(doc exprDoc) (Expression, error) {
	ref := func(d *exprDoc, what string) (Expression, error) {
		if d == nil {
			return nil, fmt.Errorf("%q expression is missing its %s", doc.Kind, what)
		}
		return decodeExpr(*d)
	}
	switch doc.Kind {
	case "var":
		return Var{Index: ast.VarIndex(doc.Index)}, nil
	case "lit":
		if doc.Lit == nil {
			return nil, fmt.Errorf("literal expression without a value")
		}
		lit, err := decodeLit(*doc.Lit)
		if err != nil {
			return nil, err
		}
		return Const{Value: lit}, nil
	case "comb":
		kind := FuncCall
		switch doc.Comb {
		case "func", "":
		case "constr":
			kind = ConstrCall
		default:
			return nil, fmt.Errorf("unknown application kind %q", doc.Comb)
		}
		var args []Expression
		for _, a := range doc.Args {
			arg, err := decodeExpr(a)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		return Comb{Kind: kind, Name: ast.QualifiedIdentifier(doc.Name), Args: args}, nil
	case "case":
		scrutinee, err := ref(doc.Scrutinee, "scrutinee")
		if err != nil {
			return nil, err
		}
		var branches []Branch
		for _, b := range doc.Branches {
			branch, err := decodeBranch(b)
			if err != nil {
				return nil, err
			}
			branches = append(branches, branch)
		}
		return Case{Scrutinee: scrutinee, Branches: branches}, nil
	case "let":
		body, err := ref(doc.Body, "body")
		if err != nil {
			return nil, err
		}
		var bindings []Binding
		for _, b := range doc.Bindings {
			value, err := decodeExpr(b.Value)
			if err != nil {
				return nil, err
			}
			bindings = append(bindings, Binding{Var: ast.VarIndex(b.Var), Value: value})
		}
		return Let{Bindings: bindings, Body: body}, nil
	case "free":
		body, err := ref(doc.Body, "body")
		if err != nil {
			return nil, err
		}
		return Free{Vars: varsFromInts(doc.Vars), Body: body}, nil
	case "or":
		left, err := ref(doc.Left, "left side")
		if err != nil {
			return nil, err
		}
		right, err := ref(doc.Right, "right side")
		if err != nil {
			return nil, err
		}
		return Or{Left: left, Right: right}, nil
	case "typed":
		body, err := ref(doc.Body, "body")
		if err != nil {
			return nil, err
		}
		return Typed{Expression: body, Type: doc.Type}, nil
	}
	return nil, fmt.Errorf("unknown expression kind %q", doc.Kind)
}

func decodeBranch(doc branchDoc) (Branch, error) {
	body, err := decodeExpr(doc.Body)
	if err != nil {
		return Branch{}, err
	}
	if doc.Lit != nil {
		lit, err := decodeLit(*doc.Lit)
		if err != nil {
			return Branch{}, err
		}
		return Branch{Pattern: PLit{Value: lit}, Body: body}, nil
	}
	if doc.Constr == "" {
		return Branch{}, fmt.Errorf("branch pattern has neither constructor nor literal")
	}
	return Branch{
		Pattern: PConstr{Name: ast.QualifiedIdentifier(doc.Constr), Vars: varsFromInts(doc.Vars)},
		Body:    body,
	}, nil
}

func decodeLit(doc litDoc) (ast.Literal, error) {
	switch doc.Kind {
	case "int":
		return ast.LInt{Value: doc.Int}, nil
	case "float":
		return ast.LFloat{Value: doc.Float}, nil
	case "char":
		runes := []rune(doc.Str)
		if len(runes) != 1 {
			return nil, fmt.Errorf("char literal %q must hold exactly one rune", doc.Str)
		}
		return ast.LChar{Value: runes[0]}, nil
	case "string":
		return ast.LString{Value: doc.Str}, nil
	}
	return nil, fmt.Errorf("unknown literal kind %q", doc.Kind)
}

func fixityName(f Fixity) string {
	switch f {
	case InfixLeft:
		return "left"
	case InfixRight:
		return "right"
	}
	return "none"
}

func parseFixity(s string) (Fixity, error) {
	switch s {
	case "left":
		return InfixLeft, nil
	case "right":
		return InfixRight, nil
	case "none", "":
		return InfixNone, nil
	}
	return InfixNone, fmt.Errorf("unknown fixity %q", s)
}

func visibility(public bool) ast.Visibility {
	if public {
		return ast.Public
	}
	return ast.Private
}

func varIndices(vars []ast.VarIndex) []int {
	return common.Map(func(v ast.VarIndex) int { return int(v) }, vars)
}

func varsFromInts(ints []int) []ast.VarIndex {
	return common.Map(func(i int) ast.VarIndex { return ast.VarIndex(i) }, ints)
}
