package runtime

import (
	"fmt"

	"flic-compiler/ast"
	"flic-compiler/ast/flat"
	"flic-compiler/common"
)

const (
	markerApply       = "prim_apply"
	markerApplyStrict = "prim_applyStrict"
	markerNormalForm  = "prim_normalForm"
	markerFailed      = "prim_failed"
)

const (
	trueName  = ast.QualifiedIdentifier("Prelude.True")
	falseName = ast.QualifiedIdentifier("Prelude.False")
)

// Prelude returns the external declarations every realistic program relies
// on: the three demand-introducing combinators and integer primitives.
func Prelude() []flat.FuncDecl {
	ext := func(name ast.QualifiedIdentifier, arity int, marker string) flat.FuncDecl {
		return flat.FuncDecl{
			Name:       name,
			Arity:      arity,
			Visibility: ast.Public,
			Type:       "_",
			Body:       flat.External{Marker: marker},
		}
	}
	return []flat.FuncDecl{
		ext("Prelude.apply", 2, markerApply),
		ext("Prelude.applyStrict", 2, markerApplyStrict),
		ext("Prelude.normalForm", 1, markerNormalForm),
		ext("Prelude.failed", 0, markerFailed),
		ext("Prelude.add", 2, "prim_int_add"),
		ext("Prelude.sub", 2, "prim_int_sub"),
		ext("Prelude.mul", 2, "prim_int_mul"),
		ext("Prelude.div", 2, "prim_int_div"),
		ext("Prelude.mod", 2, "prim_int_mod"),
		ext("Prelude.eq", 2, "prim_int_eq"),
		ext("Prelude.lt", 2, "prim_int_lt"),
		ext("Prelude.gt", 2, "prim_int_gt"),
	}
}

// EnsurePrelude appends any prelude declaration the program does not already
// define. Programs may shadow prelude names with their own definitions.
func EnsurePrelude(prog flat.Program) flat.Program {
	defined := prog.FuncNames()
	for _, decl := range Prelude() {
		if !defined[decl.Name] {
			prog.Funcs = append(prog.Funcs, decl)
		}
	}
	return prog
}

func builtinExternals() map[string]ExternalFunc {
	return map[string]ExternalFunc{
		markerNormalForm: primNormalForm,
		markerFailed:     primFailed,
		"prim_int_add":   intOp(func(a, b int64) (int64, error) { return a + b, nil }),
		"prim_int_sub":   intOp(func(a, b int64) (int64, error) { return a - b, nil }),
		"prim_int_mul":   intOp(func(a, b int64) (int64, error) { return a * b, nil }),
		"prim_int_div": intOp(func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, errPathFailed
			}
			return a / b, nil
		}),
		"prim_int_mod": intOp(func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, errPathFailed
			}
			return a % b, nil
		}),
		"prim_int_eq": intCmp(func(a, b int64) bool { return a == b }),
		"prim_int_lt": intCmp(func(a, b int64) bool { return a < b }),
		"prim_int_gt": intCmp(func(a, b int64) bool { return a > b }),
	}
}

func primFailed(m *Machine, _ []NodeID) (NodeID, error) {
	return invalidNode, errPathFailed
}

// primNormalForm forces its argument recursively into every constructor
// field. Revisited nodes are skipped so cyclic structures terminate.
func primNormalForm(m *Machine, args []NodeID) (NodeID, error) {
	return m.normalForm(args[0], map[NodeID]bool{})
}

func (m *Machine) normalForm(id NodeID, seen map[NodeID]bool) (NodeID, error) {
	hid, err := m.hnf(id)
	if err != nil {
		return invalidNode, err
	}
	if seen[hid] {
		return hid, nil
	}
	seen[hid] = true
	if n := m.store.Get(hid); n.Tag == TagConstructor {
		for _, f := range n.Fields {
			if _, err := m.normalForm(f, seen); err != nil {
				return invalidNode, err
			}
		}
	}
	return hid, nil
}

// forceInt demands an integer literal. An unbound logic variable fails the
// path (no residuation); any other non-integer is the front end's broken
// well-typedness precondition.
func (m *Machine) forceInt(id NodeID) (int64, error) {
	hid, err := m.hnf(id)
	if err != nil {
		return 0, err
	}
	n := m.store.Get(hid)
	if n.Tag == TagLogicVar {
		return 0, errPathFailed
	}
	if n.Tag != TagValue {
		return 0, common.SystemError{Message: fmt.Sprintf("integer primitive applied to %s node", n.Tag)}
	}
	lit, ok := n.Value.(ast.LInt)
	if !ok {
		return 0, common.SystemError{Message: fmt.Sprintf("integer primitive applied to literal %s", n.Value)}
	}
	return lit.Value, nil
}

func intOp(op func(a, b int64) (int64, error)) ExternalFunc {
	return func(m *Machine, args []NodeID) (NodeID, error) {
		a, err := m.forceInt(args[0])
		if err != nil {
			return invalidNode, err
		}
		b, err := m.forceInt(args[1])
		if err != nil {
			return invalidNode, err
		}
		v, err := op(a, b)
		if err != nil {
			return invalidNode, err
		}
		return m.store.New(Node{Tag: TagValue, Value: ast.LInt{Value: v}}), nil
	}
}

func intCmp(cmp func(a, b int64) bool) ExternalFunc {
	return func(m *Machine, args []NodeID) (NodeID, error) {
		a, err := m.forceInt(args[0])
		if err != nil {
			return invalidNode, err
		}
		b, err := m.forceInt(args[1])
		if err != nil {
			return invalidNode, err
		}
		name := falseName
		if cmp(a, b) {
			name = trueName
		}
		return m.store.New(Node{Tag: TagConstructor, Name: name}), nil
	}
}
