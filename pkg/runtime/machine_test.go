package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"flic-compiler/ast"
	"flic-compiler/ast/flat"
	"flic-compiler/common"
)

func rule(name ast.QualifiedIdentifier, params []ast.VarIndex, body flat.Expression) flat.FuncDecl {
	return flat.FuncDecl{
		Name:       name,
		Arity:      len(params),
		Visibility: ast.Public,
		Type:       "_",
		Body:       flat.Rule{Params: params, Body: body},
	}
}

func external(name ast.QualifiedIdentifier, arity int, marker string) flat.FuncDecl {
	return flat.FuncDecl{
		Name:       name,
		Arity:      arity,
		Visibility: ast.Public,
		Type:       "_",
		Body:       flat.External{Marker: marker},
	}
}

func testProg(funcs ...flat.FuncDecl) flat.Program {
	return EnsurePrelude(flat.Program{Module: "Demo", Funcs: funcs})
}

func lit(v int64) flat.Expression {
	return flat.Const{Value: ast.LInt{Value: v}}
}

// collect pulls every outcome of a fresh execution of Demo.main.
func collect(t *testing.T, prog flat.Program, opts ...Option) []string {
	t.Helper()
	results, err := Execute(Config{Entry: "Demo.main", Verbosity: 1}, prog, opts...)
	require.NoError(t, err)
	var got []string
	for results.Next() {
		got = append(got, results.Result().String())
	}
	require.NoError(t, results.Err())
	return got
}

func TestLetSharing(t *testing.T) {
	// main = let v0 = tick() in add(v0, v0). Both demands of v0 must reach
	// one node, so the external runs exactly once.
	ticks := 0
	prog := testProg(
		external("Demo.tick", 0, "prim_tick"),
		rule("Demo.main", nil, flat.Let{
			Bindings: []flat.Binding{{Var: 0, Value: flat.Comb{Kind: flat.FuncCall, Name: "Demo.tick"}}},
			Body: flat.Comb{Kind: flat.FuncCall, Name: "Prelude.add", Args: []flat.Expression{
				flat.Var{Index: 0},
				flat.Var{Index: 0},
			}},
		}),
	)
	tick := func(m *Machine, _ []NodeID) (NodeID, error) {
		ticks++
		return m.store.New(Node{Tag: TagValue, Value: ast.LInt{Value: 5}}), nil
	}

	got := collect(t, prog, WithExternal("prim_tick", tick))
	require.Equal(t, []string{"10"}, got)
	require.Equal(t, 1, ticks, "shared binding must be reduced exactly once")
}

func TestChoiceYieldsBothAlternativesInOrder(t *testing.T) {
	prog := testProg(rule("Demo.main", nil, flat.Or{Left: lit(1), Right: lit(2)}))
	require.Equal(t, []string{"1", "2"}, collect(t, prog))
}

func TestChoiceOrderIsDeterministic(t *testing.T) {
	prog := testProg(rule("Demo.main", nil, flat.Or{
		Left:  flat.Or{Left: lit(1), Right: lit(2)},
		Right: lit(3),
	}))
	first := collect(t, prog)
	require.Equal(t, []string{"1", "2", "3"}, first)
	for i := 0; i < 3; i++ {
		require.Equal(t, first, collect(t, prog))
	}
}

func TestNarrowingIsClosedOverBranchPatterns(t *testing.T) {
	// main = free v0 in case v0 of {True -> 1; False -> 0}. The variable is
	// narrowed to exactly the two patterns written, in branch order.
	prog := testProg(rule("Demo.main", nil, flat.Free{
		Vars: []ast.VarIndex{0},
		Body: flat.Case{
			Scrutinee: flat.Var{Index: 0},
			Branches: []flat.Branch{
				{Pattern: flat.PConstr{Name: "Prelude.True"}, Body: lit(1)},
				{Pattern: flat.PConstr{Name: "Prelude.False"}, Body: lit(0)},
			},
		},
	}))
	require.Equal(t, []string{"1", "0"}, collect(t, prog))
}

func TestNarrowingBindsConstructorFields(t *testing.T) {
	// main = free v0 in case v0 of {Wrap(v1) -> eq(v1, v1)}. The shape's
	// field is a fresh unbound variable; eq on it fails the path, so the
	// search ends with no results rather than an error.
	prog := testProg(rule("Demo.main", nil, flat.Free{
		Vars: []ast.VarIndex{0},
		Body: flat.Case{
			Scrutinee: flat.Var{Index: 0},
			Branches: []flat.Branch{
				{Pattern: flat.PConstr{Name: "Demo.Wrap", Vars: []ast.VarIndex{1}}, Body: flat.Comb{
					Kind: flat.FuncCall, Name: "Prelude.eq", Args: []flat.Expression{
						flat.Var{Index: 1},
						flat.Var{Index: 1},
					},
				}},
			},
		},
	}))
	require.Empty(t, collect(t, prog))
}

func TestUnboundVariableResult(t *testing.T) {
	prog := testProg(rule("Demo.main", nil, flat.Free{Vars: []ast.VarIndex{0}, Body: flat.Var{Index: 0}}))
	got := collect(t, prog)
	require.Len(t, got, 1)
	require.Regexp(t, `^_v\d+$`, got[0])
}

func TestZeroBranchCaseIsMatchFailureOutcome(t *testing.T) {
	prog := testProg(rule("Demo.main", nil, flat.Case{Scrutinee: lit(1)}))
	results, err := Execute(Config{Entry: "Demo.main", Verbosity: 1}, prog)
	require.NoError(t, err)
	require.True(t, results.Next())
	require.True(t, results.Result().MatchFailure)
	require.Equal(t, "!! pattern match failure", results.Result().String())
	require.False(t, results.Next())
	require.NoError(t, results.Err())
}

func TestNoMatchingBranchFailsSilently(t *testing.T) {
	prog := testProg(rule("Demo.main", nil, flat.Case{
		Scrutinee: lit(1),
		Branches: []flat.Branch{
			{Pattern: flat.PLit{Value: ast.LInt{Value: 2}}, Body: lit(9)},
		},
	}))
	require.Empty(t, collect(t, prog))
}

func TestFailedPrimitivePrunesOnePath(t *testing.T) {
	prog := testProg(rule("Demo.main", nil, flat.Or{
		Left:  flat.Comb{Kind: flat.FuncCall, Name: "Prelude.failed"},
		Right: lit(7),
	}))
	require.Equal(t, []string{"7"}, collect(t, prog))
}

func TestDivisionByZeroPrunesOnePath(t *testing.T) {
	prog := testProg(rule("Demo.main", nil, flat.Comb{
		Kind: flat.FuncCall, Name: "Prelude.div", Args: []flat.Expression{
			lit(1),
			flat.Or{Left: lit(0), Right: lit(2)},
		},
	}))
	require.Equal(t, []string{"0"}, collect(t, prog))
}

func TestUndefinedExternalPrunesOnePath(t *testing.T) {
	prog := testProg(
		external("Demo.mystery", 0, "prim_mystery"),
		rule("Demo.main", nil, flat.Or{
			Left:  flat.Comb{Kind: flat.FuncCall, Name: "Demo.mystery"},
			Right: lit(3),
		}),
	)
	require.Equal(t, []string{"3"}, collect(t, prog))
}

func TestUnresolvedFunctionIsFatal(t *testing.T) {
	prog := testProg(rule("Demo.main", nil, flat.Comb{Kind: flat.FuncCall, Name: "Demo.missing"}))
	results, err := Execute(Config{Entry: "Demo.main", Verbosity: 1}, prog)
	require.NoError(t, err)
	require.False(t, results.Next())
	var cerr common.Error
	require.ErrorAs(t, results.Err(), &cerr)
	require.Equal(t, ast.QualifiedIdentifier("Demo.main"), cerr.Fn)
}

func TestEntryMustExistWithArityZero(t *testing.T) {
	prog := testProg(rule("Demo.f", []ast.VarIndex{0}, flat.Var{Index: 0}))

	_, err := Execute(Config{Entry: "Demo.missing", Verbosity: 1}, prog)
	require.Error(t, err)

	_, err = Execute(Config{Entry: "Demo.f", Verbosity: 1}, prog)
	require.Error(t, err)
}

func TestChoiceInsideConstructorField(t *testing.T) {
	// main = normalForm(Pair(1 ? 2, 9)). The choice point sits inside a
	// constructor field demanded by the normal-form pass; backtracking must
	// find its way back through the persisted application.
	prog := testProg(rule("Demo.main", nil, flat.Comb{
		Kind: flat.FuncCall, Name: "Prelude.normalForm", Args: []flat.Expression{
			flat.Comb{Kind: flat.ConstrCall, Name: "Demo.Pair", Args: []flat.Expression{
				flat.Or{Left: lit(1), Right: lit(2)},
				lit(9),
			}},
		},
	}))
	require.Equal(t, []string{"(Demo.Pair 1 9)", "(Demo.Pair 2 9)"}, collect(t, prog))
}

func TestHeadNormalFormLeavesFieldsSuspended(t *testing.T) {
	// Without the normal-form pass the constructor's fields stay thunks.
	prog := testProg(rule("Demo.main", nil, flat.Comb{
		Kind: flat.ConstrCall, Name: "Demo.Pair", Args: []flat.Expression{
			flat.Comb{Kind: flat.FuncCall, Name: "Prelude.add", Args: []flat.Expression{lit(1), lit(2)}},
			lit(9),
		},
	}))
	require.Equal(t, []string{"(Demo.Pair _ _)"}, collect(t, prog))
}

func TestApplyCombinator(t *testing.T) {
	// main = apply(add(40), 2): the operand is missing exactly one
	// argument, completed with 2.
	prog := testProg(rule("Demo.main", nil, flat.Comb{
		Kind: flat.FuncCall, Name: "Prelude.apply", Args: []flat.Expression{
			flat.Comb{Kind: flat.FuncCall, Name: "Prelude.add", Args: []flat.Expression{lit(40)}},
			lit(2),
		},
	}))
	require.Equal(t, []string{"42"}, collect(t, prog))
}

func TestApplyStrictForcesTheArgument(t *testing.T) {
	// main = applyStrict(const1(), failed()): the target discards its
	// argument, but the strict variant forces it first and the path fails.
	prog := testProg(
		rule("Demo.const1", []ast.VarIndex{0}, lit(1)),
		rule("Demo.main", nil, flat.Or{
			Left: flat.Comb{Kind: flat.FuncCall, Name: "Prelude.applyStrict", Args: []flat.Expression{
				flat.Comb{Kind: flat.FuncCall, Name: "Demo.const1"},
				flat.Comb{Kind: flat.FuncCall, Name: "Prelude.failed"},
			}},
			Right: lit(8),
		}),
	)
	require.Equal(t, []string{"8"}, collect(t, prog))
}

func TestApplyCompletesConstructors(t *testing.T) {
	prog := testProg(rule("Demo.main", nil, flat.Comb{
		Kind: flat.FuncCall, Name: "Prelude.apply", Args: []flat.Expression{
			flat.Comb{Kind: flat.ConstrCall, Name: "Demo.Wrap"},
			lit(3),
		},
	}))
	require.Equal(t, []string{"(Demo.Wrap _)"}, collect(t, prog))
}

func TestLazyApplyLeavesArgumentUnforced(t *testing.T) {
	// The non-strict combinator must not force failed() when the target
	// never looks at it.
	prog := testProg(
		rule("Demo.const1", []ast.VarIndex{0}, lit(1)),
		rule("Demo.main", nil, flat.Comb{
			Kind: flat.FuncCall, Name: "Prelude.apply", Args: []flat.Expression{
				flat.Comb{Kind: flat.FuncCall, Name: "Demo.const1"},
				flat.Comb{Kind: flat.FuncCall, Name: "Prelude.failed"},
			},
		}),
	)
	require.Equal(t, []string{"1"}, collect(t, prog))
}

func TestRecursiveLetBinding(t *testing.T) {
	// main = let v0 = Cons(1, v0) in case v0 of {Cons(v1, v2) -> v1}. The
	// binding references itself; only the head is demanded.
	prog := testProg(rule("Demo.main", nil, flat.Let{
		Bindings: []flat.Binding{{Var: 0, Value: flat.Comb{
			Kind: flat.ConstrCall, Name: "Demo.Cons", Args: []flat.Expression{lit(1), flat.Var{Index: 0}},
		}}},
		Body: flat.Case{
			Scrutinee: flat.Var{Index: 0},
			Branches: []flat.Branch{
				{Pattern: flat.PConstr{Name: "Demo.Cons", Vars: []ast.VarIndex{1, 2}}, Body: flat.Var{Index: 1}},
			},
		},
	}))
	require.Equal(t, []string{"1"}, collect(t, prog))
}

func TestSharingAcrossChoicePoint(t *testing.T) {
	// main = let v0 = tick() in add(v0, 0 ? v0). The shared binding is
	// demanded on both paths but reduced once; the rewinder must not undo
	// memoization recorded before the choice point.
	ticks := 0
	prog := testProg(
		external("Demo.tick", 0, "prim_tick"),
		rule("Demo.main", nil, flat.Let{
			Bindings: []flat.Binding{{Var: 0, Value: flat.Comb{Kind: flat.FuncCall, Name: "Demo.tick"}}},
			Body: flat.Comb{Kind: flat.FuncCall, Name: "Prelude.add", Args: []flat.Expression{
				flat.Var{Index: 0},
				flat.Or{Left: lit(0), Right: flat.Var{Index: 0}},
			}},
		}),
	)
	tick := func(m *Machine, _ []NodeID) (NodeID, error) {
		ticks++
		return m.store.New(Node{Tag: TagValue, Value: ast.LInt{Value: 5}}), nil
	}

	require.Equal(t, []string{"5", "10"}, collect(t, prog, WithExternal("prim_tick", tick)))
	require.Equal(t, 1, ticks)
}
