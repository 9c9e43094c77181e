package runtime

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"flic-compiler/ast"
	"flic-compiler/ast/flat"
	"flic-compiler/common"
)

// errPathFailed ends the current search path with no result: a bound
// scrutinee matched no branch, or an application is undefined. Sibling
// alternatives are unaffected.
var errPathFailed = errors.New("search path failed")

// errNoBranches ends the current search path as an explicit
// pattern-match-failure outcome: a case with zero branches was demanded.
var errNoBranches = errors.New("case has no branches")

// ExternalFunc implements an externally declared operation. Arguments arrive
// as suspended graph nodes; the implementation decides what to force.
type ExternalFunc func(m *Machine, args []NodeID) (NodeID, error)

// TraceHook receives one complete graph snapshot per reduction step.
type TraceHook func(Snapshot)

// Machine reduces graph nodes to head normal form by rewriting them in
// place. Every rewrite is journaled, so pending alternatives can restore the
// exact graph they were recorded under. One machine owns one search at a
// time; the active path has exclusive use of the store.
type Machine struct {
	prog      flat.Program
	store     *Store
	funcs     map[ast.QualifiedIdentifier]flat.FuncDecl
	externals map[string]ExternalFunc
	alts      []alternative
	log       *zap.Logger
	trace     TraceHook
	verbose   bool
	steps     int
}

// alternative is one pending resumption: restore the mark, then rewrite the
// recorded node (a committed choice or a narrowed logic variable) to its
// next candidate.
type alternative struct {
	mark Mark
	node NodeID
	next Node
}

type Option func(*Machine)

func WithLogger(log *zap.Logger) Option {
	return func(m *Machine) { m.log = log }
}

func WithTrace(hook TraceHook) Option {
	return func(m *Machine) { m.trace = hook }
}

// WithVerboseTrace includes suspended expressions and environments in
// snapshot labels.
func WithVerboseTrace() Option {
	return func(m *Machine) { m.verbose = true }
}

// WithExternal registers an implementation for an external marker,
// overriding a built-in of the same name.
func WithExternal(marker string, fn ExternalFunc) Option {
	return func(m *Machine) { m.externals[marker] = fn }
}

func NewMachine(prog flat.Program, opts ...Option) *Machine {
	m := &Machine{
		prog:      prog,
		store:     NewStore(),
		funcs:     make(map[ast.QualifiedIdentifier]flat.FuncDecl, len(prog.Funcs)),
		externals: builtinExternals(),
		log:       zap.NewNop(),
	}
	for _, f := range prog.Funcs {
		m.funcs[f.Name] = f
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Steps returns the number of reduction steps performed so far.
func (m *Machine) Steps() int {
	return m.steps
}

// suspend creates an unevaluated node for an expression in an environment.
func (m *Machine) suspend(expr flat.Expression, env *Env) NodeID {
	return m.store.New(Node{Tag: TagUnevaluated, Expr: expr, Env: env, Scrut: invalidNode})
}

func (m *Machine) suspendAll(exprs []flat.Expression, env *Env) []NodeID {
	return common.Map(func(e flat.Expression) NodeID { return m.suspend(e, env) }, exprs)
}

// rewrite is the one reduction step primitive: it journals and applies an
// in-place node mutation, then reports it to the trace hook.
func (m *Machine) rewrite(id NodeID, n Node, action string) {
	m.store.update(id, n)
	m.steps++
	m.log.Debug("rewrite",
		zap.Int("step", m.steps),
		zap.Int("node", int(id)),
		zap.String("action", action),
		zap.String("tag", n.Tag.String()))
	if m.trace != nil {
		m.trace(m.Snapshot(action, id))
	}
}

// hnf reduces the node to head normal form: the outermost constructor,
// literal, or unbound logic variable. Argument subexpressions stay suspended
// until something demands them.
func (m *Machine) hnf(id NodeID) (NodeID, error) {
	for {
		id = m.store.deref(id)
		n := m.store.Get(id)
		switch n.Tag {
		case TagValue, TagConstructor, TagLogicVar:
			return id, nil
		case TagUnevaluated:
			if err := m.reduce(id, n); err != nil {
				return invalidNode, err
			}
		default:
			return invalidNode, common.SystemError{Message: "deref returned a reference"}
		}
	}
}

// Force is hnf for external operations.
func (m *Machine) Force(id NodeID) (NodeID, error) {
	return m.hnf(id)
}

// reduce performs one rewrite of an unevaluated node. Progress is always
// recorded in the graph before any recursive demand, so re-running from the
// root after a checkpoint restore walks memoized references straight back to
// the point the restored alternative diverges at.
func (m *Machine) reduce(id NodeID, n Node) error {
	if n.Expr == nil {
		return m.reduceApp(id, n)
	}
	switch e := n.Expr.(type) {
	case flat.Var:
		target, ok := n.Env.lookup(e.Index)
		if !ok {
			return common.SystemError{Message: fmt.Sprintf("dangling variable index %d", e.Index)}
		}
		m.rewrite(id, Node{Tag: TagReference, Target: target}, "share")
		return nil

	case flat.Const:
		m.rewrite(id, Node{Tag: TagValue, Value: e.Value}, "literal")
		return nil

	case flat.Comb:
		if e.Kind == flat.ConstrCall {
			m.rewrite(id, Node{Tag: TagConstructor, Name: e.Name, Fields: m.suspendAll(e.Args, n.Env)}, "construct")
			return nil
		}
		return m.apply(id, e, n.Env)

	case flat.Let:
		env := newEnv(n.Env)
		for _, b := range e.Bindings {
			// Bindings see each other and themselves through env.
			env.bind(b.Var, m.suspend(b.Value, env))
		}
		m.rewrite(id, Node{Tag: TagUnevaluated, Expr: e.Body, Env: env, Scrut: invalidNode}, "let")
		return nil

	case flat.Free:
		env := newEnv(n.Env)
		for _, v := range e.Vars {
			env.bind(v, m.store.New(Node{Tag: TagLogicVar}))
		}
		m.rewrite(id, Node{Tag: TagUnevaluated, Expr: e.Body, Env: env, Scrut: invalidNode}, "free")
		return nil

	case flat.Or:
		// Both suspensions must exist before the mark so the pending right
		// side survives the restore.
		left := m.suspend(e.Left, n.Env)
		right := m.suspend(e.Right, n.Env)
		mark := m.store.Mark()
		m.alts = append(m.alts, alternative{mark: mark, node: id, next: Node{Tag: TagReference, Target: right}})
		m.rewrite(id, Node{Tag: TagReference, Target: left}, "choice")
		return nil

	case flat.Typed:
		m.rewrite(id, Node{Tag: TagUnevaluated, Expr: e.Expression, Env: n.Env, Scrut: invalidNode}, "untype")
		return nil

	case flat.Case:
		return m.reduceCase(id, e, n)
	}
	return common.SystemError{Message: "impossible expression variant"}
}

func (m *Machine) reduceCase(id NodeID, e flat.Case, n Node) error {
	if n.Scrut == invalidNode {
		// Persist the scrutinee link first: if forcing it hits a choice
		// point, resumption re-reaches this case through the same node.
		n.Scrut = m.suspend(e.Scrutinee, n.Env)
		m.rewrite(id, n, "demand")
	}
	sid, err := m.hnf(n.Scrut)
	if err != nil {
		return err
	}
	if len(e.Branches) == 0 {
		return errNoBranches
	}

	sn := m.store.Get(sid)
	switch sn.Tag {
	case TagValue:
		for _, b := range e.Branches {
			if p, ok := b.Pattern.(flat.PLit); ok && ast.LiteralsEqual(p.Value, sn.Value) {
				m.rewrite(id, Node{Tag: TagUnevaluated, Expr: b.Body, Env: n.Env, Scrut: invalidNode}, "select")
				return nil
			}
		}
		return errPathFailed

	case TagConstructor:
		for _, b := range e.Branches {
			p, ok := b.Pattern.(flat.PConstr)
			if !ok || p.Name != sn.Name {
				continue
			}
			if len(p.Vars) != len(sn.Fields) {
				return common.Error{Fn: sn.Name, Message: fmt.Sprintf(
					"constructor matched with %d pattern variables, has %d fields", len(p.Vars), len(sn.Fields))}
			}
			env := newEnv(n.Env)
			for i, v := range p.Vars {
				env.bind(v, sn.Fields[i])
			}
			m.rewrite(id, Node{Tag: TagUnevaluated, Expr: b.Body, Env: env, Scrut: invalidNode}, "select")
			return nil
		}
		return errPathFailed

	case TagLogicVar:
		return m.narrow(sid, e.Branches)
	}
	return common.SystemError{Message: "scrutinee not in head normal form"}
}

// narrow binds an unbound scrutinee variable nondeterministically to a fresh
// shape per branch pattern actually written: closed world over the
// branches, never the declared constructor set. All shapes are created
// before the mark so pending alternatives survive restores.
func (m *Machine) narrow(varID NodeID, branches []flat.Branch) error {
	shapes := make([]NodeID, len(branches))
	for i, b := range branches {
		switch p := b.Pattern.(type) {
		case flat.PConstr:
			fields := make([]NodeID, len(p.Vars))
			for j := range fields {
				fields[j] = m.store.New(Node{Tag: TagLogicVar})
			}
			shapes[i] = m.store.New(Node{Tag: TagConstructor, Name: p.Name, Fields: fields})
		case flat.PLit:
			shapes[i] = m.store.New(Node{Tag: TagValue, Value: p.Value})
		}
	}

	mark := m.store.Mark()
	for i := len(branches) - 1; i >= 1; i-- {
		m.alts = append(m.alts, alternative{
			mark: mark,
			node: varID,
			next: Node{Tag: TagLogicVar, Bound: true, Target: shapes[i]},
		})
	}
	m.rewrite(varID, Node{Tag: TagLogicVar, Bound: true, Target: shapes[0]}, "narrow")
	return nil
}

// apply performs one application step of a declared function. The arguments
// are turned into nodes and the application is persisted over them before
// anything runs, so resumption after a restore reuses the same argument
// nodes instead of suspending fresh copies.
func (m *Machine) apply(id NodeID, e flat.Comb, env *Env) error {
	decl, ok := m.funcs[e.Name]
	if !ok {
		return common.Error{Fn: env.owner(), Message: fmt.Sprintf("unresolved function %q", e.Name)}
	}
	if len(e.Args) != decl.Arity {
		return common.Error{Fn: env.owner(), Message: fmt.Sprintf(
			"%q applied to %d arguments, arity is %d", e.Name, len(e.Args), decl.Arity)}
	}

	if body, ok := decl.Body.(flat.External); ok {
		switch body.Marker {
		case markerApply:
			return m.applyCombinator(id, e, env, false)
		case markerApplyStrict:
			return m.applyCombinator(id, e, env, true)
		}
	}
	m.rewrite(id, Node{
		Tag:     TagUnevaluated,
		Name:    e.Name,
		AppKind: flat.FuncCall,
		Fields:  m.suspendAll(e.Args, env),
		Scrut:   invalidNode,
		Env:     env,
	}, "suspend args")
	return nil
}

// reduceApp runs a persisted application whose arguments are already nodes.
// A non-invalid Scrut is an argument the application is strict in and is
// forced before the call dispatches.
func (m *Machine) reduceApp(id NodeID, n Node) error {
	if n.Scrut != invalidNode {
		if _, err := m.hnf(n.Scrut); err != nil {
			return err
		}
	}
	if n.AppKind == flat.ConstrCall {
		m.rewrite(id, Node{Tag: TagConstructor, Name: n.Name, Fields: n.Fields}, "construct")
		return nil
	}

	decl, ok := m.funcs[n.Name]
	if !ok {
		return common.Error{Fn: n.Env.owner(), Message: fmt.Sprintf("unresolved function %q", n.Name)}
	}
	switch body := decl.Body.(type) {
	case flat.Rule:
		return m.enter(id, decl, body, n.Fields)

	case flat.External:
		fn, ok := m.externals[body.Marker]
		if !ok {
			// An external with no registered implementation is an undefined
			// application: this one path fails.
			m.log.Debug("undefined external", zap.String("marker", body.Marker))
			return errPathFailed
		}
		res, err := fn(m, n.Fields)
		if err != nil {
			return err
		}
		m.rewrite(id, Node{Tag: TagReference, Target: res}, "external")
		return nil
	}
	return common.SystemError{Message: "impossible function body variant"}
}

// enter instantiates a rule body: a fresh activation environment binds the
// parameters to the argument nodes, and the application node becomes the
// suspended body. Bodies are closed over their parameters, so the activation
// has no parent scope.
func (m *Machine) enter(id NodeID, decl flat.FuncDecl, rule flat.Rule, args []NodeID) error {
	if len(args) != len(rule.Params) {
		return common.Error{Fn: decl.Name, Message: "rule parameter count differs from arity"}
	}
	env := newEnv(nil)
	env.fn = decl.Name
	for i, p := range rule.Params {
		env.bind(p, args[i])
	}
	m.rewrite(id, Node{Tag: TagUnevaluated, Expr: rule.Body, Env: env, Scrut: invalidNode}, "apply")
	return nil
}

// applyCombinator handles the first-order apply combinators: the left
// operand is an application missing exactly one argument, completed with the
// right operand. The strict variant records the added argument in Scrut so
// it is forced before the completed call dispatches.
func (m *Machine) applyCombinator(id NodeID, e flat.Comb, env *Env, strict bool) error {
	operand, ok := e.Args[0].(flat.Comb)
	if !ok {
		return common.Error{Fn: env.owner(), Message: "apply operand must be an application"}
	}
	argID := m.suspend(e.Args[1], env)
	args := append(m.suspendAll(operand.Args, env), argID)

	if operand.Kind == flat.FuncCall {
		decl, ok := m.funcs[operand.Name]
		if !ok {
			return common.Error{Fn: env.owner(), Message: fmt.Sprintf("unresolved function %q", operand.Name)}
		}
		if len(args) != decl.Arity {
			return common.Error{Fn: env.owner(), Message: fmt.Sprintf(
				"apply completes %q with %d arguments, arity is %d", operand.Name, len(args), decl.Arity)}
		}
	}
	forced := invalidNode
	if strict {
		forced = argID
	}
	m.rewrite(id, Node{
		Tag:     TagUnevaluated,
		Name:    operand.Name,
		AppKind: operand.Kind,
		Fields:  args,
		Scrut:   forced,
		Env:     env,
	}, "complete")
	return nil
}

// backtrack restores the most recent pending alternative and commits its
// next candidate. It reports false when the search space is exhausted.
func (m *Machine) backtrack() bool {
	if len(m.alts) == 0 {
		return false
	}
	a := m.alts[len(m.alts)-1]
	m.alts = m.alts[:len(m.alts)-1]
	m.store.Restore(a.mark)
	m.rewrite(a.node, a.next, "resume")
	return true
}
