package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"flic-compiler/ast"
)

func TestStoreRestoreRevertsMutationsAndCreations(t *testing.T) {
	s := NewStore()
	a := s.New(Node{Tag: TagValue, Value: ast.LInt{Value: 1}})
	s.update(a, Node{Tag: TagValue, Value: ast.LInt{Value: 2}})

	m := s.Mark()
	s.update(a, Node{Tag: TagValue, Value: ast.LInt{Value: 3}})
	b := s.New(Node{Tag: TagLogicVar})
	s.update(b, Node{Tag: TagLogicVar, Bound: true, Target: a})

	s.Restore(m)
	require.Equal(t, 1, s.Len())
	require.Equal(t, ast.LInt{Value: 2}, s.Get(a).Value, "pre-mark state must survive")
}

func TestStoreRestoreIsRepeatable(t *testing.T) {
	s := NewStore()
	a := s.New(Node{Tag: TagLogicVar})
	m := s.Mark()

	for i := 0; i < 3; i++ {
		target := s.New(Node{Tag: TagValue, Value: ast.LInt{Value: int64(i)}})
		s.update(a, Node{Tag: TagLogicVar, Bound: true, Target: target})
		require.True(t, s.Get(a).Bound)
		s.Restore(m)
		require.False(t, s.Get(a).Bound)
		require.Equal(t, 1, s.Len())
	}
}

func TestDerefFollowsReferencesAndBindings(t *testing.T) {
	s := NewStore()
	v := s.New(Node{Tag: TagValue, Value: ast.LInt{Value: 7}})
	lv := s.New(Node{Tag: TagLogicVar, Bound: true, Target: v})
	ref := s.New(Node{Tag: TagReference, Target: lv})

	require.Equal(t, v, s.deref(ref))
	require.Equal(t, v, s.deref(v))
}

func TestDerefStopsAtUnboundVariable(t *testing.T) {
	s := NewStore()
	lv := s.New(Node{Tag: TagLogicVar})
	ref := s.New(Node{Tag: TagReference, Target: lv})
	require.Equal(t, lv, s.deref(ref))
}

func TestEnvLookupChainsAndShadows(t *testing.T) {
	outer := newEnv(nil)
	outer.fn = "Demo.f"
	outer.bind(0, NodeID(10))
	outer.bind(1, NodeID(11))

	inner := newEnv(outer)
	inner.bind(1, NodeID(21))

	id, ok := inner.lookup(0)
	require.True(t, ok)
	require.Equal(t, NodeID(10), id)

	id, ok = inner.lookup(1)
	require.True(t, ok)
	require.Equal(t, NodeID(21), id)

	_, ok = inner.lookup(5)
	require.False(t, ok)

	require.Equal(t, ast.QualifiedIdentifier("Demo.f"), inner.owner())
}
