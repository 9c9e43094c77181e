package runtime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"flic-compiler/ast/flat"
)

func TestSnapshotIsSelfConsistent(t *testing.T) {
	prog := testProg(rule("Demo.main", nil, flat.Comb{
		Kind: flat.ConstrCall, Name: "Demo.Pair", Args: []flat.Expression{lit(1), lit(2)},
	}))
	results, err := Execute(Config{Entry: "Demo.main", Verbosity: 1}, prog)
	require.NoError(t, err)
	require.True(t, results.Next())

	s := results.Machine().Snapshot("result", invalidNode)
	require.NotEmpty(t, s.Nodes)
	for _, n := range s.Nodes {
		for _, to := range n.Edges {
			require.GreaterOrEqual(t, int(to), 0)
			require.Less(t, int(to), len(s.Nodes), "edge target must be present in the snapshot")
		}
	}
}

func TestSnapshotDot(t *testing.T) {
	prog := testProg(rule("Demo.main", nil, flat.Comb{
		Kind: flat.ConstrCall, Name: "Demo.Pair", Args: []flat.Expression{lit(1), lit(2)},
	}))
	results, err := Execute(Config{Entry: "Demo.main", Verbosity: 1}, prog)
	require.NoError(t, err)
	require.True(t, results.Next())

	dot := results.Machine().Snapshot("construct", NodeID(0)).Dot()
	require.True(t, strings.HasPrefix(dot, "digraph"))
	require.Contains(t, dot, "Demo.Pair")
	require.Contains(t, dot, "style=bold", "the focus node is highlighted")
	require.Contains(t, dot, "->")
}

func TestDotEscapesLabels(t *testing.T) {
	s := Snapshot{Step: 1, Action: "literal", Nodes: []SnapshotNode{
		{ID: 0, Label: `says "hi" \o/`},
	}}
	dot := s.Dot()
	require.Contains(t, dot, `says \"hi\" \\o/`)
	require.NotContains(t, dot, `says "hi"`)
}
