package runtime

import (
	"fmt"
	"strings"

	"flic-compiler/ast/flat"
)

// SnapshotNode is one node of a frozen graph snapshot.
type SnapshotNode struct {
	ID    NodeID
	Label string
	Edges []NodeID
}

// Snapshot is a complete, self-consistent copy of the graph at one reduction
// step: every edge target is present among the nodes.
type Snapshot struct {
	Step   int
	Action string
	Focus  NodeID
	Nodes  []SnapshotNode
}

// Snapshot freezes the current graph. focus marks the node the step rewrote.
func (m *Machine) Snapshot(action string, focus NodeID) Snapshot {
	s := Snapshot{Step: m.steps, Action: action, Focus: focus}
	for i := range m.store.nodes {
		id := NodeID(i)
		n := m.store.Get(id)
		s.Nodes = append(s.Nodes, SnapshotNode{
			ID:    id,
			Label: m.nodeLabel(n),
			Edges: nodeEdges(n),
		})
	}
	return s
}

func (m *Machine) nodeLabel(n Node) string {
	switch n.Tag {
	case TagUnevaluated:
		if n.Expr == nil {
			return "@ " + string(n.Name)
		}
		if m.verbose {
			return "? " + flat.ExprString(n.Expr)
		}
		return "?"
	case TagConstructor:
		return string(n.Name)
	case TagValue:
		return n.Value.String()
	case TagReference:
		return "ref"
	case TagLogicVar:
		if n.Bound {
			return "var="
		}
		return "var"
	}
	return "?"
}

func nodeEdges(n Node) []NodeID {
	switch n.Tag {
	case TagUnevaluated:
		edges := append([]NodeID(nil), n.Fields...)
		if n.Scrut != invalidNode {
			edges = append(edges, n.Scrut)
		}
		return edges
	case TagConstructor:
		return n.Fields
	case TagReference:
		return []NodeID{n.Target}
	case TagLogicVar:
		if n.Bound {
			return []NodeID{n.Target}
		}
	}
	return nil
}

// Dot renders the snapshot as a Graphviz digraph.
func (s Snapshot) Dot() string {
	var sb strings.Builder

	sb.WriteString("digraph Graph {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box];\n")
	sb.WriteString(fmt.Sprintf("  label=\"step %d: %s\";\n", s.Step, s.Action))
	sb.WriteString("\n")

	for _, n := range s.Nodes {
		attrs := ""
		if n.ID == s.Focus {
			attrs = ", style=bold"
		}
		sb.WriteString(fmt.Sprintf("  n%d [label=\"%d: %s\"%s];\n", n.ID, n.ID, escapeLabel(n.Label), attrs))
	}
	sb.WriteString("\n")

	for _, n := range s.Nodes {
		for i, to := range n.Edges {
			sb.WriteString(fmt.Sprintf("  n%d -> n%d [label=\"%d\"];\n", n.ID, to, i))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "\"", "\\\"")
}
