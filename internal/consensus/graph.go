package consensus

import (
	"fmt"
	"strings"
)

const (
	DefaultGraphThreshold     = 0.5
	DefaultReferenceThreshold = 0.1
	ReferenceNode             = "Reference"
)

type Edge struct {
	A      string  `json:"a"`
	B      string  `json:"b"`
	Weight float64 `json:"weight"`
}

// Graph is an undirected weighted graph over model ids, rendered as DOT.
type Graph struct {
	Title     string   `json:"title"`
	Nodes     []string `json:"nodes"`
	Edges     []Edge   `json:"edges"`
	Highlight string   `json:"highlight,omitempty"`
}

// ConsensusGraph links models whose similarity is above threshold and
// highlights the winner. It reuses the matrix; no new oracle calls.
func ConsensusGraph(m *Matrix, best string, threshold float64) Graph {
	g := Graph{Title: "Model Consensus Graph (Reference-Free)", Highlight: best}
	if m == nil {
		return g
	}
	g.Nodes = append(g.Nodes, m.Models...)
	for i := 0; i < len(m.Models); i++ {
		for j := i + 1; j < len(m.Models); j++ {
			if w := m.Values[i][j]; w > threshold {
				g.Edges = append(g.Edges, Edge{A: m.Models[i], B: m.Models[j], Weight: w})
			}
		}
	}
	return g
}

// ReferenceGraph is a star linking each model to the reference when its
// similarity is above threshold.
func ReferenceGraph(models []string, toReference map[string]float64, threshold float64) Graph {
	g := Graph{Title: "Model Similarity to Golden Reference", Highlight: ReferenceNode}
	g.Nodes = append(append(g.Nodes, models...), ReferenceNode)
	for _, id := range models {
		if w, ok := toReference[id]; ok && w > threshold {
			g.Edges = append(g.Edges, Edge{A: id, B: ReferenceNode, Weight: w})
		}
	}
	return g
}

func (g Graph) DOT() string {
	var b strings.Builder
	b.WriteString("graph consensus {\n")
	fmt.Fprintf(&b, "  label=%q;\n  labelloc=t;\n  node [shape=ellipse, style=filled, fillcolor=\"#66b3ff\"];\n", g.Title)
	for _, n := range g.Nodes {
		if n == g.Highlight {
			fmt.Fprintf(&b, "  %q [fillcolor=\"#ff9999\"];\n", n)
			continue
		}
		fmt.Fprintf(&b, "  %q;\n", n)
	}
	for _, e := range g.Edges {
		fmt.Fprintf(&b, "  %q -- %q [label=\"%.2f\", penwidth=%.2f];\n", e.A, e.B, e.Weight, e.Weight*6)
	}
	b.WriteString("}\n")
	return b.String()
}
