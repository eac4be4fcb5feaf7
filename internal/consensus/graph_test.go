package consensus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConsensusGraphThreshold(t *testing.T) {
	m := NewMatrix([]string{"m1", "m2", "m3"})
	m.Set(0, 1, 0.9)
	m.Set(0, 2, 0.5)
	m.Set(1, 2, 0.51)
	g := ConsensusGraph(m, "m2", DefaultGraphThreshold)
	require.Equal(t, []Edge{{"m1", "m2", 0.9}, {"m2", "m3", 0.51}}, g.Edges)

	dot := g.DOT()
	require.True(t, strings.HasPrefix(dot, "graph consensus {"))
	require.Contains(t, dot, `"m2" [fillcolor="#ff9999"];`)
	require.Contains(t, dot, `"m1" -- "m2" [label="0.90"`)
	require.NotContains(t, dot, `"m1" -- "m3"`)
}

func TestConsensusGraphNilMatrix(t *testing.T) {
	g := ConsensusGraph(nil, "", DefaultGraphThreshold)
	require.Empty(t, g.Nodes)
	require.Contains(t, g.DOT(), "graph consensus")
}

func TestReferenceGraph(t *testing.T) {
	g := ReferenceGraph([]string{"a", "b", "c"}, map[string]float64{"a": 0.4, "b": 0.1}, DefaultReferenceThreshold)
	require.Equal(t, []string{"a", "b", "c", ReferenceNode}, g.Nodes)
	require.Equal(t, []Edge{{"a", ReferenceNode, 0.4}}, g.Edges)
}
