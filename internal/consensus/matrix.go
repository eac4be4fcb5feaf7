package consensus

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Matrix is a symmetric similarity matrix over model ids with a unit
// diagonal. Index order follows the order models were given in.
type Matrix struct {
	Models []string    `json:"models"`
	Values [][]float64 `json:"values"`
	index  map[string]int
}

func NewMatrix(modelIDs []string) *Matrix {
	n := len(modelIDs)
	m := &Matrix{
		Models: append([]string(nil), modelIDs...),
		Values: make([][]float64, n),
	}
	for i := range m.Values {
		m.Values[i] = make([]float64, n)
		m.Values[i][i] = 1.0
	}
	m.reindex()
	return m
}

func (m *Matrix) reindex() {
	m.index = make(map[string]int, len(m.Models))
	for i, id := range m.Models {
		m.index[id] = i
	}
}

// Set writes both halves of the pair. Writes to the diagonal are ignored.
func (m *Matrix) Set(i, j int, v float64) {
	if i == j {
		return
	}
	m.Values[i][j] = v
	m.Values[j][i] = v
}

// UnmarshalJSON decodes a matrix and rebuilds its lookup index so a
// decoded matrix can be shared between readers.
func (m *Matrix) UnmarshalJSON(data []byte) error {
	type plain Matrix
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = Matrix(p)
	m.reindex()
	return nil
}

// Get returns the similarity of two models, or 0 if either is unknown.
// It never writes to m.
func (m *Matrix) Get(a, b string) float64 {
	if m == nil {
		return 0
	}
	i, j := m.position(a), m.position(b)
	if i < 0 || j < 0 || i >= len(m.Values) || j >= len(m.Values[i]) {
		return 0
	}
	return m.Values[i][j]
}

func (m *Matrix) position(id string) int {
	if m.index != nil {
		if i, ok := m.index[id]; ok {
			return i
		}
		return -1
	}
	for i, got := range m.Models {
		if got == id {
			return i
		}
	}
	return -1
}

func (m *Matrix) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Models)
}

// RowMean is the mean of row i excluding the diagonal.
func (m *Matrix) RowMean(i int) float64 {
	n := len(m.Models)
	if n < 2 {
		return 0
	}
	sum := 0.0
	for j, v := range m.Values[i] {
		if j != i {
			sum += v
		}
	}
	return sum / float64(n-1)
}

// String renders the matrix as an aligned text table.
func (m *Matrix) String() string {
	if m.Len() == 0 {
		return "(empty)"
	}
	width := 6
	for _, id := range m.Models {
		if len(id) > width {
			width = len(id)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-*s", width, "")
	for _, id := range m.Models {
		fmt.Fprintf(&b, "  %*s", width, id)
	}
	b.WriteByte('\n')
	for i, id := range m.Models {
		fmt.Fprintf(&b, "%-*s", width, id)
		for _, v := range m.Values[i] {
			fmt.Fprintf(&b, "  %*.4f", width, v)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

type ModelScore struct {
	ModelID string  `json:"model_id"`
	Score   float64 `json:"score"`
}

// Ranking orders scores high to low; equal scores keep input order.
func Ranking(models []string, scores map[string]float64) []ModelScore {
	out := make([]ModelScore, 0, len(scores))
	for _, id := range models {
		if s, ok := scores[id]; ok {
			out = append(out, ModelScore{ModelID: id, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
