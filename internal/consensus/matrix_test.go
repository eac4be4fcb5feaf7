package consensus

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatrixDecodedGetIsReadOnly(t *testing.T) {
	src := NewMatrix([]string{"m1", "m2", "m3"})
	src.Set(0, 1, 0.9)
	src.Set(1, 2, 0.3)
	raw, err := json.Marshal(Result{Matrix: src})
	require.NoError(t, err)

	var res Result
	require.NoError(t, json.Unmarshal(raw, &res))
	m := res.Matrix
	require.NotNil(t, m.index)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				if m.Get("m1", "m2") != 0.9 || m.Get("m3", "m2") != 0.3 {
					t.Error("decoded matrix returned wrong value")
					return
				}
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1.0, m.Get("m3", "m3"))
	require.Zero(t, m.Get("m1", "m9"))
}

func TestMatrixLiteralGetWithoutIndex(t *testing.T) {
	m := &Matrix{Models: []string{"a", "b"}, Values: [][]float64{{1, 0.4}, {0.4, 1}}}
	require.Equal(t, 0.4, m.Get("b", "a"))
	require.Nil(t, m.index)

	short := &Matrix{Models: []string{"a", "b"}, Values: [][]float64{{1}}}
	require.Zero(t, short.Get("a", "b"))
}
