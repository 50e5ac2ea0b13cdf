package canonjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_SortsObjectKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"zeta": 1, "alpha": 2, "mid": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mid":3,"zeta":1}`, string(data))
}

func TestMarshal_NormalizesStructsToSortedObjects(t *testing.T) {
	type sample struct {
		Zeta  int    `json:"zeta"`
		Alpha string `json:"alpha"`
	}
	data, err := Marshal(sample{Zeta: 9, Alpha: "a"})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"a","zeta":9}`, string(data))
}

func TestSHA256Hex_Deterministic(t *testing.T) {
	v := map[string]any{
		"nested": map[string]any{"b": 2, "a": 1},
		"list":   []any{"x", "y"},
		"ts":     1724668800.5,
	}
	first, err := SHA256Hex(v)
	require.NoError(t, err)
	second, err := SHA256Hex(v)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestSHA256Hex_IndependentOfInsertionOrder(t *testing.T) {
	a := map[string]any{"sender": "Bank_A", "recipient": "Customer_123"}
	b := map[string]any{"recipient": "Customer_123", "sender": "Bank_A"}

	hashA, err := SHA256Hex(a)
	require.NoError(t, err)
	hashB, err := SHA256Hex(b)
	require.NoError(t, err)
	assert.Equal(t, hashA, hashB)
}

func TestMarshal_RejectsUnencodableValues(t *testing.T) {
	_, err := Marshal(map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}
