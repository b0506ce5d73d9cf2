package similarity

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestParseEmbedding(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
		want []float64
	}{
		{name: "nil", raw: nil, want: nil},
		{name: "float slice", raw: []float64{1, 2}, want: []float64{1, 2}},
		{name: "decoded json array", raw: []interface{}{1.0, 0.5}, want: []float64{1, 0.5}},
		{name: "json text", raw: "[0.1, 0.2, 0.3]", want: []float64{0.1, 0.2, 0.3}},
		{name: "raw message", raw: json.RawMessage(`[3,4]`), want: []float64{3, 4}},
		{name: "double encoded", raw: `"[1,2]"`, want: []float64{1, 2}},
		{name: "numeric strings", raw: []interface{}{"1.5", "2"}, want: []float64{1.5, 2}},
		{name: "malformed text", raw: "[1, 2", want: nil},
		{name: "object", raw: `{"a":1}`, want: nil},
		{name: "non numeric element", raw: []interface{}{1.0, true}, want: nil},
		{name: "empty array", raw: "[]", want: nil},
		{name: "number", raw: 42, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseEmbedding(tt.raw))
		})
	}
}

func TestMean(t *testing.T) {
	assert.Nil(t, Mean(nil))
	assert.Nil(t, Mean([][]float64{{}}))
	assert.Equal(t, []float64{2, 3}, Mean([][]float64{{1, 2}, {3, 4}}))
	// mismatched vectors are skipped
	assert.Equal(t, []float64{2, 3}, Mean([][]float64{{1, 2}, {9, 9, 9}, {3, 4}}))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float64{1, 0}, []float64{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float64{1, 1}, []float64{-1, -1}), 1e-9)
	assert.Equal(t, 0.0, Cosine(nil, nil))
	assert.Equal(t, 0.0, Cosine([]float64{1}, []float64{1, 2}))
	assert.Equal(t, 0.0, Cosine([]float64{0, 0}, []float64{1, 2}))
}

func TestHugeAndNonFiniteVectors(t *testing.T) {
	huge := []float64{1e200, 1e200}
	assert.InDelta(t, 1.0, Cosine(huge, huge), 1e-9)
	assert.InDelta(t, 1.0, Cosine(huge, []float64{1, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float64{math.NaN(), 1}, []float64{1, 1}))
	assert.Equal(t, 0.0, Cosine([]float64{math.Inf(1), 1}, []float64{1, 1}))

	mean := Mean([][]float64{{1e308}, {1e308}})
	assert.Equal(t, []float64{1e308}, mean)
	encoded, err := Encode(mean)
	assert.NoError(t, err)
	assert.Equal(t, "[1e+308]", encoded)

	// vectors carrying NaN or Inf do not poison the folder vector
	assert.Equal(t, []float64{1, 2}, Mean([][]float64{{1, 2}, {math.NaN(), 0}, {1, math.Inf(-1)}}))
	assert.Nil(t, Mean([][]float64{{math.NaN()}}))

	best, ok := MaxSimilarity(huge, [][]float64{{math.NaN(), 0}, huge})
	assert.True(t, ok)
	assert.InDelta(t, 1.0, best, 1e-9)
}

func TestMaxSimilarity(t *testing.T) {
	best, ok := MaxSimilarity([]float64{1, 0}, [][]float64{{0, 1}, {1, 0}})
	assert.True(t, ok)
	assert.InDelta(t, 1.0, best, 1e-9)

	_, ok = MaxSimilarity(nil, [][]float64{{1, 0}})
	assert.False(t, ok)
	_, ok = MaxSimilarity([]float64{1, 0}, nil)
	assert.False(t, ok)
}

func TestEncodeRoundTrip(t *testing.T) {
	s, err := Encode([]float64{0.25, -1})
	assert.NoError(t, err)
	assert.Equal(t, "[0.25,-1]", s)
	assert.Equal(t, []float64{0.25, -1}, ParseEmbedding(s))
}

func TestCosineProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	vector := gen.SliceOfN(4, gen.Float64Range(-100, 100))

	properties.Property("cosine is symmetric", prop.ForAll(
		func(a, b []float64) bool {
			return math.Abs(Cosine(a, b)-Cosine(b, a)) < 1e-9
		},
		vector, vector,
	))

	properties.Property("cosine is bounded", prop.ForAll(
		func(a, b []float64) bool {
			s := Cosine(a, b)
			return s >= -1-1e-9 && s <= 1+1e-9
		},
		vector, vector,
	))

	properties.Property("mean of one vector is the vector", prop.ForAll(
		func(a []float64) bool {
			m := Mean([][]float64{a})
			for i := range a {
				if math.Abs(m[i]-a[i]) > 1e-9 {
					return false
				}
			}
			return len(m) == len(a)
		},
		vector,
	))

	properties.TestingRun(t)
}
