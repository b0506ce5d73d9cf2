// Package similarity works with paper embeddings: parsing them from loosely
// typed JSON, averaging them into folder vectors and comparing them.
package similarity

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseEmbedding accepts a vector as a Go slice, a decoded JSON array or a
// string holding a JSON array. Anything else, including an array with a
// non-numeric element, yields nil.
func ParseEmbedding(raw interface{}) []float64 {
	switch v := raw.(type) {
	case nil:
		return nil
	case []float64:
		if len(v) == 0 {
			return nil
		}
		out := make([]float64, len(v))
		copy(out, v)
		return out
	case []interface{}:
		return fromAny(v)
	case json.RawMessage:
		return parseJSON(v)
	case []byte:
		return parseJSON(v)
	case string:
		return parseJSON([]byte(v))
	default:
		return nil
	}
}

func parseJSON(data []byte) []float64 {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil
	}
	var decoded interface{}
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return nil
	}
	switch v := decoded.(type) {
	case []interface{}:
		return fromAny(v)
	case string:
		// a JSON string wrapping the array
		return parseJSON([]byte(v))
	}
	return nil
}

func fromAny(items []interface{}) []float64 {
	if len(items) == 0 {
		return nil
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		switch n := item.(type) {
		case float64:
			out = append(out, n)
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return nil
			}
			out = append(out, f)
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return nil
			}
			out = append(out, f)
		default:
			return nil
		}
	}
	return out
}

// Encode renders a vector the way it is stored in Favorites.embedding
func Encode(vec []float64) (string, error) {
	b, err := json.Marshal(vec)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Mean returns the coordinate-wise mean. Vectors whose length differs from the
// first, or that hold NaN or Inf, are skipped. Nil is returned when nothing
// could be averaged.
func Mean(vectors [][]float64) []float64 {
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil
	}
	dim := len(vectors[0])
	mean := make([]float64, dim)
	count := 0
	for _, vec := range vectors {
		if len(vec) != dim || !finite(vec) {
			continue
		}
		count++
		// running mean stays in range where a plain sum would overflow
		for i, x := range vec {
			mean[i] += (x - mean[i]) / float64(count)
		}
	}
	if count == 0 {
		return nil
	}
	return mean
}

// Cosine calculates cosine similarity between two vectors. Empty, mismatched,
// zero-norm and non-finite inputs score 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	scaleA, scaleB := maxAbs(a), maxAbs(b)
	if scaleA == 0 || scaleB == 0 || math.IsInf(scaleA, 0) || math.IsInf(scaleB, 0) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := a[i]/scaleA, b[i]/scaleB
		dot += x * y
		normA += x * x
		normB += y * y
	}
	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(score) {
		return 0
	}
	return math.Max(-1, math.Min(1, score))
}

// maxAbs returns the largest magnitude in vec, or +Inf when vec holds NaN or Inf
func maxAbs(vec []float64) float64 {
	var m float64
	for _, x := range vec {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return math.Inf(1)
		}
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}

func finite(vec []float64) bool {
	for _, x := range vec {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// MaxSimilarity returns the best cosine score of paper against any interest
// vector. ok is false when either side is empty.
func MaxSimilarity(paper []float64, interests [][]float64) (best float64, ok bool) {
	if len(paper) == 0 || len(interests) == 0 {
		return 0, false
	}
	best = math.Inf(-1)
	for _, vec := range interests {
		if s := Cosine(paper, vec); s > best {
			best = s
		}
	}
	return best, true
}
