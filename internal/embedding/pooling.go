package embedding

import (
	"fmt"
	"math"
)

// MeanPool averages token feature rows into a single vector.
func MeanPool(tokens [][]float32) ([]float32, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("mean pool: no token features")
	}
	dims := len(tokens[0])
	if dims == 0 {
		return nil, fmt.Errorf("mean pool: empty feature row")
	}
	sum := make([]float64, dims)
	for i, row := range tokens {
		if len(row) != dims {
			return nil, fmt.Errorf("mean pool: token %d has %d dims, want %d", i, len(row), dims)
		}
		for j, v := range row {
			sum[j] += float64(v)
		}
	}
	out := make([]float32, dims)
	n := float64(len(tokens))
	for j := range sum {
		out[j] = float32(sum[j] / n)
	}
	return out, nil
}

// L2Normalize scales v to unit length. A zero vector cannot be normalised.
func L2Normalize(v []float32) ([]float32, error) {
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	if sq == 0 || math.IsNaN(sq) || math.IsInf(sq, 0) {
		return nil, fmt.Errorf("l2 normalize: degenerate vector")
	}
	norm := math.Sqrt(sq)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// Norm is the Euclidean length of v.
func Norm(v []float32) float64 {
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	return math.Sqrt(sq)
}

// Cosine is the cosine similarity of a and b; 0 when either is empty or the
// lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
