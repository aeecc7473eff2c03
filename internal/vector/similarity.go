package vector

import (
	"math"

	"github.com/hyperjump/bookref/pkg/utils"
)

// normTolerance bounds |norm - 1| for freshly built vectors.
const normTolerance = 1e-5

// loadNormTolerance bounds |norm - 1| for vectors read back from disk.
const loadNormTolerance = 1e-3

// InnerProduct returns the inner product of two vectors (for unit vectors, the cosine similarity).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// isUnit reports whether x has L2 norm 1 within tol.
func isUnit(x []float32, tol float64) bool {
	return math.Abs(utils.L2Norm(x)-1) <= tol
}
