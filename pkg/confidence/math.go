// Package confidence provides confidence score utilities for budget plans.
package confidence

// Clamp ensures confidence is in valid range [0, 1].
func Clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Plan confidence values
const (
	// Heuristic is reported by the local fallback allocator. It sits below
	// anything a planning service is expected to return.
	Heuristic = 0.50
	// None is reported when no plan could be built at all.
	None = 0.0
)
