// Package stats holds the numeric helpers shared by selection and
// aggregation.
package stats

import "math"

// Quantile returns the linearly interpolated value at rank (N-1)*q of an
// ascending sorted slice. The second result is false when sorted is empty.
// Integer ranks return the element directly.
func Quantile(sorted []float64, q float64) (float64, bool) {
	n := len(sorted)
	if n == 0 {
		return 0, false
	}
	q = math.Max(0, math.Min(1, q))
	pos := float64(n-1) * q
	low := int(pos)
	high := min(low+1, n-1)
	if low == high || pos == float64(low) {
		return sorted[low], true
	}
	return sorted[low] + (sorted[high]-sorted[low])*(pos-float64(low)), true
}
