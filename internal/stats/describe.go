package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Description summarizes a sample. Optional fields are nil when the sample
// is too small to define them.
type Description struct {
	Count int
	Mean  *float64
	Std   *float64
	Min   *float64
	Max   *float64
}

// Describe computes mean, sample standard deviation, count, min and max.
// Std needs at least two values.
func Describe(values []float64) Description {
	d := Description{Count: len(values)}
	if d.Count == 0 {
		return d
	}
	mean, std := stat.MeanStdDev(values, nil)
	lo, hi := floats.Min(values), floats.Max(values)
	d.Mean, d.Min, d.Max = &mean, &lo, &hi
	if d.Count >= 2 {
		d.Std = &std
	}
	return d
}
