package stats

import "math"

// Shared statistics helpers. All standard deviations in this codebase are
// sample standard deviations (Bessel's correction); callers that need a
// guard for n < 2 get 0.

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// SampleStd returns the sample standard deviation (n-1 denominator).
// Returns 0 when fewer than two values are given.
func SampleStd(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	mean := Mean(xs)
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// Pearson returns the Pearson correlation coefficient of two aligned series.
// Returns 0 when the series are shorter than two points, mismatched in
// length, or either side has zero variance.
func Pearson(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}

	meanX := Mean(x)
	meanY := Mean(y)

	num := 0.0
	ssX := 0.0
	ssY := 0.0
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		num += dx * dy
		ssX += dx * dx
		ssY += dy * dy
	}

	denom := math.Sqrt(ssX * ssY)
	if denom == 0 {
		return 0
	}

	r := num / denom
	// Numeric noise can push |r| a hair past 1.
	if r > 1 {
		r = 1
	}
	if r < -1 {
		r = -1
	}
	return r
}

// Round2 rounds to two decimals for display fields carried on wire types.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
