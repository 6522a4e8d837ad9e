package features

import (
	"math"
	"sort"
)

// meanStd returns the mean and sample standard deviation (n-1) of window.
// A constant window has exactly zero deviation; that case is answered
// before any arithmetic so float rounding cannot turn a flat spread into
// a nonzero sigma. Needs at least two points for a sample deviation.
func meanStd(window []float64) (mean, std float64, ok bool) {
	n := len(window)
	if n < 2 {
		return 0, 0, false
	}

	constant := true
	sum := 0.0
	for _, v := range window {
		sum += v
		if v != window[0] {
			constant = false
		}
	}
	mean = sum / float64(n)
	if constant {
		return window[0], 0, true
	}

	sumSquaredDiff := 0.0
	for _, v := range window {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}
	variance := sumSquaredDiff / float64(n-1)
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance), true
}

// median returns the median of window, averaging the two middle elements
// for even lengths. scratch is reused across calls to avoid reallocating;
// it must be at least len(window) long.
func median(window []float64, scratch []float64) float64 {
	n := len(window)
	scratch = scratch[:n]
	copy(scratch, window)
	sort.Float64s(scratch)
	if n%2 == 1 {
		return scratch[n/2]
	}
	return (scratch[n/2-1] + scratch[n/2]) / 2
}
