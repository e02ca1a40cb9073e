package formulas

import "math"

// Rolling statistics over trailing windows with shrink-at-start semantics:
// the window covers the last `window` observations by position, fewer when
// the series is shorter, so early months get a value instead of a gap.
// NaN observations are skipped inside the window.

// RollingMean returns the trailing-window mean at every position.
// Positions whose window holds no valid observation are NaN.
func RollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		sum, n := 0.0, 0
		for j := lo; j <= i; j++ {
			if !math.IsNaN(values[j]) {
				sum += values[j]
				n++
			}
		}
		if n == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// RollingStd returns the trailing-window sample standard deviation.
// Windows with fewer than two valid observations yield NaN; callers that
// want the warmup rows treated as "no volatility yet" substitute zero.
func RollingStd(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		var valid []float64
		for j := lo; j <= i; j++ {
			if !math.IsNaN(values[j]) {
				valid = append(valid, values[j])
			}
		}
		if len(valid) < 2 {
			out[i] = math.NaN()
			continue
		}
		out[i] = StdDev(valid)
	}
	return out
}

// Diff returns values[i] - values[i-lag]; NaN where the lagged
// observation does not exist or either side is NaN.
func Diff(values []float64, lag int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i < lag || math.IsNaN(values[i]) || math.IsNaN(values[i-lag]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i] - values[i-lag]
	}
	return out
}
