package model

import "github.com/atlasrisk/tariffwatch/pkg/formulas"

// Scaler standardizes each column to zero mean and unit variance.
// Constant columns are passed through centered only.
type Scaler struct {
	Means []float64 `msgpack:"means" json:"means"`
	Stds  []float64 `msgpack:"stds" json:"stds"`
}

// FitScaler learns column means and standard deviations
func FitScaler(X [][]float64) *Scaler {
	if len(X) == 0 {
		return &Scaler{}
	}
	d := len(X[0])
	s := &Scaler{
		Means: make([]float64, d),
		Stds:  make([]float64, d),
	}
	col := make([]float64, len(X))
	for j := 0; j < d; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		s.Means[j] = formulas.Mean(col)
		std := formulas.StdDev(col)
		if std == 0 {
			std = 1
		}
		s.Stds[j] = std
	}
	return s
}

// Transform returns a scaled copy of X
func (s *Scaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.TransformRow(row)
	}
	return out
}

// TransformRow scales a single row
func (s *Scaler) TransformRow(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		if j < len(s.Means) {
			out[j] = (v - s.Means[j]) / s.Stds[j]
		} else {
			out[j] = v
		}
	}
	return out
}
