package model

import (
	"math"

	"github.com/atlasrisk/tariffwatch/internal/domain"
	"github.com/atlasrisk/tariffwatch/pkg/formulas"
)

// Dataset is a dense design matrix extracted from a feature table,
// imputed and ready for fitting
type Dataset struct {
	X       [][]float64
	Y       []int
	Weights []float64
	Months  []domain.Month
	Columns []string
}

// ComputeFillValues returns the per-column median of the observed
// values. Columns with no observed values at all get 0.
func ComputeFillValues(table *domain.FeatureTable, cols []string) map[string]float64 {
	fill := make(map[string]float64, len(cols))
	for _, col := range cols {
		values := make([]float64, 0, len(table.Rows))
		for _, row := range table.Rows {
			values = append(values, row.Value(col))
		}
		med := formulas.Median(values)
		if math.IsNaN(med) {
			med = 0
		}
		fill[col] = med
	}
	return fill
}

// NewDataset extracts an imputed design matrix from a feature table.
// Weights carries the raw panel sample weights; call FitWeights on the
// exact rows being fit to fold in the class-imbalance correction.
func NewDataset(table *domain.FeatureTable, cols []string, fill map[string]float64) *Dataset {
	n := len(table.Rows)
	ds := &Dataset{
		X:       make([][]float64, n),
		Y:       make([]int, n),
		Weights: make([]float64, n),
		Months:  make([]domain.Month, n),
		Columns: cols,
	}

	for i, row := range table.Rows {
		x := make([]float64, len(cols))
		for j, col := range cols {
			v := row.Value(col)
			if math.IsNaN(v) {
				v = fill[col]
			}
			x[j] = v
		}
		ds.X[i] = x
		ds.Y[i] = row.Label
		ds.Months[i] = row.MonthStart
		w := row.SampleWeight
		if w <= 0 {
			w = 1
		}
		ds.Weights[i] = w
	}
	return ds
}

// FitWeights combines sample weights with a class-imbalance positive
// weight of n_neg/n_pos, computed over this dataset's own labels
func (d *Dataset) FitWeights() []float64 {
	nPos := d.Positives()
	posWeight := 1.0
	if nPos > 0 {
		posWeight = float64(len(d.Y)-nPos) / float64(nPos)
	}
	out := make([]float64, len(d.Weights))
	for i, w := range d.Weights {
		if d.Y[i] == 1 {
			w *= posWeight
		}
		out[i] = w
	}
	return out
}

// Subset returns the rows whose index passes keep, sharing row slices
func (d *Dataset) Subset(keep func(i int) bool) *Dataset {
	out := &Dataset{Columns: d.Columns}
	for i := range d.X {
		if !keep(i) {
			continue
		}
		out.X = append(out.X, d.X[i])
		out.Y = append(out.Y, d.Y[i])
		out.Weights = append(out.Weights, d.Weights[i])
		out.Months = append(out.Months, d.Months[i])
	}
	return out
}

// Positives counts label-1 rows
func (d *Dataset) Positives() int {
	n := 0
	for _, y := range d.Y {
		n += y
	}
	return n
}

// Negatives counts label-0 rows
func (d *Dataset) Negatives() int {
	return len(d.Y) - d.Positives()
}
