package model

import (
	"fmt"

	"github.com/atlasrisk/tariffwatch/pkg/formulas"
)

const calibrationFolds = 3

// SigmoidCalibrator maps raw classifier logits to calibrated
// probabilities via Platt scaling: p = sigmoid(A*s + B)
type SigmoidCalibrator struct {
	A float64 `msgpack:"a" json:"a"`
	B float64 `msgpack:"b" json:"b"`
}

// Calibrate returns the calibrated probability for a raw logit
func (c *SigmoidCalibrator) Calibrate(score float64) float64 {
	return formulas.Sigmoid(c.A*score + c.B)
}

// scorer abstracts the two classifier families during calibration
type scorer interface {
	Decision(x []float64) float64
}

// fitFn refits a fresh classifier clone on a subset and returns its
// raw scoring function
type fitFn func(X [][]float64, y []int, w []float64) (scorer, error)

// FitSigmoidCalibrator fits a Platt calibrator on out-of-fold logits.
// The data is split into contiguous thirds; each third is scored by a
// clone fit on the other two, and a single sigmoid is fit on the
// pooled held-out scores.
func FitSigmoidCalibrator(X [][]float64, y []int, w []float64, refit fitFn) (*SigmoidCalibrator, error) {
	n := len(X)
	if n < calibrationFolds {
		return nil, fmt.Errorf("failed to calibrate: %d rows for %d folds", n, calibrationFolds)
	}

	scores := make([]float64, 0, n)
	heldY := make([]int, 0, n)
	heldW := make([]float64, 0, n)

	for fold := 0; fold < calibrationFolds; fold++ {
		lo := fold * n / calibrationFolds
		hi := (fold + 1) * n / calibrationFolds

		trX := make([][]float64, 0, n-(hi-lo))
		trY := make([]int, 0, n-(hi-lo))
		trW := make([]float64, 0, n-(hi-lo))
		for i := 0; i < n; i++ {
			if i >= lo && i < hi {
				continue
			}
			trX = append(trX, X[i])
			trY = append(trY, y[i])
			trW = append(trW, w[i])
		}
		if !hasBothClasses(trY) {
			continue
		}

		clone, err := refit(trX, trY, trW)
		if err != nil {
			return nil, fmt.Errorf("failed to calibrate fold %d: %w", fold, err)
		}
		for i := lo; i < hi; i++ {
			scores = append(scores, clone.Decision(X[i]))
			heldY = append(heldY, y[i])
			heldW = append(heldW, w[i])
		}
	}
	if !hasBothClasses(heldY) {
		return nil, fmt.Errorf("failed to calibrate: held-out scores are single-class")
	}

	// one-dimensional logistic fit of label on score
	lr := NewLogisticRegression(1e6) // effectively unregularized
	design := make([][]float64, len(scores))
	for i, s := range scores {
		design[i] = []float64{s}
	}
	if err := lr.Fit(design, heldY, heldW); err != nil {
		return nil, fmt.Errorf("failed to calibrate: %w", err)
	}
	return &SigmoidCalibrator{A: lr.Coef[0], B: lr.Intercept}, nil
}

func hasBothClasses(y []int) bool {
	var pos, neg bool
	for _, v := range y {
		if v == 1 {
			pos = true
		} else {
			neg = true
		}
	}
	return pos && neg
}
