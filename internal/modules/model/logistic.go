package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/atlasrisk/tariffwatch/pkg/formulas"
)

// LogisticRegression is a weighted L2-regularized binary classifier.
// Alpha is the penalty strength applied to the coefficients; the
// intercept is not penalized.
type LogisticRegression struct {
	Coef      []float64 `msgpack:"coef" json:"coef"`
	Intercept float64   `msgpack:"intercept" json:"intercept"`
	Alpha     float64   `msgpack:"alpha" json:"alpha"`
}

// NewLogisticRegression creates an unfit classifier. C is the inverse
// regularization strength; smaller C means stronger shrinkage.
func NewLogisticRegression(c float64) *LogisticRegression {
	if c <= 0 {
		c = 1
	}
	return &LogisticRegression{Alpha: 1 / c}
}

// Fit minimizes the weighted logistic loss with L-BFGS
func (m *LogisticRegression) Fit(X [][]float64, y []int, w []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("failed to fit logistic regression: empty design matrix")
	}
	if len(X) != len(y) || len(X) != len(w) {
		return fmt.Errorf("failed to fit logistic regression: %d rows, %d labels, %d weights", len(X), len(y), len(w))
	}
	d := len(X[0])

	// theta = [coef..., intercept]
	objective := func(theta []float64) float64 {
		loss := 0.0
		for i, x := range X {
			s := theta[d]
			for j, v := range x {
				s += theta[j] * v
			}
			// softplus(s) - y*s, numerically stable
			loss += w[i] * (softplus(s) - float64(y[i])*s)
		}
		for j := 0; j < d; j++ {
			loss += 0.5 * m.Alpha * theta[j] * theta[j]
		}
		return loss
	}
	gradient := func(grad, theta []float64) {
		for j := range grad {
			grad[j] = 0
		}
		for i, x := range X {
			s := theta[d]
			for j, v := range x {
				s += theta[j] * v
			}
			r := w[i] * (formulas.Sigmoid(s) - float64(y[i]))
			for j, v := range x {
				grad[j] += r * v
			}
			grad[d] += r
		}
		for j := 0; j < d; j++ {
			grad[j] += m.Alpha * theta[j]
		}
	}

	problem := optimize.Problem{Func: objective, Grad: gradient}
	settings := &optimize.Settings{
		MajorIterations:   5000,
		GradientThreshold: 1e-6,
	}
	result, err := optimize.Minimize(problem, make([]float64, d+1), settings, &optimize.LBFGS{})
	if err != nil {
		return fmt.Errorf("failed to fit logistic regression: %w", err)
	}
	if err := result.Status.Err(); err != nil {
		return fmt.Errorf("failed to fit logistic regression: %w", err)
	}

	m.Coef = result.X[:d]
	m.Intercept = result.X[d]
	return nil
}

// Decision returns the raw linear score for one row
func (m *LogisticRegression) Decision(x []float64) float64 {
	s := m.Intercept
	for j, v := range x {
		if j < len(m.Coef) {
			s += m.Coef[j] * v
		}
	}
	return s
}

// PredictProba returns P(y=1|x)
func (m *LogisticRegression) PredictProba(x []float64) float64 {
	return formulas.Sigmoid(m.Decision(x))
}

func softplus(s float64) float64 {
	if s > 30 {
		return s
	}
	if s < -30 {
		return 0
	}
	return math.Log1p(math.Exp(s))
}
