package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAveragePrecision(t *testing.T) {
	labels := []int{0, 0, 1, 1}
	scores := []float64{0.1, 0.4, 0.35, 0.8}
	assert.InDelta(t, 0.8333, AveragePrecision(labels, scores), 0.0001)

	// perfect ranking
	assert.Equal(t, 1.0, AveragePrecision([]int{0, 1, 1}, []float64{0.1, 0.8, 0.9}))

	// no positives means nothing to rank
	assert.Equal(t, 0.0, AveragePrecision([]int{0, 0}, []float64{0.1, 0.9}))
	assert.Equal(t, 0.0, AveragePrecision(nil, nil))
}

func TestAveragePrecisionTiedScores(t *testing.T) {
	// tied scores form one threshold group, so the positive cannot be
	// credited ahead of its tied negative
	labels := []int{1, 0}
	scores := []float64{0.5, 0.5}
	assert.InDelta(t, 0.5, AveragePrecision(labels, scores), 0.0001)
}

func TestSafeROCAUC(t *testing.T) {
	labels := []int{0, 0, 1, 1}

	assert.InDelta(t, 1.0, SafeROCAUC(labels, []float64{0.1, 0.2, 0.8, 0.9}), 0.0001)
	assert.InDelta(t, 0.0, SafeROCAUC(labels, []float64{0.9, 0.8, 0.2, 0.1}), 0.0001)

	// fully tied scores are an uninformative ranking
	assert.InDelta(t, 0.5, SafeROCAUC(labels, []float64{0.5, 0.5, 0.5, 0.5}), 0.0001)
}

func TestSafeROCAUCSingleClass(t *testing.T) {
	// single-class labels never yield NaN
	assert.Equal(t, 0.5, SafeROCAUC([]int{1, 1}, []float64{0.2, 0.9}))
	assert.Equal(t, 0.5, SafeROCAUC([]int{0, 0}, []float64{0.2, 0.9}))
	assert.Equal(t, 0.5, SafeROCAUC(nil, nil))
}
