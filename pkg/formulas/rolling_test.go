package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollingMeanShrinksAtStart(t *testing.T) {
	got := RollingMean([]float64{30, 40, 50, 60}, 3)
	require.Len(t, got, 4)

	// the first positions average whatever the series has so far,
	// never a padded zero
	assert.Equal(t, 30.0, got[0])
	assert.Equal(t, 35.0, got[1])
	assert.Equal(t, 40.0, got[2])
	assert.Equal(t, 50.0, got[3])
}

func TestRollingMeanSkipsNaN(t *testing.T) {
	got := RollingMean([]float64{30, math.NaN(), 60}, 3)
	assert.Equal(t, 30.0, got[0])
	assert.Equal(t, 30.0, got[1])
	assert.Equal(t, 45.0, got[2])

	// a window with no valid observation stays missing
	allNaN := RollingMean([]float64{math.NaN(), math.NaN()}, 3)
	assert.True(t, math.IsNaN(allNaN[0]))
	assert.True(t, math.IsNaN(allNaN[1]))
}

func TestRollingStd(t *testing.T) {
	got := RollingStd([]float64{1, 2, 3, 4}, 3)

	// a single observation has no spread to measure
	assert.True(t, math.IsNaN(got[0]))
	assert.InDelta(t, 0.7071, got[1], 0.0001)
	assert.InDelta(t, 1.0, got[2], 0.0001)
	assert.InDelta(t, 1.0, got[3], 0.0001)
}

func TestDiff(t *testing.T) {
	got := Diff([]float64{10, 20, 30, 40, 45}, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, math.IsNaN(got[i]), "position %d", i)
	}
	assert.Equal(t, 30.0, got[3])
	assert.Equal(t, 25.0, got[4])

	// NaN on either side of the lag pair propagates
	withGap := Diff([]float64{10, math.NaN(), 30}, 1)
	assert.True(t, math.IsNaN(withGap[1]))
	assert.True(t, math.IsNaN(withGap[2]))
}
