package model

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasrisk/tariffwatch/internal/domain"
)

func ones(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

func TestScaler(t *testing.T) {
	X := [][]float64{
		{1, 10, 5},
		{3, 20, 5},
		{5, 30, 5},
	}
	s := FitScaler(X)
	assert.InDelta(t, 3.0, s.Means[0], 1e-9)
	assert.InDelta(t, 20.0, s.Means[1], 1e-9)
	// constant column keeps unit divisor
	assert.Equal(t, 1.0, s.Stds[2])

	row := s.TransformRow([]float64{3, 20, 5})
	assert.InDelta(t, 0, row[0], 1e-9)
	assert.InDelta(t, 0, row[1], 1e-9)
	assert.InDelta(t, 0, row[2], 1e-9)
}

func TestLogisticSeparable(t *testing.T) {
	// y = 1 iff x0 > 0
	rng := rand.New(rand.NewSource(7))
	var X [][]float64
	var y []int
	for i := 0; i < 200; i++ {
		v := rng.NormFloat64()
		X = append(X, []float64{v, rng.NormFloat64()})
		if v > 0 {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}

	lr := NewLogisticRegression(0.5)
	require.NoError(t, lr.Fit(X, y, ones(len(y))))

	assert.Greater(t, lr.Coef[0], 1.0)
	assert.Greater(t, lr.PredictProba([]float64{2, 0}), 0.9)
	assert.Less(t, lr.PredictProba([]float64{-2, 0}), 0.1)
}

func TestBoostedTreesNonlinear(t *testing.T) {
	// y = 1 iff x0 and x1 are on the same side of zero, which no
	// linear model can express
	rng := rand.New(rand.NewSource(11))
	var X [][]float64
	var y []int
	for i := 0; i < 400; i++ {
		a, b := rng.NormFloat64(), rng.NormFloat64()
		X = append(X, []float64{a, b})
		if (a > 0) == (b > 0) {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}

	cfg := DefaultBoostingConfig()
	cfg.MinSamplesLeaf = 5
	gbt := FitBoostedTrees(X, y, ones(len(y)), cfg)
	require.NotEmpty(t, gbt.Trees)

	correct := 0
	for i, x := range X {
		p := gbt.PredictProba(x)
		if (p > 0.5) == (y[i] == 1) {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(len(X)), 0.85)
}

func TestDatasetImputationAndWeights(t *testing.T) {
	table := &domain.FeatureTable{
		Granularity: domain.GranularityCountry,
		Columns:     []string{"a"},
		Rows: []domain.FeatureRow{
			{Entity: "X", Label: 1, SampleWeight: 1, Values: map[string]float64{"a": 2}},
			{Entity: "X", Label: 0, SampleWeight: 1, Values: map[string]float64{"a": math.NaN()}},
			{Entity: "X", Label: 0, SampleWeight: 1, Values: map[string]float64{"a": 4}},
			{Entity: "X", Label: 0, SampleWeight: 0.05, Values: map[string]float64{"a": 6}},
		},
	}
	fill := ComputeFillValues(table, table.Columns)
	assert.Equal(t, 4.0, fill["a"])

	ds := NewDataset(table, table.Columns, fill)
	assert.Equal(t, 4.0, ds.X[1][0]) // imputed with median

	w := ds.FitWeights()
	// pos weight = 3 negatives / 1 positive
	assert.Equal(t, 3.0, w[0])
	assert.Equal(t, 1.0, w[1])
	assert.Equal(t, 0.05, w[3])
}

func monthSeq(start domain.Month, n int) []domain.Month {
	out := make([]domain.Month, n)
	for i := range out {
		out[i] = start.AddMonths(i)
	}
	return out
}

// syntheticTable builds rowsPerMonth rows for each of n months with a
// signal feature that separates the labels
func syntheticTable(g domain.Granularity, n, rowsPerMonth int, posPerMonth int) *domain.FeatureTable {
	rng := rand.New(rand.NewSource(3))
	months := monthSeq(domain.Month{Year: 2024, Mon: time.November}, n)
	table := &domain.FeatureTable{Granularity: g, Columns: []string{"signal", "noise"}}
	for _, m := range months {
		for r := 0; r < rowsPerMonth; r++ {
			label := 0
			if r < posPerMonth {
				label = 1
			}
			signal := rng.NormFloat64() + float64(label)*3
			table.Rows = append(table.Rows, domain.FeatureRow{
				Entity:       "E" + string(rune('A'+r)),
				MonthStart:   m,
				Label:        label,
				SampleWeight: 1,
				Values:       map[string]float64{"signal": signal, "noise": rng.NormFloat64()},
			})
		}
	}
	return table
}

func TestWalkForwardGeometry(t *testing.T) {
	table := syntheticTable(domain.GranularitySector, 12, 20, 6)
	fill := ComputeFillValues(table, table.Columns)
	ds := NewDataset(table, table.Columns, fill)

	folds, err := WalkForward(ds, KindLogistic, zerolog.Nop())
	require.NoError(t, err)
	require.NotEmpty(t, folds)

	for _, f := range folds {
		// embargo month sits strictly between train end and val start
		gap := domain.MonthsBetween(f.TrainEnd, f.ValStart)
		assert.Equal(t, EmbargoMonths+1, gap)
		assert.GreaterOrEqual(t, f.NPosTrain, MinTrainPos)
		assert.GreaterOrEqual(t, f.NPosVal, MinValPos)
		assert.GreaterOrEqual(t, f.NNegVal, MinValNeg)
		assert.GreaterOrEqual(t, domain.MonthsBetween(f.ValStart, f.ValEnd)+1, MinValMonths)
		assert.LessOrEqual(t, f.PRAUC, 1.0)
		assert.GreaterOrEqual(t, f.ROCAUC, 0.0)
	}

	// strong signal should beat the baseline comfortably
	pr, roc := MeanFoldMetrics(folds)
	assert.Greater(t, pr, folds[0].BaselinePR)
	assert.Greater(t, roc, 0.8)
}

func TestWalkForwardSkipsThinFolds(t *testing.T) {
	// one positive per month: a three-month validation window can
	// never collect enough positives
	table := syntheticTable(domain.GranularitySector, 12, 20, 1)
	fill := ComputeFillValues(table, table.Columns)
	ds := NewDataset(table, table.Columns, fill)

	folds, err := WalkForward(ds, KindLogistic, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, folds)
}

func TestTrainerRiskScoreFallback(t *testing.T) {
	// 15 positives total is under the minimum for a calibrated fit
	table := syntheticTable(domain.GranularityCountry, 5, 20, 3)
	trainer := NewTrainer(zerolog.Nop())

	pkg, err := trainer.Train(table)
	require.NoError(t, err)

	assert.Equal(t, domain.ModeRiskScore, pkg.Mode)
	assert.Equal(t, 15, pkg.NPositive)
	assert.Nil(t, pkg.PRAUC)
	assert.NotNil(t, pkg.Scaler)
	assert.Empty(t, pkg.FoldMetrics)

	x := pkg.ImputeRow(map[string]float64{"signal": 3, "noise": 0})
	p := pkg.Score(x)
	assert.Greater(t, p, 0.0)
	assert.Less(t, p, 1.0)

	// fitted weights should rank the signal feature above the noise
	if pkg.Weights != nil {
		assert.Greater(t, math.Abs(pkg.Weights["signal"]), math.Abs(pkg.Weights["noise"]))
	}
}

func TestTrainerProbabilityMode(t *testing.T) {
	table := syntheticTable(domain.GranularitySector, 12, 20, 6)
	trainer := NewTrainer(zerolog.Nop())

	pkg, err := trainer.Train(table)
	require.NoError(t, err)

	assert.Equal(t, domain.ModeProbability, pkg.Mode)
	assert.Equal(t, KindLogistic, pkg.Kind)
	require.NotNil(t, pkg.Logistic)
	require.NotNil(t, pkg.Calibration)
	assert.NotEmpty(t, pkg.FoldMetrics)
	assert.NotEmpty(t, pkg.Importances)

	hi := pkg.Score(pkg.ImputeRow(map[string]float64{"signal": 4, "noise": 0}))
	lo := pkg.Score(pkg.ImputeRow(map[string]float64{"signal": -2, "noise": 0}))
	assert.Greater(t, hi, lo)
	assert.GreaterOrEqual(t, lo, 0.0)
	assert.LessOrEqual(t, hi, 1.0)
}

func TestTrainerUsesBoostedTreesForCountry(t *testing.T) {
	table := syntheticTable(domain.GranularityCountry, 12, 30, 8)
	trainer := NewTrainer(zerolog.Nop())

	pkg, err := trainer.Train(table)
	require.NoError(t, err)

	assert.Equal(t, domain.ModeProbability, pkg.Mode)
	assert.Equal(t, KindBoosted, pkg.Kind)
	require.NotNil(t, pkg.Boosted)
	assert.Nil(t, pkg.Logistic)
}

func TestPruneSparseColumns(t *testing.T) {
	table := &domain.FeatureTable{
		Granularity: domain.GranularityCountry,
		Columns:     []string{"dense", "sparse"},
	}
	for i := 0; i < 10; i++ {
		v := math.NaN()
		if i == 0 {
			v = 1.0 // 10% fill rate
		}
		table.Rows = append(table.Rows, domain.FeatureRow{
			Entity:       "X",
			SampleWeight: 1,
			Values:       map[string]float64{"dense": float64(i), "sparse": v},
		})
	}
	cols := pruneColumns(table, zerolog.Nop())
	assert.Equal(t, []string{"dense"}, cols)
}

func TestCountryMultipliers(t *testing.T) {
	day := func(m time.Month, d int) time.Time {
		return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)
	}
	var evs []domain.PolicyEvent
	for i := 0; i < 12; i++ {
		evs = append(evs, domain.PolicyEvent{Entity: "CHINA", Date: day(time.March, 1+i), Authority: "IEEPA"})
	}
	evs = append(evs,
		domain.PolicyEvent{Entity: "MEXICO", Date: day(time.April, 2), Authority: "Section 232"},
		domain.PolicyEvent{Entity: "CANADA", Date: day(time.April, 5), Authority: "something obscure"},
		// stale event outside the trailing year is ignored
		domain.PolicyEvent{Entity: "BRAZIL", Date: day(time.March, 1).AddDate(-2, 0, 0), Authority: "IEEPA"},
	)

	m := ComputeCountryMultipliers(evs)
	assert.NotContains(t, m, "BRAZIL")
	assert.Greater(t, m["CHINA"], m["MEXICO"])
	assert.GreaterOrEqual(t, m["MEXICO"], MinMultiplier)
	assert.LessOrEqual(t, m["CHINA"], MaxMultiplier)
	// the busiest country pins to the upper clamp with this spread
	assert.Equal(t, MaxMultiplier, m["CHINA"])
}

func TestSigmoidCalibratorBounds(t *testing.T) {
	c := &SigmoidCalibrator{A: 1, B: 0}
	assert.InDelta(t, 0.5, c.Calibrate(0), 1e-9)
	assert.Greater(t, c.Calibrate(3), c.Calibrate(-3))
	assert.Greater(t, c.Calibrate(10), 0.99)
}
