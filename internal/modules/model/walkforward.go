package model

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/atlasrisk/tariffwatch/internal/domain"
	"github.com/atlasrisk/tariffwatch/pkg/formulas"
)

// Walk-forward CV geometry and honest-metrics thresholds. Folds that
// fail the minimums are skipped rather than reported, so a perfect
// score on a two-row validation month never inflates the mean.
const (
	MinTrainMonths  = 4
	EmbargoMonths   = 1
	ValWindowMonths = 3

	MinValMonths = 2
	MinValPos    = 5
	MinValNeg    = 5
	MinTrainPos  = 10
)

// FoldMetrics is the scored outcome of a single walk-forward fold
type FoldMetrics struct {
	TrainEnd   domain.Month `msgpack:"train_end" json:"train_end"`
	ValStart   domain.Month `msgpack:"val_start" json:"val_start"`
	ValEnd     domain.Month `msgpack:"val_end" json:"val_end"`
	NTrain     int          `msgpack:"n_train" json:"n_train"`
	NVal       int          `msgpack:"n_val" json:"n_val"`
	NPosTrain  int          `msgpack:"n_pos_train" json:"n_pos_train"`
	NPosVal    int          `msgpack:"n_pos_val" json:"n_pos_val"`
	NNegVal    int          `msgpack:"n_neg_val" json:"n_neg_val"`
	PRAUC      float64      `msgpack:"pr_auc" json:"pr_auc"`
	ROCAUC     float64      `msgpack:"roc_auc" json:"roc_auc"`
	BaselinePR float64      `msgpack:"baseline_pr_auc" json:"baseline_pr_auc"`
}

// WalkForward runs expanding-window cross-validation over calendar
// months with a one-month embargo between train and validation.
// Metrics only; the returned folds never influence the final fit.
func WalkForward(ds *Dataset, kind string, log zerolog.Logger) ([]FoldMetrics, error) {
	months := uniqueMonths(ds.Months)
	n := len(months)
	var folds []FoldMetrics

	for k := MinTrainMonths; k < n; k++ {
		trainEnd := months[k-1]
		valStartIdx := k + EmbargoMonths
		if valStartIdx >= n {
			break
		}
		valEndIdx := valStartIdx + ValWindowMonths
		if valEndIdx > n {
			valEndIdx = n
		}
		valMonths := months[valStartIdx:valEndIdx]
		if len(valMonths) < MinValMonths {
			continue
		}

		inVal := make(map[domain.Month]bool, len(valMonths))
		for _, m := range valMonths {
			inVal[m] = true
		}
		train := ds.Subset(func(i int) bool { return !ds.Months[i].After(trainEnd) })
		val := ds.Subset(func(i int) bool { return inVal[ds.Months[i]] })

		if train.Positives() < MinTrainPos {
			continue
		}
		if val.Positives() < MinValPos || val.Negatives() < MinValNeg {
			continue
		}

		proba, err := fitAndScore(train, val, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to score fold ending %s: %w", trainEnd, err)
		}

		valY := val.Y
		sumY := 0.0
		for _, y := range valY {
			sumY += float64(y)
		}
		fold := FoldMetrics{
			TrainEnd:   trainEnd,
			ValStart:   valMonths[0],
			ValEnd:     valMonths[len(valMonths)-1],
			NTrain:     len(train.Y),
			NVal:       len(valY),
			NPosTrain:  train.Positives(),
			NPosVal:    val.Positives(),
			NNegVal:    val.Negatives(),
			PRAUC:      round4(formulas.AveragePrecision(valY, proba)),
			ROCAUC:     round4(formulas.SafeROCAUC(valY, proba)),
			BaselinePR: round4(sumY / float64(len(valY))),
		}
		folds = append(folds, fold)

		log.Debug().
			Str("train_end", fold.TrainEnd.String()).
			Str("val", fold.ValStart.String()+".."+fold.ValEnd.String()).
			Float64("pr_auc", fold.PRAUC).
			Float64("roc_auc", fold.ROCAUC).
			Msg("Scored walk-forward fold")
	}
	return folds, nil
}

// MeanFoldMetrics averages PR-AUC and ROC-AUC over folds, NaN when
// no fold survived the honest-metrics filters
func MeanFoldMetrics(folds []FoldMetrics) (prAUC, rocAUC float64) {
	if len(folds) == 0 {
		return math.NaN(), math.NaN()
	}
	for _, f := range folds {
		prAUC += f.PRAUC
		rocAUC += f.ROCAUC
	}
	n := float64(len(folds))
	return round4(prAUC / n), round4(rocAUC / n)
}

func fitAndScore(train, val *Dataset, kind string) ([]float64, error) {
	w := train.FitWeights()
	proba := make([]float64, len(val.X))

	switch kind {
	case KindLogistic:
		scaler := FitScaler(train.X)
		lr := NewLogisticRegression(0.5)
		if err := lr.Fit(scaler.Transform(train.X), train.Y, w); err != nil {
			return nil, err
		}
		for i, x := range val.X {
			proba[i] = lr.PredictProba(scaler.TransformRow(x))
		}
	case KindBoosted:
		gbt := FitBoostedTrees(train.X, train.Y, w, DefaultBoostingConfig())
		for i, x := range val.X {
			proba[i] = gbt.PredictProba(x)
		}
	default:
		return nil, fmt.Errorf("unknown model kind %q", kind)
	}
	return proba, nil
}

func uniqueMonths(months []domain.Month) []domain.Month {
	seen := make(map[domain.Month]bool)
	var out []domain.Month
	for _, m := range months {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func round4(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Round(v*10000) / 10000
}
