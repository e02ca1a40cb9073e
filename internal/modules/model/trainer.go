package model

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/atlasrisk/tariffwatch/internal/domain"
	"github.com/atlasrisk/tariffwatch/pkg/formulas"
)

const (
	// KindBoosted and KindLogistic name the two classifier families
	KindBoosted  = "gbt"
	KindLogistic = "logreg"

	// MinPositives is the floor under which a calibrated fit is not
	// attempted and the heuristic risk score takes over
	MinPositives = 20

	// MinFillRate prunes feature columns observed on fewer than this
	// share of rows before any fitting
	MinFillRate = 0.2
)

// HeuristicWeights scores country rows when the corpus is too thin to
// fit anything. Signs and magnitudes are hand-set from domain priors.
var HeuristicWeights = map[string]float64{
	"trade_deficit":                    0.14,
	"trade_deficit_3m_change":          0.10,
	"gscpi":                            0.12,
	"tariff_count_country_12m":         0.18,
	"months_since_last_tariff_country": -0.15,
	"authority_count_12m_IEEPA":        0.12,
	"unrate":                           0.03,
	"month_of_year":                    0.00,
}

// Package is a trained, self-contained scoring bundle: everything
// inference needs to turn a raw feature row into a probability or a
// heuristic risk score
type Package struct {
	Mode        domain.Mode          `msgpack:"mode" json:"mode"`
	Granularity domain.Granularity   `msgpack:"granularity" json:"granularity"`
	Kind        string               `msgpack:"kind" json:"kind"`
	Columns     []string             `msgpack:"columns" json:"columns"`
	FillValues  map[string]float64   `msgpack:"fill_values" json:"fill_values"`
	Scaler      *Scaler              `msgpack:"scaler,omitempty" json:"scaler,omitempty"`
	Boosted     *BoostedTrees        `msgpack:"boosted,omitempty" json:"-"`
	Logistic    *LogisticRegression  `msgpack:"logistic,omitempty" json:"-"`
	Calibration *SigmoidCalibrator   `msgpack:"calibration,omitempty" json:"calibration,omitempty"`
	Weights     map[string]float64   `msgpack:"weights,omitempty" json:"weights,omitempty"`
	Importances map[string]float64   `msgpack:"importances,omitempty" json:"importances,omitempty"`
	PRAUC       *float64             `msgpack:"pr_auc" json:"pr_auc"`
	ROCAUC      *float64             `msgpack:"roc_auc" json:"roc_auc"`
	BaselinePR  float64              `msgpack:"baseline_pr_auc" json:"baseline_pr_auc"`
	NPositive   int                  `msgpack:"n_positive" json:"n_positive"`
	NTotal      int                  `msgpack:"n_total" json:"n_total"`
	FoldMetrics []FoldMetrics        `msgpack:"fold_metrics" json:"fold_metrics"`
	FitError    string               `msgpack:"fit_error,omitempty" json:"fit_error,omitempty"`
	Panel       *domain.FeatureTable `msgpack:"panel" json:"-"`
}

// ImputeRow extracts the model's columns from a raw value map,
// substituting frozen fill values for anything missing
func (p *Package) ImputeRow(values map[string]float64) []float64 {
	x := make([]float64, len(p.Columns))
	for j, col := range p.Columns {
		v, ok := values[col]
		if !ok || math.IsNaN(v) {
			v = p.FillValues[col]
		}
		x[j] = v
	}
	return x
}

// Score turns an imputed raw row into a probability, calibrated in
// probability mode, heuristic sigmoid in risk_score mode
func (p *Package) Score(x []float64) float64 {
	if p.Mode == domain.ModeProbability {
		var raw float64
		if p.Kind == KindLogistic {
			raw = p.Logistic.Decision(p.Scaler.TransformRow(x))
		} else {
			raw = p.Boosted.Decision(x)
		}
		if p.Calibration != nil {
			return p.Calibration.Calibrate(raw)
		}
		return formulas.Sigmoid(raw)
	}
	return formulas.Sigmoid(p.riskScore(x))
}

func (p *Package) riskScore(x []float64) float64 {
	scaled := p.Scaler.TransformRow(x)
	weights := p.RiskWeights()
	raw := 0.0
	for j := range scaled {
		raw += weights[j] * scaled[j]
	}
	return raw
}

// RiskWeights returns the risk-score weight vector aligned to Columns,
// falling back to the heuristic table when no fitted weights exist
func (p *Package) RiskWeights() []float64 {
	out := make([]float64, len(p.Columns))
	src := p.Weights
	if src == nil {
		src = HeuristicWeights
	}
	for j, col := range p.Columns {
		out[j] = src[col]
	}
	return out
}

// Trainer fits scoring packages from feature tables
type Trainer struct {
	log zerolog.Logger
}

// NewTrainer creates a trainer
func NewTrainer(log zerolog.Logger) *Trainer {
	return &Trainer{log: log.With().Str("component", "trainer").Logger()}
}

// Train fits a package for the table's granularity. Country panels
// get boosted trees, sector panels logistic regression; both fall
// back to risk_score mode on thin data.
func (t *Trainer) Train(table *domain.FeatureTable) (*Package, error) {
	kind := KindLogistic
	if table.Granularity == domain.GranularityCountry {
		kind = KindBoosted
	}

	cols := pruneColumns(table, t.log)
	fill := ComputeFillValues(table, cols)
	ds := NewDataset(table, cols, fill)

	nPos := ds.Positives()
	nTotal := len(ds.Y)
	baseline := 0.0
	if nTotal > 0 {
		baseline = round4(float64(nPos) / float64(nTotal))
	}

	pkg := &Package{
		Granularity: table.Granularity,
		Kind:        kind,
		Columns:     cols,
		FillValues:  fill,
		BaselinePR:  baseline,
		NPositive:   nPos,
		NTotal:      nTotal,
		Panel:       table,
	}

	t.log.Info().
		Str("granularity", string(table.Granularity)).
		Int("positives", nPos).
		Int("rows", nTotal).
		Float64("baseline_pr_auc", baseline).
		Msg("Training model")

	if nPos < MinPositives {
		t.trainRiskScore(pkg, ds)
		return pkg, nil
	}
	if err := t.trainProbability(pkg, ds, kind); err != nil {
		return nil, err
	}
	return pkg, nil
}

// trainRiskScore fits the fallback: a scaler plus linear weights. A
// failed weight fit is recorded on the package and the heuristic
// table is used instead.
func (t *Trainer) trainRiskScore(pkg *Package, ds *Dataset) {
	t.log.Warn().
		Int("positives", pkg.NPositive).
		Int("min", MinPositives).
		Msg("Too few positives, falling back to risk score")

	pkg.Mode = domain.ModeRiskScore
	pkg.Scaler = FitScaler(ds.X)

	lr := NewLogisticRegression(0.2)
	if err := lr.Fit(pkg.Scaler.Transform(ds.X), ds.Y, ds.FitWeights()); err != nil {
		pkg.FitError = err.Error()
		t.log.Warn().Err(err).Msg("Fallback weight fit failed, using heuristic weights")
		return
	}
	pkg.Weights = make(map[string]float64, len(ds.Columns))
	for j, col := range ds.Columns {
		pkg.Weights[col] = lr.Coef[j]
	}
}

func (t *Trainer) trainProbability(pkg *Package, ds *Dataset, kind string) error {
	folds, err := WalkForward(ds, kind, t.log)
	if err != nil {
		return fmt.Errorf("failed walk-forward CV: %w", err)
	}
	pkg.FoldMetrics = folds
	if len(folds) > 0 {
		pr, roc := MeanFoldMetrics(folds)
		pkg.PRAUC = &pr
		pkg.ROCAUC = &roc
		t.log.Info().
			Int("folds", len(folds)).
			Float64("pr_auc", pr).
			Float64("roc_auc", roc).
			Msg("Walk-forward CV complete")
	} else {
		t.log.Warn().Msg("No fold passed the honest-metrics filters")
	}

	pkg.Mode = domain.ModeProbability
	w := ds.FitWeights()

	switch kind {
	case KindLogistic:
		pkg.Scaler = FitScaler(ds.X)
		scaled := pkg.Scaler.Transform(ds.X)
		lr := NewLogisticRegression(0.5)
		if err := lr.Fit(scaled, ds.Y, w); err != nil {
			return fmt.Errorf("failed final logistic fit: %w", err)
		}
		pkg.Logistic = lr
		pkg.Importances = make(map[string]float64, len(ds.Columns))
		for j, col := range ds.Columns {
			pkg.Importances[col] = math.Abs(lr.Coef[j])
		}

		cal, err := FitSigmoidCalibrator(scaled, ds.Y, w, func(X [][]float64, y []int, fw []float64) (scorer, error) {
			clone := NewLogisticRegression(0.5)
			if err := clone.Fit(X, y, fw); err != nil {
				return nil, err
			}
			return clone, nil
		})
		if err != nil {
			return fmt.Errorf("failed calibration: %w", err)
		}
		pkg.Calibration = cal

	case KindBoosted:
		pkg.Boosted = FitBoostedTrees(ds.X, ds.Y, w, DefaultBoostingConfig())

		cal, err := FitSigmoidCalibrator(ds.X, ds.Y, w, func(X [][]float64, y []int, fw []float64) (scorer, error) {
			return FitBoostedTrees(X, y, fw, DefaultBoostingConfig()), nil
		})
		if err != nil {
			return fmt.Errorf("failed calibration: %w", err)
		}
		pkg.Calibration = cal
	}

	t.log.Info().Str("kind", kind).Msg("Final fit and calibration complete")
	return nil
}

// pruneColumns drops columns observed on too small a share of rows to
// carry signal
func pruneColumns(table *domain.FeatureTable, log zerolog.Logger) []string {
	if len(table.Rows) == 0 {
		return append([]string{}, table.Columns...)
	}
	kept := make([]string, 0, len(table.Columns))
	for _, col := range table.Columns {
		observed := 0
		for _, row := range table.Rows {
			if !math.IsNaN(row.Value(col)) {
				observed++
			}
		}
		rate := float64(observed) / float64(len(table.Rows))
		if rate < MinFillRate {
			log.Debug().Str("column", col).Float64("fill_rate", rate).Msg("Pruned sparse column")
			continue
		}
		kept = append(kept, col)
	}
	return kept
}
