// Package inference scores entities against a trained artifact
// bundle. The engine is handed its bundle explicitly; nothing here
// reaches for global state, so two engines with different bundles can
// serve side by side.
package inference

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/atlasrisk/tariffwatch/internal/artifact"
	"github.com/atlasrisk/tariffwatch/internal/domain"
	"github.com/atlasrisk/tariffwatch/internal/modules/model"
	"github.com/atlasrisk/tariffwatch/pkg/formulas"
)

const (
	topDrivers = 5

	// blend weights between the country and sector models
	countryShare = 0.6
	sectorShare  = 0.4

	// ceiling on any reported probability
	probabilityCap = 0.99
)

// Driver is one feature's contribution to a score
type Driver struct {
	Feature      string  `json:"feature"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

// Prediction is a scored entity. Exactly one of Probability and
// RiskScore is set, keyed by Mode: Probability carries a calibrated
// model output, RiskScore a heuristic relative score squashed through
// a sigmoid. Callers reading the field the mode did not produce get
// nil, not a number that looks like a probability.
type Prediction struct {
	Mode        domain.Mode        `json:"mode"`
	Granularity domain.Granularity `json:"granularity"`
	Entity      string             `json:"entity"`
	AsOf        *domain.Month      `json:"as_of_month,omitempty"`
	Probability *float64           `json:"tariff_risk_prob,omitempty"`
	RiskScore   *float64           `json:"tariff_risk_score,omitempty"`
	Drivers     []Driver           `json:"top_drivers"`
}

// Score returns whichever value the mode produced
func (p *Prediction) Score() float64 {
	if p.Probability != nil {
		return *p.Probability
	}
	if p.RiskScore != nil {
		return *p.RiskScore
	}
	return math.NaN()
}

// BlendedPrediction combines the country and sector models
type BlendedPrediction struct {
	Country     string      `json:"country"`
	Sector      string      `json:"sector"`
	Probability float64     `json:"tariff_risk_prob"`
	BlendMode   string      `json:"blend_mode"`
	CountryPart *Prediction `json:"country_model"`
	SectorPart  *Prediction `json:"sector_model,omitempty"`
}

// ScaledPrediction is a sector probability scaled by the country's
// activity multiplier
type ScaledPrediction struct {
	Country     string      `json:"country"`
	Sector      string      `json:"sector"`
	BaseProb    float64     `json:"base_sector_prob"`
	Multiplier  float64     `json:"country_multiplier"`
	Probability float64     `json:"tariff_risk_prob"`
	SectorPart  *Prediction `json:"sector_model"`
}

// Engine scores entities with a loaded bundle
type Engine struct {
	bundle *artifact.Bundle
	log    zerolog.Logger
}

// NewEngine wraps a validated bundle
func NewEngine(bundle *artifact.Bundle, log zerolog.Logger) (*Engine, error) {
	if err := bundle.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create inference engine: %w", err)
	}
	return &Engine{
		bundle: bundle,
		log:    log.With().Str("component", "inference").Logger(),
	}, nil
}

// PredictCountry scores a single country
func (e *Engine) PredictCountry(country string) *Prediction {
	name := strings.ToUpper(strings.TrimSpace(country))
	return e.predict(e.bundle.Country, name)
}

// PredictSector scores a single sector, if a sector model exists
func (e *Engine) PredictSector(sector string) (*Prediction, error) {
	if e.bundle.Sector == nil {
		return nil, fmt.Errorf("no sector model in bundle")
	}
	return e.predict(e.bundle.Sector, strings.TrimSpace(sector)), nil
}

// PredictBlended mixes the country and sector scores. A missing
// sector model or the catch-all General sector collapses to the
// country score alone.
func (e *Engine) PredictBlended(country, sector string) *BlendedPrediction {
	cp := e.PredictCountry(country)
	out := &BlendedPrediction{
		Country:     cp.Entity,
		Sector:      strings.TrimSpace(sector),
		CountryPart: cp,
	}

	if e.bundle.Sector == nil || strings.EqualFold(out.Sector, "general") {
		out.Probability = cp.Score()
		out.BlendMode = "country_only"
		return out
	}

	sp := e.predict(e.bundle.Sector, out.Sector)
	out.SectorPart = sp
	out.Probability = round4(countryShare*cp.Score() + sectorShare*sp.Score())
	out.BlendMode = "blended"
	return out
}

// PredictSectorScaled scores a sector and scales it by the country's
// policy-activity multiplier, capped below certainty
func (e *Engine) PredictSectorScaled(country, sector string) (*ScaledPrediction, error) {
	sp, err := e.PredictSector(sector)
	if err != nil {
		return nil, err
	}

	key := strings.ToUpper(strings.TrimSpace(country))
	mult := 1.0
	if m, ok := e.bundle.Multipliers[key]; ok {
		mult = m
	}

	return &ScaledPrediction{
		Country:     key,
		Sector:      sp.Entity,
		BaseProb:    sp.Score(),
		Multiplier:  round4(mult),
		Probability: round4(formulas.Clamp01(sp.Score()*mult, probabilityCap)),
		SectorPart:  sp,
	}, nil
}

func (e *Engine) predict(pkg *model.Package, entity string) *Prediction {
	values, asOf := latestRow(pkg.Panel, entity)
	x := pkg.ImputeRow(values)
	score := round4(pkg.Score(x))

	p := &Prediction{
		Mode:        pkg.Mode,
		Granularity: pkg.Granularity,
		Entity:      entity,
		AsOf:        asOf,
	}
	if pkg.Mode == domain.ModeProbability {
		p.Probability = &score
		p.Drivers = probabilityDrivers(pkg, x)
	} else {
		p.RiskScore = &score
		p.Drivers = riskDrivers(pkg, x)
	}

	e.log.Debug().
		Str("entity", entity).
		Str("mode", string(pkg.Mode)).
		Float64("score", score).
		Msg("Scored entity")
	return p
}

// latestRow finds the entity's most recent panel row by trimmed,
// case-insensitive name. Unknown entities get an empty row, which
// imputation turns into the all-median cold-start vector.
func latestRow(panel *domain.FeatureTable, entity string) (map[string]float64, *domain.Month) {
	var best *domain.FeatureRow
	if panel != nil {
		for i := range panel.Rows {
			row := &panel.Rows[i]
			if !strings.EqualFold(strings.TrimSpace(row.Entity), entity) {
				continue
			}
			if best == nil || best.MonthStart.Before(row.MonthStart) {
				best = row
			}
		}
	}
	if best == nil {
		return map[string]float64{}, nil
	}
	asOf := best.MonthStart
	return best.Values, &asOf
}

// probabilityDrivers ranks features by trained importance when the
// model exposes one, otherwise by the magnitude of the query row
func probabilityDrivers(pkg *model.Package, x []float64) []Driver {
	if len(pkg.Importances) > 0 {
		drivers := make([]Driver, 0, len(pkg.Importances))
		for col, imp := range pkg.Importances {
			drivers = append(drivers, Driver{Feature: col, Contribution: round4(imp)})
		}
		sortDrivers(drivers)
		return truncate(drivers)
	}

	drivers := make([]Driver, 0, len(pkg.Columns))
	for j, col := range pkg.Columns {
		drivers = append(drivers, Driver{Feature: col, Value: round4(x[j]), Contribution: round4(x[j])})
	}
	sortDrivers(drivers)
	return truncate(drivers)
}

// riskDrivers reports the per-query weighted contributions of the
// heuristic score
func riskDrivers(pkg *model.Package, x []float64) []Driver {
	scaled := pkg.Scaler.TransformRow(x)
	weights := pkg.RiskWeights()

	drivers := make([]Driver, 0, len(pkg.Columns))
	for j, col := range pkg.Columns {
		c := weights[j] * scaled[j]
		if math.Abs(c) <= 1e-9 {
			continue
		}
		drivers = append(drivers, Driver{Feature: col, Value: round4(scaled[j]), Contribution: round4(c)})
	}
	sortDrivers(drivers)
	return truncate(drivers)
}

func sortDrivers(drivers []Driver) {
	sort.Slice(drivers, func(i, j int) bool {
		a, b := math.Abs(drivers[i].Contribution), math.Abs(drivers[j].Contribution)
		if a != b {
			return a > b
		}
		return drivers[i].Feature < drivers[j].Feature
	})
}

func truncate(drivers []Driver) []Driver {
	if len(drivers) > topDrivers {
		return drivers[:topDrivers]
	}
	return drivers
}

func round4(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Round(v*10000) / 10000
}
