// Package pipeline runs the full retrain cycle: stored actions and
// series in, saved artifact bundle out.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/atlasrisk/tariffwatch/internal/artifact"
	"github.com/atlasrisk/tariffwatch/internal/config"
	"github.com/atlasrisk/tariffwatch/internal/database/repositories"
	"github.com/atlasrisk/tariffwatch/internal/domain"
	"github.com/atlasrisk/tariffwatch/internal/modules/events"
	"github.com/atlasrisk/tariffwatch/internal/modules/features"
	"github.com/atlasrisk/tariffwatch/internal/modules/inference"
	"github.com/atlasrisk/tariffwatch/internal/modules/model"
	"github.com/atlasrisk/tariffwatch/internal/modules/panel"
)

// Pipeline wires the training stages together
type Pipeline struct {
	actions *repositories.ActionRepository
	series  *repositories.SeriesRepository
	store   *artifact.Store
	backup  *artifact.Backup
	cfg     *config.Config
	log     zerolog.Logger
}

// New creates a pipeline; backup may be nil to skip S3 upload
func New(
	actions *repositories.ActionRepository,
	series *repositories.SeriesRepository,
	store *artifact.Store,
	backup *artifact.Backup,
	cfg *config.Config,
	log zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		actions: actions,
		series:  series,
		store:   store,
		backup:  backup,
		cfg:     cfg,
		log:     log.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes one full training cycle and returns the saved bundle
func (p *Pipeline) Run(ctx context.Context) (*artifact.Bundle, error) {
	started := time.Now()

	raw, err := p.actions.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load policy actions: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("no policy actions in database, import data first")
	}

	extractor := events.NewExtractor(p.cfg.MassRolloutThreshold, p.log)
	countryEvents := extractor.CountryEvents(raw)
	sectorEvents := extractor.SectorEvents(raw)
	if len(countryEvents) == 0 {
		return nil, fmt.Errorf("no country-level events extracted from %d actions", len(raw))
	}

	builder := panel.New(p.log)
	countryPanel := builder.Build(countryEvents, p.cfg.PanelStart, nil)
	sectorPanel := builder.Build(sectorEvents, p.cfg.PanelStart, nil)

	stats := panel.ComputeStats(countryPanel)
	p.log.Info().
		Int("actions", len(raw)).
		Int("country_events", len(countryEvents)).
		Int("sector_events", len(sectorEvents)).
		Int("country_cells", stats.Total).
		Int("country_positives", stats.Positives).
		Msg("Built panels")

	trade, err := p.series.GetTrade()
	if err != nil {
		return nil, fmt.Errorf("failed to load trade series: %w", err)
	}
	gscpi, err := p.series.GetGlobal(repositories.SeriesSupplyChainStress)
	if err != nil {
		return nil, fmt.Errorf("failed to load supply chain series: %w", err)
	}
	unrate, err := p.series.GetGlobal(repositories.SeriesUnemployment)
	if err != nil {
		return nil, fmt.Errorf("failed to load unemployment series: %w", err)
	}

	assembler := features.New(p.log)
	countryTable := assembler.CountryFeatures(features.CountryInputs{
		Panel:        countryPanel,
		Events:       countryEvents,
		Trade:        trade,
		SupplyChain:  gscpi,
		Unemployment: unrate,
	})

	trainer := model.NewTrainer(p.log)
	countryPkg, err := trainer.Train(countryTable)
	if err != nil {
		return nil, fmt.Errorf("failed to train country model: %w", err)
	}

	var sectorPkg *model.Package
	if len(sectorPanel) > 0 {
		sectorTable := assembler.SectorFeatures(features.SectorInputs{
			Panel:       sectorPanel,
			Events:      sectorEvents,
			SupplyChain: gscpi,
		})
		sectorPkg, err = trainer.Train(sectorTable)
		if err != nil {
			return nil, fmt.Errorf("failed to train sector model: %w", err)
		}
	} else {
		p.log.Warn().Msg("No sector events, skipping sector model")
	}

	bundle := &artifact.Bundle{
		CreatedAt:   time.Now().UTC(),
		Country:     countryPkg,
		Sector:      sectorPkg,
		Multipliers: model.ComputeCountryMultipliers(countryEvents),
	}

	if err := p.smokeTest(bundle, countryEvents, sectorEvents); err != nil {
		return nil, fmt.Errorf("failed smoke test, bundle not saved: %w", err)
	}

	if err := p.store.Save(bundle); err != nil {
		return nil, err
	}

	if p.backup != nil {
		if err := p.backup.Upload(ctx, filepath.Dir(p.store.BundlePath())); err != nil {
			// the local bundle is intact, so a failed backup only warns
			p.log.Warn().Err(err).Msg("Artifact backup failed")
		}
	}

	p.log.Info().
		Dur("elapsed", time.Since(started)).
		Str("country_mode", string(countryPkg.Mode)).
		Msg("Training cycle complete")
	return bundle, nil
}

// smokeTest scores the busiest entities with the fresh bundle before
// it is allowed to replace the previous one
func (p *Pipeline) smokeTest(bundle *artifact.Bundle, countryEvents, sectorEvents []domain.PolicyEvent) error {
	engine, err := inference.NewEngine(bundle, p.log)
	if err != nil {
		return err
	}

	country := busiestEntity(countryEvents)
	pred := engine.PredictCountry(country)
	if s := pred.Score(); s < 0 || s > 1 {
		return fmt.Errorf("country score %f out of range for %s", s, country)
	}

	if bundle.Sector != nil {
		sector := busiestEntity(sectorEvents)
		blended := engine.PredictBlended(country, sector)
		if blended.Probability < 0 || blended.Probability > 1 {
			return fmt.Errorf("blended probability %f out of range for %s/%s", blended.Probability, country, sector)
		}
		scaled, err := engine.PredictSectorScaled(country, sector)
		if err != nil {
			return err
		}
		p.log.Info().
			Str("country", country).
			Str("sector", sector).
			Float64("country_score", pred.Score()).
			Float64("blended_prob", blended.Probability).
			Float64("scaled_prob", scaled.Probability).
			Msg("Smoke test predictions")
		return nil
	}

	p.log.Info().
		Str("country", country).
		Float64("country_score", pred.Score()).
		Msg("Smoke test prediction")
	return nil
}

func busiestEntity(evs []domain.PolicyEvent) string {
	counts := make(map[string]int)
	best, bestN := "", -1
	for _, ev := range evs {
		counts[ev.Entity]++
		n := counts[ev.Entity]
		if n > bestN || (n == bestN && ev.Entity < best) {
			best, bestN = ev.Entity, n
		}
	}
	return best
}
