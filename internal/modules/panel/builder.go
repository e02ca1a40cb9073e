package panel

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/atlasrisk/tariffwatch/internal/domain"
)

const (
	// HorizonMonths is the forward label window: a cell is positive when
	// an event lands in [month_start, month_start + HorizonMonths).
	// Fixed rather than configurable so country and sector panels always
	// share label semantics.
	HorizonMonths = 3

	// MassRolloutWeight is applied to positives whose only supporting
	// events are mass rollouts
	MassRolloutWeight = 0.05
)

// Builder constructs monthly labeled training panels from policy events
type Builder struct {
	log zerolog.Logger
}

// New creates a panel builder
func New(log zerolog.Logger) *Builder {
	return &Builder{
		log: log.With().Str("component", "panel").Logger(),
	}
}

// Build cross-joins every observed entity with the monthly calendar from
// start to end inclusive and assigns labels and sample weights.
//
// end == nil defaults to the month of the latest observed event, not the
// current wall-clock month, which would manufacture labeled future months
// with no underlying activity.
//
// Entities absent from the events table never appear: the cross product
// only covers observed entities. Scoring unseen entities is a cold-start
// concern handled at inference time.
func (b *Builder) Build(events []domain.PolicyEvent, start domain.Month, end *domain.Month) []domain.PanelCell {
	if len(events) == 0 {
		return nil
	}

	panelEnd := resolveEnd(events, start, end)
	months := domain.MonthRange(start, panelEnd)
	if len(months) == 0 {
		return nil
	}

	byEntity := make(map[string][]domain.PolicyEvent)
	for _, ev := range events {
		byEntity[ev.Entity] = append(byEntity[ev.Entity], ev)
	}
	entities := make([]string, 0, len(byEntity))
	for entity := range byEntity {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	cells := make([]domain.PanelCell, 0, len(entities)*len(months))
	positives := 0
	downweighted := 0

	for _, entity := range entities {
		entityEvents := byEntity[entity]
		for _, month := range months {
			windowStart := month.Time()
			windowEnd := month.AddMonths(HorizonMonths).Time()

			anyStandalone := false
			anyMass := false
			for _, ev := range entityEvents {
				if ev.Date.Before(windowStart) || !ev.Date.Before(windowEnd) {
					continue
				}
				if ev.IsMassRollout {
					anyMass = true
				} else {
					anyStandalone = true
				}
			}

			cell := domain.PanelCell{
				Entity:       entity,
				MonthStart:   month,
				SampleWeight: 1.0,
			}
			if anyStandalone || anyMass {
				cell.Label = 1
				positives++
				if anyMass && !anyStandalone {
					cell.SampleWeight = MassRolloutWeight
					downweighted++
				}
			}
			cells = append(cells, cell)
		}
	}

	b.log.Info().
		Int("rows", len(cells)).
		Int("entities", len(entities)).
		Int("months", len(months)).
		Int("positives", positives).
		Int("downweighted", downweighted).
		Msg("Built panel")

	return cells
}

// resolveEnd chooses the last panel month
func resolveEnd(events []domain.PolicyEvent, start domain.Month, end *domain.Month) domain.Month {
	if end != nil {
		return *end
	}
	latest := start
	for _, ev := range events {
		if m := domain.MonthOf(ev.Date); m.After(latest) {
			latest = m
		}
	}
	return latest
}

// Stats summarizes a built panel for logging and the metrics document
type Stats struct {
	Total        int     `json:"n_total"`
	Positives    int     `json:"n_positive"`
	Negatives    int     `json:"n_negative"`
	PositiveRate float64 `json:"positive_rate"`
	Downweighted int     `json:"mass_rollout_downweighted"`
	Entities     int     `json:"unique_entities"`
	Months       int     `json:"months"`
}

// ComputeStats derives panel summary statistics
func ComputeStats(cells []domain.PanelCell) Stats {
	s := Stats{Total: len(cells)}
	entities := make(map[string]bool)
	months := make(map[domain.Month]bool)
	for _, c := range cells {
		entities[c.Entity] = true
		months[c.MonthStart] = true
		if c.Label == 1 {
			s.Positives++
			if c.SampleWeight < 1.0 {
				s.Downweighted++
			}
		}
	}
	s.Negatives = s.Total - s.Positives
	if s.Total > 0 {
		s.PositiveRate = float64(s.Positives) / float64(s.Total)
	}
	s.Entities = len(entities)
	s.Months = len(months)
	return s
}
