package events

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/atlasrisk/tariffwatch/internal/domain"
)

// DefaultMassRolloutThreshold is the minimum number of distinct entities
// sharing one (event_date, authority) before the cluster is treated as a
// single sweeping announcement rather than independent per-entity evidence.
const DefaultMassRolloutThreshold = 10

// dateLayouts accepted for announced dates, tried in order
var dateLayouts = []string{
	"1/2/2006",
	"2006-01-02",
	"2-Jan-2006",
}

// Extractor turns raw policy actions into deduplicated policy events
type Extractor struct {
	threshold int
	log       zerolog.Logger
}

// NewExtractor creates an extractor; threshold <= 0 selects the default
func NewExtractor(threshold int, log zerolog.Logger) *Extractor {
	if threshold <= 0 {
		threshold = DefaultMassRolloutThreshold
	}
	return &Extractor{
		threshold: threshold,
		log:       log.With().Str("component", "extractor").Logger(),
	}
}

// ParseEventDate parses an announced-date string. "TBD"-style sentinel
// values and unparseable strings report ok=false; such rows are dropped
// by extraction, never treated as errors.
func ParseEventDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(strings.ToUpper(s), "TBD") {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// CountryEvents extracts economy-level events: actions whose sector is
// General or whose target type is Economy, keyed by canonical country.
func (e *Extractor) CountryEvents(actions []domain.RawAction) []domain.PolicyEvent {
	var raw []domain.PolicyEvent
	for _, a := range actions {
		if actionSector(a) != SectorGeneral && !strings.EqualFold(strings.TrimSpace(a.TargetType), "economy") {
			continue
		}
		date, ok := ParseEventDate(a.AnnouncedDate)
		if !ok {
			continue
		}
		country, known := NormalizeCountry(a.Geography)
		if country == "" {
			continue
		}
		if !known {
			e.log.Debug().Str("geography", a.Geography).Str("canonical", country).Msg("Country not in alias table")
		}
		raw = append(raw, domain.PolicyEvent{
			Entity:    country,
			Date:      date,
			Authority: authorityOrUnknown(a.Authority),
		})
	}
	return e.finalize(raw)
}

// SectorEvents extracts sector-specific events: actions with a non-General
// sector, keyed by canonical sector label.
func (e *Extractor) SectorEvents(actions []domain.RawAction) []domain.PolicyEvent {
	var raw []domain.PolicyEvent
	for _, a := range actions {
		sector := actionSector(a)
		if sector == SectorGeneral {
			continue
		}
		date, ok := ParseEventDate(a.AnnouncedDate)
		if !ok {
			continue
		}
		raw = append(raw, domain.PolicyEvent{
			Entity:    sector,
			Date:      date,
			Authority: authorityOrUnknown(a.Authority),
		})
	}
	return e.finalize(raw)
}

// finalize deduplicates on (entity, date) and flags mass rollouts
func (e *Extractor) finalize(raw []domain.PolicyEvent) []domain.PolicyEvent {
	seen := make(map[string]bool)
	events := make([]domain.PolicyEvent, 0, len(raw))
	for _, ev := range raw {
		key := ev.Entity + "|" + ev.Date.Format("2006-01-02")
		if seen[key] {
			continue
		}
		seen[key] = true
		events = append(events, ev)
	}

	e.markMassRollouts(events)

	sort.Slice(events, func(i, j int) bool {
		if events[i].Entity != events[j].Entity {
			return events[i].Entity < events[j].Entity
		}
		return events[i].Date.Before(events[j].Date)
	})

	if len(events) > 0 {
		mass := 0
		for _, ev := range events {
			if ev.IsMassRollout {
				mass++
			}
		}
		e.log.Info().
			Int("events", len(events)).
			Int("mass_rollout", mass).
			Int("threshold", e.threshold).
			Msg("Extracted policy events")
	}
	return events
}

// markMassRollouts sets IsMassRollout on every member of a
// (date, authority) cluster spanning at least threshold entities
func (e *Extractor) markMassRollouts(events []domain.PolicyEvent) {
	clusters := make(map[string]int)
	for _, ev := range events {
		clusters[clusterKey(ev)]++
	}
	for i := range events {
		if clusters[clusterKey(events[i])] >= e.threshold {
			events[i].IsMassRollout = true
		}
	}
}

func clusterKey(ev domain.PolicyEvent) string {
	return ev.Date.Format("2006-01-02") + "|" + ev.Authority
}

// actionSector resolves the sector label for an action: the
// pre-standardized code when present, otherwise derived from target text
func actionSector(a domain.RawAction) string {
	if strings.TrimSpace(a.Sector) != "" {
		return NormalizeSector(a.Sector)
	}
	return DeriveSector(a.Target)
}

func authorityOrUnknown(authority string) string {
	a := strings.TrimSpace(authority)
	if a == "" {
		return AuthorityUnknown
	}
	return a
}
