package model

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/atlasrisk/tariffwatch/internal/domain"
	"github.com/atlasrisk/tariffwatch/pkg/formulas"
)

// Country multiplier bounds and mixing weight
const (
	MultiplierWindowDays = 365
	MinMultiplier        = 0.5
	MaxMultiplier        = 2.0
	severityMix          = 0.7
)

// severityWeights grades legal authorities by how aggressively they
// have historically translated into broad tariff action
var severityWeights = map[string]float64{
	"IEEPA":       1.0,
	"SECTION_301": 0.8,
	"SECTION_232": 0.6,
	"OTHER":       0.4,
	"UNKNOWN":     0.4,
}

var authoritySeparators = regexp.MustCompile(`[-\s]+`)

func severityOf(authority string) float64 {
	key := strings.TrimSpace(strings.ToUpper(authority))
	if key == "" {
		key = "UNKNOWN"
	}
	key = authoritySeparators.ReplaceAllString(key, "_")
	if w, ok := severityWeights[key]; ok {
		return w
	}
	return severityWeights["OTHER"]
}

// ComputeCountryMultipliers derives a relative activity multiplier per
// country from the trailing year of policy events, anchored at the
// latest event date rather than the clock. Raw scores combine event
// counts with authority severity, are normalized by the cross-country
// median, and clipped to [MinMultiplier, MaxMultiplier].
func ComputeCountryMultipliers(evs []domain.PolicyEvent) map[string]float64 {
	if len(evs) == 0 {
		return map[string]float64{}
	}

	asOf := evs[0].Date
	for _, ev := range evs {
		if ev.Date.After(asOf) {
			asOf = ev.Date
		}
	}
	start := asOf.Add(-MultiplierWindowDays * 24 * time.Hour)

	type tally struct {
		count    int
		severity float64
	}
	byCountry := make(map[string]*tally)
	for _, ev := range evs {
		if ev.Date.Before(start) {
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(ev.Entity))
		t := byCountry[key]
		if t == nil {
			t = &tally{}
			byCountry[key] = t
		}
		t.count++
		t.severity += severityOf(ev.Authority)
	}

	countries := make([]string, 0, len(byCountry))
	raws := make([]float64, 0, len(byCountry))
	for c, t := range byCountry {
		countries = append(countries, c)
		raws = append(raws, math.Log1p(float64(t.count))+severityMix*math.Log1p(t.severity))
	}
	sort.Strings(countries)

	med := formulas.Median(raws)
	if math.IsNaN(med) || med <= 1e-9 {
		med = 1.0
	}

	out := make(map[string]float64, len(countries))
	for _, c := range countries {
		t := byCountry[c]
		raw := math.Log1p(float64(t.count)) + severityMix*math.Log1p(t.severity)
		m := raw / med
		m = math.Min(math.Max(m, MinMultiplier), MaxMultiplier)
		out[c] = math.Round(m*10000) / 10000
	}
	return out
}
