package domain

import (
	"fmt"
	"math"
	"time"
)

// Granularity identifies which of the two independent panels an entity
// belongs to. Country and sector panels are built and trained separately.
type Granularity string

const (
	GranularityCountry Granularity = "country"
	GranularitySector  Granularity = "sector"
)

// Mode describes what a trained artifact's output means
type Mode string

const (
	// ModeProbability: calibrated probability from a supervised model
	ModeProbability Mode = "probability"
	// ModeRiskScore: uncalibrated relative score from heuristic weights
	ModeRiskScore Mode = "risk_score"
)

// Month is a calendar month. It is comparable and usable as a map key.
type Month struct {
	Year int        `json:"year" msgpack:"year"`
	Mon  time.Month `json:"month" msgpack:"month"`
}

// MonthOf returns the month containing t
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Mon: t.Month()}
}

// Time returns the first day of the month at midnight UTC
func (m Month) Time() time.Time {
	return time.Date(m.Year, m.Mon, 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths returns the month n months later (n may be negative)
func (m Month) AddMonths(n int) Month {
	return MonthOf(m.Time().AddDate(0, n, 0))
}

// Index returns a monotone ordinal (year*12 + month) used for diffs
func (m Month) Index() int {
	return m.Year*12 + int(m.Mon)
}

// Before reports whether m is strictly earlier than o
func (m Month) Before(o Month) bool {
	return m.Index() < o.Index()
}

// After reports whether m is strictly later than o
func (m Month) After(o Month) bool {
	return m.Index() > o.Index()
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Mon))
}

// ParseMonth parses "YYYY-MM" or "YYYY-MM-DD"
func ParseMonth(s string) (Month, error) {
	for _, layout := range []string{"2006-01", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthOf(t), nil
		}
	}
	return Month{}, fmt.Errorf("invalid month %q (want YYYY-MM)", s)
}

// MonthsBetween returns b - a in whole calendar months
func MonthsBetween(a, b Month) int {
	return b.Index() - a.Index()
}

// MonthRange returns every month from start to end inclusive.
// Returns nil when end is before start.
func MonthRange(start, end Month) []Month {
	if end.Before(start) {
		return nil
	}
	months := make([]Month, 0, MonthsBetween(start, end)+1)
	for m := start; !m.After(end); m = m.AddMonths(1) {
		months = append(months, m)
	}
	return months
}

// RawAction is one row of the raw policy-action table, before extraction.
// AnnouncedDate is the unparsed date string; "TBD"-style sentinels and
// unparseable values are dropped during extraction, not here.
type RawAction struct {
	TargetType    string `json:"target_type"`
	Geography     string `json:"geography"`
	Target        string `json:"target"`
	Sector        string `json:"sector"` // optional pre-standardized sector label
	Authority     string `json:"authority"`
	AnnouncedDate string `json:"announced_date"`
}

// PolicyEvent is a deduplicated (entity, date) policy action.
// Immutable once extracted.
type PolicyEvent struct {
	Entity        string    `json:"entity" msgpack:"entity"`
	Date          time.Time `json:"date" msgpack:"date"`
	Authority     string    `json:"authority" msgpack:"authority"`
	IsMassRollout bool      `json:"is_mass_rollout" msgpack:"is_mass_rollout"`
}

// PanelCell is one (entity, month) training row.
// Label is 1 iff an event for the entity falls in the forward label window.
// SampleWeight is below 1 only when every qualifying event is a mass rollout.
type PanelCell struct {
	Entity       string  `json:"entity" msgpack:"entity"`
	MonthStart   Month   `json:"month_start" msgpack:"month_start"`
	Label        int     `json:"y" msgpack:"y"`
	SampleWeight float64 `json:"sample_weight" msgpack:"sample_weight"`
}

// FeatureRow is a PanelCell extended with named numeric covariates.
// Missing values are NaN, never absent keys: every column in the parent
// table's Columns list has an entry.
type FeatureRow struct {
	Entity       string             `json:"entity" msgpack:"entity"`
	MonthStart   Month              `json:"month_start" msgpack:"month_start"`
	Label        int                `json:"y" msgpack:"y"`
	SampleWeight float64            `json:"sample_weight" msgpack:"sample_weight"`
	Values       map[string]float64 `json:"values" msgpack:"values"`
}

// Value returns the named feature, NaN when the column is unknown
func (r FeatureRow) Value(col string) float64 {
	if v, ok := r.Values[col]; ok {
		return v
	}
	return math.NaN()
}

// FeatureTable is the assembled feature panel for one granularity.
// Columns fixes the numeric feature order used by models and scalers.
type FeatureTable struct {
	Granularity Granularity  `json:"granularity" msgpack:"granularity"`
	Columns     []string     `json:"columns" msgpack:"columns"`
	Rows        []FeatureRow `json:"rows" msgpack:"rows"`
}

// Months returns the distinct months present in the table, ascending
func (t *FeatureTable) Months() []Month {
	seen := make(map[Month]bool)
	for _, r := range t.Rows {
		seen[r.MonthStart] = true
	}
	months := make([]Month, 0, len(seen))
	for m := range seen {
		months = append(months, m)
	}
	sortMonths(months)
	return months
}

// Positives counts rows with Label == 1
func (t *FeatureTable) Positives() int {
	n := 0
	for _, r := range t.Rows {
		n += r.Label
	}
	return n
}

func sortMonths(months []Month) {
	for i := 1; i < len(months); i++ {
		for j := i; j > 0 && months[j].Before(months[j-1]); j-- {
			months[j], months[j-1] = months[j-1], months[j]
		}
	}
}

// GlobalPoint is one observation of a month-indexed global series
// (no entity dimension, joined onto panels purely by month).
type GlobalPoint struct {
	Month Month   `json:"month"`
	Value float64 `json:"value"`
}

// TradeObservation is one (entity, month) bilateral trade record.
// Values are in millions USD.
type TradeObservation struct {
	Entity  string  `json:"entity"`
	Month   Month   `json:"month"`
	Imports float64 `json:"imports"`
	Exports float64 `json:"exports"`
}

// Deficit returns imports minus exports (positive = bilateral deficit)
func (o TradeObservation) Deficit() float64 {
	return o.Imports - o.Exports
}
