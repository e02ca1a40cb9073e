package features

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/atlasrisk/tariffwatch/internal/domain"
	"github.com/atlasrisk/tariffwatch/internal/modules/events"
	"github.com/atlasrisk/tariffwatch/pkg/formulas"
)

const (
	// TopNAuthorities limits per-authority history features to the most
	// frequent legal authorities in the event corpus. Rarer authorities
	// are not tracked individually and there is no "other" bucket.
	TopNAuthorities = 5

	// SinceCapMonths stands in for "months since last event" when an
	// entity has no prior history, so models see "a very long time ago"
	// instead of a missing value
	SinceCapMonths = 36.0

	rollingWindow = 3

	daysPerMonth = 30.44
)

// Trailing calendar windows for event-history counts
var (
	window3m  = 91 * 24 * time.Hour
	window6m  = 182 * 24 * time.Hour
	window12m = 365 * 24 * time.Hour
)

// CountryColumns is the static base schema of the country panel;
// authority columns are appended dynamically
var CountryColumns = []string{
	"trade_deficit",
	"trade_deficit_3m_mean",
	"trade_deficit_3m_std",
	"trade_deficit_3m_change",
	"imports",
	"exports",
	"gscpi",
	"gscpi_3m_mean",
	"unrate",
	"month_of_year",
	"months_since_start",
	"tariff_count_country_3m",
	"tariff_count_country_6m",
	"tariff_count_country_12m",
	"months_since_last_tariff_country",
}

// SectorColumns is the static base schema of the sector panel
var SectorColumns = []string{
	"gscpi",
	"gscpi_3m_mean",
	"month_of_year",
	"months_since_start",
	"tariff_count_sector_3m",
	"tariff_count_sector_6m",
	"tariff_count_sector_12m",
	"months_since_last_tariff_sector",
}

// CountryInputs bundles everything the country feature build consumes.
// Optional series may be empty; their features come out all-NaN.
type CountryInputs struct {
	Panel        []domain.PanelCell
	Events       []domain.PolicyEvent
	Trade        []domain.TradeObservation
	SupplyChain  []domain.GlobalPoint
	Unemployment []domain.GlobalPoint
}

// SectorInputs bundles everything the sector feature build consumes
type SectorInputs struct {
	Panel       []domain.PanelCell
	Events      []domain.PolicyEvent
	SupplyChain []domain.GlobalPoint
}

// Assembler joins exogenous series and event history onto panels.
// Every feature uses only information dated at or before the row's
// month_start; nothing later may leak in.
type Assembler struct {
	topN int
	log  zerolog.Logger
}

// New creates a feature assembler with the default authority limit
func New(log zerolog.Logger) *Assembler {
	return &Assembler{
		topN: TopNAuthorities,
		log:  log.With().Str("component", "features").Logger(),
	}
}

// CountryFeatures assembles the country feature table
func (a *Assembler) CountryFeatures(in CountryInputs) *domain.FeatureTable {
	table := newTable(domain.GranularityCountry, in.Panel)

	a.addEventHistory(table, in.Events, "country")
	authCols := a.addAuthorityHistory(table, in.Events)
	a.addTradeFeatures(table, in.Trade)
	a.addGlobalSeries(table, in.SupplyChain, "gscpi", true)
	a.addGlobalSeries(table, in.Unemployment, "unrate", false)
	a.addTimeFeatures(table)

	table.Columns = append(append([]string{}, CountryColumns...), authCols...)
	fillMissing(table)

	a.log.Info().
		Int("rows", len(table.Rows)).
		Int("columns", len(table.Columns)).
		Msg("Assembled country features")
	return table
}

// SectorFeatures assembles the sector feature table
func (a *Assembler) SectorFeatures(in SectorInputs) *domain.FeatureTable {
	table := newTable(domain.GranularitySector, in.Panel)

	a.addEventHistory(table, in.Events, "sector")
	authCols := a.addAuthorityHistory(table, in.Events)
	a.addGlobalSeries(table, in.SupplyChain, "gscpi", true)
	a.addTimeFeatures(table)

	table.Columns = append(append([]string{}, SectorColumns...), authCols...)
	fillMissing(table)

	a.log.Info().
		Int("rows", len(table.Rows)).
		Int("columns", len(table.Columns)).
		Msg("Assembled sector features")
	return table
}

// newTable copies panel cells into feature rows ordered by (entity, month)
func newTable(g domain.Granularity, panel []domain.PanelCell) *domain.FeatureTable {
	rows := make([]domain.FeatureRow, 0, len(panel))
	for _, c := range panel {
		rows = append(rows, domain.FeatureRow{
			Entity:       c.Entity,
			MonthStart:   c.MonthStart,
			Label:        c.Label,
			SampleWeight: c.SampleWeight,
			Values:       make(map[string]float64),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Entity != rows[j].Entity {
			return rows[i].Entity < rows[j].Entity
		}
		return rows[i].MonthStart.Before(rows[j].MonthStart)
	})
	return &domain.FeatureTable{Granularity: g, Rows: rows}
}

// addEventHistory computes trailing event counts and months-since-last.
// Counts use event_date <= month_start: an event exactly on month_start
// counts as already having happened.
func (a *Assembler) addEventHistory(table *domain.FeatureTable, evs []domain.PolicyEvent, prefix string) {
	cnt3 := "tariff_count_" + prefix + "_3m"
	cnt6 := "tariff_count_" + prefix + "_6m"
	cnt12 := "tariff_count_" + prefix + "_12m"
	since := "months_since_last_tariff_" + prefix

	datesByEntity := make(map[string][]time.Time)
	for _, ev := range evs {
		datesByEntity[ev.Entity] = append(datesByEntity[ev.Entity], ev.Date)
	}
	for _, dates := range datesByEntity {
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	}

	for i := range table.Rows {
		row := &table.Rows[i]
		t := row.MonthStart.Time()
		dates := datesByEntity[row.Entity]

		var c3, c6, c12 int
		var last time.Time
		hasPast := false
		for _, d := range dates {
			if d.After(t) {
				break
			}
			hasPast = true
			last = d
			if !d.Before(t.Add(-window3m)) {
				c3++
			}
			if !d.Before(t.Add(-window6m)) {
				c6++
			}
			if !d.Before(t.Add(-window12m)) {
				c12++
			}
		}

		row.Values[cnt3] = float64(c3)
		row.Values[cnt6] = float64(c6)
		row.Values[cnt12] = float64(c12)
		if hasPast {
			days := t.Sub(last).Hours() / 24.0
			row.Values[since] = math.Round(days/daysPerMonth*100) / 100
		} else {
			row.Values[since] = SinceCapMonths
		}
	}
}

// addAuthorityHistory adds 12-month event counts per primary authority,
// restricted to the topN most frequent authorities in the whole corpus.
// Returns the generated column names.
func (a *Assembler) addAuthorityHistory(table *domain.FeatureTable, evs []domain.PolicyEvent) []string {
	if len(evs) == 0 {
		return nil
	}

	freq := make(map[string]int)
	for _, ev := range evs {
		freq[events.PrimaryAuthority(ev.Authority)]++
	}
	labels := make([]string, 0, len(freq))
	for label := range freq {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if freq[labels[i]] != freq[labels[j]] {
			return freq[labels[i]] > freq[labels[j]]
		}
		return labels[i] < labels[j]
	})
	if len(labels) > a.topN {
		labels = labels[:a.topN]
	}

	cols := make([]string, len(labels))
	for i, label := range labels {
		cols[i] = "authority_count_12m_" + label
	}

	type entityEvent struct {
		date    time.Time
		primary string
	}
	byEntity := make(map[string][]entityEvent)
	for _, ev := range evs {
		byEntity[ev.Entity] = append(byEntity[ev.Entity], entityEvent{
			date:    ev.Date,
			primary: events.PrimaryAuthority(ev.Authority),
		})
	}

	for i := range table.Rows {
		row := &table.Rows[i]
		t := row.MonthStart.Time()
		cutoff := t.Add(-window12m)
		counts := make(map[string]int, len(labels))
		for _, ev := range byEntity[row.Entity] {
			if ev.date.After(t) || ev.date.Before(cutoff) {
				continue
			}
			counts[ev.primary]++
		}
		for j, label := range labels {
			row.Values[cols[j]] = float64(counts[label])
		}
	}

	return cols
}

// addTradeFeatures joins bilateral trade levels and their rolling stats.
// Rolling windows run over each entity's observed months in order, so
// early observations see a shrunken window instead of a gap.
func (a *Assembler) addTradeFeatures(table *domain.FeatureTable, trade []domain.TradeObservation) {
	if len(trade) == 0 {
		return
	}

	byEntity := make(map[string][]domain.TradeObservation)
	for _, o := range trade {
		byEntity[o.Entity] = append(byEntity[o.Entity], o)
	}

	type tradeRow struct {
		deficit, mean, std, change, imports, exports float64
	}
	lookup := make(map[string]map[domain.Month]tradeRow)

	for entity, obs := range byEntity {
		sort.Slice(obs, func(i, j int) bool { return obs[i].Month.Before(obs[j].Month) })

		deficits := make([]float64, len(obs))
		for i, o := range obs {
			deficits[i] = o.Deficit()
		}
		means := formulas.RollingMean(deficits, rollingWindow)
		stds := formulas.RollingStd(deficits, rollingWindow)
		changes := formulas.Diff(deficits, rollingWindow)

		byMonth := make(map[domain.Month]tradeRow, len(obs))
		for i, o := range obs {
			std := stds[i]
			if math.IsNaN(std) {
				std = 0 // warmup rows: no volatility observed yet
			}
			byMonth[o.Month] = tradeRow{
				deficit: deficits[i],
				mean:    means[i],
				std:     std,
				change:  changes[i],
				imports: o.Imports,
				exports: o.Exports,
			}
		}
		lookup[entity] = byMonth
	}

	for i := range table.Rows {
		row := &table.Rows[i]
		tr, ok := lookup[row.Entity][row.MonthStart]
		if !ok {
			continue
		}
		row.Values["trade_deficit"] = tr.deficit
		row.Values["trade_deficit_3m_mean"] = tr.mean
		row.Values["trade_deficit_3m_std"] = tr.std
		row.Values["trade_deficit_3m_change"] = tr.change
		row.Values["imports"] = tr.imports
		row.Values["exports"] = tr.exports
	}
}

// addGlobalSeries joins a month-indexed global series by month alone.
// withRollingMean additionally emits a <name>_3m_mean column computed
// over the series' own observed months.
func (a *Assembler) addGlobalSeries(table *domain.FeatureTable, points []domain.GlobalPoint, name string, withRollingMean bool) {
	if len(points) == 0 {
		return
	}

	sorted := append([]domain.GlobalPoint{}, points...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Month.Before(sorted[j].Month) })

	values := make([]float64, len(sorted))
	for i, p := range sorted {
		values[i] = p.Value
	}
	var means []float64
	if withRollingMean {
		means = formulas.RollingMean(values, rollingWindow)
	}

	level := make(map[domain.Month]float64, len(sorted))
	rolled := make(map[domain.Month]float64, len(sorted))
	for i, p := range sorted {
		level[p.Month] = values[i]
		if withRollingMean {
			rolled[p.Month] = means[i]
		}
	}

	for i := range table.Rows {
		row := &table.Rows[i]
		if v, ok := level[row.MonthStart]; ok {
			row.Values[name] = v
		}
		if withRollingMean {
			if v, ok := rolled[row.MonthStart]; ok {
				row.Values[name+"_3m_mean"] = v
			}
		}
	}
}

// addTimeFeatures adds calendar position features
func (a *Assembler) addTimeFeatures(table *domain.FeatureTable) {
	if len(table.Rows) == 0 {
		return
	}
	minMonth := table.Rows[0].MonthStart
	for _, row := range table.Rows {
		if row.MonthStart.Before(minMonth) {
			minMonth = row.MonthStart
		}
	}
	for i := range table.Rows {
		row := &table.Rows[i]
		row.Values["month_of_year"] = float64(int(row.MonthStart.Mon))
		row.Values["months_since_start"] = float64(domain.MonthsBetween(minMonth, row.MonthStart))
	}
}

// fillMissing guarantees the fixed schema: every column exists on every
// row, NaN where no underlying data was available
func fillMissing(table *domain.FeatureTable) {
	for i := range table.Rows {
		row := &table.Rows[i]
		for _, col := range table.Columns {
			if _, ok := row.Values[col]; !ok {
				row.Values[col] = math.NaN()
			}
		}
	}
}
