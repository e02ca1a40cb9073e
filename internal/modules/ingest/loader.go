// Package ingest imports the raw CSV sources into the local database.
// Each importer is tolerant of the quirks of its upstream file: odd
// headers, TBD dates, blank numeric cells.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/atlasrisk/tariffwatch/internal/database/repositories"
	"github.com/atlasrisk/tariffwatch/internal/domain"
)

var monthAbbrev = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// Loader imports CSV sources through the repositories
type Loader struct {
	actions *repositories.ActionRepository
	series  *repositories.SeriesRepository
	log     zerolog.Logger
}

// NewLoader creates a loader
func NewLoader(actions *repositories.ActionRepository, series *repositories.SeriesRepository, log zerolog.Logger) *Loader {
	return &Loader{
		actions: actions,
		series:  series,
		log:     log.With().Str("component", "ingest").Logger(),
	}
}

// ImportActions replaces the stored policy actions with the contents
// of a tariff tracker export. Columns are matched by header name, so
// column order and extra columns do not matter.
func (l *Loader) ImportActions(path string) (int, error) {
	rows, header, err := readCSV(path, true)
	if err != nil {
		return 0, fmt.Errorf("failed to import actions: %w", err)
	}

	col := headerIndex(header)
	targetType := col("target_type", "target type")
	geography := col("geography")
	target := col("target")
	sector := col("sector")
	authority := col("legal_authority", "legal authority", "authority")
	announced := col("announced_date", "announced date", "date announced")
	if geography < 0 || announced < 0 {
		return 0, fmt.Errorf("failed to import actions: %s has no geography/announced date columns", path)
	}

	actions := make([]domain.RawAction, 0, len(rows))
	for _, row := range rows {
		actions = append(actions, domain.RawAction{
			TargetType:    field(row, targetType),
			Geography:     field(row, geography),
			Target:        field(row, target),
			Sector:        field(row, sector),
			Authority:     field(row, authority),
			AnnouncedDate: field(row, announced),
		})
	}

	if err := l.actions.ReplaceAll(actions); err != nil {
		return 0, fmt.Errorf("failed to import actions: %w", err)
	}
	l.log.Info().Int("actions", len(actions)).Str("path", path).Msg("Imported policy actions")
	return len(actions), nil
}

// ImportTrade reads the wide bilateral trade file: one row per
// (country, year) with IJAN..IDEC import and EJAN..EDEC export
// columns, in millions USD
func (l *Loader) ImportTrade(path string) (int, error) {
	rows, header, err := readCSV(path, true)
	if err != nil {
		return 0, fmt.Errorf("failed to import trade: %w", err)
	}

	col := headerIndex(header)
	country := col("ctyname", "country")
	year := col("year")
	if country < 0 || year < 0 {
		return 0, fmt.Errorf("failed to import trade: %s has no country/year columns", path)
	}

	type monthCols struct {
		mon      time.Month
		imp, exp int
	}
	var cols []monthCols
	for i, h := range header {
		name := strings.ToUpper(strings.TrimSpace(h))
		if len(name) != 4 || name[0] != 'I' {
			continue
		}
		mon, ok := monthAbbrev[name[1:]]
		if !ok {
			continue
		}
		exp := -1
		for j, h2 := range header {
			if strings.ToUpper(strings.TrimSpace(h2)) == "E"+name[1:] {
				exp = j
				break
			}
		}
		cols = append(cols, monthCols{mon: mon, imp: i, exp: exp})
	}

	var observations []domain.TradeObservation
	for _, row := range rows {
		yr, err := strconv.Atoi(strings.TrimSpace(field(row, year)))
		if err != nil {
			continue
		}
		entity := strings.ToUpper(strings.TrimSpace(field(row, country)))
		for _, mc := range cols {
			imp, impOK := parseFloat(field(row, mc.imp))
			exp, expOK := parseFloat(field(row, mc.exp))
			if !impOK && !expOK {
				continue
			}
			observations = append(observations, domain.TradeObservation{
				Entity:  entity,
				Month:   domain.Month{Year: yr, Mon: mc.mon},
				Imports: imp,
				Exports: exp,
			})
		}
	}

	if err := l.series.UpsertTrade(observations); err != nil {
		return 0, fmt.Errorf("failed to import trade: %w", err)
	}
	l.log.Info().Int("observations", len(observations)).Str("path", path).Msg("Imported bilateral trade")
	return len(observations), nil
}

// ImportSupplyChain reads the headerless supply chain pressure file:
// date in "31-Jan-1998" format in the first column, index value in the
// second. Preamble rows that do not parse as dates are skipped.
func (l *Loader) ImportSupplyChain(path string) (int, error) {
	rows, _, err := readCSV(path, false)
	if err != nil {
		return 0, fmt.Errorf("failed to import supply chain index: %w", err)
	}

	var points []domain.GlobalPoint
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		date, err := time.Parse("2-Jan-2006", strings.TrimSpace(row[0]))
		if err != nil {
			continue
		}
		value, ok := parseFloat(row[1])
		if !ok {
			continue
		}
		points = append(points, domain.GlobalPoint{Month: domain.MonthOf(date), Value: value})
	}

	if err := l.series.UpsertGlobal(repositories.SeriesSupplyChainStress, points); err != nil {
		return 0, fmt.Errorf("failed to import supply chain index: %w", err)
	}
	l.log.Info().Int("points", len(points)).Str("path", path).Msg("Imported supply chain index")
	return len(points), nil
}

// ImportUnemployment reads the FRED unemployment export with
// observation_date and UNRATE columns
func (l *Loader) ImportUnemployment(path string) (int, error) {
	rows, header, err := readCSV(path, true)
	if err != nil {
		return 0, fmt.Errorf("failed to import unemployment: %w", err)
	}

	col := headerIndex(header)
	date := col("observation_date", "date")
	rate := col("unrate")
	if date < 0 || rate < 0 {
		return 0, fmt.Errorf("failed to import unemployment: %s has no observation_date/UNRATE columns", path)
	}

	var points []domain.GlobalPoint
	for _, row := range rows {
		d, err := time.Parse("2006-01-02", strings.TrimSpace(field(row, date)))
		if err != nil {
			continue
		}
		value, ok := parseFloat(field(row, rate))
		if !ok {
			continue
		}
		points = append(points, domain.GlobalPoint{Month: domain.MonthOf(d), Value: value})
	}

	if err := l.series.UpsertGlobal(repositories.SeriesUnemployment, points); err != nil {
		return 0, fmt.Errorf("failed to import unemployment: %w", err)
	}
	l.log.Info().Int("points", len(points)).Str("path", path).Msg("Imported unemployment rate")
	return len(points), nil
}

// readCSV reads all records, optionally splitting off the header row.
// Ragged rows are tolerated.
func readCSV(path string, hasHeader bool) ([][]string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var header []string
	var rows [][]string
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if first && hasHeader {
			header = record
			first = false
			continue
		}
		first = false
		rows = append(rows, record)
	}
	return rows, header, nil
}

// headerIndex matches header names case-insensitively, treating
// underscores and spaces as equivalent
func headerIndex(header []string) func(names ...string) int {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = normalizeHeader(h)
	}
	return func(names ...string) int {
		for _, name := range names {
			want := normalizeHeader(name)
			for i, h := range normalized {
				if h == want {
					return i
				}
			}
		}
		return -1
	}
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.ReplaceAll(h, "_", " ")
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
