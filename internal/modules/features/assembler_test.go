package features

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasrisk/tariffwatch/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func month(y int, m time.Month) domain.Month {
	return domain.Month{Year: y, Mon: m}
}

func cells(entity string, months ...domain.Month) []domain.PanelCell {
	out := make([]domain.PanelCell, 0, len(months))
	for _, m := range months {
		out = append(out, domain.PanelCell{Entity: entity, MonthStart: m, SampleWeight: 1})
	}
	return out
}

func testAssembler() *Assembler {
	return New(zerolog.Nop())
}

func rowFor(t *testing.T, table *domain.FeatureTable, entity string, m domain.Month) domain.FeatureRow {
	t.Helper()
	for _, r := range table.Rows {
		if r.Entity == entity && r.MonthStart == m {
			return r
		}
	}
	t.Fatalf("no row for %s %s", entity, m)
	return domain.FeatureRow{}
}

func TestEventHistoryCounts(t *testing.T) {
	evs := []domain.PolicyEvent{
		{Entity: "CHINA", Date: day(2025, time.February, 10)},
		{Entity: "CHINA", Date: day(2025, time.April, 1)},  // exactly on month_start
		{Entity: "CHINA", Date: day(2025, time.April, 15)}, // after month_start
		{Entity: "CHINA", Date: day(2024, time.June, 1)},   // ~10 months back
	}
	table := testAssembler().CountryFeatures(CountryInputs{
		Panel:  cells("CHINA", month(2025, time.April)),
		Events: evs,
	})

	row := rowFor(t, table, "CHINA", month(2025, time.April))
	// Apr 1 event lands on month_start and counts; Apr 15 does not
	assert.Equal(t, 2.0, row.Value("tariff_count_country_3m"))
	assert.Equal(t, 2.0, row.Value("tariff_count_country_6m"))
	assert.Equal(t, 3.0, row.Value("tariff_count_country_12m"))
	assert.Equal(t, 0.0, row.Value("months_since_last_tariff_country"))
}

func TestEventHistoryNoFutureLeakage(t *testing.T) {
	base := []domain.PolicyEvent{
		{Entity: "CHINA", Date: day(2025, time.January, 5)},
	}
	withFuture := append([]domain.PolicyEvent{}, base...)
	withFuture = append(withFuture, domain.PolicyEvent{Entity: "CHINA", Date: day(2025, time.December, 1)})

	panel := cells("CHINA", month(2025, time.March))
	a := testAssembler()
	before := rowFor(t, a.CountryFeatures(CountryInputs{Panel: panel, Events: base}), "CHINA", month(2025, time.March))
	after := rowFor(t, a.CountryFeatures(CountryInputs{Panel: panel, Events: withFuture}), "CHINA", month(2025, time.March))

	for _, col := range []string{
		"tariff_count_country_3m",
		"tariff_count_country_6m",
		"tariff_count_country_12m",
		"months_since_last_tariff_country",
	} {
		assert.Equal(t, before.Value(col), after.Value(col), col)
	}
}

func TestMonthsSinceLast(t *testing.T) {
	// 45 days before March 1: January 15
	evs := []domain.PolicyEvent{
		{Entity: "CHINA", Date: day(2025, time.January, 15)},
	}
	table := testAssembler().CountryFeatures(CountryInputs{
		Panel:  cells("CHINA", month(2025, time.March)),
		Events: evs,
	})
	row := rowFor(t, table, "CHINA", month(2025, time.March))
	assert.InDelta(t, 45.0/30.44, row.Value("months_since_last_tariff_country"), 0.005)

	// No history at all falls back to the cap
	empty := testAssembler().CountryFeatures(CountryInputs{
		Panel: cells("MEXICO", month(2025, time.March)),
	})
	row = rowFor(t, empty, "MEXICO", month(2025, time.March))
	assert.Equal(t, SinceCapMonths, row.Value("months_since_last_tariff_country"))
}

func TestAuthorityColumnsTopN(t *testing.T) {
	var evs []domain.PolicyEvent
	add := func(auth string, n int) {
		for i := 0; i < n; i++ {
			evs = append(evs, domain.PolicyEvent{
				Entity:    "CHINA",
				Date:      day(2025, time.January, 2),
				Authority: auth,
			})
		}
	}
	add("IEEPA", 6)
	add("Section 301", 5)
	add("Section 232", 4)
	add("Section 201", 3)
	add("USMCA review", 2)
	add("Trade Act of 1974", 1) // sixth most frequent, must be dropped

	table := testAssembler().CountryFeatures(CountryInputs{
		Panel:  cells("CHINA", month(2025, time.February)),
		Events: evs,
	})

	authCols := 0
	for _, col := range table.Columns {
		if len(col) > len("authority_count_12m_") && col[:len("authority_count_12m_")] == "authority_count_12m_" {
			authCols++
		}
	}
	assert.Equal(t, TopNAuthorities, authCols)
	assert.Contains(t, table.Columns, "authority_count_12m_IEEPA")
	assert.NotContains(t, table.Columns, "authority_count_12m_Trade_Act_of_1974")

	row := rowFor(t, table, "CHINA", month(2025, time.February))
	assert.Equal(t, 6.0, row.Value("authority_count_12m_IEEPA"))
	assert.Equal(t, 5.0, row.Value("authority_count_12m_Section_301"))
}

func TestTradeFeatures(t *testing.T) {
	trade := []domain.TradeObservation{
		{Entity: "CHINA", Month: month(2025, time.January), Imports: 40, Exports: 10},
		{Entity: "CHINA", Month: month(2025, time.February), Imports: 50, Exports: 10},
		{Entity: "CHINA", Month: month(2025, time.March), Imports: 60, Exports: 10},
		{Entity: "CHINA", Month: month(2025, time.April), Imports: 70, Exports: 10},
	}
	table := testAssembler().CountryFeatures(CountryInputs{
		Panel: cells("CHINA", month(2025, time.January), month(2025, time.April), month(2025, time.May)),
		Trade: trade,
	})

	// Deficits: 30, 40, 50, 60
	jan := rowFor(t, table, "CHINA", month(2025, time.January))
	assert.Equal(t, 30.0, jan.Value("trade_deficit"))
	assert.Equal(t, 30.0, jan.Value("trade_deficit_3m_mean")) // shrunken window
	assert.Equal(t, 0.0, jan.Value("trade_deficit_3m_std"))   // warmup fills with zero
	assert.True(t, math.IsNaN(jan.Value("trade_deficit_3m_change")))

	apr := rowFor(t, table, "CHINA", month(2025, time.April))
	assert.Equal(t, 60.0, apr.Value("trade_deficit"))
	assert.Equal(t, 50.0, apr.Value("trade_deficit_3m_mean"))
	assert.Equal(t, 30.0, apr.Value("trade_deficit_3m_change"))
	assert.Equal(t, 70.0, apr.Value("imports"))
	assert.Equal(t, 10.0, apr.Value("exports"))

	// No trade observation for May: columns stay NaN
	may := rowFor(t, table, "CHINA", month(2025, time.May))
	assert.True(t, math.IsNaN(may.Value("trade_deficit")))
	assert.True(t, math.IsNaN(may.Value("imports")))
}

func TestGlobalSeriesJoin(t *testing.T) {
	gscpi := []domain.GlobalPoint{
		{Month: month(2025, time.January), Value: 1.0},
		{Month: month(2025, time.February), Value: 2.0},
		{Month: month(2025, time.March), Value: 3.0},
	}
	unrate := []domain.GlobalPoint{
		{Month: month(2025, time.March), Value: 4.1},
	}
	table := testAssembler().CountryFeatures(CountryInputs{
		Panel:        cells("CHINA", month(2025, time.March), month(2025, time.April)),
		SupplyChain:  gscpi,
		Unemployment: unrate,
	})

	mar := rowFor(t, table, "CHINA", month(2025, time.March))
	assert.Equal(t, 3.0, mar.Value("gscpi"))
	assert.Equal(t, 2.0, mar.Value("gscpi_3m_mean"))
	assert.Equal(t, 4.1, mar.Value("unrate"))

	apr := rowFor(t, table, "CHINA", month(2025, time.April))
	assert.True(t, math.IsNaN(apr.Value("gscpi")))
	assert.True(t, math.IsNaN(apr.Value("unrate")))
}

func TestTimeFeatures(t *testing.T) {
	table := testAssembler().CountryFeatures(CountryInputs{
		Panel: append(
			cells("CHINA", month(2024, time.November), month(2025, time.February)),
			cells("MEXICO", month(2025, time.February))...),
	})

	nov := rowFor(t, table, "CHINA", month(2024, time.November))
	assert.Equal(t, 11.0, nov.Value("month_of_year"))
	assert.Equal(t, 0.0, nov.Value("months_since_start"))

	feb := rowFor(t, table, "MEXICO", month(2025, time.February))
	assert.Equal(t, 2.0, feb.Value("month_of_year"))
	assert.Equal(t, 3.0, feb.Value("months_since_start"))
}

func TestFixedSchema(t *testing.T) {
	table := testAssembler().CountryFeatures(CountryInputs{
		Panel: cells("CHINA", month(2025, time.March)),
	})
	require.Len(t, table.Columns, len(CountryColumns))

	row := rowFor(t, table, "CHINA", month(2025, time.March))
	for _, col := range table.Columns {
		_, ok := row.Values[col]
		assert.True(t, ok, "column %s missing", col)
	}
	assert.True(t, math.IsNaN(row.Value("trade_deficit")))
}

func TestSectorFeatures(t *testing.T) {
	evs := []domain.PolicyEvent{
		{Entity: "Steel & Aluminum", Date: day(2025, time.February, 10), Authority: "Section 232"},
	}
	table := testAssembler().SectorFeatures(SectorInputs{
		Panel:  cells("Steel & Aluminum", month(2025, time.March)),
		Events: evs,
		SupplyChain: []domain.GlobalPoint{
			{Month: month(2025, time.March), Value: 1.5},
		},
	})

	row := rowFor(t, table, "Steel & Aluminum", month(2025, time.March))
	assert.Equal(t, 1.0, row.Value("tariff_count_sector_3m"))
	assert.Equal(t, 1.5, row.Value("gscpi"))
	assert.NotContains(t, row.Values, "trade_deficit")
	assert.Contains(t, table.Columns, "authority_count_12m_Section_232")
}
