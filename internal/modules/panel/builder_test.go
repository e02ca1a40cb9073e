package panel

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasrisk/tariffwatch/internal/domain"
)

func month(y int, m time.Month) domain.Month {
	return domain.Month{Year: y, Mon: m}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestLabelWindow(t *testing.T) {
	// Single event for ALPHA on 2025-03-15, panel Jan..Jun 2025.
	// With a 3-month horizon, Jan/Feb/Mar are positive, Apr..Jun negative.
	b := New(zerolog.Nop())
	events := []domain.PolicyEvent{
		{Entity: "ALPHA", Date: day(2025, time.March, 15), Authority: "IEEPA"},
	}
	end := month(2025, time.June)
	cells := b.Build(events, month(2025, time.January), &end)
	require.Len(t, cells, 6)

	wantLabels := map[domain.Month]int{
		month(2025, time.January):  1,
		month(2025, time.February): 1,
		month(2025, time.March):    1,
		month(2025, time.April):    0,
		month(2025, time.May):      0,
		month(2025, time.June):     0,
	}
	for _, c := range cells {
		assert.Equal(t, wantLabels[c.MonthStart], c.Label, "month %s", c.MonthStart)
		assert.Equal(t, 1.0, c.SampleWeight)
	}
}

func TestEventOnWindowBoundary(t *testing.T) {
	// An event exactly on month_start+3 months is outside the window
	b := New(zerolog.Nop())
	events := []domain.PolicyEvent{
		{Entity: "ALPHA", Date: day(2025, time.April, 1)},
	}
	end := month(2025, time.January)
	cells := b.Build(events, month(2025, time.January), &end)
	require.Len(t, cells, 1)
	assert.Equal(t, 0, cells[0].Label, "event on 2025-04-01 is outside [Jan 1, Apr 1)")
}

func TestMassRolloutDownweight(t *testing.T) {
	b := New(zerolog.Nop())
	end := month(2025, time.April)

	events := []domain.PolicyEvent{
		// ALPHA's only event in any window is a mass rollout
		{Entity: "ALPHA", Date: day(2025, time.April, 2), IsMassRollout: true},
		// BETA has the same mass event plus a standalone one
		{Entity: "BETA", Date: day(2025, time.April, 2), IsMassRollout: true},
		{Entity: "BETA", Date: day(2025, time.April, 9)},
	}

	cells := b.Build(events, month(2025, time.February), &end)
	require.Len(t, cells, 6)

	for _, c := range cells {
		if c.Label == 0 {
			assert.Equal(t, 1.0, c.SampleWeight, "%s %s: negatives are never downweighted", c.Entity, c.MonthStart)
			continue
		}
		switch c.Entity {
		case "ALPHA":
			assert.Equal(t, MassRolloutWeight, c.SampleWeight, "%s: mass-only positive", c.MonthStart)
		case "BETA":
			assert.Equal(t, 1.0, c.SampleWeight, "%s: standalone event rescues full weight", c.MonthStart)
		}
	}
}

func TestEndDefaultsToLatestEventMonth(t *testing.T) {
	b := New(zerolog.Nop())
	events := []domain.PolicyEvent{
		{Entity: "ALPHA", Date: day(2025, time.February, 10)},
		{Entity: "BETA", Date: day(2025, time.May, 20)},
	}

	cells := b.Build(events, month(2025, time.January), nil)

	var lastMonth domain.Month
	for _, c := range cells {
		if c.MonthStart.After(lastMonth) {
			lastMonth = c.MonthStart
		}
	}
	assert.Equal(t, month(2025, time.May), lastMonth, "panel must stop at the latest event month, not now")
}

func TestBuildIsIdempotent(t *testing.T) {
	b := New(zerolog.Nop())
	events := []domain.PolicyEvent{
		{Entity: "GAMMA", Date: day(2025, time.March, 3)},
		{Entity: "ALPHA", Date: day(2025, time.January, 15), IsMassRollout: true},
		{Entity: "BETA", Date: day(2025, time.April, 30)},
	}

	first := b.Build(events, month(2025, time.January), nil)
	second := b.Build(events, month(2025, time.January), nil)
	assert.Equal(t, first, second)
}

func TestEmptyEventsYieldEmptyPanel(t *testing.T) {
	b := New(zerolog.Nop())
	assert.Nil(t, b.Build(nil, month(2025, time.January), nil))
}

func TestComputeStats(t *testing.T) {
	cells := []domain.PanelCell{
		{Entity: "A", MonthStart: month(2025, time.January), Label: 1, SampleWeight: 1.0},
		{Entity: "A", MonthStart: month(2025, time.February), Label: 1, SampleWeight: MassRolloutWeight},
		{Entity: "B", MonthStart: month(2025, time.January), Label: 0, SampleWeight: 1.0},
		{Entity: "B", MonthStart: month(2025, time.February), Label: 0, SampleWeight: 1.0},
	}

	s := ComputeStats(cells)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Positives)
	assert.Equal(t, 2, s.Negatives)
	assert.Equal(t, 0.5, s.PositiveRate)
	assert.Equal(t, 1, s.Downweighted)
	assert.Equal(t, 2, s.Entities)
	assert.Equal(t, 2, s.Months)
}
