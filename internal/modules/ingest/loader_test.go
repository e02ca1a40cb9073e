package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasrisk/tariffwatch/internal/database"
	"github.com/atlasrisk/tariffwatch/internal/database/repositories"
	"github.com/atlasrisk/tariffwatch/internal/domain"
)

func newTestLoader(t *testing.T) (*Loader, *repositories.ActionRepository, *repositories.SeriesRepository) {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	actions := repositories.NewActionRepository(db.Conn(), zerolog.Nop())
	series := repositories.NewSeriesRepository(db.Conn(), zerolog.Nop())
	return NewLoader(actions, series, zerolog.Nop()), actions, series
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportActions(t *testing.T) {
	loader, actions, _ := newTestLoader(t)

	csv := "Target type,Geography,Target,Sector,Legal authority,Announced date\n" +
		"Economy,China,All imports,,IEEPA,2/1/2025\n" +
		"Sector,Global,Steel,Steel,Section 232,2/10/2025\n"
	path := writeFile(t, "actions.csv", csv)

	n, err := loader.ImportActions(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stored, err := actions.GetAll()
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "China", stored[0].Geography)
	assert.Equal(t, "IEEPA", stored[0].Authority)
	assert.Equal(t, "2/1/2025", stored[0].AnnouncedDate)

	// a second import replaces, never appends
	_, err = loader.ImportActions(path)
	require.NoError(t, err)
	stored, err = actions.GetAll()
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestImportActionsMissingColumns(t *testing.T) {
	loader, _, _ := newTestLoader(t)
	path := writeFile(t, "bad.csv", "a,b,c\n1,2,3\n")

	_, err := loader.ImportActions(path)
	require.Error(t, err)
}

func TestImportTrade(t *testing.T) {
	loader, _, series := newTestLoader(t)

	csv := "CTYNAME,year,IJAN,EJAN,IFEB,EFEB\n" +
		"China,2025,40,10,50,,\n" +
		"Mexico,bad-year,1,2,3,4\n"
	path := writeFile(t, "trade.csv", csv)

	n, err := loader.ImportTrade(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n) // Mexico row dropped, China Feb kept on imports alone

	obs, err := series.GetTrade()
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, "CHINA", obs[0].Entity)
	assert.Equal(t, domain.Month{Year: 2025, Mon: time.January}, obs[0].Month)
	assert.Equal(t, 30.0, obs[0].Deficit())
}

func TestImportSupplyChain(t *testing.T) {
	loader, _, series := newTestLoader(t)

	csv := "GSCPI Monthly Data,\n" + // preamble rows skipped
		"Date,GSCPI\n" +
		"31-Jan-2025,0.52\n" +
		"28-Feb-2025,-0.13\n"
	path := writeFile(t, "gscpi.csv", csv)

	n, err := loader.ImportSupplyChain(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	points, err := series.GetGlobal(repositories.SeriesSupplyChainStress)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, domain.Month{Year: 2025, Mon: time.January}, points[0].Month)
	assert.Equal(t, 0.52, points[0].Value)
}

func TestImportUnemployment(t *testing.T) {
	loader, _, series := newTestLoader(t)

	csv := "observation_date,UNRATE\n2025-03-01,4.1\n2025-04-01,4.2\nnot-a-date,9\n"
	path := writeFile(t, "unrate.csv", csv)

	n, err := loader.ImportUnemployment(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	points, err := series.GetGlobal(repositories.SeriesUnemployment)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 4.1, points[0].Value)
}
