package repositories

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/atlasrisk/tariffwatch/internal/domain"
)

// Well-known global series names
const (
	SeriesSupplyChainStress = "gscpi"
	SeriesUnemployment      = "unrate"
)

// SeriesRepository handles exogenous time-series storage.
// Months are stored as "YYYY-MM" strings.
type SeriesRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSeriesRepository creates a new series repository
func NewSeriesRepository(db *sql.DB, log zerolog.Logger) *SeriesRepository {
	return &SeriesRepository{
		db:  db,
		log: log.With().Str("repo", "series").Logger(),
	}
}

// GetTrade returns all bilateral trade observations, ordered by entity then month
func (r *SeriesRepository) GetTrade() ([]domain.TradeObservation, error) {
	rows, err := r.db.Query(`
		SELECT entity, month, imports, exports
		FROM trade_series
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade series: %w", err)
	}
	defer rows.Close()

	var obs []domain.TradeObservation
	for rows.Next() {
		var (
			o        domain.TradeObservation
			monthStr string
			imports  sql.NullFloat64
			exports  sql.NullFloat64
		)
		if err := rows.Scan(&o.Entity, &monthStr, &imports, &exports); err != nil {
			return nil, fmt.Errorf("failed to scan trade observation: %w", err)
		}
		month, err := domain.ParseMonth(monthStr)
		if err != nil {
			r.log.Debug().Str("month", monthStr).Msg("Skipping trade row with bad month")
			continue
		}
		o.Month = month
		o.Imports = imports.Float64
		o.Exports = exports.Float64
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trade series: %w", err)
	}

	sort.Slice(obs, func(i, j int) bool {
		if obs[i].Entity != obs[j].Entity {
			return obs[i].Entity < obs[j].Entity
		}
		return obs[i].Month.Before(obs[j].Month)
	})
	return obs, nil
}

// GetGlobal returns a named month-indexed series, ascending by month.
// An unknown name yields an empty series, not an error: missing optional
// inputs degrade to all-missing features downstream.
func (r *SeriesRepository) GetGlobal(name string) ([]domain.GlobalPoint, error) {
	rows, err := r.db.Query(`
		SELECT month, value
		FROM global_series
		WHERE series = ?
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query global series %s: %w", name, err)
	}
	defer rows.Close()

	var points []domain.GlobalPoint
	for rows.Next() {
		var (
			monthStr string
			value    float64
		)
		if err := rows.Scan(&monthStr, &value); err != nil {
			return nil, fmt.Errorf("failed to scan global point: %w", err)
		}
		month, err := domain.ParseMonth(monthStr)
		if err != nil {
			r.log.Debug().Str("series", name).Str("month", monthStr).Msg("Skipping point with bad month")
			continue
		}
		points = append(points, domain.GlobalPoint{Month: month, Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate global series %s: %w", name, err)
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Month.Before(points[j].Month)
	})
	return points, nil
}

// UpsertTrade writes a batch of trade observations
func (r *SeriesRepository) UpsertTrade(obs []domain.TradeObservation) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO trade_series (entity, month, imports, exports)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(entity, month) DO UPDATE SET imports = excluded.imports, exports = excluded.exports
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare trade upsert: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.Exec(o.Entity, o.Month.String(), o.Imports, o.Exports); err != nil {
			return fmt.Errorf("failed to upsert trade observation: %w", err)
		}
	}

	return tx.Commit()
}

// UpsertGlobal writes a batch of points for a named global series
func (r *SeriesRepository) UpsertGlobal(name string, points []domain.GlobalPoint) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO global_series (series, month, value)
		VALUES (?, ?, ?)
		ON CONFLICT(series, month) DO UPDATE SET value = excluded.value
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare global upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(name, p.Month.String(), p.Value); err != nil {
			return fmt.Errorf("failed to upsert global point: %w", err)
		}
	}

	return tx.Commit()
}
