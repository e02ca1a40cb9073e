package repositories

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/atlasrisk/tariffwatch/internal/domain"
)

// ActionRepository handles raw policy-action storage.
// Rows are stored as ingested; date parsing and entity normalization
// happen downstream during event extraction.
type ActionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewActionRepository creates a new action repository
func NewActionRepository(db *sql.DB, log zerolog.Logger) *ActionRepository {
	return &ActionRepository{
		db:  db,
		log: log.With().Str("repo", "actions").Logger(),
	}
}

// GetAll returns every raw policy action
func (r *ActionRepository) GetAll() ([]domain.RawAction, error) {
	rows, err := r.db.Query(`
		SELECT target_type, geography, target, sector, authority, announced_date
		FROM policy_actions
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query policy actions: %w", err)
	}
	defer rows.Close()

	var actions []domain.RawAction
	for rows.Next() {
		var a domain.RawAction
		if err := rows.Scan(&a.TargetType, &a.Geography, &a.Target, &a.Sector, &a.Authority, &a.AnnouncedDate); err != nil {
			return nil, fmt.Errorf("failed to scan policy action: %w", err)
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate policy actions: %w", err)
	}

	return actions, nil
}

// ReplaceAll swaps the stored action table for a fresh ingest batch
func (r *ActionRepository) ReplaceAll(actions []domain.RawAction) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM policy_actions`); err != nil {
		return fmt.Errorf("failed to clear policy actions: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO policy_actions (target_type, geography, target, sector, authority, announced_date)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range actions {
		if _, err := stmt.Exec(a.TargetType, a.Geography, a.Target, a.Sector, a.Authority, a.AnnouncedDate); err != nil {
			return fmt.Errorf("failed to insert policy action: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit policy actions: %w", err)
	}

	r.log.Info().Int("count", len(actions)).Msg("Replaced policy actions")
	return nil
}
