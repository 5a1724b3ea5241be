package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"smarthome_collector/internal/models"
)

// AutomationStateSQLite persists the pending-shutdown timer of each automation.
type AutomationStateSQLite struct {
	db *sql.DB
}

func NewAutomationStateSQLite(db *sql.DB) *AutomationStateSQLite {
	return &AutomationStateSQLite{db: db}
}

var _ AutomationStateRepo = (*AutomationStateSQLite)(nil)

const (
	upsertAutomationStateSQL = `
		INSERT INTO automation_state (name, threshold_crossed_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			threshold_crossed_at=excluded.threshold_crossed_at,
			updated_at=excluded.updated_at
	`

	selectAutomationStateSQL = `
		SELECT name, threshold_crossed_at, updated_at
		FROM automation_state WHERE name=?
	`
)

// Save upserts the row for s.Name.
func (r *AutomationStateSQLite) Save(ctx context.Context, s models.AutomationState) error {
	updated := s.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	var crossed any
	if s.ThresholdCrossedAt != nil {
		crossed = s.ThresholdCrossedAt.UTC()
	}

	if _, err := r.db.ExecContext(ctx, upsertAutomationStateSQL, s.Name, crossed, updated.UTC()); err != nil {
		return fmt.Errorf("save automation state %q: %w", s.Name, err)
	}
	return nil
}

// Load returns the stored state of name. An automation never saved yields a state
// with no timer.
func (r *AutomationStateSQLite) Load(ctx context.Context, name string) (models.AutomationState, error) {
	var (
		s       models.AutomationState
		crossed sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, selectAutomationStateSQL, name).Scan(&s.Name, &crossed, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.AutomationState{Name: name}, nil
		}
		return models.AutomationState{}, fmt.Errorf("load automation state %q: %w", name, err)
	}
	if crossed.Valid {
		t := crossed.Time.UTC()
		s.ThresholdCrossedAt = &t
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}
