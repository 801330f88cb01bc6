package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/myrc-project/myrc/internal/app/domain/audit"
)

// --- AuditStore ---------------------------------------------------------------

const auditColumns = `id, occurred_at, user_id, username, action, entity_type, entity_id, rc_id, rc_name, fiscal_year, detail, outcome, error_message, completed_at`

func scanAuditEvent(row interface{ Scan(dest ...interface{}) error }) (audit.Event, error) {
	var (
		ev        audit.Event
		completed sql.NullTime
	)
	if err := row.Scan(&ev.ID, &ev.OccurredAt, &ev.UserID, &ev.Username, &ev.Action, &ev.EntityType, &ev.EntityID, &ev.RCID, &ev.RCName, &ev.FiscalYear, &ev.Detail, &ev.Outcome, &ev.Error, &completed); err != nil {
		return audit.Event{}, err
	}
	ev.CompletedAt = fromNullTime(completed)
	return ev, nil
}

func (s *Store) CreateAuditEvent(ctx context.Context, ev audit.Event) (audit.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if ev.Outcome == "" {
		ev.Outcome = audit.OutcomePending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, occurred_at, user_id, username, action, entity_type, entity_id, rc_id, rc_name, fiscal_year, detail, outcome, error_message, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, ev.ID, ev.OccurredAt, ev.UserID, ev.Username, ev.Action, ev.EntityType, ev.EntityID, ev.RCID, ev.RCName, ev.FiscalYear, ev.Detail, string(ev.Outcome), ev.Error, toNullTime(ev.CompletedAt))
	if err != nil {
		return audit.Event{}, err
	}
	return ev, nil
}

func (s *Store) CompleteAuditEvent(ctx context.Context, id string, outcome audit.Outcome, errMsg string, completedAt time.Time) (audit.Event, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE audit_events
		SET outcome = $2, error_message = $3, completed_at = $4
		WHERE id = $1
	`, id, string(outcome), errMsg, completedAt.UTC())
	if err != nil {
		return audit.Event{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return audit.Event{}, sql.ErrNoRows
	}
	return s.GetAuditEvent(ctx, id)
}

func (s *Store) GetAuditEvent(ctx context.Context, id string) (audit.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+auditColumns+`
		FROM audit_events
		WHERE id = $1
	`, id)
	return scanAuditEvent(row)
}

func (s *Store) ListAuditEvents(ctx context.Context, rcID string, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+auditColumns+`
		FROM audit_events
		WHERE ($1 = '' OR rc_id = $1)
		ORDER BY occurred_at DESC
		LIMIT $2
	`, rcID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAuditEvents(rows)
}

func (s *Store) ListStalePending(ctx context.Context, olderThan time.Time) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+auditColumns+`
		FROM audit_events
		WHERE outcome = $1 AND occurred_at < $2
		ORDER BY occurred_at
	`, string(audit.OutcomePending), olderThan.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAuditEvents(rows)
}

func (s *Store) PurgeAuditEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM audit_events
		WHERE outcome <> $1 AND occurred_at < $2
	`, string(audit.OutcomePending), olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func collectAuditEvents(rows *sql.Rows) ([]audit.Event, error) {
	var result []audit.Event
	for rows.Next() {
		ev, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}
