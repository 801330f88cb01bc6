package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/myrc-project/myrc/internal/app/domain/fiscal"
)

// --- FiscalYearStore ----------------------------------------------------------

const fiscalYearColumns = `id, rc_id, name, start_date, end_date, active, version, created_at, updated_at`

func scanFiscalYear(row interface{ Scan(dest ...interface{}) error }) (fiscal.Year, error) {
	var (
		fy         fiscal.Year
		start, end sql.NullTime
	)
	if err := row.Scan(&fy.ID, &fy.RCID, &fy.Name, &start, &end, &fy.Active, &fy.Version, &fy.CreatedAt, &fy.UpdatedAt); err != nil {
		return fiscal.Year{}, err
	}
	fy.StartDate = fromNullTime(start)
	fy.EndDate = fromNullTime(end)
	return fy, nil
}

func (s *Store) CreateFiscalYear(ctx context.Context, fy fiscal.Year) (fiscal.Year, error) {
	if fy.ID == "" {
		fy.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	fy.CreatedAt = now
	fy.UpdatedAt = now
	fy.Active = true
	fy.Version = 1

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fiscal_years (id, rc_id, name, start_date, end_date, active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, fy.ID, fy.RCID, fy.Name, toNullTime(fy.StartDate), toNullTime(fy.EndDate), fy.Active, fy.Version, fy.CreatedAt, fy.UpdatedAt)
	if err != nil {
		return fiscal.Year{}, err
	}
	return fy, nil
}

func (s *Store) UpdateFiscalYear(ctx context.Context, fy fiscal.Year) (fiscal.Year, error) {
	fy.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE fiscal_years
		SET name = $2, start_date = $3, end_date = $4, active = $5, version = version + 1, updated_at = $6
		WHERE id = $1 AND version = $7
	`, fy.ID, fy.Name, toNullTime(fy.StartDate), toNullTime(fy.EndDate), fy.Active, fy.UpdatedAt, fy.Version)
	if err != nil {
		return fiscal.Year{}, err
	}
	if err := s.checkUpdated(ctx, result, "fiscal_years", fy.ID); err != nil {
		return fiscal.Year{}, err
	}
	return s.GetFiscalYear(ctx, fy.ID)
}

func (s *Store) GetFiscalYear(ctx context.Context, id string) (fiscal.Year, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+fiscalYearColumns+`
		FROM fiscal_years
		WHERE id = $1
	`, id)
	return scanFiscalYear(row)
}

func (s *Store) ListFiscalYears(ctx context.Context, rcID string, includeInactive bool) ([]fiscal.Year, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fiscalYearColumns+`
		FROM fiscal_years
		WHERE rc_id = $1 AND (active OR $2)
		ORDER BY name
	`, rcID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []fiscal.Year
	for rows.Next() {
		fy, err := scanFiscalYear(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, fy)
	}
	return result, rows.Err()
}
