package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/myrc-project/myrc/internal/app/domain/budget"
	"github.com/myrc-project/myrc/internal/app/domain/procurement"
)

// --- ProcurementStore: items ----------------------------------------------------

const procurementColumns = `id, fiscal_year_id, category_id, name, description, fund, estimated_cost, status, active, version, created_at, updated_at`

func scanProcurementItem(row interface{ Scan(dest ...interface{}) error }) (procurement.Item, error) {
	var (
		item     procurement.Item
		category sql.NullString
	)
	if err := row.Scan(&item.ID, &item.FiscalYearID, &category, &item.Name, &item.Description, &item.Fund, &item.EstimatedCost, &item.Status, &item.Active, &item.Version, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return procurement.Item{}, err
	}
	item.CategoryID = category.String
	return item, nil
}

func (s *Store) CreateProcurementItem(ctx context.Context, item procurement.Item) (procurement.Item, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Active = true
	item.Version = 1

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO procurement_items (id, fiscal_year_id, category_id, name, description, fund, estimated_cost, status, active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, item.ID, item.FiscalYearID, toNullString(item.CategoryID), item.Name, item.Description, string(item.Fund), item.EstimatedCost, string(item.Status), item.Active, item.Version, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return procurement.Item{}, err
	}
	return item, nil
}

func (s *Store) UpdateProcurementItem(ctx context.Context, item procurement.Item) (procurement.Item, error) {
	item.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE procurement_items
		SET category_id = $2, name = $3, description = $4, fund = $5, estimated_cost = $6, status = $7, active = $8, version = version + 1, updated_at = $9
		WHERE id = $1 AND version = $10
	`, item.ID, toNullString(item.CategoryID), item.Name, item.Description, string(item.Fund), item.EstimatedCost, string(item.Status), item.Active, item.UpdatedAt, item.Version)
	if err != nil {
		return procurement.Item{}, err
	}
	if err := s.checkUpdated(ctx, result, "procurement_items", item.ID); err != nil {
		return procurement.Item{}, err
	}
	return s.GetProcurementItem(ctx, item.ID)
}

func (s *Store) GetProcurementItem(ctx context.Context, id string) (procurement.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+procurementColumns+`
		FROM procurement_items
		WHERE id = $1
	`, id)
	return scanProcurementItem(row)
}

func (s *Store) ListProcurementItems(ctx context.Context, fiscalYearID string, includeInactive bool) ([]procurement.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+procurementColumns+`
		FROM procurement_items
		WHERE fiscal_year_id = $1 AND (active OR $2)
		ORDER BY created_at
	`, fiscalYearID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []procurement.Item
	for rows.Next() {
		item, err := scanProcurementItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// --- ProcurementStore: quotes -----------------------------------------------------

const quoteColumns = `q.id, q.procurement_item_id, q.vendor, q.amount, q.currency, q.exchange_rate, q.amount_cad, q.selected, q.notes,
		EXISTS(SELECT 1 FROM quote_files f WHERE f.quote_id = q.id) AS has_file,
		q.active, q.version, q.created_at, q.updated_at`

func scanQuote(row interface{ Scan(dest ...interface{}) error }) (procurement.Quote, error) {
	var q procurement.Quote
	if err := row.Scan(&q.ID, &q.ProcurementItemID, &q.Vendor, &q.Amount, &q.Currency, &q.ExchangeRate, &q.AmountCAD, &q.Selected, &q.Notes, &q.HasFile, &q.Active, &q.Version, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return procurement.Quote{}, err
	}
	return q, nil
}

func (s *Store) CreateQuote(ctx context.Context, q procurement.Quote) (procurement.Quote, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	q.CreatedAt = now
	q.UpdatedAt = now
	q.Active = true
	q.Version = 1
	q.HasFile = false

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO procurement_quotes (id, procurement_item_id, vendor, amount, currency, exchange_rate, amount_cad, selected, notes, active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, q.ID, q.ProcurementItemID, q.Vendor, q.Amount, q.Currency, q.ExchangeRate, q.AmountCAD, q.Selected, q.Notes, q.Active, q.Version, q.CreatedAt, q.UpdatedAt)
	if err != nil {
		return procurement.Quote{}, err
	}
	return q, nil
}

func (s *Store) UpdateQuote(ctx context.Context, q procurement.Quote) (procurement.Quote, error) {
	q.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE procurement_quotes
		SET vendor = $2, amount = $3, currency = $4, exchange_rate = $5, amount_cad = $6, selected = $7, notes = $8, active = $9, version = version + 1, updated_at = $10
		WHERE id = $1 AND version = $11
	`, q.ID, q.Vendor, q.Amount, q.Currency, q.ExchangeRate, q.AmountCAD, q.Selected, q.Notes, q.Active, q.UpdatedAt, q.Version)
	if err != nil {
		return procurement.Quote{}, err
	}
	if err := s.checkUpdated(ctx, result, "procurement_quotes", q.ID); err != nil {
		return procurement.Quote{}, err
	}
	return s.GetQuote(ctx, q.ID)
}

func (s *Store) GetQuote(ctx context.Context, id string) (procurement.Quote, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+quoteColumns+`
		FROM procurement_quotes q
		WHERE q.id = $1
	`, id)
	return scanQuote(row)
}

func (s *Store) ListQuotes(ctx context.Context, procurementItemID string, includeInactive bool) ([]procurement.Quote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+quoteColumns+`
		FROM procurement_quotes q
		WHERE q.procurement_item_id = $1 AND (q.active OR $2)
		ORDER BY q.created_at
	`, procurementItemID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []procurement.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, q)
	}
	return result, rows.Err()
}

func (s *Store) ClearSelectedQuotes(ctx context.Context, procurementItemID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE procurement_quotes
		SET selected = FALSE, version = version + 1, updated_at = $2
		WHERE procurement_item_id = $1 AND selected
	`, procurementItemID, time.Now().UTC())
	return err
}

// --- ProcurementStore: quote files --------------------------------------------------

func (s *Store) PutQuoteFile(ctx context.Context, att budget.Attachment) error {
	att.UploadedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quote_files (quote_id, filename, content_type, size_bytes, data, uploaded_by, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (quote_id) DO UPDATE
		SET filename = EXCLUDED.filename,
		    content_type = EXCLUDED.content_type,
		    size_bytes = EXCLUDED.size_bytes,
		    data = EXCLUDED.data,
		    uploaded_by = EXCLUDED.uploaded_by,
		    uploaded_at = EXCLUDED.uploaded_at
	`, att.OwnerID, att.Filename, att.ContentType, att.SizeBytes, att.Data, att.UploadedBy, att.UploadedAt)
	return err
}

func (s *Store) GetQuoteFile(ctx context.Context, quoteID string) (budget.Attachment, error) {
	var att budget.Attachment
	err := s.db.QueryRowContext(ctx, `
		SELECT quote_id, filename, content_type, size_bytes, data, uploaded_by, uploaded_at
		FROM quote_files
		WHERE quote_id = $1
	`, quoteID).Scan(&att.OwnerID, &att.Filename, &att.ContentType, &att.SizeBytes, &att.Data, &att.UploadedBy, &att.UploadedAt)
	if err != nil {
		return budget.Attachment{}, err
	}
	return att, nil
}

func (s *Store) DeleteQuoteFile(ctx context.Context, quoteID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM quote_files
		WHERE quote_id = $1
	`, quoteID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- ProcurementStore: events --------------------------------------------------------

const eventColumns = `id, procurement_item_id, occurred_at, event_type, description, created_by, created_at`

func scanEvent(row interface{ Scan(dest ...interface{}) error }) (procurement.Event, error) {
	var ev procurement.Event
	if err := row.Scan(&ev.ID, &ev.ProcurementItemID, &ev.OccurredAt, &ev.EventType, &ev.Description, &ev.CreatedBy, &ev.CreatedAt); err != nil {
		return procurement.Event{}, err
	}
	return ev, nil
}

func (s *Store) CreateEvent(ctx context.Context, ev procurement.Event) (procurement.Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.CreatedAt = time.Now().UTC()
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = ev.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO procurement_events (id, procurement_item_id, occurred_at, event_type, description, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ev.ID, ev.ProcurementItemID, ev.OccurredAt, string(ev.EventType), ev.Description, ev.CreatedBy, ev.CreatedAt)
	if err != nil {
		return procurement.Event{}, err
	}
	return ev, nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (procurement.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM procurement_events
		WHERE id = $1
	`, id)
	return scanEvent(row)
}

func (s *Store) ListEvents(ctx context.Context, procurementItemID string) ([]procurement.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM procurement_events
		WHERE procurement_item_id = $1
		ORDER BY occurred_at DESC, created_at DESC
	`, procurementItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []procurement.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM procurement_events
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
