package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/myrc-project/myrc/internal/app/domain/budget"
)

// --- BudgetStore: monies -------------------------------------------------------

const moneyColumns = `id, fiscal_year_id, name, cap_amount, om_amount, notes, active, version, created_at, updated_at`

func scanMoney(row interface{ Scan(dest ...interface{}) error }) (budget.Money, error) {
	var m budget.Money
	if err := row.Scan(&m.ID, &m.FiscalYearID, &m.Name, &m.CapAmount, &m.OMAmount, &m.Notes, &m.Active, &m.Version, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return budget.Money{}, err
	}
	return m, nil
}

func (s *Store) CreateMoney(ctx context.Context, m budget.Money) (budget.Money, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	m.Active = true
	m.Version = 1

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monies (id, fiscal_year_id, name, cap_amount, om_amount, notes, active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, m.ID, m.FiscalYearID, m.Name, m.CapAmount, m.OMAmount, m.Notes, m.Active, m.Version, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return budget.Money{}, err
	}
	return m, nil
}

func (s *Store) UpdateMoney(ctx context.Context, m budget.Money) (budget.Money, error) {
	m.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE monies
		SET name = $2, cap_amount = $3, om_amount = $4, notes = $5, active = $6, version = version + 1, updated_at = $7
		WHERE id = $1 AND version = $8
	`, m.ID, m.Name, m.CapAmount, m.OMAmount, m.Notes, m.Active, m.UpdatedAt, m.Version)
	if err != nil {
		return budget.Money{}, err
	}
	if err := s.checkUpdated(ctx, result, "monies", m.ID); err != nil {
		return budget.Money{}, err
	}
	return s.GetMoney(ctx, m.ID)
}

func (s *Store) GetMoney(ctx context.Context, id string) (budget.Money, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+moneyColumns+`
		FROM monies
		WHERE id = $1
	`, id)
	return scanMoney(row)
}

func (s *Store) ListMonies(ctx context.Context, fiscalYearID string, includeInactive bool) ([]budget.Money, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+moneyColumns+`
		FROM monies
		WHERE fiscal_year_id = $1 AND (active OR $2)
		ORDER BY name
	`, fiscalYearID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []budget.Money
	for rows.Next() {
		m, err := scanMoney(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// --- BudgetStore: categories ----------------------------------------------------

const categoryColumns = `id, fiscal_year_id, name, active, version, created_at, updated_at`

func scanCategory(row interface{ Scan(dest ...interface{}) error }) (budget.Category, error) {
	var c budget.Category
	if err := row.Scan(&c.ID, &c.FiscalYearID, &c.Name, &c.Active, &c.Version, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return budget.Category{}, err
	}
	return c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c budget.Category) (budget.Category, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Active = true
	c.Version = 1

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, fiscal_year_id, name, active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.FiscalYearID, c.Name, c.Active, c.Version, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return budget.Category{}, err
	}
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c budget.Category) (budget.Category, error) {
	c.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE categories
		SET name = $2, active = $3, version = version + 1, updated_at = $4
		WHERE id = $1 AND version = $5
	`, c.ID, c.Name, c.Active, c.UpdatedAt, c.Version)
	if err != nil {
		return budget.Category{}, err
	}
	if err := s.checkUpdated(ctx, result, "categories", c.ID); err != nil {
		return budget.Category{}, err
	}
	return s.GetCategory(ctx, c.ID)
}

func (s *Store) GetCategory(ctx context.Context, id string) (budget.Category, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE id = $1
	`, id)
	return scanCategory(row)
}

func (s *Store) ListCategories(ctx context.Context, fiscalYearID string, includeInactive bool) ([]budget.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE fiscal_year_id = $1 AND (active OR $2)
		ORDER BY name
	`, fiscalYearID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []budget.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// --- BudgetStore: funding items --------------------------------------------------

const fundingColumns = `id, fiscal_year_id, category_id, name, source, cap_amount, om_amount, notes, active, version, created_at, updated_at`

func scanFundingItem(row interface{ Scan(dest ...interface{}) error }) (budget.FundingItem, error) {
	var (
		item     budget.FundingItem
		category sql.NullString
	)
	if err := row.Scan(&item.ID, &item.FiscalYearID, &category, &item.Name, &item.Source, &item.CapAmount, &item.OMAmount, &item.Notes, &item.Active, &item.Version, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return budget.FundingItem{}, err
	}
	item.CategoryID = category.String
	return item, nil
}

func (s *Store) CreateFundingItem(ctx context.Context, item budget.FundingItem) (budget.FundingItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Active = true
	item.Version = 1

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO funding_items (id, fiscal_year_id, category_id, name, source, cap_amount, om_amount, notes, active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, item.ID, item.FiscalYearID, toNullString(item.CategoryID), item.Name, item.Source, item.CapAmount, item.OMAmount, item.Notes, item.Active, item.Version, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return budget.FundingItem{}, err
	}
	return item, nil
}

func (s *Store) UpdateFundingItem(ctx context.Context, item budget.FundingItem) (budget.FundingItem, error) {
	item.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE funding_items
		SET category_id = $2, name = $3, source = $4, cap_amount = $5, om_amount = $6, notes = $7, active = $8, version = version + 1, updated_at = $9
		WHERE id = $1 AND version = $10
	`, item.ID, toNullString(item.CategoryID), item.Name, item.Source, item.CapAmount, item.OMAmount, item.Notes, item.Active, item.UpdatedAt, item.Version)
	if err != nil {
		return budget.FundingItem{}, err
	}
	if err := s.checkUpdated(ctx, result, "funding_items", item.ID); err != nil {
		return budget.FundingItem{}, err
	}
	return s.GetFundingItem(ctx, item.ID)
}

func (s *Store) GetFundingItem(ctx context.Context, id string) (budget.FundingItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+fundingColumns+`
		FROM funding_items
		WHERE id = $1
	`, id)
	return scanFundingItem(row)
}

func (s *Store) ListFundingItems(ctx context.Context, fiscalYearID string, includeInactive bool) ([]budget.FundingItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fundingColumns+`
		FROM funding_items
		WHERE fiscal_year_id = $1 AND (active OR $2)
		ORDER BY created_at
	`, fiscalYearID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []budget.FundingItem
	for rows.Next() {
		item, err := scanFundingItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// --- BudgetStore: spending items -------------------------------------------------

const spendingColumns = `s.id, s.fiscal_year_id, s.category_id, s.name, s.fund, s.amount, s.currency, s.exchange_rate, s.amount_cad, s.commitment_number, s.notes,
		EXISTS(SELECT 1 FROM spending_invoices i WHERE i.spending_item_id = s.id) AS has_invoice,
		s.active, s.version, s.created_at, s.updated_at`

func scanSpendingItem(row interface{ Scan(dest ...interface{}) error }) (budget.SpendingItem, error) {
	var (
		item     budget.SpendingItem
		category sql.NullString
	)
	if err := row.Scan(&item.ID, &item.FiscalYearID, &category, &item.Name, &item.Fund, &item.Amount, &item.Currency, &item.ExchangeRate, &item.AmountCAD, &item.CommitmentNumber, &item.Notes, &item.HasInvoice, &item.Active, &item.Version, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return budget.SpendingItem{}, err
	}
	item.CategoryID = category.String
	return item, nil
}

func (s *Store) CreateSpendingItem(ctx context.Context, item budget.SpendingItem) (budget.SpendingItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Active = true
	item.Version = 1
	item.HasInvoice = false

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spending_items (id, fiscal_year_id, category_id, name, fund, amount, currency, exchange_rate, amount_cad, commitment_number, notes, active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, item.ID, item.FiscalYearID, toNullString(item.CategoryID), item.Name, string(item.Fund), item.Amount, item.Currency, item.ExchangeRate, item.AmountCAD, item.CommitmentNumber, item.Notes, item.Active, item.Version, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return budget.SpendingItem{}, err
	}
	return item, nil
}

func (s *Store) UpdateSpendingItem(ctx context.Context, item budget.SpendingItem) (budget.SpendingItem, error) {
	item.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE spending_items
		SET category_id = $2, name = $3, fund = $4, amount = $5, currency = $6, exchange_rate = $7, amount_cad = $8, commitment_number = $9, notes = $10, active = $11, version = version + 1, updated_at = $12
		WHERE id = $1 AND version = $13
	`, item.ID, toNullString(item.CategoryID), item.Name, string(item.Fund), item.Amount, item.Currency, item.ExchangeRate, item.AmountCAD, item.CommitmentNumber, item.Notes, item.Active, item.UpdatedAt, item.Version)
	if err != nil {
		return budget.SpendingItem{}, err
	}
	if err := s.checkUpdated(ctx, result, "spending_items", item.ID); err != nil {
		return budget.SpendingItem{}, err
	}
	return s.GetSpendingItem(ctx, item.ID)
}

func (s *Store) GetSpendingItem(ctx context.Context, id string) (budget.SpendingItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+spendingColumns+`
		FROM spending_items s
		WHERE s.id = $1
	`, id)
	return scanSpendingItem(row)
}

func (s *Store) ListSpendingItems(ctx context.Context, fiscalYearID string, includeInactive bool) ([]budget.SpendingItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+spendingColumns+`
		FROM spending_items s
		WHERE s.fiscal_year_id = $1 AND (s.active OR $2)
		ORDER BY s.created_at
	`, fiscalYearID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []budget.SpendingItem
	for rows.Next() {
		item, err := scanSpendingItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// --- BudgetStore: invoices --------------------------------------------------------

func (s *Store) PutInvoice(ctx context.Context, att budget.Attachment) error {
	att.UploadedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spending_invoices (spending_item_id, filename, content_type, size_bytes, data, uploaded_by, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (spending_item_id) DO UPDATE
		SET filename = EXCLUDED.filename,
		    content_type = EXCLUDED.content_type,
		    size_bytes = EXCLUDED.size_bytes,
		    data = EXCLUDED.data,
		    uploaded_by = EXCLUDED.uploaded_by,
		    uploaded_at = EXCLUDED.uploaded_at
	`, att.OwnerID, att.Filename, att.ContentType, att.SizeBytes, att.Data, att.UploadedBy, att.UploadedAt)
	return err
}

func (s *Store) GetInvoice(ctx context.Context, spendingItemID string) (budget.Attachment, error) {
	var att budget.Attachment
	err := s.db.QueryRowContext(ctx, `
		SELECT spending_item_id, filename, content_type, size_bytes, data, uploaded_by, uploaded_at
		FROM spending_invoices
		WHERE spending_item_id = $1
	`, spendingItemID).Scan(&att.OwnerID, &att.Filename, &att.ContentType, &att.SizeBytes, &att.Data, &att.UploadedBy, &att.UploadedAt)
	if err != nil {
		return budget.Attachment{}, err
	}
	return att, nil
}

func (s *Store) DeleteInvoice(ctx context.Context, spendingItemID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM spending_invoices
		WHERE spending_item_id = $1
	`, spendingItemID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- BudgetStore: training items ---------------------------------------------------

const trainingColumns = `id, fiscal_year_id, category_id, course_name, provider, member, start_date, end_date, cost, currency, exchange_rate, cost_cad, notes, active, version, created_at, updated_at`

func scanTrainingItem(row interface{ Scan(dest ...interface{}) error }) (budget.TrainingItem, error) {
	var (
		item       budget.TrainingItem
		category   sql.NullString
		start, end sql.NullTime
	)
	if err := row.Scan(&item.ID, &item.FiscalYearID, &category, &item.CourseName, &item.Provider, &item.Member, &start, &end, &item.Cost, &item.Currency, &item.ExchangeRate, &item.CostCAD, &item.Notes, &item.Active, &item.Version, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return budget.TrainingItem{}, err
	}
	item.CategoryID = category.String
	item.StartDate = fromNullTime(start)
	item.EndDate = fromNullTime(end)
	return item, nil
}

func (s *Store) CreateTrainingItem(ctx context.Context, item budget.TrainingItem) (budget.TrainingItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Active = true
	item.Version = 1

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO training_items (id, fiscal_year_id, category_id, course_name, provider, member, start_date, end_date, cost, currency, exchange_rate, cost_cad, notes, active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, item.ID, item.FiscalYearID, toNullString(item.CategoryID), item.CourseName, item.Provider, item.Member, toNullTime(item.StartDate), toNullTime(item.EndDate), item.Cost, item.Currency, item.ExchangeRate, item.CostCAD, item.Notes, item.Active, item.Version, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return budget.TrainingItem{}, err
	}
	return item, nil
}

func (s *Store) UpdateTrainingItem(ctx context.Context, item budget.TrainingItem) (budget.TrainingItem, error) {
	item.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE training_items
		SET category_id = $2, course_name = $3, provider = $4, member = $5, start_date = $6, end_date = $7, cost = $8, currency = $9, exchange_rate = $10, cost_cad = $11, notes = $12, active = $13, version = version + 1, updated_at = $14
		WHERE id = $1 AND version = $15
	`, item.ID, toNullString(item.CategoryID), item.CourseName, item.Provider, item.Member, toNullTime(item.StartDate), toNullTime(item.EndDate), item.Cost, item.Currency, item.ExchangeRate, item.CostCAD, item.Notes, item.Active, item.UpdatedAt, item.Version)
	if err != nil {
		return budget.TrainingItem{}, err
	}
	if err := s.checkUpdated(ctx, result, "training_items", item.ID); err != nil {
		return budget.TrainingItem{}, err
	}
	return s.GetTrainingItem(ctx, item.ID)
}

func (s *Store) GetTrainingItem(ctx context.Context, id string) (budget.TrainingItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+trainingColumns+`
		FROM training_items
		WHERE id = $1
	`, id)
	return scanTrainingItem(row)
}

func (s *Store) ListTrainingItems(ctx context.Context, fiscalYearID string, includeInactive bool) ([]budget.TrainingItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+trainingColumns+`
		FROM training_items
		WHERE fiscal_year_id = $1 AND (active OR $2)
		ORDER BY created_at
	`, fiscalYearID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []budget.TrainingItem
	for rows.Next() {
		item, err := scanTrainingItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// --- BudgetStore: travel items ------------------------------------------------------

const travelColumns = `id, fiscal_year_id, category_id, destination, purpose, traveller, start_date, end_date, estimated_cost, actual_cost, notes, active, version, created_at, updated_at`

func scanTravelItem(row interface{ Scan(dest ...interface{}) error }) (budget.TravelItem, error) {
	var (
		item       budget.TravelItem
		category   sql.NullString
		start, end sql.NullTime
	)
	if err := row.Scan(&item.ID, &item.FiscalYearID, &category, &item.Destination, &item.Purpose, &item.Traveller, &start, &end, &item.EstimatedCost, &item.ActualCost, &item.Notes, &item.Active, &item.Version, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return budget.TravelItem{}, err
	}
	item.CategoryID = category.String
	item.StartDate = fromNullTime(start)
	item.EndDate = fromNullTime(end)
	return item, nil
}

func (s *Store) CreateTravelItem(ctx context.Context, item budget.TravelItem) (budget.TravelItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Active = true
	item.Version = 1

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO travel_items (id, fiscal_year_id, category_id, destination, purpose, traveller, start_date, end_date, estimated_cost, actual_cost, notes, active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, item.ID, item.FiscalYearID, toNullString(item.CategoryID), item.Destination, item.Purpose, item.Traveller, toNullTime(item.StartDate), toNullTime(item.EndDate), item.EstimatedCost, item.ActualCost, item.Notes, item.Active, item.Version, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return budget.TravelItem{}, err
	}
	return item, nil
}

func (s *Store) UpdateTravelItem(ctx context.Context, item budget.TravelItem) (budget.TravelItem, error) {
	item.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE travel_items
		SET category_id = $2, destination = $3, purpose = $4, traveller = $5, start_date = $6, end_date = $7, estimated_cost = $8, actual_cost = $9, notes = $10, active = $11, version = version + 1, updated_at = $12
		WHERE id = $1 AND version = $13
	`, item.ID, toNullString(item.CategoryID), item.Destination, item.Purpose, item.Traveller, toNullTime(item.StartDate), toNullTime(item.EndDate), item.EstimatedCost, item.ActualCost, item.Notes, item.Active, item.UpdatedAt, item.Version)
	if err != nil {
		return budget.TravelItem{}, err
	}
	if err := s.checkUpdated(ctx, result, "travel_items", item.ID); err != nil {
		return budget.TravelItem{}, err
	}
	return s.GetTravelItem(ctx, item.ID)
}

func (s *Store) GetTravelItem(ctx context.Context, id string) (budget.TravelItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+travelColumns+`
		FROM travel_items
		WHERE id = $1
	`, id)
	return scanTravelItem(row)
}

func (s *Store) ListTravelItems(ctx context.Context, fiscalYearID string, includeInactive bool) ([]budget.TravelItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+travelColumns+`
		FROM travel_items
		WHERE fiscal_year_id = $1 AND (active OR $2)
		ORDER BY created_at
	`, fiscalYearID, includeInactive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []budget.TravelItem
	for rows.Next() {
		item, err := scanTravelItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}
