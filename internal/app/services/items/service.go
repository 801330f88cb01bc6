// Package items manages the line items of a fiscal year: funding, spending
// (with invoice uploads), training, and travel.
package items

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/myrc-project/myrc/internal/app/domain/budget"
	fiscalsvc "github.com/myrc-project/myrc/internal/app/services/fiscal"
	"github.com/myrc-project/myrc/internal/app/storage"
	"github.com/myrc-project/myrc/internal/errors"
	"github.com/myrc-project/myrc/pkg/logger"
)

// Service manages the line items of a fiscal year.
type Service struct {
	store  storage.BudgetStore
	fiscal *fiscalsvc.Service
	log    *logger.Logger
}

// New constructs the items service.
func New(store storage.BudgetStore, fiscal *fiscalsvc.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("items")
	}
	return &Service{store: store, fiscal: fiscal, log: log}
}

// checkCategory verifies that a referenced category is an active category of
// the same fiscal year. An empty reference is fine.
func (s *Service) checkCategory(ctx context.Context, fiscalYearID, categoryID string) error {
	if categoryID == "" {
		return nil
	}
	category, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return errors.Validation("category does not exist")
		}
		return errors.Internal("check category", err)
	}
	if category.FiscalYearID != fiscalYearID || !category.Active {
		return errors.Validation("category must be an active category of the same fiscal year")
	}
	return nil
}

// normalizeCurrency uppercases and defaults the currency code and exchange
// rate of a foreign-currency amount. A zero rate defaults to 1.
func normalizeCurrency(currency *string, rate *decimal.Decimal) error {
	code := strings.ToUpper(strings.TrimSpace(*currency))
	if code == "" {
		code = budget.DefaultCurrency
	}
	if !budget.ValidCurrency(code) {
		return errors.Validationf("unknown currency code %q", code)
	}
	if rate.IsZero() {
		*rate = decimal.NewFromInt(1)
	}
	if !rate.IsPositive() {
		return errors.Validation("exchange_rate must be positive")
	}
	*currency = code
	return nil
}

func validDateRange(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return errors.Validation("end_date must not be before start_date")
	}
	return nil
}

func nonNegative(amount decimal.Decimal, field string) error {
	if amount.IsNegative() {
		return errors.Validationf("%s must not be negative", field)
	}
	return nil
}

func storeError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, sql.ErrNoRows):
		return errors.NotFound(resource)
	case stderrors.Is(err, storage.ErrVersionConflict):
		return errors.Conflict(resource + " was modified concurrently")
	}
	return errors.Internal("storage failure", err)
}
