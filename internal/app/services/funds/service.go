// Package funds manages the funding envelopes (Money) and Categories of a
// fiscal year.
package funds

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/myrc-project/myrc/internal/app/domain/budget"
	"github.com/myrc-project/myrc/internal/app/domain/rc"
	fiscalsvc "github.com/myrc-project/myrc/internal/app/services/fiscal"
	"github.com/myrc-project/myrc/internal/app/storage"
	"github.com/myrc-project/myrc/internal/errors"
	"github.com/myrc-project/myrc/pkg/logger"
)

// Service manages funding envelopes and categories.
type Service struct {
	store  storage.BudgetStore
	fiscal *fiscalsvc.Service
	log    *logger.Logger
}

// New constructs the funds service.
func New(store storage.BudgetStore, fiscal *fiscalsvc.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("funds")
	}
	return &Service{store: store, fiscal: fiscal, log: log}
}

// --- funding envelopes ---

// CreateMoney adds a funding envelope to a fiscal year.
func (s *Service) CreateMoney(ctx context.Context, id rc.Identity, money budget.Money) (budget.Money, error) {
	if _, err := s.fiscal.Authorize(ctx, id, money.FiscalYearID, true); err != nil {
		return budget.Money{}, err
	}
	if err := validateMoney(&money); err != nil {
		return budget.Money{}, err
	}
	if err := s.checkMoneyNameFree(ctx, money.FiscalYearID, money.Name, ""); err != nil {
		return budget.Money{}, err
	}

	created, err := s.store.CreateMoney(ctx, money)
	if err != nil {
		return budget.Money{}, errors.Internal("create money", err)
	}
	s.log.WithFields(map[string]interface{}{"money_id": created.ID, "fiscal_year_id": created.FiscalYearID}).Info("funding envelope created")
	return created, nil
}

// UpdateMoney modifies a funding envelope.
func (s *Service) UpdateMoney(ctx context.Context, id rc.Identity, fiscalYearID string, money budget.Money) (budget.Money, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return budget.Money{}, err
	}

	existing, err := s.store.GetMoney(ctx, money.ID)
	if err != nil {
		return budget.Money{}, storeError(err, "money")
	}
	if existing.FiscalYearID != fiscalYearID {
		return budget.Money{}, errors.NotFound("money")
	}

	if err := validateMoney(&money); err != nil {
		return budget.Money{}, err
	}
	if money.Version == 0 {
		return budget.Money{}, errors.Validation("version is required")
	}
	if err := s.checkMoneyNameFree(ctx, fiscalYearID, money.Name, money.ID); err != nil {
		return budget.Money{}, err
	}

	money.Active = existing.Active
	updated, err := s.store.UpdateMoney(ctx, money)
	if err != nil {
		return budget.Money{}, storeError(err, "money")
	}
	return updated, nil
}

// GetMoney returns one funding envelope.
func (s *Service) GetMoney(ctx context.Context, id rc.Identity, fiscalYearID, moneyID string) (budget.Money, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, false); err != nil {
		return budget.Money{}, err
	}

	money, err := s.store.GetMoney(ctx, moneyID)
	if err != nil {
		return budget.Money{}, storeError(err, "money")
	}
	if money.FiscalYearID != fiscalYearID {
		return budget.Money{}, errors.NotFound("money")
	}
	return money, nil
}

// ListMonies returns the funding envelopes of a fiscal year.
func (s *Service) ListMonies(ctx context.Context, id rc.Identity, fiscalYearID string, includeInactive bool) ([]budget.Money, error) {
	scope, err := s.fiscal.Authorize(ctx, id, fiscalYearID, false)
	if err != nil {
		return nil, err
	}

	monies, err := s.store.ListMonies(ctx, fiscalYearID, includeInactive && scope.Access.Owner)
	if err != nil {
		return nil, errors.Internal("list monies", err)
	}
	return monies, nil
}

// DeactivateMoney soft-deletes a funding envelope.
func (s *Service) DeactivateMoney(ctx context.Context, id rc.Identity, fiscalYearID, moneyID string) error {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return err
	}

	money, err := s.store.GetMoney(ctx, moneyID)
	if err != nil {
		return storeError(err, "money")
	}
	if money.FiscalYearID != fiscalYearID {
		return errors.NotFound("money")
	}
	if !money.Active {
		return nil
	}

	money.Active = false
	if _, err := s.store.UpdateMoney(ctx, money); err != nil {
		return storeError(err, "money")
	}
	return nil
}

func validateMoney(money *budget.Money) error {
	money.Name = strings.TrimSpace(money.Name)
	if money.Name == "" {
		return errors.Validation("name is required")
	}
	if err := nonNegative(money.CapAmount, "cap_amount"); err != nil {
		return err
	}
	return nonNegative(money.OMAmount, "om_amount")
}

func (s *Service) checkMoneyNameFree(ctx context.Context, fiscalYearID, name, excludeID string) error {
	monies, err := s.store.ListMonies(ctx, fiscalYearID, false)
	if err != nil {
		return errors.Internal("check money name", err)
	}
	for _, other := range monies {
		if other.ID != excludeID && strings.EqualFold(other.Name, name) {
			return errors.Validationf("a funding envelope named %q already exists", name)
		}
	}
	return nil
}

// --- categories ---

// CreateCategory adds a category to a fiscal year.
func (s *Service) CreateCategory(ctx context.Context, id rc.Identity, category budget.Category) (budget.Category, error) {
	if _, err := s.fiscal.Authorize(ctx, id, category.FiscalYearID, true); err != nil {
		return budget.Category{}, err
	}

	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return budget.Category{}, errors.Validation("name is required")
	}
	if err := s.checkCategoryNameFree(ctx, category.FiscalYearID, category.Name, ""); err != nil {
		return budget.Category{}, err
	}

	created, err := s.store.CreateCategory(ctx, category)
	if err != nil {
		return budget.Category{}, errors.Internal("create category", err)
	}
	return created, nil
}

// UpdateCategory renames a category.
func (s *Service) UpdateCategory(ctx context.Context, id rc.Identity, fiscalYearID string, category budget.Category) (budget.Category, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return budget.Category{}, err
	}

	existing, err := s.store.GetCategory(ctx, category.ID)
	if err != nil {
		return budget.Category{}, storeError(err, "category")
	}
	if existing.FiscalYearID != fiscalYearID {
		return budget.Category{}, errors.NotFound("category")
	}

	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return budget.Category{}, errors.Validation("name is required")
	}
	if category.Version == 0 {
		return budget.Category{}, errors.Validation("version is required")
	}
	if err := s.checkCategoryNameFree(ctx, fiscalYearID, category.Name, category.ID); err != nil {
		return budget.Category{}, err
	}

	category.Active = existing.Active
	updated, err := s.store.UpdateCategory(ctx, category)
	if err != nil {
		return budget.Category{}, storeError(err, "category")
	}
	return updated, nil
}

// GetCategory returns one category.
func (s *Service) GetCategory(ctx context.Context, id rc.Identity, fiscalYearID, categoryID string) (budget.Category, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, false); err != nil {
		return budget.Category{}, err
	}

	category, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return budget.Category{}, storeError(err, "category")
	}
	if category.FiscalYearID != fiscalYearID {
		return budget.Category{}, errors.NotFound("category")
	}
	return category, nil
}

// ListCategories returns the categories of a fiscal year.
func (s *Service) ListCategories(ctx context.Context, id rc.Identity, fiscalYearID string, includeInactive bool) ([]budget.Category, error) {
	scope, err := s.fiscal.Authorize(ctx, id, fiscalYearID, false)
	if err != nil {
		return nil, err
	}

	categories, err := s.store.ListCategories(ctx, fiscalYearID, includeInactive && scope.Access.Owner)
	if err != nil {
		return nil, errors.Internal("list categories", err)
	}
	return categories, nil
}

// DeactivateCategory soft-deletes a category. Items keep their reference;
// the label simply disappears from pickers.
func (s *Service) DeactivateCategory(ctx context.Context, id rc.Identity, fiscalYearID, categoryID string) error {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return err
	}

	category, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return storeError(err, "category")
	}
	if category.FiscalYearID != fiscalYearID {
		return errors.NotFound("category")
	}
	if !category.Active {
		return nil
	}

	category.Active = false
	if _, err := s.store.UpdateCategory(ctx, category); err != nil {
		return storeError(err, "category")
	}
	return nil
}

func (s *Service) checkCategoryNameFree(ctx context.Context, fiscalYearID, name, excludeID string) error {
	categories, err := s.store.ListCategories(ctx, fiscalYearID, false)
	if err != nil {
		return errors.Internal("check category name", err)
	}
	for _, other := range categories {
		if other.ID != excludeID && strings.EqualFold(other.Name, name) {
			return errors.Validationf("a category named %q already exists", name)
		}
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
