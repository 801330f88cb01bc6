// Package procurement manages procurement items, their vendor quotes, and
// their tracking timelines.
package procurement

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/myrc-project/myrc/internal/app/domain/budget"
	"github.com/myrc-project/myrc/internal/app/domain/procurement"
	"github.com/myrc-project/myrc/internal/app/domain/rc"
	fiscalsvc "github.com/myrc-project/myrc/internal/app/services/fiscal"
	"github.com/myrc-project/myrc/internal/app/storage"
	"github.com/myrc-project/myrc/internal/errors"
	"github.com/myrc-project/myrc/pkg/logger"
)

// Service manages procurement items, quotes, and events.
type Service struct {
	store  storage.ProcurementStore
	budget storage.BudgetStore
	fiscal *fiscalsvc.Service
	log    *logger.Logger
}

// New constructs the procurement service. The budget store is consulted for
// category references.
func New(store storage.ProcurementStore, budgetStore storage.BudgetStore, fiscal *fiscalsvc.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("procurement")
	}
	return &Service{store: store, budget: budgetStore, fiscal: fiscal, log: log}
}

// CreateItem opens a procurement request within a fiscal year. The status
// defaults to DRAFT.
func (s *Service) CreateItem(ctx context.Context, id rc.Identity, item procurement.Item) (procurement.Item, error) {
	if _, err := s.fiscal.Authorize(ctx, id, item.FiscalYearID, true); err != nil {
		return procurement.Item{}, err
	}
	if item.Status == "" {
		item.Status = procurement.StatusDraft
	}
	if err := s.validateItem(ctx, &item); err != nil {
		return procurement.Item{}, err
	}
	if err := s.checkItemNameFree(ctx, item.FiscalYearID, item.Name, ""); err != nil {
		return procurement.Item{}, err
	}

	created, err := s.store.CreateProcurementItem(ctx, item)
	if err != nil {
		return procurement.Item{}, errors.Internal("create procurement item", err)
	}
	s.log.WithFields(map[string]interface{}{"procurement_item_id": created.ID, "status": created.Status}).Info("procurement item created")
	return created, nil
}

// UpdateItem modifies a procurement item. A status change is recorded on the
// item's timeline.
func (s *Service) UpdateItem(ctx context.Context, id rc.Identity, fiscalYearID string, item procurement.Item) (procurement.Item, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return procurement.Item{}, err
	}

	existing, err := s.store.GetProcurementItem(ctx, item.ID)
	if err != nil {
		return procurement.Item{}, storeError(err, "procurement item")
	}
	if existing.FiscalYearID != fiscalYearID {
		return procurement.Item{}, errors.NotFound("procurement item")
	}

	item.FiscalYearID = fiscalYearID
	if item.Status == "" {
		item.Status = existing.Status
	}
	if err := s.validateItem(ctx, &item); err != nil {
		return procurement.Item{}, err
	}
	if item.Version == 0 {
		return procurement.Item{}, errors.Validation("version is required")
	}
	if err := s.checkItemNameFree(ctx, fiscalYearID, item.Name, item.ID); err != nil {
		return procurement.Item{}, err
	}

	item.Active = existing.Active
	updated, err := s.store.UpdateProcurementItem(ctx, item)
	if err != nil {
		return procurement.Item{}, storeError(err, "procurement item")
	}

	if existing.Status != updated.Status {
		s.recordStatusChange(ctx, id, existing.Status, updated)
	}
	return updated, nil
}

// recordStatusChange appends a STATUS_CHANGE event to the item's timeline.
// The item update has already committed, so a failure here is only logged.
func (s *Service) recordStatusChange(ctx context.Context, id rc.Identity, from procurement.Status, item procurement.Item) {
	_, err := s.store.CreateEvent(ctx, procurement.Event{
		ProcurementItemID: item.ID,
		EventType:         procurement.EventStatusChange,
		Description:       fmt.Sprintf("status changed from %s to %s", from, item.Status),
		CreatedBy:         id.Username,
	})
	if err != nil {
		s.log.WithError(err).WithFields(map[string]interface{}{"procurement_item_id": item.ID}).Warn("failed to record status change event")
	}
}

// GetItem returns one procurement item.
func (s *Service) GetItem(ctx context.Context, id rc.Identity, fiscalYearID, itemID string) (procurement.Item, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, false); err != nil {
		return procurement.Item{}, err
	}
	return s.loadItem(ctx, fiscalYearID, itemID)
}

// ListItems returns the procurement items of a fiscal year.
func (s *Service) ListItems(ctx context.Context, id rc.Identity, fiscalYearID string, includeInactive bool) ([]procurement.Item, error) {
	scope, err := s.fiscal.Authorize(ctx, id, fiscalYearID, false)
	if err != nil {
		return nil, err
	}

	list, err := s.store.ListProcurementItems(ctx, fiscalYearID, includeInactive && scope.Access.Owner)
	if err != nil {
		return nil, errors.Internal("list procurement items", err)
	}
	return list, nil
}

// DeactivateItem soft-deletes a procurement item. Quotes and events stay
// attached to the inactive row.
func (s *Service) DeactivateItem(ctx context.Context, id rc.Identity, fiscalYearID, itemID string) error {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return err
	}

	item, err := s.loadItem(ctx, fiscalYearID, itemID)
	if err != nil {
		return err
	}
	if !item.Active {
		return nil
	}

	item.Active = false
	if _, err := s.store.UpdateProcurementItem(ctx, item); err != nil {
		return storeError(err, "procurement item")
	}
	return nil
}

// loadItem fetches a procurement item and hides it when it belongs to a
// different fiscal year than the request path names.
func (s *Service) loadItem(ctx context.Context, fiscalYearID, itemID string) (procurement.Item, error) {
	item, err := s.store.GetProcurementItem(ctx, itemID)
	if err != nil {
		return procurement.Item{}, storeError(err, "procurement item")
	}
	if item.FiscalYearID != fiscalYearID {
		return procurement.Item{}, errors.NotFound("procurement item")
	}
	return item, nil
}

func (s *Service) validateItem(ctx context.Context, item *procurement.Item) error {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return errors.Validation("name is required")
	}
	if !item.Fund.Valid() {
		return errors.Validation("fund must be CAP or OM")
	}
	if item.EstimatedCost.IsNegative() {
		return errors.Validation("estimated_cost must not be negative")
	}
	if !item.Status.Valid() {
		return errors.Validationf("unknown status %q", item.Status)
	}
	return s.checkCategory(ctx, item.FiscalYearID, item.CategoryID)
}

func (s *Service) checkItemNameFree(ctx context.Context, fiscalYearID, name, excludeID string) error {
	list, err := s.store.ListProcurementItems(ctx, fiscalYearID, false)
	if err != nil {
		return errors.Internal("check procurement item name", err)
	}
	for _, other := range list {
		if other.ID != excludeID && strings.EqualFold(other.Name, name) {
			return errors.Validationf("a procurement item named %q already exists", name)
		}
	}
	return nil
}

func (s *Service) checkCategory(ctx context.Context, fiscalYearID, categoryID string) error {
	if categoryID == "" {
		return nil
	}
	category, err := s.budget.GetCategory(ctx, categoryID)
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
