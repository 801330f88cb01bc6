package items

import (
	"context"
	"strings"

	"github.com/myrc-project/myrc/internal/app/domain/budget"
	"github.com/myrc-project/myrc/internal/app/domain/rc"
	"github.com/myrc-project/myrc/internal/errors"
)

// CreateFundingItem records incoming budget within a fiscal year.
func (s *Service) CreateFundingItem(ctx context.Context, id rc.Identity, item budget.FundingItem) (budget.FundingItem, error) {
	if _, err := s.fiscal.Authorize(ctx, id, item.FiscalYearID, true); err != nil {
		return budget.FundingItem{}, err
	}
	if err := s.validateFundingItem(ctx, &item); err != nil {
		return budget.FundingItem{}, err
	}
	if err := s.checkFundingNameFree(ctx, item.FiscalYearID, item.Name, ""); err != nil {
		return budget.FundingItem{}, err
	}

	created, err := s.store.CreateFundingItem(ctx, item)
	if err != nil {
		return budget.FundingItem{}, errors.Internal("create funding item", err)
	}
	return created, nil
}

// UpdateFundingItem modifies a funding item.
func (s *Service) UpdateFundingItem(ctx context.Context, id rc.Identity, fiscalYearID string, item budget.FundingItem) (budget.FundingItem, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return budget.FundingItem{}, err
	}

	existing, err := s.store.GetFundingItem(ctx, item.ID)
	if err != nil {
		return budget.FundingItem{}, storeError(err, "funding item")
	}
	if existing.FiscalYearID != fiscalYearID {
		return budget.FundingItem{}, errors.NotFound("funding item")
	}

	item.FiscalYearID = fiscalYearID
	if err := s.validateFundingItem(ctx, &item); err != nil {
		return budget.FundingItem{}, err
	}
	if item.Version == 0 {
		return budget.FundingItem{}, errors.Validation("version is required")
	}
	if err := s.checkFundingNameFree(ctx, fiscalYearID, item.Name, item.ID); err != nil {
		return budget.FundingItem{}, err
	}

	item.Active = existing.Active
	updated, err := s.store.UpdateFundingItem(ctx, item)
	if err != nil {
		return budget.FundingItem{}, storeError(err, "funding item")
	}
	return updated, nil
}

// GetFundingItem returns one funding item.
func (s *Service) GetFundingItem(ctx context.Context, id rc.Identity, fiscalYearID, itemID string) (budget.FundingItem, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, false); err != nil {
		return budget.FundingItem{}, err
	}

	item, err := s.store.GetFundingItem(ctx, itemID)
	if err != nil {
		return budget.FundingItem{}, storeError(err, "funding item")
	}
	if item.FiscalYearID != fiscalYearID {
		return budget.FundingItem{}, errors.NotFound("funding item")
	}
	return item, nil
}

// ListFundingItems returns the funding items of a fiscal year.
func (s *Service) ListFundingItems(ctx context.Context, id rc.Identity, fiscalYearID string, includeInactive bool) ([]budget.FundingItem, error) {
	scope, err := s.fiscal.Authorize(ctx, id, fiscalYearID, false)
	if err != nil {
		return nil, err
	}

	list, err := s.store.ListFundingItems(ctx, fiscalYearID, includeInactive && scope.Access.Owner)
	if err != nil {
		return nil, errors.Internal("list funding items", err)
	}
	return list, nil
}

// DeactivateFundingItem soft-deletes a funding item.
func (s *Service) DeactivateFundingItem(ctx context.Context, id rc.Identity, fiscalYearID, itemID string) error {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return err
	}

	item, err := s.store.GetFundingItem(ctx, itemID)
	if err != nil {
		return storeError(err, "funding item")
	}
	if item.FiscalYearID != fiscalYearID {
		return errors.NotFound("funding item")
	}
	if !item.Active {
		return nil
	}

	item.Active = false
	if _, err := s.store.UpdateFundingItem(ctx, item); err != nil {
		return storeError(err, "funding item")
	}
	return nil
}

func (s *Service) validateFundingItem(ctx context.Context, item *budget.FundingItem) error {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return errors.Validation("name is required")
	}
	if err := nonNegative(item.CapAmount, "cap_amount"); err != nil {
		return err
	}
	if err := nonNegative(item.OMAmount, "om_amount"); err != nil {
		return err
	}
	return s.checkCategory(ctx, item.FiscalYearID, item.CategoryID)
}

func (s *Service) checkFundingNameFree(ctx context.Context, fiscalYearID, name, excludeID string) error {
	list, err := s.store.ListFundingItems(ctx, fiscalYearID, false)
	if err != nil {
		return errors.Internal("check funding item name", err)
	}
	for _, other := range list {
		if other.ID != excludeID && strings.EqualFold(other.Name, name) {
			return errors.Validationf("a funding item named %q already exists", name)
		}
	}
	return nil
}
