package items

import (
	"context"
	"strings"

	"github.com/myrc-project/myrc/internal/app/domain/budget"
	"github.com/myrc-project/myrc/internal/app/domain/rc"
	"github.com/myrc-project/myrc/internal/errors"
)

// CreateTravelItem records a planned or completed trip.
func (s *Service) CreateTravelItem(ctx context.Context, id rc.Identity, item budget.TravelItem) (budget.TravelItem, error) {
	if _, err := s.fiscal.Authorize(ctx, id, item.FiscalYearID, true); err != nil {
		return budget.TravelItem{}, err
	}
	if err := s.validateTravelItem(ctx, &item); err != nil {
		return budget.TravelItem{}, err
	}

	created, err := s.store.CreateTravelItem(ctx, item)
	if err != nil {
		return budget.TravelItem{}, errors.Internal("create travel item", err)
	}
	return created, nil
}

// UpdateTravelItem modifies a travel item. Filling in the actual cost after
// the trip supersedes the estimate in summaries.
func (s *Service) UpdateTravelItem(ctx context.Context, id rc.Identity, fiscalYearID string, item budget.TravelItem) (budget.TravelItem, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return budget.TravelItem{}, err
	}

	existing, err := s.store.GetTravelItem(ctx, item.ID)
	if err != nil {
		return budget.TravelItem{}, storeError(err, "travel item")
	}
	if existing.FiscalYearID != fiscalYearID {
		return budget.TravelItem{}, errors.NotFound("travel item")
	}

	item.FiscalYearID = fiscalYearID
	if err := s.validateTravelItem(ctx, &item); err != nil {
		return budget.TravelItem{}, err
	}
	if item.Version == 0 {
		return budget.TravelItem{}, errors.Validation("version is required")
	}

	item.Active = existing.Active
	updated, err := s.store.UpdateTravelItem(ctx, item)
	if err != nil {
		return budget.TravelItem{}, storeError(err, "travel item")
	}
	return updated, nil
}

// GetTravelItem returns one travel item.
func (s *Service) GetTravelItem(ctx context.Context, id rc.Identity, fiscalYearID, itemID string) (budget.TravelItem, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, false); err != nil {
		return budget.TravelItem{}, err
	}

	item, err := s.store.GetTravelItem(ctx, itemID)
	if err != nil {
		return budget.TravelItem{}, storeError(err, "travel item")
	}
	if item.FiscalYearID != fiscalYearID {
		return budget.TravelItem{}, errors.NotFound("travel item")
	}
	return item, nil
}

// ListTravelItems returns the travel items of a fiscal year.
func (s *Service) ListTravelItems(ctx context.Context, id rc.Identity, fiscalYearID string, includeInactive bool) ([]budget.TravelItem, error) {
	scope, err := s.fiscal.Authorize(ctx, id, fiscalYearID, false)
	if err != nil {
		return nil, err
	}

	list, err := s.store.ListTravelItems(ctx, fiscalYearID, includeInactive && scope.Access.Owner)
	if err != nil {
		return nil, errors.Internal("list travel items", err)
	}
	return list, nil
}

// DeactivateTravelItem soft-deletes a travel item.
func (s *Service) DeactivateTravelItem(ctx context.Context, id rc.Identity, fiscalYearID, itemID string) error {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return err
	}

	item, err := s.store.GetTravelItem(ctx, itemID)
	if err != nil {
		return storeError(err, "travel item")
	}
	if item.FiscalYearID != fiscalYearID {
		return errors.NotFound("travel item")
	}
	if !item.Active {
		return nil
	}

	item.Active = false
	if _, err := s.store.UpdateTravelItem(ctx, item); err != nil {
		return storeError(err, "travel item")
	}
	return nil
}

func (s *Service) validateTravelItem(ctx context.Context, item *budget.TravelItem) error {
	item.Destination = strings.TrimSpace(item.Destination)
	if item.Destination == "" {
		return errors.Validation("destination is required")
	}
	item.Traveller = strings.TrimSpace(item.Traveller)
	if item.Traveller == "" {
		return errors.Validation("traveller is required")
	}
	if err := nonNegative(item.EstimatedCost, "estimated_cost"); err != nil {
		return err
	}
	if err := nonNegative(item.ActualCost, "actual_cost"); err != nil {
		return err
	}
	if err := validDateRange(item.StartDate, item.EndDate); err != nil {
		return err
	}
	return s.checkCategory(ctx, item.FiscalYearID, item.CategoryID)
}
