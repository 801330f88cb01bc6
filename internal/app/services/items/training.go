package items

import (
	"context"
	"strings"

	"github.com/myrc-project/myrc/internal/app/domain/budget"
	"github.com/myrc-project/myrc/internal/app/domain/rc"
	"github.com/myrc-project/myrc/internal/errors"
)

// CreateTrainingItem records a course attendance. Duplicate course names are
// allowed; several members may attend the same course.
func (s *Service) CreateTrainingItem(ctx context.Context, id rc.Identity, item budget.TrainingItem) (budget.TrainingItem, error) {
	if _, err := s.fiscal.Authorize(ctx, id, item.FiscalYearID, true); err != nil {
		return budget.TrainingItem{}, err
	}
	if err := s.validateTrainingItem(ctx, &item); err != nil {
		return budget.TrainingItem{}, err
	}

	created, err := s.store.CreateTrainingItem(ctx, item)
	if err != nil {
		return budget.TrainingItem{}, errors.Internal("create training item", err)
	}
	return created, nil
}

// UpdateTrainingItem modifies a training item and recomputes its CAD cost.
func (s *Service) UpdateTrainingItem(ctx context.Context, id rc.Identity, fiscalYearID string, item budget.TrainingItem) (budget.TrainingItem, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return budget.TrainingItem{}, err
	}

	existing, err := s.store.GetTrainingItem(ctx, item.ID)
	if err != nil {
		return budget.TrainingItem{}, storeError(err, "training item")
	}
	if existing.FiscalYearID != fiscalYearID {
		return budget.TrainingItem{}, errors.NotFound("training item")
	}

	item.FiscalYearID = fiscalYearID
	if err := s.validateTrainingItem(ctx, &item); err != nil {
		return budget.TrainingItem{}, err
	}
	if item.Version == 0 {
		return budget.TrainingItem{}, errors.Validation("version is required")
	}

	item.Active = existing.Active
	updated, err := s.store.UpdateTrainingItem(ctx, item)
	if err != nil {
		return budget.TrainingItem{}, storeError(err, "training item")
	}
	return updated, nil
}

// GetTrainingItem returns one training item.
func (s *Service) GetTrainingItem(ctx context.Context, id rc.Identity, fiscalYearID, itemID string) (budget.TrainingItem, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, false); err != nil {
		return budget.TrainingItem{}, err
	}

	item, err := s.store.GetTrainingItem(ctx, itemID)
	if err != nil {
		return budget.TrainingItem{}, storeError(err, "training item")
	}
	if item.FiscalYearID != fiscalYearID {
		return budget.TrainingItem{}, errors.NotFound("training item")
	}
	return item, nil
}

// ListTrainingItems returns the training items of a fiscal year.
func (s *Service) ListTrainingItems(ctx context.Context, id rc.Identity, fiscalYearID string, includeInactive bool) ([]budget.TrainingItem, error) {
	scope, err := s.fiscal.Authorize(ctx, id, fiscalYearID, false)
	if err != nil {
		return nil, err
	}

	list, err := s.store.ListTrainingItems(ctx, fiscalYearID, includeInactive && scope.Access.Owner)
	if err != nil {
		return nil, errors.Internal("list training items", err)
	}
	return list, nil
}

// DeactivateTrainingItem soft-deletes a training item.
func (s *Service) DeactivateTrainingItem(ctx context.Context, id rc.Identity, fiscalYearID, itemID string) error {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return err
	}

	item, err := s.store.GetTrainingItem(ctx, itemID)
	if err != nil {
		return storeError(err, "training item")
	}
	if item.FiscalYearID != fiscalYearID {
		return errors.NotFound("training item")
	}
	if !item.Active {
		return nil
	}

	item.Active = false
	if _, err := s.store.UpdateTrainingItem(ctx, item); err != nil {
		return storeError(err, "training item")
	}
	return nil
}

func (s *Service) validateTrainingItem(ctx context.Context, item *budget.TrainingItem) error {
	item.CourseName = strings.TrimSpace(item.CourseName)
	if item.CourseName == "" {
		return errors.Validation("course_name is required")
	}
	item.Member = strings.TrimSpace(item.Member)
	if item.Member == "" {
		return errors.Validation("member is required")
	}
	if err := nonNegative(item.Cost, "cost"); err != nil {
		return err
	}
	if err := normalizeCurrency(&item.Currency, &item.ExchangeRate); err != nil {
		return err
	}
	item.CostCAD = budget.ToCAD(item.Cost, item.ExchangeRate)
	if err := validDateRange(item.StartDate, item.EndDate); err != nil {
		return err
	}
	return s.checkCategory(ctx, item.FiscalYearID, item.CategoryID)
}
