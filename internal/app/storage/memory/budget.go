package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/myrc-project/myrc/internal/app/domain/budget"
	"github.com/myrc-project/myrc/internal/app/storage"
)

// BudgetStore implementation -------------------------------------------------

func (s *Store) CreateMoney(_ context.Context, money budget.Money) (budget.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if money.ID == "" {
		money.ID = s.nextIDLocked()
	} else if _, exists := s.monies[money.ID]; exists {
		return budget.Money{}, fmt.Errorf("money %s already exists", money.ID)
	}

	now := time.Now().UTC()
	money.CreatedAt = now
	money.UpdatedAt = now
	money.Active = true
	money.Version = 1

	s.monies[money.ID] = money
	return money, nil
}

func (s *Store) UpdateMoney(_ context.Context, money budget.Money) (budget.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.monies[money.ID]
	if !ok {
		return budget.Money{}, sql.ErrNoRows
	}
	if original.Version != money.Version {
		return budget.Money{}, storage.ErrVersionConflict
	}

	money.FiscalYearID = original.FiscalYearID
	money.CreatedAt = original.CreatedAt
	money.UpdatedAt = time.Now().UTC()
	money.Version = original.Version + 1

	s.monies[money.ID] = money
	return money, nil
}

func (s *Store) GetMoney(_ context.Context, id string) (budget.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	money, ok := s.monies[id]
	if !ok {
		return budget.Money{}, sql.ErrNoRows
	}
	return money, nil
}

func (s *Store) ListMonies(_ context.Context, fiscalYearID string, includeInactive bool) ([]budget.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []budget.Money
	for _, money := range s.monies {
		if money.FiscalYearID != fiscalYearID {
			continue
		}
		if !includeInactive && !money.Active {
			continue
		}
		result = append(result, money)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *Store) CreateCategory(_ context.Context, category budget.Category) (budget.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category.ID == "" {
		category.ID = s.nextIDLocked()
	} else if _, exists := s.categories[category.ID]; exists {
		return budget.Category{}, fmt.Errorf("category %s already exists", category.ID)
	}

	now := time.Now().UTC()
	category.CreatedAt = now
	category.UpdatedAt = now
	category.Active = true
	category.Version = 1

	s.categories[category.ID] = category
	return category, nil
}

func (s *Store) UpdateCategory(_ context.Context, category budget.Category) (budget.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.categories[category.ID]
	if !ok {
		return budget.Category{}, sql.ErrNoRows
	}
	if original.Version != category.Version {
		return budget.Category{}, storage.ErrVersionConflict
	}

	category.FiscalYearID = original.FiscalYearID
	category.CreatedAt = original.CreatedAt
	category.UpdatedAt = time.Now().UTC()
	category.Version = original.Version + 1

	s.categories[category.ID] = category
	return category, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (budget.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	category, ok := s.categories[id]
	if !ok {
		return budget.Category{}, sql.ErrNoRows
	}
	return category, nil
}

func (s *Store) ListCategories(_ context.Context, fiscalYearID string, includeInactive bool) ([]budget.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []budget.Category
	for _, category := range s.categories {
		if category.FiscalYearID != fiscalYearID {
			continue
		}
		if !includeInactive && !category.Active {
			continue
		}
		result = append(result, category)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *Store) CreateFundingItem(_ context.Context, item budget.FundingItem) (budget.FundingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = s.nextIDLocked()
	} else if _, exists := s.fundingItems[item.ID]; exists {
		return budget.FundingItem{}, fmt.Errorf("funding item %s already exists", item.ID)
	}

	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Active = true
	item.Version = 1

	s.fundingItems[item.ID] = item
	return item, nil
}

func (s *Store) UpdateFundingItem(_ context.Context, item budget.FundingItem) (budget.FundingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.fundingItems[item.ID]
	if !ok {
		return budget.FundingItem{}, sql.ErrNoRows
	}
	if original.Version != item.Version {
		return budget.FundingItem{}, storage.ErrVersionConflict
	}

	item.FiscalYearID = original.FiscalYearID
	item.CreatedAt = original.CreatedAt
	item.UpdatedAt = time.Now().UTC()
	item.Version = original.Version + 1

	s.fundingItems[item.ID] = item
	return item, nil
}

func (s *Store) GetFundingItem(_ context.Context, id string) (budget.FundingItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.fundingItems[id]
	if !ok {
		return budget.FundingItem{}, sql.ErrNoRows
	}
	return item, nil
}

func (s *Store) ListFundingItems(_ context.Context, fiscalYearID string, includeInactive bool) ([]budget.FundingItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []budget.FundingItem
	for _, item := range s.fundingItems {
		if item.FiscalYearID != fiscalYearID {
			continue
		}
		if !includeInactive && !item.Active {
			continue
		}
		result = append(result, item)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) CreateSpendingItem(_ context.Context, item budget.SpendingItem) (budget.SpendingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = s.nextIDLocked()
	} else if _, exists := s.spendingItems[item.ID]; exists {
		return budget.SpendingItem{}, fmt.Errorf("spending item %s already exists", item.ID)
	}

	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Active = true
	item.Version = 1
	item.HasInvoice = false

	s.spendingItems[item.ID] = item
	return item, nil
}

func (s *Store) UpdateSpendingItem(_ context.Context, item budget.SpendingItem) (budget.SpendingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.spendingItems[item.ID]
	if !ok {
		return budget.SpendingItem{}, sql.ErrNoRows
	}
	if original.Version != item.Version {
		return budget.SpendingItem{}, storage.ErrVersionConflict
	}

	item.FiscalYearID = original.FiscalYearID
	item.CreatedAt = original.CreatedAt
	item.UpdatedAt = time.Now().UTC()
	item.Version = original.Version + 1

	s.spendingItems[item.ID] = item
	return s.withInvoiceFlagLocked(item), nil
}

func (s *Store) GetSpendingItem(_ context.Context, id string) (budget.SpendingItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.spendingItems[id]
	if !ok {
		return budget.SpendingItem{}, sql.ErrNoRows
	}
	return s.withInvoiceFlagLocked(item), nil
}

func (s *Store) ListSpendingItems(_ context.Context, fiscalYearID string, includeInactive bool) ([]budget.SpendingItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []budget.SpendingItem
	for _, item := range s.spendingItems {
		if item.FiscalYearID != fiscalYearID {
			continue
		}
		if !includeInactive && !item.Active {
			continue
		}
		result = append(result, s.withInvoiceFlagLocked(item))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) withInvoiceFlagLocked(item budget.SpendingItem) budget.SpendingItem {
	_, ok := s.invoices[item.ID]
	item.HasInvoice = ok
	return item
}

func (s *Store) PutInvoice(_ context.Context, att budget.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.spendingItems[att.OwnerID]; !ok {
		return sql.ErrNoRows
	}

	att.Data = cloneBytes(att.Data)
	if att.UploadedAt.IsZero() {
		att.UploadedAt = time.Now().UTC()
	}

	s.invoices[att.OwnerID] = att
	return nil
}

func (s *Store) GetInvoice(_ context.Context, spendingItemID string) (budget.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	att, ok := s.invoices[spendingItemID]
	if !ok {
		return budget.Attachment{}, sql.ErrNoRows
	}
	att.Data = cloneBytes(att.Data)
	return att, nil
}

func (s *Store) DeleteInvoice(_ context.Context, spendingItemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[spendingItemID]; !ok {
		return sql.ErrNoRows
	}
	delete(s.invoices, spendingItemID)
	return nil
}

func (s *Store) CreateTrainingItem(_ context.Context, item budget.TrainingItem) (budget.TrainingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = s.nextIDLocked()
	} else if _, exists := s.trainingItems[item.ID]; exists {
		return budget.TrainingItem{}, fmt.Errorf("training item %s already exists", item.ID)
	}

	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Active = true
	item.Version = 1

	s.trainingItems[item.ID] = item
	return cloneTraining(item), nil
}

func (s *Store) UpdateTrainingItem(_ context.Context, item budget.TrainingItem) (budget.TrainingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.trainingItems[item.ID]
	if !ok {
		return budget.TrainingItem{}, sql.ErrNoRows
	}
	if original.Version != item.Version {
		return budget.TrainingItem{}, storage.ErrVersionConflict
	}

	item.FiscalYearID = original.FiscalYearID
	item.CreatedAt = original.CreatedAt
	item.UpdatedAt = time.Now().UTC()
	item.Version = original.Version + 1

	s.trainingItems[item.ID] = item
	return cloneTraining(item), nil
}

func (s *Store) GetTrainingItem(_ context.Context, id string) (budget.TrainingItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.trainingItems[id]
	if !ok {
		return budget.TrainingItem{}, sql.ErrNoRows
	}
	return cloneTraining(item), nil
}

func (s *Store) ListTrainingItems(_ context.Context, fiscalYearID string, includeInactive bool) ([]budget.TrainingItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []budget.TrainingItem
	for _, item := range s.trainingItems {
		if item.FiscalYearID != fiscalYearID {
			continue
		}
		if !includeInactive && !item.Active {
			continue
		}
		result = append(result, cloneTraining(item))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) CreateTravelItem(_ context.Context, item budget.TravelItem) (budget.TravelItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = s.nextIDLocked()
	} else if _, exists := s.travelItems[item.ID]; exists {
		return budget.TravelItem{}, fmt.Errorf("travel item %s already exists", item.ID)
	}

	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Active = true
	item.Version = 1

	s.travelItems[item.ID] = item
	return cloneTravel(item), nil
}

func (s *Store) UpdateTravelItem(_ context.Context, item budget.TravelItem) (budget.TravelItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.travelItems[item.ID]
	if !ok {
		return budget.TravelItem{}, sql.ErrNoRows
	}
	if original.Version != item.Version {
		return budget.TravelItem{}, storage.ErrVersionConflict
	}

	item.FiscalYearID = original.FiscalYearID
	item.CreatedAt = original.CreatedAt
	item.UpdatedAt = time.Now().UTC()
	item.Version = original.Version + 1

	s.travelItems[item.ID] = item
	return cloneTravel(item), nil
}

func (s *Store) GetTravelItem(_ context.Context, id string) (budget.TravelItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.travelItems[id]
	if !ok {
		return budget.TravelItem{}, sql.ErrNoRows
	}
	return cloneTravel(item), nil
}

func (s *Store) ListTravelItems(_ context.Context, fiscalYearID string, includeInactive bool) ([]budget.TravelItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []budget.TravelItem
	for _, item := range s.travelItems {
		if item.FiscalYearID != fiscalYearID {
			continue
		}
		if !includeInactive && !item.Active {
			continue
		}
		result = append(result, cloneTravel(item))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func cloneTraining(item budget.TrainingItem) budget.TrainingItem {
	item.StartDate = cloneTime(item.StartDate)
	item.EndDate = cloneTime(item.EndDate)
	return item
}

func cloneTravel(item budget.TravelItem) budget.TravelItem {
	item.StartDate = cloneTime(item.StartDate)
	item.EndDate = cloneTime(item.EndDate)
	return item
}
