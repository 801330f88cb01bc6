package items

import (
	"context"
	"strings"

	"github.com/myrc-project/myrc/internal/app/domain/budget"
	"github.com/myrc-project/myrc/internal/app/domain/rc"
	"github.com/myrc-project/myrc/internal/errors"
)

// CreateSpendingItem records committed or actual spending within a fiscal
// year. Foreign amounts are normalised to CAD on save.
func (s *Service) CreateSpendingItem(ctx context.Context, id rc.Identity, item budget.SpendingItem) (budget.SpendingItem, error) {
	if _, err := s.fiscal.Authorize(ctx, id, item.FiscalYearID, true); err != nil {
		return budget.SpendingItem{}, err
	}
	if err := s.validateSpendingItem(ctx, &item); err != nil {
		return budget.SpendingItem{}, err
	}
	if err := s.checkSpendingNameFree(ctx, item.FiscalYearID, item.Name, ""); err != nil {
		return budget.SpendingItem{}, err
	}

	created, err := s.store.CreateSpendingItem(ctx, item)
	if err != nil {
		return budget.SpendingItem{}, errors.Internal("create spending item", err)
	}
	return created, nil
}

// UpdateSpendingItem modifies a spending item and recomputes its CAD amount.
func (s *Service) UpdateSpendingItem(ctx context.Context, id rc.Identity, fiscalYearID string, item budget.SpendingItem) (budget.SpendingItem, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return budget.SpendingItem{}, err
	}

	existing, err := s.store.GetSpendingItem(ctx, item.ID)
	if err != nil {
		return budget.SpendingItem{}, storeError(err, "spending item")
	}
	if existing.FiscalYearID != fiscalYearID {
		return budget.SpendingItem{}, errors.NotFound("spending item")
	}

	item.FiscalYearID = fiscalYearID
	if err := s.validateSpendingItem(ctx, &item); err != nil {
		return budget.SpendingItem{}, err
	}
	if item.Version == 0 {
		return budget.SpendingItem{}, errors.Validation("version is required")
	}
	if err := s.checkSpendingNameFree(ctx, fiscalYearID, item.Name, item.ID); err != nil {
		return budget.SpendingItem{}, err
	}

	item.Active = existing.Active
	updated, err := s.store.UpdateSpendingItem(ctx, item)
	if err != nil {
		return budget.SpendingItem{}, storeError(err, "spending item")
	}
	return updated, nil
}

// GetSpendingItem returns one spending item.
func (s *Service) GetSpendingItem(ctx context.Context, id rc.Identity, fiscalYearID, itemID string) (budget.SpendingItem, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, false); err != nil {
		return budget.SpendingItem{}, err
	}

	item, err := s.store.GetSpendingItem(ctx, itemID)
	if err != nil {
		return budget.SpendingItem{}, storeError(err, "spending item")
	}
	if item.FiscalYearID != fiscalYearID {
		return budget.SpendingItem{}, errors.NotFound("spending item")
	}
	return item, nil
}

// ListSpendingItems returns the spending items of a fiscal year.
func (s *Service) ListSpendingItems(ctx context.Context, id rc.Identity, fiscalYearID string, includeInactive bool) ([]budget.SpendingItem, error) {
	scope, err := s.fiscal.Authorize(ctx, id, fiscalYearID, false)
	if err != nil {
		return nil, err
	}

	list, err := s.store.ListSpendingItems(ctx, fiscalYearID, includeInactive && scope.Access.Owner)
	if err != nil {
		return nil, errors.Internal("list spending items", err)
	}
	return list, nil
}

// DeactivateSpendingItem soft-deletes a spending item. The invoice, if any,
// stays attached to the inactive row.
func (s *Service) DeactivateSpendingItem(ctx context.Context, id rc.Identity, fiscalYearID, itemID string) error {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return err
	}

	item, err := s.store.GetSpendingItem(ctx, itemID)
	if err != nil {
		return storeError(err, "spending item")
	}
	if item.FiscalYearID != fiscalYearID {
		return errors.NotFound("spending item")
	}
	if !item.Active {
		return nil
	}

	item.Active = false
	if _, err := s.store.UpdateSpendingItem(ctx, item); err != nil {
		return storeError(err, "spending item")
	}
	return nil
}

// PutInvoice attaches or replaces the invoice file of a spending item.
func (s *Service) PutInvoice(ctx context.Context, id rc.Identity, fiscalYearID, itemID string, att budget.Attachment) error {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return err
	}

	item, err := s.store.GetSpendingItem(ctx, itemID)
	if err != nil {
		return storeError(err, "spending item")
	}
	if item.FiscalYearID != fiscalYearID {
		return errors.NotFound("spending item")
	}

	att.Filename = strings.TrimSpace(att.Filename)
	if att.Filename == "" {
		return errors.Validation("filename is required")
	}
	if len(att.Data) == 0 {
		return errors.Validation("file is empty")
	}
	att.OwnerID = item.ID
	att.SizeBytes = int64(len(att.Data))
	att.UploadedBy = id.Username

	if err := s.store.PutInvoice(ctx, att); err != nil {
		return errors.Internal("store invoice", err)
	}
	s.log.WithFields(map[string]interface{}{"spending_item_id": item.ID, "size_bytes": att.SizeBytes}).Info("invoice stored")
	return nil
}

// GetInvoice returns the invoice file of a spending item.
func (s *Service) GetInvoice(ctx context.Context, id rc.Identity, fiscalYearID, itemID string) (budget.Attachment, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, false); err != nil {
		return budget.Attachment{}, err
	}

	item, err := s.store.GetSpendingItem(ctx, itemID)
	if err != nil {
		return budget.Attachment{}, storeError(err, "spending item")
	}
	if item.FiscalYearID != fiscalYearID {
		return budget.Attachment{}, errors.NotFound("spending item")
	}

	att, err := s.store.GetInvoice(ctx, itemID)
	if err != nil {
		return budget.Attachment{}, storeError(err, "invoice")
	}
	return att, nil
}

// DeleteInvoice removes the invoice file of a spending item.
func (s *Service) DeleteInvoice(ctx context.Context, id rc.Identity, fiscalYearID, itemID string) error {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return err
	}

	item, err := s.store.GetSpendingItem(ctx, itemID)
	if err != nil {
		return storeError(err, "spending item")
	}
	if item.FiscalYearID != fiscalYearID {
		return errors.NotFound("spending item")
	}

	if err := s.store.DeleteInvoice(ctx, itemID); err != nil {
		return storeError(err, "invoice")
	}
	return nil
}

func (s *Service) validateSpendingItem(ctx context.Context, item *budget.SpendingItem) error {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return errors.Validation("name is required")
	}
	if !item.Fund.Valid() {
		return errors.Validation("fund must be CAP or OM")
	}
	if err := nonNegative(item.Amount, "amount"); err != nil {
		return err
	}
	if err := normalizeCurrency(&item.Currency, &item.ExchangeRate); err != nil {
		return err
	}
	item.AmountCAD = budget.ToCAD(item.Amount, item.ExchangeRate)
	return s.checkCategory(ctx, item.FiscalYearID, item.CategoryID)
}

func (s *Service) checkSpendingNameFree(ctx context.Context, fiscalYearID, name, excludeID string) error {
	list, err := s.store.ListSpendingItems(ctx, fiscalYearID, false)
	if err != nil {
		return errors.Internal("check spending item name", err)
	}
	for _, other := range list {
		if other.ID != excludeID && strings.EqualFold(other.Name, name) {
			return errors.Validationf("a spending item named %q already exists", name)
		}
	}
	return nil
}
