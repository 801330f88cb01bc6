package procurement

import (
	"context"
	"strings"

	"github.com/myrc-project/myrc/internal/app/domain/budget"
	"github.com/myrc-project/myrc/internal/app/domain/procurement"
	"github.com/myrc-project/myrc/internal/app/domain/rc"
	"github.com/myrc-project/myrc/internal/errors"
)

// CreateQuote records a vendor quote against a procurement item. New quotes
// are never selected; selection is a separate, deliberate operation.
func (s *Service) CreateQuote(ctx context.Context, id rc.Identity, fiscalYearID, itemID string, quote procurement.Quote) (procurement.Quote, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return procurement.Quote{}, err
	}
	if _, err := s.loadItem(ctx, fiscalYearID, itemID); err != nil {
		return procurement.Quote{}, err
	}

	quote.ProcurementItemID = itemID
	quote.Selected = false
	if err := validateQuote(&quote); err != nil {
		return procurement.Quote{}, err
	}

	created, err := s.store.CreateQuote(ctx, quote)
	if err != nil {
		return procurement.Quote{}, errors.Internal("create quote", err)
	}
	return created, nil
}

// UpdateQuote modifies a vendor quote. The selected flag is untouched; use
// SelectQuote to change it.
func (s *Service) UpdateQuote(ctx context.Context, id rc.Identity, fiscalYearID, itemID string, quote procurement.Quote) (procurement.Quote, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return procurement.Quote{}, err
	}
	if _, err := s.loadItem(ctx, fiscalYearID, itemID); err != nil {
		return procurement.Quote{}, err
	}

	existing, err := s.loadQuote(ctx, itemID, quote.ID)
	if err != nil {
		return procurement.Quote{}, err
	}

	quote.ProcurementItemID = itemID
	quote.Selected = existing.Selected
	quote.Active = existing.Active
	if err := validateQuote(&quote); err != nil {
		return procurement.Quote{}, err
	}
	if quote.Version == 0 {
		return procurement.Quote{}, errors.Validation("version is required")
	}

	updated, err := s.store.UpdateQuote(ctx, quote)
	if err != nil {
		return procurement.Quote{}, storeError(err, "quote")
	}
	return updated, nil
}

// GetQuote returns one vendor quote.
func (s *Service) GetQuote(ctx context.Context, id rc.Identity, fiscalYearID, itemID, quoteID string) (procurement.Quote, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, false); err != nil {
		return procurement.Quote{}, err
	}
	if _, err := s.loadItem(ctx, fiscalYearID, itemID); err != nil {
		return procurement.Quote{}, err
	}
	return s.loadQuote(ctx, itemID, quoteID)
}

// ListQuotes returns the quotes of a procurement item.
func (s *Service) ListQuotes(ctx context.Context, id rc.Identity, fiscalYearID, itemID string, includeInactive bool) ([]procurement.Quote, error) {
	scope, err := s.fiscal.Authorize(ctx, id, fiscalYearID, false)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadItem(ctx, fiscalYearID, itemID); err != nil {
		return nil, err
	}

	list, err := s.store.ListQuotes(ctx, itemID, includeInactive && scope.Access.Owner)
	if err != nil {
		return nil, errors.Internal("list quotes", err)
	}
	return list, nil
}

// SelectQuote marks one quote as the accepted one, deselecting every other
// quote on the same item.
func (s *Service) SelectQuote(ctx context.Context, id rc.Identity, fiscalYearID, itemID, quoteID string) (procurement.Quote, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return procurement.Quote{}, err
	}
	if _, err := s.loadItem(ctx, fiscalYearID, itemID); err != nil {
		return procurement.Quote{}, err
	}

	quote, err := s.loadQuote(ctx, itemID, quoteID)
	if err != nil {
		return procurement.Quote{}, err
	}
	if !quote.Active {
		return procurement.Quote{}, errors.Validation("an inactive quote cannot be selected")
	}

	if err := s.store.ClearSelectedQuotes(ctx, itemID); err != nil {
		return procurement.Quote{}, errors.Internal("clear selected quotes", err)
	}

	// Deselection bumps versions, so reload before flipping the flag.
	quote, err = s.loadQuote(ctx, itemID, quoteID)
	if err != nil {
		return procurement.Quote{}, err
	}
	quote.Selected = true

	updated, err := s.store.UpdateQuote(ctx, quote)
	if err != nil {
		return procurement.Quote{}, storeError(err, "quote")
	}
	s.log.WithFields(map[string]interface{}{"procurement_item_id": itemID, "quote_id": quoteID}).Info("quote selected")
	return updated, nil
}

// DeactivateQuote soft-deletes a quote. A selected quote loses its selection
// on the way out.
func (s *Service) DeactivateQuote(ctx context.Context, id rc.Identity, fiscalYearID, itemID, quoteID string) error {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return err
	}
	if _, err := s.loadItem(ctx, fiscalYearID, itemID); err != nil {
		return err
	}

	quote, err := s.loadQuote(ctx, itemID, quoteID)
	if err != nil {
		return err
	}
	if !quote.Active {
		return nil
	}

	quote.Active = false
	quote.Selected = false
	if _, err := s.store.UpdateQuote(ctx, quote); err != nil {
		return storeError(err, "quote")
	}
	return nil
}

// PutQuoteFile attaches or replaces the document behind a quote.
func (s *Service) PutQuoteFile(ctx context.Context, id rc.Identity, fiscalYearID, itemID, quoteID string, att budget.Attachment) error {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return err
	}
	if _, err := s.loadItem(ctx, fiscalYearID, itemID); err != nil {
		return err
	}
	if _, err := s.loadQuote(ctx, itemID, quoteID); err != nil {
		return err
	}

	att.Filename = strings.TrimSpace(att.Filename)
	if att.Filename == "" {
		return errors.Validation("filename is required")
	}
	if len(att.Data) == 0 {
		return errors.Validation("file is empty")
	}
	att.OwnerID = quoteID
	att.SizeBytes = int64(len(att.Data))
	att.UploadedBy = id.Username

	if err := s.store.PutQuoteFile(ctx, att); err != nil {
		return errors.Internal("store quote file", err)
	}
	return nil
}

// GetQuoteFile returns the document behind a quote.
func (s *Service) GetQuoteFile(ctx context.Context, id rc.Identity, fiscalYearID, itemID, quoteID string) (budget.Attachment, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, false); err != nil {
		return budget.Attachment{}, err
	}
	if _, err := s.loadItem(ctx, fiscalYearID, itemID); err != nil {
		return budget.Attachment{}, err
	}
	if _, err := s.loadQuote(ctx, itemID, quoteID); err != nil {
		return budget.Attachment{}, err
	}

	att, err := s.store.GetQuoteFile(ctx, quoteID)
	if err != nil {
		return budget.Attachment{}, storeError(err, "quote file")
	}
	return att, nil
}

// DeleteQuoteFile removes the document behind a quote.
func (s *Service) DeleteQuoteFile(ctx context.Context, id rc.Identity, fiscalYearID, itemID, quoteID string) error {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return err
	}
	if _, err := s.loadItem(ctx, fiscalYearID, itemID); err != nil {
		return err
	}
	if _, err := s.loadQuote(ctx, itemID, quoteID); err != nil {
		return err
	}

	if err := s.store.DeleteQuoteFile(ctx, quoteID); err != nil {
		return storeError(err, "quote file")
	}
	return nil
}

// loadQuote fetches a quote and hides it when it hangs off a different
// procurement item than the request path names.
func (s *Service) loadQuote(ctx context.Context, itemID, quoteID string) (procurement.Quote, error) {
	quote, err := s.store.GetQuote(ctx, quoteID)
	if err != nil {
		return procurement.Quote{}, storeError(err, "quote")
	}
	if quote.ProcurementItemID != itemID {
		return procurement.Quote{}, errors.NotFound("quote")
	}
	return quote, nil
}

func validateQuote(quote *procurement.Quote) error {
	quote.Vendor = strings.TrimSpace(quote.Vendor)
	if quote.Vendor == "" {
		return errors.Validation("vendor is required")
	}
	if quote.Amount.IsNegative() {
		return errors.Validation("amount must not be negative")
	}
	if err := normalizeCurrency(&quote.Currency, &quote.ExchangeRate); err != nil {
		return err
	}
	quote.AmountCAD = budget.ToCAD(quote.Amount, quote.ExchangeRate)
	return nil
}
