package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/myrc-project/myrc/internal/app/domain/budget"
	"github.com/myrc-project/myrc/internal/app/domain/procurement"
	"github.com/myrc-project/myrc/internal/app/storage"
)

// ProcurementStore implementation ---------------------------------------------

func (s *Store) CreateProcurementItem(_ context.Context, item procurement.Item) (procurement.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = s.nextIDLocked()
	} else if _, exists := s.procurementItems[item.ID]; exists {
		return procurement.Item{}, fmt.Errorf("procurement item %s already exists", item.ID)
	}

	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Active = true
	item.Version = 1
	if item.Status == "" {
		item.Status = procurement.StatusDraft
	}

	s.procurementItems[item.ID] = item
	return item, nil
}

func (s *Store) UpdateProcurementItem(_ context.Context, item procurement.Item) (procurement.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.procurementItems[item.ID]
	if !ok {
		return procurement.Item{}, sql.ErrNoRows
	}
	if original.Version != item.Version {
		return procurement.Item{}, storage.ErrVersionConflict
	}

	item.FiscalYearID = original.FiscalYearID
	item.CreatedAt = original.CreatedAt
	item.UpdatedAt = time.Now().UTC()
	item.Version = original.Version + 1

	s.procurementItems[item.ID] = item
	return item, nil
}

func (s *Store) GetProcurementItem(_ context.Context, id string) (procurement.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.procurementItems[id]
	if !ok {
		return procurement.Item{}, sql.ErrNoRows
	}
	return item, nil
}

func (s *Store) ListProcurementItems(_ context.Context, fiscalYearID string, includeInactive bool) ([]procurement.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []procurement.Item
	for _, item := range s.procurementItems {
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

func (s *Store) CreateQuote(_ context.Context, quote procurement.Quote) (procurement.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quote.ID == "" {
		quote.ID = s.nextIDLocked()
	} else if _, exists := s.quotes[quote.ID]; exists {
		return procurement.Quote{}, fmt.Errorf("quote %s already exists", quote.ID)
	}

	now := time.Now().UTC()
	quote.CreatedAt = now
	quote.UpdatedAt = now
	quote.Active = true
	quote.Version = 1
	quote.HasFile = false

	s.quotes[quote.ID] = quote
	return quote, nil
}

func (s *Store) UpdateQuote(_ context.Context, quote procurement.Quote) (procurement.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.quotes[quote.ID]
	if !ok {
		return procurement.Quote{}, sql.ErrNoRows
	}
	if original.Version != quote.Version {
		return procurement.Quote{}, storage.ErrVersionConflict
	}

	quote.ProcurementItemID = original.ProcurementItemID
	quote.CreatedAt = original.CreatedAt
	quote.UpdatedAt = time.Now().UTC()
	quote.Version = original.Version + 1

	s.quotes[quote.ID] = quote
	return s.withQuoteFileFlagLocked(quote), nil
}

func (s *Store) GetQuote(_ context.Context, id string) (procurement.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quote, ok := s.quotes[id]
	if !ok {
		return procurement.Quote{}, sql.ErrNoRows
	}
	return s.withQuoteFileFlagLocked(quote), nil
}

func (s *Store) ListQuotes(_ context.Context, procurementItemID string, includeInactive bool) ([]procurement.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []procurement.Quote
	for _, quote := range s.quotes {
		if quote.ProcurementItemID != procurementItemID {
			continue
		}
		if !includeInactive && !quote.Active {
			continue
		}
		result = append(result, s.withQuoteFileFlagLocked(quote))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) ClearSelectedQuotes(_ context.Context, procurementItemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for id, quote := range s.quotes {
		if quote.ProcurementItemID != procurementItemID || !quote.Selected {
			continue
		}
		quote.Selected = false
		quote.Version++
		quote.UpdatedAt = now
		s.quotes[id] = quote
	}
	return nil
}

func (s *Store) withQuoteFileFlagLocked(quote procurement.Quote) procurement.Quote {
	_, ok := s.quoteFiles[quote.ID]
	quote.HasFile = ok
	return quote
}

func (s *Store) PutQuoteFile(_ context.Context, att budget.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quotes[att.OwnerID]; !ok {
		return sql.ErrNoRows
	}

	att.Data = cloneBytes(att.Data)
	if att.UploadedAt.IsZero() {
		att.UploadedAt = time.Now().UTC()
	}

	s.quoteFiles[att.OwnerID] = att
	return nil
}

func (s *Store) GetQuoteFile(_ context.Context, quoteID string) (budget.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	att, ok := s.quoteFiles[quoteID]
	if !ok {
		return budget.Attachment{}, sql.ErrNoRows
	}
	att.Data = cloneBytes(att.Data)
	return att, nil
}

func (s *Store) DeleteQuoteFile(_ context.Context, quoteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.quoteFiles[quoteID]; !ok {
		return sql.ErrNoRows
	}
	delete(s.quoteFiles, quoteID)
	return nil
}

func (s *Store) CreateEvent(_ context.Context, event procurement.Event) (procurement.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = s.nextIDLocked()
	} else if _, exists := s.events[event.ID]; exists {
		return procurement.Event{}, fmt.Errorf("event %s already exists", event.ID)
	}

	event.CreatedAt = time.Now().UTC()
	if event.OccurredAt.IsZero() {
		event.OccurredAt = event.CreatedAt
	}

	s.events[event.ID] = event
	return event, nil
}

func (s *Store) GetEvent(_ context.Context, id string) (procurement.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[id]
	if !ok {
		return procurement.Event{}, sql.ErrNoRows
	}
	return event, nil
}

func (s *Store) ListEvents(_ context.Context, procurementItemID string) ([]procurement.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []procurement.Event
	for _, event := range s.events {
		if event.ProcurementItemID != procurementItemID {
			continue
		}
		result = append(result, event)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].OccurredAt.Equal(result[j].OccurredAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].OccurredAt.After(result[j].OccurredAt)
	})
	return result, nil
}

func (s *Store) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.events, id)
	return nil
}
