package procurement

import (
	"context"
	"strings"

	"github.com/myrc-project/myrc/internal/app/domain/procurement"
	"github.com/myrc-project/myrc/internal/app/domain/rc"
	"github.com/myrc-project/myrc/internal/errors"
)

// CreateEvent appends an entry to a procurement item's timeline. The type
// defaults to NOTE.
func (s *Service) CreateEvent(ctx context.Context, id rc.Identity, fiscalYearID, itemID string, ev procurement.Event) (procurement.Event, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return procurement.Event{}, err
	}
	if _, err := s.loadItem(ctx, fiscalYearID, itemID); err != nil {
		return procurement.Event{}, err
	}

	if ev.EventType == "" {
		ev.EventType = procurement.EventNote
	}
	if !ev.EventType.Valid() {
		return procurement.Event{}, errors.Validationf("unknown event type %q", ev.EventType)
	}
	ev.Description = strings.TrimSpace(ev.Description)
	if ev.Description == "" {
		return procurement.Event{}, errors.Validation("description is required")
	}
	ev.ProcurementItemID = itemID
	ev.CreatedBy = id.Username

	created, err := s.store.CreateEvent(ctx, ev)
	if err != nil {
		return procurement.Event{}, errors.Internal("create event", err)
	}
	return created, nil
}

// ListEvents returns an item's timeline, newest first.
func (s *Service) ListEvents(ctx context.Context, id rc.Identity, fiscalYearID, itemID string) ([]procurement.Event, error) {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, false); err != nil {
		return nil, err
	}
	if _, err := s.loadItem(ctx, fiscalYearID, itemID); err != nil {
		return nil, err
	}

	list, err := s.store.ListEvents(ctx, itemID)
	if err != nil {
		return nil, errors.Internal("list events", err)
	}
	return list, nil
}

// DeleteEvent removes a timeline entry. Unlike the soft-deleted entities,
// events are simply rows in a log and go away for good.
func (s *Service) DeleteEvent(ctx context.Context, id rc.Identity, fiscalYearID, itemID, eventID string) error {
	if _, err := s.fiscal.Authorize(ctx, id, fiscalYearID, true); err != nil {
		return err
	}
	if _, err := s.loadItem(ctx, fiscalYearID, itemID); err != nil {
		return err
	}

	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return storeError(err, "event")
	}
	if ev.ProcurementItemID != itemID {
		return errors.NotFound("event")
	}

	if err := s.store.DeleteEvent(ctx, eventID); err != nil {
		return storeError(err, "event")
	}
	return nil
}
