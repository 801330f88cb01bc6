package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/myrc-project/myrc/internal/app/domain/audit"
)

// AuditStore implementation ----------------------------------------------------

func (s *Store) CreateAuditEvent(_ context.Context, event audit.Event) (audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = s.nextIDLocked()
	} else if _, exists := s.auditEvents[event.ID]; exists {
		return audit.Event{}, fmt.Errorf("audit event %s already exists", event.ID)
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.Outcome == "" {
		event.Outcome = audit.OutcomePending
	}

	s.auditEvents[event.ID] = event
	s.auditOrder = append(s.auditOrder, event.ID)
	return cloneAuditEvent(event), nil
}

func (s *Store) CompleteAuditEvent(_ context.Context, id string, outcome audit.Outcome, errMsg string, completedAt time.Time) (audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.auditEvents[id]
	if !ok {
		return audit.Event{}, sql.ErrNoRows
	}

	event.Outcome = outcome
	event.Error = errMsg
	event.CompletedAt = &completedAt

	s.auditEvents[id] = event
	return cloneAuditEvent(event), nil
}

func (s *Store) GetAuditEvent(_ context.Context, id string) (audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.auditEvents[id]
	if !ok {
		return audit.Event{}, sql.ErrNoRows
	}
	return cloneAuditEvent(event), nil
}

func (s *Store) ListAuditEvents(_ context.Context, rcID string, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []audit.Event
	for i := len(s.auditOrder) - 1; i >= 0; i-- {
		event, ok := s.auditEvents[s.auditOrder[i]]
		if !ok {
			continue
		}
		if rcID != "" && event.RCID != rcID {
			continue
		}
		result = append(result, cloneAuditEvent(event))
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) ListStalePending(_ context.Context, olderThan time.Time) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []audit.Event
	for _, id := range s.auditOrder {
		event, ok := s.auditEvents[id]
		if !ok {
			continue
		}
		if event.Outcome != audit.OutcomePending {
			continue
		}
		if !event.OccurredAt.Before(olderThan) {
			continue
		}
		result = append(result, cloneAuditEvent(event))
	}
	return result, nil
}

func (s *Store) PurgeAuditEvents(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	remaining := s.auditOrder[:0]
	for _, id := range s.auditOrder {
		event, ok := s.auditEvents[id]
		if !ok {
			continue
		}
		if event.Outcome != audit.OutcomePending && event.OccurredAt.Before(olderThan) {
			delete(s.auditEvents, id)
			purged++
			continue
		}
		remaining = append(remaining, id)
	}
	s.auditOrder = remaining
	return purged, nil
}

func cloneAuditEvent(event audit.Event) audit.Event {
	event.CompletedAt = cloneTime(event.CompletedAt)
	return event
}
