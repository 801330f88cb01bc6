// Package audit records who did what. Every mutation is written PENDING
// before it executes and completed to SUCCESS or FAILURE afterwards, so an
// interrupted request still leaves a trace.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/myrc-project/myrc/internal/app/domain/audit"
	"github.com/myrc-project/myrc/internal/app/domain/rc"
	"github.com/myrc-project/myrc/internal/app/metrics"
	rcsvc "github.com/myrc-project/myrc/internal/app/services/rc"
	"github.com/myrc-project/myrc/internal/app/storage"
	"github.com/myrc-project/myrc/internal/errors"
	"github.com/myrc-project/myrc/pkg/logger"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Entry describes a mutation about to be attempted. Context names are
// denormalised onto the stored event so the trail survives renames.
type Entry struct {
	Action       string
	EntityType   string
	EntityID     string
	RCID         string
	FiscalYearID string
	Detail       string
}

// Service is the two-phase audit recorder. Store writes are durable; the
// ring buffer and sinks are best-effort.
type Service struct {
	store storage.AuditStore
	rcs   *rcsvc.Service
	rcl   storage.RCStore
	years storage.FiscalYearStore
	log   *logger.Logger

	mu    sync.Mutex
	ring  []audit.Event
	size  int
	sinks []Sink
}

// New constructs the audit recorder. The rc store and fiscal year store are
// read for denormalisation only; bufferSize bounds the in-memory ring.
func New(store storage.AuditStore, rcs *rcsvc.Service, rcStore storage.RCStore, years storage.FiscalYearStore, bufferSize int, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("audit")
	}
	if bufferSize <= 0 {
		bufferSize = 500
	}
	return &Service{
		store: store,
		rcs:   rcs,
		rcl:   rcStore,
		years: years,
		size:  bufferSize,
		log:   log,
	}
}

// AttachSink registers a destination for completed events. Call before
// traffic starts.
func (s *Service) AttachSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Begin writes the PENDING record for a mutation. The returned ID is handed
// back to Complete once the operation settles. A storage failure aborts the
// mutation: an unauditable write must not proceed.
func (s *Service) Begin(ctx context.Context, id rc.Identity, entry Entry) (string, error) {
	ev := audit.Event{
		UserID:     id.UserID,
		Username:   id.Username,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		RCID:       entry.RCID,
		Detail:     entry.Detail,
		Outcome:    audit.OutcomePending,
	}

	if entry.FiscalYearID != "" && s.years != nil {
		if year, err := s.years.GetFiscalYear(ctx, entry.FiscalYearID); err == nil {
			ev.FiscalYear = year.Name
			if ev.RCID == "" {
				ev.RCID = year.RCID
			}
		}
	}
	if ev.RCID != "" && s.rcl != nil {
		if centre, err := s.rcl.GetRC(ctx, ev.RCID); err == nil {
			ev.RCName = centre.Name
		}
	}

	created, err := s.store.CreateAuditEvent(ctx, ev)
	if err != nil {
		s.log.WithError(err).WithFields(map[string]interface{}{"action": entry.Action}).Error("failed to write pending audit event")
		return "", errors.Internal("record audit event", err)
	}
	return created.ID, nil
}

// Complete settles a pending record to SUCCESS, or to FAILURE with the
// operation's error message. Ring and sink delivery never fail the request.
func (s *Service) Complete(ctx context.Context, eventID string, opErr error) {
	if eventID == "" {
		return
	}

	outcome := audit.OutcomeSuccess
	errMsg := ""
	if opErr != nil {
		outcome = audit.OutcomeFailure
		errMsg = opErr.Error()
	}

	completed, err := s.store.CompleteAuditEvent(ctx, eventID, outcome, errMsg, time.Now().UTC())
	if err != nil {
		s.log.WithError(err).WithFields(map[string]interface{}{"audit_event_id": eventID}).Error("failed to complete audit event")
		return
	}

	metrics.RecordAuditEvent(string(completed.Outcome))
	s.push(completed)
	s.fanOut(ctx, completed)
}

func (s *Service) push(ev audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring = append(s.ring, ev)
	if len(s.ring) > s.size {
		s.ring = s.ring[len(s.ring)-s.size:]
	}
}

func (s *Service) fanOut(ctx context.Context, ev audit.Event) {
	s.mu.Lock()
	sinks := make([]Sink, len(s.sinks))
	copy(sinks, s.sinks)
	s.mu.Unlock()

	for _, sink := range sinks {
		if err := sink.Write(ctx, ev); err != nil {
			s.log.WithError(err).WithFields(map[string]interface{}{"sink": sink.Name()}).Warn("audit sink write failed")
		}
	}
}

// ListForRC returns the stored trail of a responsibility centre, newest
// first. Only the owner may read it.
func (s *Service) ListForRC(ctx context.Context, id rc.Identity, rcID string, limit int) ([]audit.Event, error) {
	_, access, err := s.rcs.Authorize(ctx, id, rcID)
	if err != nil {
		return nil, err
	}
	if !access.Owner {
		return nil, errors.Forbidden("only the owner may view the audit trail")
	}

	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	events, err := s.store.ListAuditEvents(ctx, rcID, limit)
	if err != nil {
		return nil, errors.Internal("list audit events", err)
	}
	return events, nil
}

// Recent returns the caller's own recently completed actions from the ring
// buffer, newest first.
func (s *Service) Recent(id rc.Identity, limit int) []audit.Event {
	if limit <= 0 {
		limit = 50
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]audit.Event, 0, limit)
	for i := len(s.ring) - 1; i >= 0 && len(out) < limit; i-- {
		if s.ring[i].UserID == id.UserID {
			out = append(out, s.ring[i])
		}
	}
	return out
}

// SweepStale fails PENDING records older than the timeout. Runs at startup
// and on the janitor schedule, covering requests that died mid-flight.
func (s *Service) SweepStale(ctx context.Context, pendingTimeout time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-pendingTimeout)
	stale, err := s.store.ListStalePending(ctx, cutoff)
	if err != nil {
		return 0, errors.Internal("list stale audit events", err)
	}

	swept := 0
	completedAt := time.Now().UTC()
	for _, ev := range stale {
		if _, err := s.store.CompleteAuditEvent(ctx, ev.ID, audit.OutcomeFailure, "interrupted", completedAt); err != nil {
			s.log.WithError(err).WithFields(map[string]interface{}{"audit_event_id": ev.ID}).Warn("failed to sweep stale audit event")
			continue
		}
		swept++
	}
	if swept > 0 {
		s.log.WithFields(map[string]interface{}{"count": swept}).Info("swept stale pending audit events")
	}
	return swept, nil
}

// Purge deletes completed events older than the retention window.
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	purged, err := s.store.PurgeAuditEvents(ctx, cutoff)
	if err != nil {
		return 0, errors.Internal("purge audit events", err)
	}
	if purged > 0 {
		s.log.WithFields(map[string]interface{}{"count": purged}).Info("purged expired audit events")
	}
	return purged, nil
}

// Close shuts down the attached sinks.
func (s *Service) Close() {
	s.mu.Lock()
	sinks := s.sinks
	s.sinks = nil
	s.mu.Unlock()

	for _, sink := range sinks {
		if err := sink.Close(); err != nil {
			s.log.WithError(err).WithFields(map[string]interface{}{"sink": sink.Name()}).Warn("audit sink close failed")
		}
	}
}
