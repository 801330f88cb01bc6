package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/myrc-project/myrc/internal/app/domain/audit"
	"github.com/myrc-project/myrc/internal/app/domain/fiscal"
	"github.com/myrc-project/myrc/internal/app/domain/rc"
	"github.com/myrc-project/myrc/internal/app/domain/user"
	fiscalsvc "github.com/myrc-project/myrc/internal/app/services/fiscal"
	rcsvc "github.com/myrc-project/myrc/internal/app/services/rc"
	"github.com/myrc-project/myrc/internal/app/storage/memory"
	"github.com/myrc-project/myrc/internal/errors"
)

type fixture struct {
	store *memory.Store
	rcs   *rcsvc.Service
	svc   *Service
	alice rc.Identity
	bob   rc.Identity
	rcID  string
	year  fiscal.Year
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	rcService := rcsvc.New(store, store, nil)
	fiscalService := fiscalsvc.New(store, store, store, rcService, nil)
	svc := New(store, rcService, store, store, 4, nil)

	f := &fixture{store: store, rcs: rcService, svc: svc}
	f.alice = seedUser(t, store, "alice")
	f.bob = seedUser(t, store, "bob")

	centre, err := rcService.Create(context.Background(), f.alice, rc.ResponsibilityCentre{Name: "Engineering"})
	if err != nil {
		t.Fatalf("create centre: %v", err)
	}
	f.rcID = centre.ID

	year, err := fiscalService.Create(context.Background(), f.alice, fiscal.Year{RCID: centre.ID, Name: "2025-2026"})
	if err != nil {
		t.Fatalf("create year: %v", err)
	}
	f.year = year
	return f
}

func seedUser(t *testing.T, store *memory.Store, username string) rc.Identity {
	t.Helper()
	u, err := store.CreateUser(context.Background(), user.User{Username: username, DisplayName: username})
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return rc.Identity{UserID: u.ID, Username: u.Username}
}

// record runs the full two-phase write and returns the completed event ID.
func (f *fixture) record(t *testing.T, id rc.Identity, entry Entry, opErr error) string {
	t.Helper()
	eventID, err := f.svc.Begin(context.Background(), id, entry)
	if err != nil {
		t.Fatalf("begin %s: %v", entry.Action, err)
	}
	f.svc.Complete(context.Background(), eventID, opErr)
	return eventID
}

func wantCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	svcErr := errors.GetServiceError(err)
	if svcErr == nil {
		t.Fatalf("expected %s error, got %v", code, err)
	}
	if svcErr.Code != code {
		t.Fatalf("expected %s error, got %s: %s", code, svcErr.Code, svcErr.Message)
	}
}

func TestBeginDenormalisesContext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	eventID, err := f.svc.Begin(ctx, f.alice, Entry{
		Action:       "CREATE_MONEY",
		EntityType:   "money",
		EntityID:     "42",
		FiscalYearID: f.year.ID,
		Detail:       "A-Base",
	})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	stored, err := f.store.GetAuditEvent(ctx, eventID)
	if err != nil {
		t.Fatalf("load event: %v", err)
	}
	if stored.Outcome != audit.OutcomePending {
		t.Fatalf("expected PENDING, got %s", stored.Outcome)
	}
	if stored.Username != "alice" || stored.UserID != f.alice.UserID {
		t.Fatalf("caller not recorded: %+v", stored)
	}
	if stored.RCID != f.rcID || stored.RCName != "Engineering" || stored.FiscalYear != "2025-2026" {
		t.Fatalf("context not denormalised: %+v", stored)
	}
	if stored.CompletedAt != nil {
		t.Fatalf("pending event must not carry a completion time")
	}

	// An RC-level action carries the centre name but no fiscal year.
	eventID, err = f.svc.Begin(ctx, f.alice, Entry{Action: "UPDATE_RC", EntityType: "rc", RCID: f.rcID})
	if err != nil {
		t.Fatalf("begin rc action: %v", err)
	}
	stored, _ = f.store.GetAuditEvent(ctx, eventID)
	if stored.RCName != "Engineering" || stored.FiscalYear != "" {
		t.Fatalf("unexpected rc-level denormalisation: %+v", stored)
	}
}

func TestCompleteSettlesOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	okID := f.record(t, f.alice, Entry{Action: "CREATE_RC", EntityType: "rc"}, nil)
	stored, _ := f.store.GetAuditEvent(ctx, okID)
	if stored.Outcome != audit.OutcomeSuccess || stored.Error != "" || stored.CompletedAt == nil {
		t.Fatalf("unexpected success record: %+v", stored)
	}

	failedID := f.record(t, f.alice, Entry{Action: "UPDATE_RC", EntityType: "rc", RCID: f.rcID}, fmt.Errorf("version conflict"))
	stored, _ = f.store.GetAuditEvent(ctx, failedID)
	if stored.Outcome != audit.OutcomeFailure || stored.Error != "version conflict" {
		t.Fatalf("unexpected failure record: %+v", stored)
	}

	// Unknown or empty IDs are absorbed; the request must not blow up on
	// audit bookkeeping.
	f.svc.Complete(ctx, "", nil)
	f.svc.Complete(ctx, "no-such-event", nil)
}

func TestRecentIsSelfScopedAndBounded(t *testing.T) {
	f := newFixture(t)

	// The fixture's ring holds four events. Six completions leave the two
	// oldest evicted.
	f.record(t, f.alice, Entry{Action: "ACTION_0"}, nil)
	f.record(t, f.alice, Entry{Action: "ACTION_1"}, nil)
	f.record(t, f.bob, Entry{Action: "BOB_ACTION"}, nil)
	f.record(t, f.alice, Entry{Action: "ACTION_2"}, nil)
	f.record(t, f.alice, Entry{Action: "ACTION_3"}, nil)
	f.record(t, f.alice, Entry{Action: "ACTION_4"}, nil)

	recent := f.svc.Recent(f.alice, 50)
	if len(recent) != 3 {
		t.Fatalf("expected 3 surviving alice events, got %d", len(recent))
	}
	if recent[0].Action != "ACTION_4" || recent[2].Action != "ACTION_2" {
		t.Fatalf("expected newest first, got %+v", recent)
	}
	for _, ev := range recent {
		if ev.UserID != f.alice.UserID {
			t.Fatalf("foreign event leaked into recent: %+v", ev)
		}
	}

	if got := f.svc.Recent(f.alice, 2); len(got) != 2 || got[0].Action != "ACTION_4" {
		t.Fatalf("limit not applied: %+v", got)
	}
	if got := f.svc.Recent(f.bob, 50); len(got) != 1 || got[0].Action != "BOB_ACTION" {
		t.Fatalf("unexpected recent for bob: %+v", got)
	}
}

func TestListForRCRequiresOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.record(t, f.alice, Entry{Action: "FIRST_ACTION", EntityType: "rc", RCID: f.rcID}, nil)
	f.record(t, f.alice, Entry{Action: "SECOND_ACTION", EntityType: "rc", RCID: f.rcID}, nil)

	events, err := f.svc.ListForRC(ctx, f.alice, f.rcID, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 || events[0].Action != "SECOND_ACTION" {
		t.Fatalf("expected newest first, got %+v", events)
	}

	if got, _ := f.svc.ListForRC(ctx, f.alice, f.rcID, 1); len(got) != 1 {
		t.Fatalf("limit not applied, got %d", len(got))
	}

	// A READ_WRITE grantee still cannot read the trail.
	if _, err := f.rcs.CreateGrant(ctx, f.alice, rc.AccessGrant{
		RCID: f.rcID, PrincipalType: rc.PrincipalUser, Principal: "bob", Level: rc.AccessReadWrite,
	}); err != nil {
		t.Fatalf("grant bob: %v", err)
	}
	_, err = f.svc.ListForRC(ctx, f.bob, f.rcID, 0)
	wantCode(t, err, errors.ErrCodeForbidden)

	carol := seedUser(t, f.store, "carol")
	_, err = f.svc.ListForRC(ctx, carol, f.rcID, 0)
	wantCode(t, err, errors.ErrCodeNotFound)
}

func TestSweepStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale, err := f.store.CreateAuditEvent(ctx, audit.Event{
		UserID:     f.alice.UserID,
		Username:   "alice",
		Action:     "CREATE_MONEY",
		EntityType: "money",
		Outcome:    audit.OutcomePending,
		OccurredAt: time.Now().UTC().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("seed stale event: %v", err)
	}

	freshID, err := f.svc.Begin(ctx, f.alice, Entry{Action: "CREATE_CATEGORY", EntityType: "category"})
	if err != nil {
		t.Fatalf("begin fresh event: %v", err)
	}

	swept, err := f.svc.SweepStale(ctx, 15*time.Minute)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected 1 swept event, got %d", swept)
	}

	got, _ := f.store.GetAuditEvent(ctx, stale.ID)
	if got.Outcome != audit.OutcomeFailure || got.Error != "interrupted" {
		t.Fatalf("stale event not failed: %+v", got)
	}
	got, _ = f.store.GetAuditEvent(ctx, freshID)
	if got.Outcome != audit.OutcomePending {
		t.Fatalf("fresh pending event must survive the sweep: %+v", got)
	}
}

func TestPurgeKeepsPendingAndRecent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	expired, err := f.store.CreateAuditEvent(ctx, audit.Event{
		Username: "alice", Action: "CREATE_RC", Outcome: audit.OutcomeSuccess, OccurredAt: old,
	})
	if err != nil {
		t.Fatalf("seed expired event: %v", err)
	}
	oldPending, err := f.store.CreateAuditEvent(ctx, audit.Event{
		Username: "alice", Action: "UPDATE_RC", Outcome: audit.OutcomePending, OccurredAt: old,
	})
	if err != nil {
		t.Fatalf("seed old pending event: %v", err)
	}
	recent := f.record(t, f.alice, Entry{Action: "CREATE_GRANT"}, nil)

	purged, err := f.svc.Purge(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged event, got %d", purged)
	}

	if _, err := f.store.GetAuditEvent(ctx, expired.ID); err == nil {
		t.Fatalf("expired event should be gone")
	}
	if _, err := f.store.GetAuditEvent(ctx, oldPending.ID); err != nil {
		t.Fatalf("pending event must never be purged: %v", err)
	}
	if _, err := f.store.GetAuditEvent(ctx, recent); err != nil {
		t.Fatalf("recent event must survive: %v", err)
	}
}

func TestFileSinkWritesCompletedEvents(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}
	f.svc.AttachSink(sink)

	f.record(t, f.alice, Entry{Action: "CREATE_RC", EntityType: "rc", RCID: f.rcID}, nil)
	f.record(t, f.alice, Entry{Action: "UPDATE_RC", EntityType: "rc", RCID: f.rcID}, fmt.Errorf("boom"))
	f.svc.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sink file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSONL lines, got %d", len(lines))
	}

	var first, second audit.Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("parse first line: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("parse second line: %v", err)
	}
	if first.Action != "CREATE_RC" || first.Outcome != audit.OutcomeSuccess {
		t.Fatalf("unexpected first line: %+v", first)
	}
	if second.Outcome != audit.OutcomeFailure || second.Error != "boom" {
		t.Fatalf("unexpected second line: %+v", second)
	}
}

func TestJanitorSweepsOnStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale, err := f.store.CreateAuditEvent(ctx, audit.Event{
		Username: "alice", Action: "CREATE_MONEY", Outcome: audit.OutcomePending,
		OccurredAt: time.Now().UTC().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("seed stale event: %v", err)
	}

	janitor := NewJanitor(f.svc, "0 3 * * *", 15*time.Minute, 24*time.Hour, nil)
	if err := janitor.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := janitor.Start(ctx); err != nil {
		t.Fatalf("second start must be a no-op: %v", err)
	}

	got, _ := f.store.GetAuditEvent(ctx, stale.ID)
	if got.Outcome != audit.OutcomeFailure {
		t.Fatalf("startup sweep did not run: %+v", got)
	}

	if err := janitor.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := janitor.Stop(ctx); err != nil {
		t.Fatalf("second stop must be a no-op: %v", err)
	}
}
