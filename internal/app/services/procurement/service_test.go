package procurement

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/myrc-project/myrc/internal/app/domain/budget"
	"github.com/myrc-project/myrc/internal/app/domain/fiscal"
	"github.com/myrc-project/myrc/internal/app/domain/procurement"
	"github.com/myrc-project/myrc/internal/app/domain/rc"
	"github.com/myrc-project/myrc/internal/app/domain/user"
	fiscalsvc "github.com/myrc-project/myrc/internal/app/services/fiscal"
	rcsvc "github.com/myrc-project/myrc/internal/app/services/rc"
	"github.com/myrc-project/myrc/internal/app/storage/memory"
	"github.com/myrc-project/myrc/internal/errors"
)

type fixture struct {
	store  *memory.Store
	fiscal *fiscalsvc.Service
	svc    *Service
	alice  rc.Identity
	year   fiscal.Year
	rcID   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	rcService := rcsvc.New(store, store, nil)
	fiscalService := fiscalsvc.New(store, store, store, rcService, nil)
	svc := New(store, store, fiscalService, nil)

	f := &fixture{store: store, fiscal: fiscalService, svc: svc}

	u, err := store.CreateUser(context.Background(), user.User{Username: "alice", DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	f.alice = rc.Identity{UserID: u.ID, Username: u.Username}

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

func (f *fixture) createItem(t *testing.T, name string) procurement.Item {
	t.Helper()
	item, err := f.svc.CreateItem(context.Background(), f.alice, procurement.Item{
		FiscalYearID: f.year.ID, Name: name, Fund: budget.FundCap,
		EstimatedCost: decimal.RequireFromString("1000"),
	})
	if err != nil {
		t.Fatalf("create procurement item: %v", err)
	}
	return item
}

func (f *fixture) createQuote(t *testing.T, itemID, vendor string) procurement.Quote {
	t.Helper()
	quote, err := f.svc.CreateQuote(context.Background(), f.alice, f.year.ID, itemID, procurement.Quote{
		Vendor: vendor, Amount: decimal.RequireFromString("900"),
	})
	if err != nil {
		t.Fatalf("create quote for %s: %v", vendor, err)
	}
	return quote
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

func TestItemLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := f.createItem(t, "Rack upgrade")
	if item.Status != procurement.StatusDraft {
		t.Fatalf("expected DRAFT default, got %s", item.Status)
	}

	_, err := f.svc.CreateItem(ctx, f.alice, procurement.Item{
		FiscalYearID: f.year.ID, Name: "rack UPGRADE", Fund: budget.FundCap,
	})
	wantCode(t, err, errors.ErrCodeValidation)

	_, err = f.svc.CreateItem(ctx, f.alice, procurement.Item{
		FiscalYearID: f.year.ID, Name: "Wishlist", Fund: budget.FundCap, Status: "WISHLIST",
	})
	wantCode(t, err, errors.ErrCodeValidation)

	item.Status = procurement.StatusSubmitted
	item.Version = 77
	_, err = f.svc.UpdateItem(ctx, f.alice, f.year.ID, item)
	wantCode(t, err, errors.ErrCodeConflict)

	item.Version = 1
	updated, err := f.svc.UpdateItem(ctx, f.alice, f.year.ID, item)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != procurement.StatusSubmitted {
		t.Fatalf("expected SUBMITTED, got %s", updated.Status)
	}

	if err := f.svc.DeactivateItem(ctx, f.alice, f.year.ID, item.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	list, err := f.svc.ListItems(ctx, f.alice, f.year.ID, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no active items, got %d", len(list))
	}
}

func TestStatusChangeRecordsEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := f.createItem(t, "Vehicle lease")

	item.Status = procurement.StatusSubmitted
	item.Version = 1
	updated, err := f.svc.UpdateItem(ctx, f.alice, f.year.ID, item)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	events, err := f.svc.ListEvents(ctx, f.alice, f.year.ID, item.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one status change event, got %d", len(events))
	}
	ev := events[0]
	if ev.EventType != procurement.EventStatusChange || ev.CreatedBy != "alice" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if !strings.Contains(ev.Description, string(procurement.StatusDraft)) || !strings.Contains(ev.Description, string(procurement.StatusSubmitted)) {
		t.Fatalf("event should name both statuses: %q", ev.Description)
	}

	// Updates that keep the status quiet leave the timeline alone.
	updated.Description = "24 month lease"
	if _, err := f.svc.UpdateItem(ctx, f.alice, f.year.ID, updated); err != nil {
		t.Fatalf("second update: %v", err)
	}
	events, _ = f.svc.ListEvents(ctx, f.alice, f.year.ID, item.ID)
	if len(events) != 1 {
		t.Fatalf("expected no extra event, got %d", len(events))
	}
}

func TestQuoteSelectionIsExclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := f.createItem(t, "Laptops")
	first := f.createQuote(t, item.ID, "Vendor A")
	second := f.createQuote(t, item.ID, "Vendor B")
	if first.Selected || second.Selected {
		t.Fatalf("new quotes must not be selected")
	}

	if _, err := f.svc.SelectQuote(ctx, f.alice, f.year.ID, item.ID, first.ID); err != nil {
		t.Fatalf("select first: %v", err)
	}
	if _, err := f.svc.SelectQuote(ctx, f.alice, f.year.ID, item.ID, second.ID); err != nil {
		t.Fatalf("select second: %v", err)
	}

	quotes, err := f.svc.ListQuotes(ctx, f.alice, f.year.ID, item.ID, false)
	if err != nil {
		t.Fatalf("list quotes: %v", err)
	}
	var selected []string
	for _, q := range quotes {
		if q.Selected {
			selected = append(selected, q.ID)
		}
	}
	if len(selected) != 1 || selected[0] != second.ID {
		t.Fatalf("expected only the second quote selected, got %v", selected)
	}

	// Deactivating the selected quote clears the selection.
	if err := f.svc.DeactivateQuote(ctx, f.alice, f.year.ID, item.ID, second.ID); err != nil {
		t.Fatalf("deactivate selected: %v", err)
	}
	quotes, _ = f.svc.ListQuotes(ctx, f.alice, f.year.ID, item.ID, false)
	for _, q := range quotes {
		if q.Selected {
			t.Fatalf("no quote should remain selected, got %+v", q)
		}
	}

	// Inactive quotes cannot be selected again.
	_, err = f.svc.SelectQuote(ctx, f.alice, f.year.ID, item.ID, second.ID)
	wantCode(t, err, errors.ErrCodeValidation)
}

func TestQuoteValidationAndCurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dec := decimal.RequireFromString

	item := f.createItem(t, "Radios")

	_, err := f.svc.CreateQuote(ctx, f.alice, f.year.ID, item.ID, procurement.Quote{Vendor: "  "})
	wantCode(t, err, errors.ErrCodeValidation)

	quote, err := f.svc.CreateQuote(ctx, f.alice, f.year.ID, item.ID, procurement.Quote{
		Vendor: "US Supplier", Amount: dec("100"), Currency: "usd", ExchangeRate: dec("1.35"),
	})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}
	if quote.Currency != "USD" || !quote.AmountCAD.Equal(dec("135")) {
		t.Fatalf("unexpected quote normalisation: %+v", quote)
	}

	// The selected flag only moves through SelectQuote.
	quote.Selected = true
	quote.Notes = "preferred"
	updated, err := f.svc.UpdateQuote(ctx, f.alice, f.year.ID, item.ID, quote)
	if err != nil {
		t.Fatalf("update quote: %v", err)
	}
	if updated.Selected {
		t.Fatalf("update must not set the selected flag")
	}
}

func TestQuoteFileLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := f.createItem(t, "Projectors")
	quote := f.createQuote(t, item.ID, "AV Supplier")

	err := f.svc.PutQuoteFile(ctx, f.alice, f.year.ID, item.ID, quote.ID, budget.Attachment{Filename: "quote.pdf"})
	wantCode(t, err, errors.ErrCodeValidation)

	payload := []byte("%PDF-1.4 quote document")
	if err := f.svc.PutQuoteFile(ctx, f.alice, f.year.ID, item.ID, quote.ID, budget.Attachment{
		Filename: "quote.pdf", ContentType: "application/pdf", Data: payload,
	}); err != nil {
		t.Fatalf("put quote file: %v", err)
	}

	att, err := f.svc.GetQuoteFile(ctx, f.alice, f.year.ID, item.ID, quote.ID)
	if err != nil {
		t.Fatalf("get quote file: %v", err)
	}
	if att.Filename != "quote.pdf" || att.UploadedBy != "alice" || !bytes.Equal(att.Data, payload) {
		t.Fatalf("unexpected attachment: %+v", att)
	}

	reloaded, err := f.svc.GetQuote(ctx, f.alice, f.year.ID, item.ID, quote.ID)
	if err != nil {
		t.Fatalf("get quote: %v", err)
	}
	if !reloaded.HasFile {
		t.Fatalf("expected has_file after upload")
	}

	if err := f.svc.DeleteQuoteFile(ctx, f.alice, f.year.ID, item.ID, quote.ID); err != nil {
		t.Fatalf("delete quote file: %v", err)
	}
	_, err = f.svc.GetQuoteFile(ctx, f.alice, f.year.ID, item.ID, quote.ID)
	wantCode(t, err, errors.ErrCodeNotFound)
}

func TestTimelineEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := f.createItem(t, "Furniture")

	_, err := f.svc.CreateEvent(ctx, f.alice, f.year.ID, item.ID, procurement.Event{Description: "  "})
	wantCode(t, err, errors.ErrCodeValidation)
	_, err = f.svc.CreateEvent(ctx, f.alice, f.year.ID, item.ID, procurement.Event{
		EventType: "GUESS", Description: "x",
	})
	wantCode(t, err, errors.ErrCodeValidation)

	note, err := f.svc.CreateEvent(ctx, f.alice, f.year.ID, item.ID, procurement.Event{Description: "Spoke to vendor"})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if note.EventType != procurement.EventNote || note.CreatedBy != "alice" || note.OccurredAt.IsZero() {
		t.Fatalf("unexpected note: %+v", note)
	}

	if _, err := f.svc.CreateEvent(ctx, f.alice, f.year.ID, item.ID, procurement.Event{
		EventType: procurement.EventPOCreated, Description: "PO 4500012345",
	}); err != nil {
		t.Fatalf("create po event: %v", err)
	}

	events, err := f.svc.ListEvents(ctx, f.alice, f.year.ID, item.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected two events, got %d", len(events))
	}

	// Events on another item are unreachable through this item's path.
	other := f.createItem(t, "Other purchase")
	err = f.svc.DeleteEvent(ctx, f.alice, f.year.ID, other.ID, note.ID)
	wantCode(t, err, errors.ErrCodeNotFound)

	if err := f.svc.DeleteEvent(ctx, f.alice, f.year.ID, item.ID, note.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	events, _ = f.svc.ListEvents(ctx, f.alice, f.year.ID, item.ID)
	if len(events) != 1 {
		t.Fatalf("expected one event after delete, got %d", len(events))
	}
}

func TestQuotesHiddenAcrossItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item := f.createItem(t, "Printers")
	other := f.createItem(t, "Scanners")
	quote := f.createQuote(t, item.ID, "Vendor A")

	_, err := f.svc.GetQuote(ctx, f.alice, f.year.ID, other.ID, quote.ID)
	wantCode(t, err, errors.ErrCodeNotFound)
	_, err = f.svc.SelectQuote(ctx, f.alice, f.year.ID, other.ID, quote.ID)
	wantCode(t, err, errors.ErrCodeNotFound)
}
