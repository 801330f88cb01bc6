package fiscal

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/myrc-project/myrc/internal/app/domain/budget"
	"github.com/myrc-project/myrc/internal/app/domain/fiscal"
	"github.com/myrc-project/myrc/internal/app/domain/procurement"
	"github.com/myrc-project/myrc/internal/app/domain/rc"
	"github.com/myrc-project/myrc/internal/app/domain/user"
	rcsvc "github.com/myrc-project/myrc/internal/app/services/rc"
	"github.com/myrc-project/myrc/internal/app/storage/memory"
	"github.com/myrc-project/myrc/internal/errors"
)

type fixture struct {
	store  *memory.Store
	rcs    *rcsvc.Service
	svc    *Service
	alice  rc.Identity
	bob    rc.Identity
	centre rc.ResponsibilityCentre
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	rcService := rcsvc.New(store, store, nil)
	svc := New(store, store, store, rcService, nil)

	f := &fixture{store: store, rcs: rcService, svc: svc}
	f.alice = seedUser(t, store, "alice")
	f.bob = seedUser(t, store, "bob")

	centre, err := rcService.Create(context.Background(), f.alice, rc.ResponsibilityCentre{Name: "Fleet Maintenance"})
	if err != nil {
		t.Fatalf("create centre: %v", err)
	}
	f.centre = centre
	return f
}

func seedUser(t *testing.T, store *memory.Store, username string, groups ...string) rc.Identity {
	t.Helper()
	u, err := store.CreateUser(context.Background(), user.User{Username: username, DisplayName: username, Groups: groups})
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return rc.Identity{UserID: u.ID, Username: u.Username, Groups: u.Groups}
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

func TestYearLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	year, err := f.svc.Create(ctx, f.alice, fiscal.Year{RCID: f.centre.ID, Name: "2025-2026"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !year.Active || year.Version != 1 {
		t.Fatalf("unexpected year: %+v", year)
	}

	_, err = f.svc.Create(ctx, f.alice, fiscal.Year{RCID: f.centre.ID, Name: "2025-2026 "})
	wantCode(t, err, errors.ErrCodeValidation)

	year.Name = "FY 2025-2026"
	year.Version = 99
	_, err = f.svc.Update(ctx, f.alice, year)
	wantCode(t, err, errors.ErrCodeConflict)

	year.Version = 1
	updated, err := f.svc.Update(ctx, f.alice, year)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "FY 2025-2026" || updated.Version != 2 {
		t.Fatalf("unexpected year after update: %+v", updated)
	}

	if err := f.svc.Deactivate(ctx, f.alice, year.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	active, err := f.svc.List(ctx, f.alice, f.centre.ID, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active years, got %d", len(active))
	}
	all, err := f.svc.List(ctx, f.alice, f.centre.ID, true)
	if err != nil {
		t.Fatalf("list inactive: %v", err)
	}
	if len(all) != 1 || all[0].Active {
		t.Fatalf("expected one inactive year, got %+v", all)
	}
}

func TestYearAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	year, err := f.svc.Create(ctx, f.alice, fiscal.Year{RCID: f.centre.ID, Name: "2025-2026"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Strangers see nothing.
	_, err = f.svc.Get(ctx, f.bob, year.ID)
	wantCode(t, err, errors.ErrCodeNotFound)
	_, err = f.svc.Create(ctx, f.bob, fiscal.Year{RCID: f.centre.ID, Name: "2026-2027"})
	wantCode(t, err, errors.ErrCodeNotFound)

	// A READ_ONLY grantee can read but not mutate.
	if _, err := f.rcs.CreateGrant(ctx, f.alice, rc.AccessGrant{
		RCID: f.centre.ID, PrincipalType: rc.PrincipalUser, Principal: "bob", Level: rc.AccessReadOnly,
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.bob, year.ID); err != nil {
		t.Fatalf("grantee get: %v", err)
	}
	_, err = f.svc.Create(ctx, f.bob, fiscal.Year{RCID: f.centre.ID, Name: "2026-2027"})
	wantCode(t, err, errors.ErrCodeForbidden)
	err = f.svc.Deactivate(ctx, f.bob, year.ID)
	wantCode(t, err, errors.ErrCodeForbidden)

	// Soft-deleted years are listed for the owner only.
	if err := f.svc.Deactivate(ctx, f.alice, year.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	years, err := f.svc.List(ctx, f.bob, f.centre.ID, true)
	if err != nil {
		t.Fatalf("grantee list: %v", err)
	}
	if len(years) != 0 {
		t.Fatalf("grantee should not see inactive years, got %d", len(years))
	}
}

func TestYearValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.alice, fiscal.Year{RCID: f.centre.ID, Name: "   "})
	wantCode(t, err, errors.ErrCodeValidation)

	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, -1, 0)
	_, err = f.svc.Create(ctx, f.alice, fiscal.Year{RCID: f.centre.ID, Name: "2025-2026", StartDate: &start, EndDate: &end})
	wantCode(t, err, errors.ErrCodeValidation)
}

func TestOwns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.rcs.Create(ctx, f.alice, rc.ResponsibilityCentre{Name: "Other Centre"})
	if err != nil {
		t.Fatalf("create other centre: %v", err)
	}
	year, err := f.svc.Create(ctx, f.alice, fiscal.Year{RCID: f.centre.ID, Name: "2025-2026"})
	if err != nil {
		t.Fatalf("create year: %v", err)
	}

	if err := f.svc.Owns(ctx, f.centre.ID, year.ID); err != nil {
		t.Fatalf("owns: %v", err)
	}
	wantCode(t, f.svc.Owns(ctx, other.ID, year.ID), errors.ErrCodeNotFound)
	wantCode(t, f.svc.Owns(ctx, f.centre.ID, "does-not-exist"), errors.ErrCodeNotFound)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	year, err := f.svc.Create(ctx, f.alice, fiscal.Year{RCID: f.centre.ID, Name: "2025-2026"})
	if err != nil {
		t.Fatalf("create year: %v", err)
	}

	dec := decimal.RequireFromString

	if _, err := f.store.CreateMoney(ctx, budget.Money{
		FiscalYearID: year.ID, Name: "A-Base", CapAmount: dec("1000"), OMAmount: dec("500"),
	}); err != nil {
		t.Fatalf("seed money: %v", err)
	}
	// Soft-deleted envelopes are excluded from the aggregation.
	gone, err := f.store.CreateMoney(ctx, budget.Money{
		FiscalYearID: year.ID, Name: "Lapsed", CapAmount: dec("7777"), OMAmount: dec("7777"),
	})
	if err != nil {
		t.Fatalf("seed lapsed money: %v", err)
	}
	gone.Active = false
	if _, err := f.store.UpdateMoney(ctx, gone); err != nil {
		t.Fatalf("deactivate lapsed money: %v", err)
	}

	if _, err := f.store.CreateFundingItem(ctx, budget.FundingItem{
		FiscalYearID: year.ID, Name: "In-year top-up", CapAmount: dec("200"), OMAmount: dec("100"),
	}); err != nil {
		t.Fatalf("seed funding item: %v", err)
	}

	if _, err := f.store.CreateSpendingItem(ctx, budget.SpendingItem{
		FiscalYearID: year.ID, Name: "Server order", Fund: budget.FundCap, AmountCAD: dec("300"),
	}); err != nil {
		t.Fatalf("seed cap spending: %v", err)
	}
	if _, err := f.store.CreateSpendingItem(ctx, budget.SpendingItem{
		FiscalYearID: year.ID, Name: "Licences", Fund: budget.FundOM, AmountCAD: dec("50"),
	}); err != nil {
		t.Fatalf("seed om spending: %v", err)
	}

	if _, err := f.store.CreateProcurementItem(ctx, procurement.Item{
		FiscalYearID: year.ID, Name: "Rack upgrade", Fund: budget.FundCap, EstimatedCost: dec("100"), Status: procurement.StatusDraft,
	}); err != nil {
		t.Fatalf("seed procurement: %v", err)
	}
	// Closed procurements no longer reserve budget.
	if _, err := f.store.CreateProcurementItem(ctx, procurement.Item{
		FiscalYearID: year.ID, Name: "Old tender", Fund: budget.FundCap, EstimatedCost: dec("999"), Status: procurement.StatusClosed,
	}); err != nil {
		t.Fatalf("seed closed procurement: %v", err)
	}

	if _, err := f.store.CreateTrainingItem(ctx, budget.TrainingItem{
		FiscalYearID: year.ID, CourseName: "First Aid", Member: "cpl smith", CostCAD: dec("25"),
	}); err != nil {
		t.Fatalf("seed training: %v", err)
	}

	// Travel prefers the actual cost once recorded.
	if _, err := f.store.CreateTravelItem(ctx, budget.TravelItem{
		FiscalYearID: year.ID, Destination: "Ottawa", Traveller: "maj jones", EstimatedCost: dec("40"),
	}); err != nil {
		t.Fatalf("seed projected travel: %v", err)
	}
	if _, err := f.store.CreateTravelItem(ctx, budget.TravelItem{
		FiscalYearID: year.ID, Destination: "Halifax", Traveller: "maj jones", EstimatedCost: dec("99"), ActualCost: dec("10"),
	}); err != nil {
		t.Fatalf("seed completed travel: %v", err)
	}

	summary, err := f.svc.Summary(ctx, f.alice, year.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"funding cap", summary.FundingCap, "1200"},
		{"funding om", summary.FundingOM, "600"},
		{"spending cap", summary.SpendingCap, "300"},
		{"spending om", summary.SpendingOM, "50"},
		{"procurement cap", summary.ProcurementEstimatesCap, "100"},
		{"procurement om", summary.ProcurementEstimatesOM, "0"},
		{"training", summary.TrainingCost, "25"},
		{"travel", summary.TravelCost, "50"},
		{"remaining cap", summary.RemainingCap, "800"},
		{"remaining om", summary.RemainingOM, "475"},
	}
	for _, check := range checks {
		if !check.got.Equal(dec(check.want)) {
			t.Errorf("%s: got %s, want %s", check.name, check.got, check.want)
		}
	}

	// Read access is enough for the summary; strangers get nothing.
	_, err = f.svc.Summary(ctx, f.bob, year.ID)
	wantCode(t, err, errors.ErrCodeNotFound)
}
