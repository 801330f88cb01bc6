package funds

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/myrc-project/myrc/internal/app/domain/budget"
	"github.com/myrc-project/myrc/internal/app/domain/fiscal"
	"github.com/myrc-project/myrc/internal/app/domain/rc"
	"github.com/myrc-project/myrc/internal/app/domain/user"
	fiscalsvc "github.com/myrc-project/myrc/internal/app/services/fiscal"
	rcsvc "github.com/myrc-project/myrc/internal/app/services/rc"
	"github.com/myrc-project/myrc/internal/app/storage/memory"
	"github.com/myrc-project/myrc/internal/errors"
)

type fixture struct {
	store  *memory.Store
	rcs    *rcsvc.Service
	fiscal *fiscalsvc.Service
	svc    *Service
	alice  rc.Identity
	bob    rc.Identity
	year   fiscal.Year
	rcID   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	rcService := rcsvc.New(store, store, nil)
	fiscalService := fiscalsvc.New(store, store, store, rcService, nil)
	svc := New(store, fiscalService, nil)

	f := &fixture{store: store, rcs: rcService, fiscal: fiscalService, svc: svc}
	f.alice = seedUser(t, store, "alice")
	f.bob = seedUser(t, store, "bob")

	centre, err := rcService.Create(context.Background(), f.alice, rc.ResponsibilityCentre{Name: "Signals"})
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

func TestMoneyLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dec := decimal.RequireFromString

	money, err := f.svc.CreateMoney(ctx, f.alice, budget.Money{
		FiscalYearID: f.year.ID, Name: "A-Base", CapAmount: dec("1000"), OMAmount: dec("500"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !money.Active || money.Version != 1 {
		t.Fatalf("unexpected money: %+v", money)
	}

	_, err = f.svc.CreateMoney(ctx, f.alice, budget.Money{FiscalYearID: f.year.ID, Name: "a-base"})
	wantCode(t, err, errors.ErrCodeValidation)

	money.OMAmount = dec("600")
	money.Version = 42
	_, err = f.svc.UpdateMoney(ctx, f.alice, f.year.ID, money)
	wantCode(t, err, errors.ErrCodeConflict)

	money.Version = 1
	updated, err := f.svc.UpdateMoney(ctx, f.alice, f.year.ID, money)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.OMAmount.Equal(dec("600")) || updated.Version != 2 {
		t.Fatalf("unexpected money after update: %+v", updated)
	}

	if err := f.svc.DeactivateMoney(ctx, f.alice, f.year.ID, money.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	monies, err := f.svc.ListMonies(ctx, f.alice, f.year.ID, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(monies) != 0 {
		t.Fatalf("expected no active monies, got %d", len(monies))
	}
	all, err := f.svc.ListMonies(ctx, f.alice, f.year.ID, true)
	if err != nil {
		t.Fatalf("list inactive: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one inactive money, got %d", len(all))
	}
}

func TestMoneyValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateMoney(ctx, f.alice, budget.Money{FiscalYearID: f.year.ID, Name: "  "})
	wantCode(t, err, errors.ErrCodeValidation)

	_, err = f.svc.CreateMoney(ctx, f.alice, budget.Money{
		FiscalYearID: f.year.ID, Name: "Negative", CapAmount: decimal.RequireFromString("-1"),
	})
	wantCode(t, err, errors.ErrCodeValidation)
}

func TestMoneyHiddenAcrossYears(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	otherYear, err := f.fiscal.Create(ctx, f.alice, fiscal.Year{RCID: f.rcID, Name: "2026-2027"})
	if err != nil {
		t.Fatalf("create second year: %v", err)
	}

	money, err := f.svc.CreateMoney(ctx, f.alice, budget.Money{FiscalYearID: f.year.ID, Name: "A-Base"})
	if err != nil {
		t.Fatalf("create money: %v", err)
	}

	// Paths naming the wrong fiscal year must not reach the record.
	_, err = f.svc.GetMoney(ctx, f.alice, otherYear.ID, money.ID)
	wantCode(t, err, errors.ErrCodeNotFound)
	money.Name = "Renamed"
	_, err = f.svc.UpdateMoney(ctx, f.alice, otherYear.ID, money)
	wantCode(t, err, errors.ErrCodeNotFound)
	err = f.svc.DeactivateMoney(ctx, f.alice, otherYear.ID, money.ID)
	wantCode(t, err, errors.ErrCodeNotFound)
}

func TestCategoryLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	category, err := f.svc.CreateCategory(ctx, f.alice, budget.Category{FiscalYearID: f.year.ID, Name: "IT Equipment"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = f.svc.CreateCategory(ctx, f.alice, budget.Category{FiscalYearID: f.year.ID, Name: "it equipment"})
	wantCode(t, err, errors.ErrCodeValidation)

	category.Name = "Hardware"
	renamed, err := f.svc.UpdateCategory(ctx, f.alice, f.year.ID, category)
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Name != "Hardware" {
		t.Fatalf("unexpected category: %+v", renamed)
	}

	if err := f.svc.DeactivateCategory(ctx, f.alice, f.year.ID, category.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	categories, err := f.svc.ListCategories(ctx, f.alice, f.year.ID, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(categories) != 0 {
		t.Fatalf("expected no active categories, got %d", len(categories))
	}

	// Deactivating twice is a no-op.
	if err := f.svc.DeactivateCategory(ctx, f.alice, f.year.ID, category.ID); err != nil {
		t.Fatalf("second deactivate: %v", err)
	}
}

func TestFundsAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreateMoney(ctx, f.alice, budget.Money{FiscalYearID: f.year.ID, Name: "A-Base"}); err != nil {
		t.Fatalf("create money: %v", err)
	}

	// Strangers cannot even list.
	_, err := f.svc.ListMonies(ctx, f.bob, f.year.ID, false)
	wantCode(t, err, errors.ErrCodeNotFound)

	if _, err := f.rcs.CreateGrant(ctx, f.alice, rc.AccessGrant{
		RCID: f.rcID, PrincipalType: rc.PrincipalUser, Principal: "bob", Level: rc.AccessReadOnly,
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	monies, err := f.svc.ListMonies(ctx, f.bob, f.year.ID, false)
	if err != nil {
		t.Fatalf("grantee list: %v", err)
	}
	if len(monies) != 1 {
		t.Fatalf("expected one money, got %d", len(monies))
	}

	_, err = f.svc.CreateMoney(ctx, f.bob, budget.Money{FiscalYearID: f.year.ID, Name: "B-Base"})
	wantCode(t, err, errors.ErrCodeForbidden)
	err = f.svc.DeactivateMoney(ctx, f.bob, f.year.ID, monies[0].ID)
	wantCode(t, err, errors.ErrCodeForbidden)
}
