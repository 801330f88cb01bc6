package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/myrc-project/myrc/internal/app/domain/audit"
	"github.com/myrc-project/myrc/internal/app/domain/budget"
	"github.com/myrc-project/myrc/internal/app/domain/fiscal"
	"github.com/myrc-project/myrc/internal/app/domain/procurement"
	"github.com/myrc-project/myrc/internal/app/domain/rc"
	"github.com/myrc-project/myrc/internal/app/domain/user"
	"github.com/myrc-project/myrc/internal/app/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	return New(db), mock, func() { db.Close() }
}

func TestUpdateRCVersionConflict(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	mock.ExpectExec("UPDATE responsibility_centres").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := store.UpdateRC(context.Background(), rc.ResponsibilityCentre{ID: "rc-1", Name: "Ops", Version: 1})
	if !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateRCMissingRow(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	mock.ExpectExec("UPDATE responsibility_centres").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := store.UpdateRC(context.Background(), rc.ResponsibilityCentre{ID: "rc-missing", Name: "Ops", Version: 1})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateUserFillsDefaults(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := store.CreateUser(context.Background(), user.User{Username: "jsmith", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}
	if !created.Active {
		t.Fatal("expected new user to be active")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetSpendingItemScansInvoicePresence(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "fiscal_year_id", "category_id", "name", "fund", "amount", "currency",
		"exchange_rate", "amount_cad", "commitment_number", "notes", "has_invoice",
		"active", "version", "created_at", "updated_at",
	}).AddRow("sp-1", "fy-1", nil, "laptops", "CAP", "1999.99", "CAD", "1", "1999.99", "", "", true, true, int64(3), now, now)
	mock.ExpectQuery("SELECT (.+) FROM spending_items").WillReturnRows(rows)

	item, err := store.GetSpendingItem(context.Background(), "sp-1")
	if err != nil {
		t.Fatalf("get spending item: %v", err)
	}
	if !item.HasInvoice {
		t.Fatal("expected has_invoice to be scanned")
	}
	if item.CategoryID != "" {
		t.Fatalf("expected empty category id for NULL column, got %q", item.CategoryID)
	}
	if !item.Amount.Equal(decimal.RequireFromString("1999.99")) {
		t.Fatalf("unexpected amount %s", item.Amount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCompleteAuditEventMissing(t *testing.T) {
	store, mock, done := newMockStore(t)
	defer done()

	mock.ExpectExec("UPDATE audit_events").WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.CompleteAuditEvent(context.Background(), "nope", audit.OutcomeSuccess, "", time.Now())
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := RunMigrations(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := New(db)
	ctx := context.Background()

	owner, err := store.CreateUser(ctx, user.User{Username: "it-owner", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	centre, err := store.CreateRC(ctx, rc.ResponsibilityCentre{Name: "Integration RC", OwnerID: owner.ID})
	if err != nil {
		t.Fatalf("create rc: %v", err)
	}

	fy, err := store.CreateFiscalYear(ctx, fiscal.Year{RCID: centre.ID, Name: "2025-2026"})
	if err != nil {
		t.Fatalf("create fiscal year: %v", err)
	}

	spend, err := store.CreateSpendingItem(ctx, budget.SpendingItem{
		FiscalYearID: fy.ID,
		Name:         "monitor",
		Fund:         budget.FundCap,
		Amount:       decimal.RequireFromString("450.00"),
		Currency:     budget.DefaultCurrency,
		ExchangeRate: decimal.NewFromInt(1),
		AmountCAD:    decimal.RequireFromString("450.00"),
	})
	if err != nil {
		t.Fatalf("create spending item: %v", err)
	}

	if err := store.PutInvoice(ctx, budget.Attachment{OwnerID: spend.ID, Filename: "inv.pdf", SizeBytes: 3, Data: []byte("pdf"), UploadedBy: owner.ID}); err != nil {
		t.Fatalf("put invoice: %v", err)
	}
	got, err := store.GetSpendingItem(ctx, spend.ID)
	if err != nil {
		t.Fatalf("get spending item: %v", err)
	}
	if !got.HasInvoice {
		t.Fatal("expected has_invoice after upload")
	}

	proc, err := store.CreateProcurementItem(ctx, procurement.Item{
		FiscalYearID:  fy.ID,
		Name:          "switch",
		Fund:          budget.FundCap,
		EstimatedCost: decimal.RequireFromString("1200.00"),
		Status:        procurement.StatusDraft,
	})
	if err != nil {
		t.Fatalf("create procurement item: %v", err)
	}
	if _, err := store.CreateEvent(ctx, procurement.Event{ProcurementItemID: proc.ID, EventType: procurement.EventNote, Description: "requested"}); err != nil {
		t.Fatalf("create event: %v", err)
	}

	ev, err := store.CreateAuditEvent(ctx, audit.Event{UserID: owner.ID, Username: owner.Username, Action: "CREATE_RC", EntityType: "ResponsibilityCentre", EntityID: centre.ID, RCID: centre.ID})
	if err != nil {
		t.Fatalf("create audit event: %v", err)
	}
	if ev.Outcome != audit.OutcomePending {
		t.Fatalf("expected pending outcome, got %s", ev.Outcome)
	}
	if _, err := store.CompleteAuditEvent(ctx, ev.ID, audit.OutcomeSuccess, "", time.Now()); err != nil {
		t.Fatalf("complete audit event: %v", err)
	}
}
