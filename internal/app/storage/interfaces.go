package storage

import (
	"context"
	"time"

	"github.com/myrc-project/myrc/internal/app/domain/audit"
	"github.com/myrc-project/myrc/internal/app/domain/budget"
	"github.com/myrc-project/myrc/internal/app/domain/fiscal"
	"github.com/myrc-project/myrc/internal/app/domain/procurement"
	"github.com/myrc-project/myrc/internal/app/domain/rc"
	"github.com/myrc-project/myrc/internal/app/domain/user"
)

// UserStore persists user records.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
}

// RCStore persists responsibility centres and their access grants.
type RCStore interface {
	CreateRC(ctx context.Context, centre rc.ResponsibilityCentre) (rc.ResponsibilityCentre, error)
	UpdateRC(ctx context.Context, centre rc.ResponsibilityCentre) (rc.ResponsibilityCentre, error)
	GetRC(ctx context.Context, id string) (rc.ResponsibilityCentre, error)
	ListRCsByOwner(ctx context.Context, ownerID string, includeInactive bool) ([]rc.ResponsibilityCentre, error)
	ListDemoRCs(ctx context.Context) ([]rc.ResponsibilityCentre, error)
	ListRCsByIDs(ctx context.Context, ids []string) ([]rc.ResponsibilityCentre, error)

	CreateAccessGrant(ctx context.Context, grant rc.AccessGrant) (rc.AccessGrant, error)
	UpdateAccessGrant(ctx context.Context, grant rc.AccessGrant) (rc.AccessGrant, error)
	GetAccessGrant(ctx context.Context, id string) (rc.AccessGrant, error)
	ListAccessGrants(ctx context.Context, rcID string, includeInactive bool) ([]rc.AccessGrant, error)
	ListGrantsForPrincipals(ctx context.Context, principals []string) ([]rc.AccessGrant, error)
}

// FiscalYearStore persists fiscal years.
type FiscalYearStore interface {
	CreateFiscalYear(ctx context.Context, fy fiscal.Year) (fiscal.Year, error)
	UpdateFiscalYear(ctx context.Context, fy fiscal.Year) (fiscal.Year, error)
	GetFiscalYear(ctx context.Context, id string) (fiscal.Year, error)
	ListFiscalYears(ctx context.Context, rcID string, includeInactive bool) ([]fiscal.Year, error)
}

// BudgetStore persists funding envelopes, categories, and the
// funding/spending/training/travel items of a fiscal year.
type BudgetStore interface {
	CreateMoney(ctx context.Context, m budget.Money) (budget.Money, error)
	UpdateMoney(ctx context.Context, m budget.Money) (budget.Money, error)
	GetMoney(ctx context.Context, id string) (budget.Money, error)
	ListMonies(ctx context.Context, fiscalYearID string, includeInactive bool) ([]budget.Money, error)

	CreateCategory(ctx context.Context, c budget.Category) (budget.Category, error)
	UpdateCategory(ctx context.Context, c budget.Category) (budget.Category, error)
	GetCategory(ctx context.Context, id string) (budget.Category, error)
	ListCategories(ctx context.Context, fiscalYearID string, includeInactive bool) ([]budget.Category, error)

	CreateFundingItem(ctx context.Context, item budget.FundingItem) (budget.FundingItem, error)
	UpdateFundingItem(ctx context.Context, item budget.FundingItem) (budget.FundingItem, error)
	GetFundingItem(ctx context.Context, id string) (budget.FundingItem, error)
	ListFundingItems(ctx context.Context, fiscalYearID string, includeInactive bool) ([]budget.FundingItem, error)

	CreateSpendingItem(ctx context.Context, item budget.SpendingItem) (budget.SpendingItem, error)
	UpdateSpendingItem(ctx context.Context, item budget.SpendingItem) (budget.SpendingItem, error)
	GetSpendingItem(ctx context.Context, id string) (budget.SpendingItem, error)
	ListSpendingItems(ctx context.Context, fiscalYearID string, includeInactive bool) ([]budget.SpendingItem, error)

	PutInvoice(ctx context.Context, att budget.Attachment) error
	GetInvoice(ctx context.Context, spendingItemID string) (budget.Attachment, error)
	DeleteInvoice(ctx context.Context, spendingItemID string) error

	CreateTrainingItem(ctx context.Context, item budget.TrainingItem) (budget.TrainingItem, error)
	UpdateTrainingItem(ctx context.Context, item budget.TrainingItem) (budget.TrainingItem, error)
	GetTrainingItem(ctx context.Context, id string) (budget.TrainingItem, error)
	ListTrainingItems(ctx context.Context, fiscalYearID string, includeInactive bool) ([]budget.TrainingItem, error)

	CreateTravelItem(ctx context.Context, item budget.TravelItem) (budget.TravelItem, error)
	UpdateTravelItem(ctx context.Context, item budget.TravelItem) (budget.TravelItem, error)
	GetTravelItem(ctx context.Context, id string) (budget.TravelItem, error)
	ListTravelItems(ctx context.Context, fiscalYearID string, includeInactive bool) ([]budget.TravelItem, error)
}

// ProcurementStore persists procurement items, vendor quotes, quote files,
// and tracking events.
type ProcurementStore interface {
	CreateProcurementItem(ctx context.Context, item procurement.Item) (procurement.Item, error)
	UpdateProcurementItem(ctx context.Context, item procurement.Item) (procurement.Item, error)
	GetProcurementItem(ctx context.Context, id string) (procurement.Item, error)
	ListProcurementItems(ctx context.Context, fiscalYearID string, includeInactive bool) ([]procurement.Item, error)

	CreateQuote(ctx context.Context, q procurement.Quote) (procurement.Quote, error)
	UpdateQuote(ctx context.Context, q procurement.Quote) (procurement.Quote, error)
	GetQuote(ctx context.Context, id string) (procurement.Quote, error)
	ListQuotes(ctx context.Context, procurementItemID string, includeInactive bool) ([]procurement.Quote, error)
	ClearSelectedQuotes(ctx context.Context, procurementItemID string) error

	PutQuoteFile(ctx context.Context, att budget.Attachment) error
	GetQuoteFile(ctx context.Context, quoteID string) (budget.Attachment, error)
	DeleteQuoteFile(ctx context.Context, quoteID string) error

	CreateEvent(ctx context.Context, ev procurement.Event) (procurement.Event, error)
	GetEvent(ctx context.Context, id string) (procurement.Event, error)
	ListEvents(ctx context.Context, procurementItemID string) ([]procurement.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// AuditStore persists the audit trail. Events are inserted PENDING and
// completed in place; everything else is read-only.
type AuditStore interface {
	CreateAuditEvent(ctx context.Context, ev audit.Event) (audit.Event, error)
	CompleteAuditEvent(ctx context.Context, id string, outcome audit.Outcome, errMsg string, completedAt time.Time) (audit.Event, error)
	GetAuditEvent(ctx context.Context, id string) (audit.Event, error)
	ListAuditEvents(ctx context.Context, rcID string, limit int) ([]audit.Event, error)
	ListStalePending(ctx context.Context, olderThan time.Time) ([]audit.Event, error)
	PurgeAuditEvents(ctx context.Context, olderThan time.Time) (int64, error)
}
