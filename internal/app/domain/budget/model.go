// Package budget holds the line-item entities of a fiscal year: funding
// envelopes, categories, and the funding/spending/training/travel items.
package budget

import (
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Fund designates which side of the envelope an amount draws from: capital
// or operations & maintenance.
type Fund string

const (
	FundCap Fund = "CAP"
	FundOM  Fund = "OM"
)

// Valid reports whether the fund designation is recognised.
func (f Fund) Valid() bool {
	return f == FundCap || f == FundOM
}

// DefaultCurrency is the home currency for all CAD-normalised amounts.
const DefaultCurrency = "CAD"

// ValidCurrency reports whether code names a known ISO-4217 currency.
func ValidCurrency(code string) bool {
	return money.GetCurrency(strings.ToUpper(strings.TrimSpace(code))) != nil
}

// ToCAD converts an amount in a foreign currency to CAD at the given rate,
// rounded to cents.
func ToCAD(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Round(2)
}

// Money is a named funding envelope (e.g. A-Base) within a fiscal year,
// split into capital and O&M amounts.
type Money struct {
	ID           string          `json:"id"`
	FiscalYearID string          `json:"fiscal_year_id"`
	Name         string          `json:"name"`
	CapAmount    decimal.Decimal `json:"cap_amount"`
	OMAmount     decimal.Decimal `json:"om_amount"`
	Notes        string          `json:"notes,omitempty"`
	Active       bool            `json:"active"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Category labels items within a fiscal year.
type Category struct {
	ID           string    `json:"id"`
	FiscalYearID string    `json:"fiscal_year_id"`
	Name         string    `json:"name"`
	Active       bool      `json:"active"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FundingItem records incoming budget within a fiscal year.
type FundingItem struct {
	ID           string          `json:"id"`
	FiscalYearID string          `json:"fiscal_year_id"`
	CategoryID   string          `json:"category_id,omitempty"`
	Name         string          `json:"name"`
	Source       string          `json:"source,omitempty"`
	CapAmount    decimal.Decimal `json:"cap_amount"`
	OMAmount     decimal.Decimal `json:"om_amount"`
	Notes        string          `json:"notes,omitempty"`
	Active       bool            `json:"active"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// SpendingItem records committed or actual spending. Foreign currency
// amounts carry an exchange rate and a derived CAD amount.
type SpendingItem struct {
	ID               string          `json:"id"`
	FiscalYearID     string          `json:"fiscal_year_id"`
	CategoryID       string          `json:"category_id,omitempty"`
	Name             string          `json:"name"`
	Fund             Fund            `json:"fund"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	ExchangeRate     decimal.Decimal `json:"exchange_rate"`
	AmountCAD        decimal.Decimal `json:"amount_cad"`
	CommitmentNumber string          `json:"commitment_number,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	HasInvoice       bool            `json:"has_invoice"`
	Active           bool            `json:"active"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TrainingItem records a course attendance and its cost.
type TrainingItem struct {
	ID           string          `json:"id"`
	FiscalYearID string          `json:"fiscal_year_id"`
	CategoryID   string          `json:"category_id,omitempty"`
	CourseName   string          `json:"course_name"`
	Provider     string          `json:"provider,omitempty"`
	Member       string          `json:"member"`
	StartDate    *time.Time      `json:"start_date,omitempty"`
	EndDate      *time.Time      `json:"end_date,omitempty"`
	Cost         decimal.Decimal `json:"cost"`
	Currency     string          `json:"currency"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	CostCAD      decimal.Decimal `json:"cost_cad"`
	Notes        string          `json:"notes,omitempty"`
	Active       bool            `json:"active"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TravelItem records a planned or completed trip and its cost.
type TravelItem struct {
	ID            string          `json:"id"`
	FiscalYearID  string          `json:"fiscal_year_id"`
	CategoryID    string          `json:"category_id,omitempty"`
	Destination   string          `json:"destination"`
	Purpose       string          `json:"purpose,omitempty"`
	Traveller     string          `json:"traveller"`
	StartDate     *time.Time      `json:"start_date,omitempty"`
	EndDate       *time.Time      `json:"end_date,omitempty"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
	ActualCost    decimal.Decimal `json:"actual_cost"`
	Notes         string          `json:"notes,omitempty"`
	Active        bool            `json:"active"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Attachment is an uploaded file (quote or invoice) stored alongside its
// owning record. Data is held as a BYTEA column.
type Attachment struct {
	OwnerID     string    `json:"owner_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Data        []byte    `json:"-"`
	UploadedBy  string    `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
