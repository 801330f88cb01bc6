package procurement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/myrc-project/myrc/internal/app/domain/budget"
)

// Status tracks an item through the procurement pipeline.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusOrdered   Status = "ORDERED"
	StatusReceived  Status = "RECEIVED"
	StatusClosed    Status = "CLOSED"
)

// Valid reports whether the status is recognised.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusOrdered, StatusReceived, StatusClosed:
		return true
	}
	return false
}

// Item is a procurement request within a fiscal year, carrying vendor
// quotes and a tracking event timeline.
type Item struct {
	ID            string          `json:"id"`
	FiscalYearID  string          `json:"fiscal_year_id"`
	CategoryID    string          `json:"category_id,omitempty"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Fund          budget.Fund     `json:"fund"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
	Status        Status          `json:"status"`
	Active        bool            `json:"active"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Quote is a vendor quote against a procurement item. At most one quote per
// item is selected.
type Quote struct {
	ID                string          `json:"id"`
	ProcurementItemID string          `json:"procurement_item_id"`
	Vendor            string          `json:"vendor"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	ExchangeRate      decimal.Decimal `json:"exchange_rate"`
	AmountCAD         decimal.Decimal `json:"amount_cad"`
	Selected          bool            `json:"selected"`
	Notes             string          `json:"notes,omitempty"`
	HasFile           bool            `json:"has_file"`
	Active            bool            `json:"active"`
	Version           int64           `json:"version"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// EventType classifies tracking events on a procurement item.
type EventType string

const (
	EventNote         EventType = "NOTE"
	EventStatusChange EventType = "STATUS_CHANGE"
	EventSubmitted    EventType = "SUBMITTED"
	EventPOCreated    EventType = "PO_CREATED"
	EventDelivered    EventType = "DELIVERED"
)

// Valid reports whether the event type is recognised.
func (t EventType) Valid() bool {
	switch t {
	case EventNote, EventStatusChange, EventSubmitted, EventPOCreated, EventDelivered:
		return true
	}
	return false
}

// Event is an append-only timeline entry on a procurement item.
type Event struct {
	ID                string    `json:"id"`
	ProcurementItemID string    `json:"procurement_item_id"`
	OccurredAt        time.Time `json:"occurred_at"`
	EventType         EventType `json:"event_type"`
	Description       string    `json:"description"`
	CreatedBy         string    `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
}
