package fiscal

import (
	"time"

	"github.com/shopspring/decimal"
)

// Year is a budgeting period scoped to one responsibility centre.
type Year struct {
	ID        string     `json:"id"`
	RCID      string     `json:"rc_id"`
	Name      string     `json:"name"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Active    bool       `json:"active"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Summary aggregates the budget position of a fiscal year. All amounts are
// in CAD.
type Summary struct {
	FiscalYearID string `json:"fiscal_year_id"`

	FundingCap decimal.Decimal `json:"funding_cap"`
	FundingOM  decimal.Decimal `json:"funding_om"`

	SpendingCap decimal.Decimal `json:"spending_cap"`
	SpendingOM  decimal.Decimal `json:"spending_om"`

	ProcurementEstimatesCap decimal.Decimal `json:"procurement_estimates_cap"`
	ProcurementEstimatesOM  decimal.Decimal `json:"procurement_estimates_om"`

	TrainingCost decimal.Decimal `json:"training_cost"`
	TravelCost   decimal.Decimal `json:"travel_cost"`

	RemainingCap decimal.Decimal `json:"remaining_cap"`
	RemainingOM  decimal.Decimal `json:"remaining_om"`
}
