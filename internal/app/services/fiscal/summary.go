package fiscal

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/myrc-project/myrc/internal/app/domain/budget"
	"github.com/myrc-project/myrc/internal/app/domain/fiscal"
	"github.com/myrc-project/myrc/internal/app/domain/procurement"
	"github.com/myrc-project/myrc/internal/app/domain/rc"
	"github.com/myrc-project/myrc/internal/errors"
)

// Summary aggregates the budget position of a fiscal year in CAD. Funding
// counts envelopes plus funding items; spending, training, and travel count
// their CAD amounts; procurement estimates count every active item not yet
// closed. Training and travel draw from the O&M side of the remainder.
func (s *Service) Summary(ctx context.Context, id rc.Identity, fiscalYearID string) (fiscal.Summary, error) {
	if _, err := s.Authorize(ctx, id, fiscalYearID, false); err != nil {
		return fiscal.Summary{}, err
	}

	summary := fiscal.Summary{FiscalYearID: fiscalYearID}

	monies, err := s.budget.ListMonies(ctx, fiscalYearID, false)
	if err != nil {
		return fiscal.Summary{}, errors.Internal("list monies", err)
	}
	for _, money := range monies {
		summary.FundingCap = summary.FundingCap.Add(money.CapAmount)
		summary.FundingOM = summary.FundingOM.Add(money.OMAmount)
	}

	fundingItems, err := s.budget.ListFundingItems(ctx, fiscalYearID, false)
	if err != nil {
		return fiscal.Summary{}, errors.Internal("list funding items", err)
	}
	for _, item := range fundingItems {
		summary.FundingCap = summary.FundingCap.Add(item.CapAmount)
		summary.FundingOM = summary.FundingOM.Add(item.OMAmount)
	}

	spendingItems, err := s.budget.ListSpendingItems(ctx, fiscalYearID, false)
	if err != nil {
		return fiscal.Summary{}, errors.Internal("list spending items", err)
	}
	for _, item := range spendingItems {
		switch item.Fund {
		case budget.FundCap:
			summary.SpendingCap = summary.SpendingCap.Add(item.AmountCAD)
		case budget.FundOM:
			summary.SpendingOM = summary.SpendingOM.Add(item.AmountCAD)
		}
	}

	procurementItems, err := s.procurement.ListProcurementItems(ctx, fiscalYearID, false)
	if err != nil {
		return fiscal.Summary{}, errors.Internal("list procurement items", err)
	}
	for _, item := range procurementItems {
		if item.Status == procurement.StatusClosed {
			continue
		}
		switch item.Fund {
		case budget.FundCap:
			summary.ProcurementEstimatesCap = summary.ProcurementEstimatesCap.Add(item.EstimatedCost)
		case budget.FundOM:
			summary.ProcurementEstimatesOM = summary.ProcurementEstimatesOM.Add(item.EstimatedCost)
		}
	}

	trainingItems, err := s.budget.ListTrainingItems(ctx, fiscalYearID, false)
	if err != nil {
		return fiscal.Summary{}, errors.Internal("list training items", err)
	}
	for _, item := range trainingItems {
		summary.TrainingCost = summary.TrainingCost.Add(item.CostCAD)
	}

	travelItems, err := s.budget.ListTravelItems(ctx, fiscalYearID, false)
	if err != nil {
		return fiscal.Summary{}, errors.Internal("list travel items", err)
	}
	for _, item := range travelItems {
		summary.TravelCost = summary.TravelCost.Add(travelCost(item))
	}

	summary.RemainingCap = summary.FundingCap.
		Sub(summary.SpendingCap).
		Sub(summary.ProcurementEstimatesCap)
	summary.RemainingOM = summary.FundingOM.
		Sub(summary.SpendingOM).
		Sub(summary.ProcurementEstimatesOM).
		Sub(summary.TrainingCost).
		Sub(summary.TravelCost)

	return summary, nil
}

// travelCost prefers the recorded actual cost and falls back to the estimate
// while the trip is still projected.
func travelCost(item budget.TravelItem) decimal.Decimal {
	if item.ActualCost.IsPositive() {
		return item.ActualCost
	}
	return item.EstimatedCost
}
