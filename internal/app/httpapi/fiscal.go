package httpapi

import (
	"net/http"

	"github.com/myrc-project/myrc/internal/app/domain/fiscal"
	auditsvc "github.com/myrc-project/myrc/internal/app/services/audit"
)

func (h *handler) fiscalYears(w http.ResponseWriter, r *http.Request, rcID string, rest []string) {
	id := identity(r)

	if len(rest) == 0 || rest[0] == "" {
		switch r.Method {
		case http.MethodPost:
			var year fiscal.Year
			if err := decodeJSON(r.Body, &year); err != nil {
				writeError(w, r, err)
				return
			}
			year.RCID = rcID

			var created fiscal.Year
			entry := auditsvc.Entry{Action: "CREATE_FISCAL_YEAR", EntityType: "fiscal_year", RCID: rcID, Detail: year.Name}
			err := h.record(r.Context(), id, entry, func() error {
				var err error
				created, err = h.app.Fiscal.Create(r.Context(), id, year)
				return err
			})
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)

		case http.MethodGet:
			years, err := h.app.Fiscal.List(r.Context(), id, rcID, includeInactive(r))
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, years)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	// Everything below names a specific fiscal year. Verify it belongs to
	// the centre in the path before dispatching.
	fyID := rest[0]
	if err := h.app.Fiscal.Owns(r.Context(), rcID, fyID); err != nil {
		writeError(w, r, err)
		return
	}

	if len(rest) == 1 {
		h.fiscalYearByID(w, r, rcID, fyID)
		return
	}

	switch rest[1] {
	case "summary":
		h.fiscalYearSummary(w, r, fyID)
	case "monies":
		h.monies(w, r, rcID, fyID, rest[2:])
	case "categories":
		h.categories(w, r, rcID, fyID, rest[2:])
	case "funding-items":
		h.fundingItems(w, r, rcID, fyID, rest[2:])
	case "spending-items":
		h.spendingItems(w, r, rcID, fyID, rest[2:])
	case "training-items":
		h.trainingItems(w, r, rcID, fyID, rest[2:])
	case "travel-items":
		h.travelItems(w, r, rcID, fyID, rest[2:])
	case "procurement-items":
		h.procurementItems(w, r, rcID, fyID, rest[2:])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) fiscalYearByID(w http.ResponseWriter, r *http.Request, rcID, fyID string) {
	id := identity(r)
	switch r.Method {
	case http.MethodGet:
		year, err := h.app.Fiscal.Get(r.Context(), id, fyID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, year)

	case http.MethodPut:
		var year fiscal.Year
		if err := decodeJSON(r.Body, &year); err != nil {
			writeError(w, r, err)
			return
		}
		year.ID = fyID
		year.RCID = rcID

		var updated fiscal.Year
		entry := auditsvc.Entry{Action: "UPDATE_FISCAL_YEAR", EntityType: "fiscal_year", EntityID: fyID, RCID: rcID, FiscalYearID: fyID, Detail: year.Name}
		err := h.record(r.Context(), id, entry, func() error {
			var err error
			updated, err = h.app.Fiscal.Update(r.Context(), id, year)
			return err
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		entry := auditsvc.Entry{Action: "DELETE_FISCAL_YEAR", EntityType: "fiscal_year", EntityID: fyID, RCID: rcID, FiscalYearID: fyID}
		err := h.record(r.Context(), id, entry, func() error {
			return h.app.Fiscal.Deactivate(r.Context(), id, fyID)
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// fiscalYearSummary aggregates the year's funding, spending, and commitments
// into the remaining-balance view.
func (h *handler) fiscalYearSummary(w http.ResponseWriter, r *http.Request, fyID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	summary, err := h.app.Fiscal.Summary(r.Context(), identity(r), fyID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
