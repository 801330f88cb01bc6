package httpapi

import (
	"net/http"

	"github.com/myrc-project/myrc/internal/app/domain/budget"
	"github.com/myrc-project/myrc/internal/app/metrics"
	auditsvc "github.com/myrc-project/myrc/internal/app/services/audit"
)

func (h *handler) monies(w http.ResponseWriter, r *http.Request, rcID, fyID string, rest []string) {
	id := identity(r)

	if len(rest) == 0 || rest[0] == "" {
		switch r.Method {
		case http.MethodPost:
			var money budget.Money
			if err := decodeJSON(r.Body, &money); err != nil {
				writeError(w, r, err)
				return
			}
			money.FiscalYearID = fyID

			var created budget.Money
			entry := auditsvc.Entry{Action: "CREATE_MONEY", EntityType: "money", RCID: rcID, FiscalYearID: fyID, Detail: money.Name}
			err := h.record(r.Context(), id, entry, func() error {
				var err error
				created, err = h.app.Funds.CreateMoney(r.Context(), id, money)
				return err
			})
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)

		case http.MethodGet:
			monies, err := h.app.Funds.ListMonies(r.Context(), id, fyID, includeInactive(r))
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, monies)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	moneyID := rest[0]
	if len(rest) > 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		money, err := h.app.Funds.GetMoney(r.Context(), id, fyID, moneyID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, money)

	case http.MethodPut:
		var money budget.Money
		if err := decodeJSON(r.Body, &money); err != nil {
			writeError(w, r, err)
			return
		}
		money.ID = moneyID

		var updated budget.Money
		entry := auditsvc.Entry{Action: "UPDATE_MONEY", EntityType: "money", EntityID: moneyID, RCID: rcID, FiscalYearID: fyID, Detail: money.Name}
		err := h.record(r.Context(), id, entry, func() error {
			var err error
			updated, err = h.app.Funds.UpdateMoney(r.Context(), id, fyID, money)
			return err
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		entry := auditsvc.Entry{Action: "DELETE_MONEY", EntityType: "money", EntityID: moneyID, RCID: rcID, FiscalYearID: fyID}
		err := h.record(r.Context(), id, entry, func() error {
			return h.app.Funds.DeactivateMoney(r.Context(), id, fyID, moneyID)
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

func (h *handler) categories(w http.ResponseWriter, r *http.Request, rcID, fyID string, rest []string) {
	id := identity(r)

	if len(rest) == 0 || rest[0] == "" {
		switch r.Method {
		case http.MethodPost:
			var category budget.Category
			if err := decodeJSON(r.Body, &category); err != nil {
				writeError(w, r, err)
				return
			}
			category.FiscalYearID = fyID

			var created budget.Category
			entry := auditsvc.Entry{Action: "CREATE_CATEGORY", EntityType: "category", RCID: rcID, FiscalYearID: fyID, Detail: category.Name}
			err := h.record(r.Context(), id, entry, func() error {
				var err error
				created, err = h.app.Funds.CreateCategory(r.Context(), id, category)
				return err
			})
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)

		case http.MethodGet:
			categories, err := h.app.Funds.ListCategories(r.Context(), id, fyID, includeInactive(r))
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, categories)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	categoryID := rest[0]
	if len(rest) > 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		category, err := h.app.Funds.GetCategory(r.Context(), id, fyID, categoryID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, category)

	case http.MethodPut:
		var category budget.Category
		if err := decodeJSON(r.Body, &category); err != nil {
			writeError(w, r, err)
			return
		}
		category.ID = categoryID

		var updated budget.Category
		entry := auditsvc.Entry{Action: "UPDATE_CATEGORY", EntityType: "category", EntityID: categoryID, RCID: rcID, FiscalYearID: fyID, Detail: category.Name}
		err := h.record(r.Context(), id, entry, func() error {
			var err error
			updated, err = h.app.Funds.UpdateCategory(r.Context(), id, fyID, category)
			return err
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		entry := auditsvc.Entry{Action: "DELETE_CATEGORY", EntityType: "category", EntityID: categoryID, RCID: rcID, FiscalYearID: fyID}
		err := h.record(r.Context(), id, entry, func() error {
			return h.app.Funds.DeactivateCategory(r.Context(), id, fyID, categoryID)
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

func (h *handler) fundingItems(w http.ResponseWriter, r *http.Request, rcID, fyID string, rest []string) {
	id := identity(r)

	if len(rest) == 0 || rest[0] == "" {
		switch r.Method {
		case http.MethodPost:
			var item budget.FundingItem
			if err := decodeJSON(r.Body, &item); err != nil {
				writeError(w, r, err)
				return
			}
			item.FiscalYearID = fyID

			var created budget.FundingItem
			entry := auditsvc.Entry{Action: "CREATE_FUNDING_ITEM", EntityType: "funding_item", RCID: rcID, FiscalYearID: fyID, Detail: item.Name}
			err := h.record(r.Context(), id, entry, func() error {
				var err error
				created, err = h.app.Items.CreateFundingItem(r.Context(), id, item)
				return err
			})
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)

		case http.MethodGet:
			list, err := h.app.Items.ListFundingItems(r.Context(), id, fyID, includeInactive(r))
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, list)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	itemID := rest[0]
	if len(rest) > 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		item, err := h.app.Items.GetFundingItem(r.Context(), id, fyID, itemID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)

	case http.MethodPut:
		var item budget.FundingItem
		if err := decodeJSON(r.Body, &item); err != nil {
			writeError(w, r, err)
			return
		}
		item.ID = itemID

		var updated budget.FundingItem
		entry := auditsvc.Entry{Action: "UPDATE_FUNDING_ITEM", EntityType: "funding_item", EntityID: itemID, RCID: rcID, FiscalYearID: fyID, Detail: item.Name}
		err := h.record(r.Context(), id, entry, func() error {
			var err error
			updated, err = h.app.Items.UpdateFundingItem(r.Context(), id, fyID, item)
			return err
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		entry := auditsvc.Entry{Action: "DELETE_FUNDING_ITEM", EntityType: "funding_item", EntityID: itemID, RCID: rcID, FiscalYearID: fyID}
		err := h.record(r.Context(), id, entry, func() error {
			return h.app.Items.DeactivateFundingItem(r.Context(), id, fyID, itemID)
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

func (h *handler) spendingItems(w http.ResponseWriter, r *http.Request, rcID, fyID string, rest []string) {
	id := identity(r)

	if len(rest) == 0 || rest[0] == "" {
		switch r.Method {
		case http.MethodPost:
			var item budget.SpendingItem
			if err := decodeJSON(r.Body, &item); err != nil {
				writeError(w, r, err)
				return
			}
			item.FiscalYearID = fyID

			var created budget.SpendingItem
			entry := auditsvc.Entry{Action: "CREATE_SPENDING_ITEM", EntityType: "spending_item", RCID: rcID, FiscalYearID: fyID, Detail: item.Name}
			err := h.record(r.Context(), id, entry, func() error {
				var err error
				created, err = h.app.Items.CreateSpendingItem(r.Context(), id, item)
				return err
			})
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)

		case http.MethodGet:
			list, err := h.app.Items.ListSpendingItems(r.Context(), id, fyID, includeInactive(r))
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, list)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	itemID := rest[0]
	if len(rest) == 2 && rest[1] == "invoice" {
		h.invoice(w, r, rcID, fyID, itemID)
		return
	}
	if len(rest) > 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		item, err := h.app.Items.GetSpendingItem(r.Context(), id, fyID, itemID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)

	case http.MethodPut:
		var item budget.SpendingItem
		if err := decodeJSON(r.Body, &item); err != nil {
			writeError(w, r, err)
			return
		}
		item.ID = itemID

		var updated budget.SpendingItem
		entry := auditsvc.Entry{Action: "UPDATE_SPENDING_ITEM", EntityType: "spending_item", EntityID: itemID, RCID: rcID, FiscalYearID: fyID, Detail: item.Name}
		err := h.record(r.Context(), id, entry, func() error {
			var err error
			updated, err = h.app.Items.UpdateSpendingItem(r.Context(), id, fyID, item)
			return err
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		entry := auditsvc.Entry{Action: "DELETE_SPENDING_ITEM", EntityType: "spending_item", EntityID: itemID, RCID: rcID, FiscalYearID: fyID}
		err := h.record(r.Context(), id, entry, func() error {
			return h.app.Items.DeactivateSpendingItem(r.Context(), id, fyID, itemID)
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

// invoice handles the single attachment of a spending item. A re-upload
// replaces the stored file.
func (h *handler) invoice(w http.ResponseWriter, r *http.Request, rcID, fyID, itemID string) {
	id := identity(r)
	switch r.Method {
	case http.MethodPut:
		att, err := h.readUpload(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		entry := auditsvc.Entry{Action: "UPLOAD_INVOICE", EntityType: "invoice", EntityID: itemID, RCID: rcID, FiscalYearID: fyID, Detail: att.Filename}
		err = h.record(r.Context(), id, entry, func() error {
			return h.app.Items.PutInvoice(r.Context(), id, fyID, itemID, att)
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		metrics.RecordUpload("invoice", int64(len(att.Data)))
		w.WriteHeader(http.StatusNoContent)

	case http.MethodGet:
		att, err := h.app.Items.GetInvoice(r.Context(), id, fyID, itemID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeAttachment(w, att)

	case http.MethodDelete:
		entry := auditsvc.Entry{Action: "DELETE_INVOICE", EntityType: "invoice", EntityID: itemID, RCID: rcID, FiscalYearID: fyID}
		err := h.record(r.Context(), id, entry, func() error {
			return h.app.Items.DeleteInvoice(r.Context(), id, fyID, itemID)
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

func (h *handler) trainingItems(w http.ResponseWriter, r *http.Request, rcID, fyID string, rest []string) {
	id := identity(r)

	if len(rest) == 0 || rest[0] == "" {
		switch r.Method {
		case http.MethodPost:
			var item budget.TrainingItem
			if err := decodeJSON(r.Body, &item); err != nil {
				writeError(w, r, err)
				return
			}
			item.FiscalYearID = fyID

			var created budget.TrainingItem
			entry := auditsvc.Entry{Action: "CREATE_TRAINING_ITEM", EntityType: "training_item", RCID: rcID, FiscalYearID: fyID, Detail: item.CourseName}
			err := h.record(r.Context(), id, entry, func() error {
				var err error
				created, err = h.app.Items.CreateTrainingItem(r.Context(), id, item)
				return err
			})
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)

		case http.MethodGet:
			list, err := h.app.Items.ListTrainingItems(r.Context(), id, fyID, includeInactive(r))
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, list)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	itemID := rest[0]
	if len(rest) > 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		item, err := h.app.Items.GetTrainingItem(r.Context(), id, fyID, itemID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)

	case http.MethodPut:
		var item budget.TrainingItem
		if err := decodeJSON(r.Body, &item); err != nil {
			writeError(w, r, err)
			return
		}
		item.ID = itemID

		var updated budget.TrainingItem
		entry := auditsvc.Entry{Action: "UPDATE_TRAINING_ITEM", EntityType: "training_item", EntityID: itemID, RCID: rcID, FiscalYearID: fyID, Detail: item.CourseName}
		err := h.record(r.Context(), id, entry, func() error {
			var err error
			updated, err = h.app.Items.UpdateTrainingItem(r.Context(), id, fyID, item)
			return err
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		entry := auditsvc.Entry{Action: "DELETE_TRAINING_ITEM", EntityType: "training_item", EntityID: itemID, RCID: rcID, FiscalYearID: fyID}
		err := h.record(r.Context(), id, entry, func() error {
			return h.app.Items.DeactivateTrainingItem(r.Context(), id, fyID, itemID)
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

func (h *handler) travelItems(w http.ResponseWriter, r *http.Request, rcID, fyID string, rest []string) {
	id := identity(r)

	if len(rest) == 0 || rest[0] == "" {
		switch r.Method {
		case http.MethodPost:
			var item budget.TravelItem
			if err := decodeJSON(r.Body, &item); err != nil {
				writeError(w, r, err)
				return
			}
			item.FiscalYearID = fyID

			var created budget.TravelItem
			entry := auditsvc.Entry{Action: "CREATE_TRAVEL_ITEM", EntityType: "travel_item", RCID: rcID, FiscalYearID: fyID, Detail: item.Destination}
			err := h.record(r.Context(), id, entry, func() error {
				var err error
				created, err = h.app.Items.CreateTravelItem(r.Context(), id, item)
				return err
			})
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)

		case http.MethodGet:
			list, err := h.app.Items.ListTravelItems(r.Context(), id, fyID, includeInactive(r))
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, list)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	itemID := rest[0]
	if len(rest) > 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		item, err := h.app.Items.GetTravelItem(r.Context(), id, fyID, itemID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)

	case http.MethodPut:
		var item budget.TravelItem
		if err := decodeJSON(r.Body, &item); err != nil {
			writeError(w, r, err)
			return
		}
		item.ID = itemID

		var updated budget.TravelItem
		entry := auditsvc.Entry{Action: "UPDATE_TRAVEL_ITEM", EntityType: "travel_item", EntityID: itemID, RCID: rcID, FiscalYearID: fyID, Detail: item.Destination}
		err := h.record(r.Context(), id, entry, func() error {
			var err error
			updated, err = h.app.Items.UpdateTravelItem(r.Context(), id, fyID, item)
			return err
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		entry := auditsvc.Entry{Action: "DELETE_TRAVEL_ITEM", EntityType: "travel_item", EntityID: itemID, RCID: rcID, FiscalYearID: fyID}
		err := h.record(r.Context(), id, entry, func() error {
			return h.app.Items.DeactivateTravelItem(r.Context(), id, fyID, itemID)
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
