package httpapi

import (
	"net/http"

	"github.com/myrc-project/myrc/internal/app/domain/procurement"
	"github.com/myrc-project/myrc/internal/app/metrics"
	auditsvc "github.com/myrc-project/myrc/internal/app/services/audit"
)

func (h *handler) procurementItems(w http.ResponseWriter, r *http.Request, rcID, fyID string, rest []string) {
	id := identity(r)

	if len(rest) == 0 || rest[0] == "" {
		switch r.Method {
		case http.MethodPost:
			var item procurement.Item
			if err := decodeJSON(r.Body, &item); err != nil {
				writeError(w, r, err)
				return
			}
			item.FiscalYearID = fyID

			var created procurement.Item
			entry := auditsvc.Entry{Action: "CREATE_PROCUREMENT_ITEM", EntityType: "procurement_item", RCID: rcID, FiscalYearID: fyID, Detail: item.Name}
			err := h.record(r.Context(), id, entry, func() error {
				var err error
				created, err = h.app.Procurement.CreateItem(r.Context(), id, item)
				return err
			})
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)

		case http.MethodGet:
			list, err := h.app.Procurement.ListItems(r.Context(), id, fyID, includeInactive(r))
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
	if len(rest) == 1 {
		h.procurementItemByID(w, r, rcID, fyID, itemID)
		return
	}

	switch rest[1] {
	case "quotes":
		h.quotes(w, r, rcID, fyID, itemID, rest[2:])
	case "events":
		h.procurementEvents(w, r, rcID, fyID, itemID, rest[2:])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) procurementItemByID(w http.ResponseWriter, r *http.Request, rcID, fyID, itemID string) {
	id := identity(r)
	switch r.Method {
	case http.MethodGet:
		item, err := h.app.Procurement.GetItem(r.Context(), id, fyID, itemID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)

	case http.MethodPut:
		var item procurement.Item
		if err := decodeJSON(r.Body, &item); err != nil {
			writeError(w, r, err)
			return
		}
		item.ID = itemID

		var updated procurement.Item
		entry := auditsvc.Entry{Action: "UPDATE_PROCUREMENT_ITEM", EntityType: "procurement_item", EntityID: itemID, RCID: rcID, FiscalYearID: fyID, Detail: item.Name}
		err := h.record(r.Context(), id, entry, func() error {
			var err error
			updated, err = h.app.Procurement.UpdateItem(r.Context(), id, fyID, item)
			return err
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		entry := auditsvc.Entry{Action: "DELETE_PROCUREMENT_ITEM", EntityType: "procurement_item", EntityID: itemID, RCID: rcID, FiscalYearID: fyID}
		err := h.record(r.Context(), id, entry, func() error {
			return h.app.Procurement.DeactivateItem(r.Context(), id, fyID, itemID)
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

func (h *handler) quotes(w http.ResponseWriter, r *http.Request, rcID, fyID, itemID string, rest []string) {
	id := identity(r)

	if len(rest) == 0 || rest[0] == "" {
		switch r.Method {
		case http.MethodPost:
			var quote procurement.Quote
			if err := decodeJSON(r.Body, &quote); err != nil {
				writeError(w, r, err)
				return
			}

			var created procurement.Quote
			entry := auditsvc.Entry{Action: "CREATE_QUOTE", EntityType: "quote", RCID: rcID, FiscalYearID: fyID, Detail: quote.Vendor}
			err := h.record(r.Context(), id, entry, func() error {
				var err error
				created, err = h.app.Procurement.CreateQuote(r.Context(), id, fyID, itemID, quote)
				return err
			})
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)

		case http.MethodGet:
			list, err := h.app.Procurement.ListQuotes(r.Context(), id, fyID, itemID, includeInactive(r))
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

	quoteID := rest[0]
	if len(rest) == 1 {
		h.quoteByID(w, r, rcID, fyID, itemID, quoteID)
		return
	}

	switch rest[1] {
	case "select":
		h.selectQuote(w, r, rcID, fyID, itemID, quoteID)
	case "file":
		h.quoteFile(w, r, rcID, fyID, itemID, quoteID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) quoteByID(w http.ResponseWriter, r *http.Request, rcID, fyID, itemID, quoteID string) {
	id := identity(r)
	switch r.Method {
	case http.MethodGet:
		quote, err := h.app.Procurement.GetQuote(r.Context(), id, fyID, itemID, quoteID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, quote)

	case http.MethodPut:
		var quote procurement.Quote
		if err := decodeJSON(r.Body, &quote); err != nil {
			writeError(w, r, err)
			return
		}
		quote.ID = quoteID

		var updated procurement.Quote
		entry := auditsvc.Entry{Action: "UPDATE_QUOTE", EntityType: "quote", EntityID: quoteID, RCID: rcID, FiscalYearID: fyID, Detail: quote.Vendor}
		err := h.record(r.Context(), id, entry, func() error {
			var err error
			updated, err = h.app.Procurement.UpdateQuote(r.Context(), id, fyID, itemID, quote)
			return err
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		entry := auditsvc.Entry{Action: "DELETE_QUOTE", EntityType: "quote", EntityID: quoteID, RCID: rcID, FiscalYearID: fyID}
		err := h.record(r.Context(), id, entry, func() error {
			return h.app.Procurement.DeactivateQuote(r.Context(), id, fyID, itemID, quoteID)
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

// selectQuote marks the quote as accepted, deselecting its siblings.
func (h *handler) selectQuote(w http.ResponseWriter, r *http.Request, rcID, fyID, itemID, quoteID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := identity(r)

	var selected procurement.Quote
	entry := auditsvc.Entry{Action: "SELECT_QUOTE", EntityType: "quote", EntityID: quoteID, RCID: rcID, FiscalYearID: fyID}
	err := h.record(r.Context(), id, entry, func() error {
		var err error
		selected, err = h.app.Procurement.SelectQuote(r.Context(), id, fyID, itemID, quoteID)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, selected)
}

// quoteFile handles the single attachment of a quote. A re-upload replaces
// the stored file.
func (h *handler) quoteFile(w http.ResponseWriter, r *http.Request, rcID, fyID, itemID, quoteID string) {
	id := identity(r)
	switch r.Method {
	case http.MethodPut:
		att, err := h.readUpload(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		entry := auditsvc.Entry{Action: "UPLOAD_QUOTE_FILE", EntityType: "quote_file", EntityID: quoteID, RCID: rcID, FiscalYearID: fyID, Detail: att.Filename}
		err = h.record(r.Context(), id, entry, func() error {
			return h.app.Procurement.PutQuoteFile(r.Context(), id, fyID, itemID, quoteID, att)
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		metrics.RecordUpload("quote_file", int64(len(att.Data)))
		w.WriteHeader(http.StatusNoContent)

	case http.MethodGet:
		att, err := h.app.Procurement.GetQuoteFile(r.Context(), id, fyID, itemID, quoteID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeAttachment(w, att)

	case http.MethodDelete:
		entry := auditsvc.Entry{Action: "DELETE_QUOTE_FILE", EntityType: "quote_file", EntityID: quoteID, RCID: rcID, FiscalYearID: fyID}
		err := h.record(r.Context(), id, entry, func() error {
			return h.app.Procurement.DeleteQuoteFile(r.Context(), id, fyID, itemID, quoteID)
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

func (h *handler) procurementEvents(w http.ResponseWriter, r *http.Request, rcID, fyID, itemID string, rest []string) {
	id := identity(r)

	if len(rest) == 0 || rest[0] == "" {
		switch r.Method {
		case http.MethodPost:
			var ev procurement.Event
			if err := decodeJSON(r.Body, &ev); err != nil {
				writeError(w, r, err)
				return
			}

			var created procurement.Event
			entry := auditsvc.Entry{Action: "CREATE_PROCUREMENT_EVENT", EntityType: "procurement_event", RCID: rcID, FiscalYearID: fyID, Detail: ev.Description}
			err := h.record(r.Context(), id, entry, func() error {
				var err error
				created, err = h.app.Procurement.CreateEvent(r.Context(), id, fyID, itemID, ev)
				return err
			})
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)

		case http.MethodGet:
			list, err := h.app.Procurement.ListEvents(r.Context(), id, fyID, itemID)
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

	eventID := rest[0]
	if len(rest) > 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodDelete:
		entry := auditsvc.Entry{Action: "DELETE_PROCUREMENT_EVENT", EntityType: "procurement_event", EntityID: eventID, RCID: rcID, FiscalYearID: fyID}
		err := h.record(r.Context(), id, entry, func() error {
			return h.app.Procurement.DeleteEvent(r.Context(), id, fyID, itemID, eventID)
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
