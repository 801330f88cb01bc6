package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/myrc-project/myrc/internal/app/domain/rc"
	auditsvc "github.com/myrc-project/myrc/internal/app/services/audit"
)

func (h *handler) centres(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	switch r.Method {
	case http.MethodPost:
		var centre rc.ResponsibilityCentre
		if err := decodeJSON(r.Body, &centre); err != nil {
			writeError(w, r, err)
			return
		}

		var created rc.ResponsibilityCentre
		entry := auditsvc.Entry{Action: "CREATE_RC", EntityType: "responsibility_centre", Detail: centre.Name}
		err := h.record(r.Context(), id, entry, func() error {
			var err error
			created, err = h.app.RCs.Create(r.Context(), id, centre)
			return err
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		visible, err := h.app.RCs.List(r.Context(), id, includeInactive(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, visible)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) centreResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/responsibility-centres"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	rcID := parts[0]

	if len(parts) == 1 {
		h.centreByID(w, r, rcID)
		return
	}

	switch parts[1] {
	case "access-grants":
		h.accessGrants(w, r, rcID, parts[2:])
	case "audit-events":
		h.auditEvents(w, r, rcID)
	case "fiscal-years":
		h.fiscalYears(w, r, rcID, parts[2:])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) centreByID(w http.ResponseWriter, r *http.Request, rcID string) {
	id := identity(r)
	switch r.Method {
	case http.MethodGet:
		visible, err := h.app.RCs.Get(r.Context(), id, rcID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, visible)

	case http.MethodPut:
		var centre rc.ResponsibilityCentre
		if err := decodeJSON(r.Body, &centre); err != nil {
			writeError(w, r, err)
			return
		}
		centre.ID = rcID

		var updated rc.ResponsibilityCentre
		entry := auditsvc.Entry{Action: "UPDATE_RC", EntityType: "responsibility_centre", EntityID: rcID, RCID: rcID, Detail: centre.Name}
		err := h.record(r.Context(), id, entry, func() error {
			var err error
			updated, err = h.app.RCs.Update(r.Context(), id, centre)
			return err
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		entry := auditsvc.Entry{Action: "DELETE_RC", EntityType: "responsibility_centre", EntityID: rcID, RCID: rcID}
		err := h.record(r.Context(), id, entry, func() error {
			return h.app.RCs.Deactivate(r.Context(), id, rcID)
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

func (h *handler) accessGrants(w http.ResponseWriter, r *http.Request, rcID string, rest []string) {
	id := identity(r)

	if len(rest) == 0 || rest[0] == "" {
		switch r.Method {
		case http.MethodPost:
			var grant rc.AccessGrant
			if err := decodeJSON(r.Body, &grant); err != nil {
				writeError(w, r, err)
				return
			}
			grant.RCID = rcID

			var created rc.AccessGrant
			entry := auditsvc.Entry{Action: "CREATE_GRANT", EntityType: "access_grant", RCID: rcID, Detail: grant.Principal}
			err := h.record(r.Context(), id, entry, func() error {
				var err error
				created, err = h.app.RCs.CreateGrant(r.Context(), id, grant)
				return err
			})
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, created)

		case http.MethodGet:
			grants, err := h.app.RCs.ListGrants(r.Context(), id, rcID, includeInactive(r))
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, grants)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	grantID := rest[0]
	if len(rest) > 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var payload struct {
			Level   rc.AccessLevel `json:"level"`
			Version int64          `json:"version"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, r, err)
			return
		}

		var updated rc.AccessGrant
		entry := auditsvc.Entry{Action: "UPDATE_GRANT", EntityType: "access_grant", EntityID: grantID, RCID: rcID, Detail: string(payload.Level)}
		err := h.record(r.Context(), id, entry, func() error {
			var err error
			updated, err = h.app.RCs.UpdateGrant(r.Context(), id, rcID, grantID, payload.Level, payload.Version)
			return err
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		entry := auditsvc.Entry{Action: "REVOKE_GRANT", EntityType: "access_grant", EntityID: grantID, RCID: rcID}
		err := h.record(r.Context(), id, entry, func() error {
			return h.app.RCs.RevokeGrant(r.Context(), id, rcID, grantID)
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

// auditEvents returns the centre's persisted audit trail, newest first.
func (h *handler) auditEvents(w http.ResponseWriter, r *http.Request, rcID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.app.Audit.ListForRC(r.Context(), identity(r), rcID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
