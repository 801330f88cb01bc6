// Package httpapi exposes the REST API over the application services.
//
// Routing follows the nested resource layout of the API: a ServeMux matches
// the fixed prefixes and the handlers walk the remaining path segments by
// hand. Mutating endpoints run inside the two-phase audit protocol.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	app "github.com/myrc-project/myrc/internal/app"
	"github.com/myrc-project/myrc/internal/app/domain/budget"
	"github.com/myrc-project/myrc/internal/app/domain/rc"
	auditsvc "github.com/myrc-project/myrc/internal/app/services/audit"
	"github.com/myrc-project/myrc/internal/errors"
	"github.com/myrc-project/myrc/internal/httputil"
	"github.com/myrc-project/myrc/internal/middleware"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app       *app.Application
	maxUpload int64
}

// NewHandler returns a mux exposing the REST API under /api.
func NewHandler(application *app.Application, maxUpload int64) http.Handler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	h := &handler{app: application, maxUpload: maxUpload}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", h.login)
	mux.HandleFunc("/api/auth/me", h.me)
	mux.HandleFunc("/api/audit/recent", h.recentAudit)
	mux.HandleFunc("/api/responsibility-centres", h.centres)
	mux.HandleFunc("/api/responsibility-centres/", h.centreResources)
	return mux
}

// record wraps a mutation in the two-phase audit protocol: a PENDING event
// before the operation, settled to SUCCESS or FAILURE after.
func (h *handler) record(ctx context.Context, id rc.Identity, entry auditsvc.Entry, op func() error) error {
	eventID, err := h.app.Audit.Begin(ctx, id, entry)
	if err != nil {
		return err
	}
	opErr := op()
	h.app.Audit.Complete(ctx, eventID, opErr)
	return opErr
}

// readUpload extracts the "file" part of a multipart upload, bounded by the
// configured size limit.
func (h *handler) readUpload(w http.ResponseWriter, r *http.Request) (budget.Attachment, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return budget.Attachment{}, errors.Validation("upload must be multipart form data within the size limit")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return budget.Attachment{}, errors.Validation(`a "file" part is required`)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return budget.Attachment{}, errors.Validation("could not read uploaded file")
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return budget.Attachment{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func writeAttachment(w http.ResponseWriter, att budget.Attachment) {
	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
	w.Header().Set("Content-Length", strconv.FormatInt(att.SizeBytes, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(att.Data)
}

func identity(r *http.Request) rc.Identity {
	return middleware.Identity(r.Context())
}

func includeInactive(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("includeInactive"))
	return err == nil && v
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Validation("invalid JSON body").WithDetails("reason", err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	httputil.WriteJSONResponse(w, status, data)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	svcErr := errors.GetServiceError(err)
	if svcErr == nil {
		svcErr = errors.Internal("request failed", err)
	}
	httputil.WriteErrorResponse(w, r, svcErr.HTTPStatus, string(svcErr.Code), svcErr.Message, svcErr.Details)
}
