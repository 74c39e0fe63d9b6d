// Package web serves the invoicing API over HTTP with chi.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"einvoicing/internal/app"
)

const maxBodyBytes = 1 << 20

// Options configures NewHandler.
type Options struct {
	AllowedOrigins string
	Logger         zerolog.Logger
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	log    zerolog.Logger
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options) http.Handler {
	h := &Handler{svc: svc, log: opts.Logger}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(opts.Logger))
	r.Use(Recoverer(opts.Logger))
	r.Use(CORS(opts.AllowedOrigins))

	// ── Health & introspection ───────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Get("/api/schema", h.apiSchemaNames)
	r.Get("/api/schema/{name}", h.apiSchema)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(maxBodyBytes))

		// ── Master data ──────────────────────────────────────────────────────
		r.Post("/api/companies", h.apiCreateCompany)
		r.Get("/api/companies/{companyID}", h.apiGetCompany)
		r.Put("/api/companies/{companyID}/products/{reference}", h.apiUpsertProduct)

		// ── Invoices ─────────────────────────────────────────────────────────
		r.Get("/api/companies/{companyID}/invoices", h.apiListInvoices)
		r.Post("/api/companies/{companyID}/invoices", h.apiCreateInvoice)
		r.Get("/api/companies/{companyID}/invoices/{invoiceID}", h.apiGetInvoice)
		r.Put("/api/companies/{companyID}/invoices/{invoiceID}/lines", h.apiReplaceLines)
		r.Patch("/api/companies/{companyID}/invoices/{invoiceID}", h.apiUpdateAnnotations)
		r.Post("/api/companies/{companyID}/invoices/{invoiceID}/issue", h.apiIssueInvoice)
		r.Post("/api/companies/{companyID}/invoices/{invoiceID}/accept", h.apiAcceptInvoice)
		r.Post("/api/companies/{companyID}/invoices/{invoiceID}/reject", h.apiRejectInvoice)
		r.Post("/api/companies/{companyID}/invoices/{invoiceID}/void", h.apiVoidInvoice)
	})

	h.router = r
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handler) apiSchemaNames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string][]string{"schemas": app.SchemaNames()})
}

// apiSchema handles GET /api/schema/{name}.
func (h *Handler) apiSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.svc.RequestSchema(chi.URLParam(r, "name"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, schema)
}

// pathID parses a positive integer URL parameter, writing a 400 when it is not one.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		writeError(w, r, fmt.Sprintf("invalid %s %q", name, raw), "INVALID_INPUT", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
