package web

import (
	"context"
	"net/http"
	"strconv"

	"einvoicing/internal/app"
)

// apiListInvoices handles GET /api/companies/{companyID}/invoices.
// Query: state, include_voided, limit, offset.
func (h *Handler) apiListInvoices(w http.ResponseWriter, r *http.Request) {
	companyID, ok := pathID(w, r, "companyID")
	if !ok {
		return
	}
	q := r.URL.Query()
	req := app.ListInvoicesRequest{CompanyID: companyID, State: q.Get("state")}

	var err error
	if v := q.Get("include_voided"); v != "" {
		if req.IncludeVoided, err = strconv.ParseBool(v); err != nil {
			writeError(w, r, "include_voided must be a boolean", "INVALID_INPUT", http.StatusBadRequest)
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		if req.Limit, err = strconv.Atoi(v); err != nil {
			writeError(w, r, "limit must be an integer", "INVALID_INPUT", http.StatusBadRequest)
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if req.Offset, err = strconv.Atoi(v); err != nil {
			writeError(w, r, "offset must be an integer", "INVALID_INPUT", http.StatusBadRequest)
			return
		}
	}

	result, err := h.svc.ListInvoices(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateInvoice handles POST /api/companies/{companyID}/invoices.
func (h *Handler) apiCreateInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, ok := pathID(w, r, "companyID")
	if !ok {
		return
	}
	var req app.CreateInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.CompanyID = companyID

	result, err := h.svc.CreateInvoice(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+strconv.Itoa(result.Invoice.ID))
	writeJSONStatus(w, http.StatusCreated, result.Invoice)
}

// apiGetInvoice handles GET /api/companies/{companyID}/invoices/{invoiceID}.
func (h *Handler) apiGetInvoice(w http.ResponseWriter, r *http.Request) {
	companyID, invoiceID, ok := invoicePath(w, r)
	if !ok {
		return
	}
	result, err := h.svc.GetInvoice(r.Context(), companyID, invoiceID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Invoice)
}

// apiReplaceLines handles PUT /api/companies/{companyID}/invoices/{invoiceID}/lines.
func (h *Handler) apiReplaceLines(w http.ResponseWriter, r *http.Request) {
	companyID, invoiceID, ok := invoicePath(w, r)
	if !ok {
		return
	}
	var req app.ReplaceLinesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.CompanyID, req.InvoiceID = companyID, invoiceID

	result, err := h.svc.ReplaceLines(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Invoice)
}

// apiUpdateAnnotations handles PATCH /api/companies/{companyID}/invoices/{invoiceID}.
func (h *Handler) apiUpdateAnnotations(w http.ResponseWriter, r *http.Request) {
	companyID, invoiceID, ok := invoicePath(w, r)
	if !ok {
		return
	}
	var req app.UpdateAnnotationsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.CompanyID, req.InvoiceID = companyID, invoiceID

	result, err := h.svc.UpdateAnnotations(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Invoice)
}

func (h *Handler) apiIssueInvoice(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.IssueInvoice, false)
}

func (h *Handler) apiAcceptInvoice(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.AcceptInvoice, false)
}

func (h *Handler) apiRejectInvoice(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.RejectInvoice, false)
}

// apiVoidInvoice handles POST .../void with an optional {"reason": "..."} body.
func (h *Handler) apiVoidInvoice(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.VoidInvoice, true)
}

type transitionFunc func(ctx context.Context, req app.TransitionRequest) (*app.InvoiceResult, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc, withBody bool) {
	companyID, invoiceID, ok := invoicePath(w, r)
	if !ok {
		return
	}
	var req app.TransitionRequest
	if withBody && r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	req.CompanyID, req.InvoiceID = companyID, invoiceID

	result, err := fn(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Invoice)
}

func invoicePath(w http.ResponseWriter, r *http.Request) (companyID, invoiceID int, ok bool) {
	if companyID, ok = pathID(w, r, "companyID"); !ok {
		return 0, 0, false
	}
	if invoiceID, ok = pathID(w, r, "invoiceID"); !ok {
		return 0, 0, false
	}
	return companyID, invoiceID, true
}
