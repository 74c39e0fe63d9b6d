package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"einvoicing/internal/app"
)

// apiCreateCompany handles POST /api/companies.
func (h *Handler) apiCreateCompany(w http.ResponseWriter, r *http.Request) {
	var req app.CreateCompanyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreateCompany(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Company)
}

// apiGetCompany handles GET /api/companies/{companyID}.
func (h *Handler) apiGetCompany(w http.ResponseWriter, r *http.Request) {
	companyID, ok := pathID(w, r, "companyID")
	if !ok {
		return
	}
	result, err := h.svc.GetCompany(r.Context(), companyID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Company)
}

// apiUpsertProduct handles PUT /api/companies/{companyID}/products/{reference}.
// The reference in the path wins over one in the body.
func (h *Handler) apiUpsertProduct(w http.ResponseWriter, r *http.Request) {
	companyID, ok := pathID(w, r, "companyID")
	if !ok {
		return
	}
	var req app.UpsertProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.CompanyID = companyID
	req.Reference = chi.URLParam(r, "reference")

	result, err := h.svc.UpsertProduct(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Product)
}
