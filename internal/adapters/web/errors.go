package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"einvoicing/internal/app"
	"einvoicing/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorResponse(w, status, errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	})
}

func writeErrorResponse(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus maps engine errors to an HTTP status and a stable error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrAllocationConflict):
		return http.StatusServiceUnavailable, "ALLOCATION_CONFLICT"
	case errors.Is(err, core.ErrNumberingRangeExhausted):
		return http.StatusConflict, "RANGE_EXHAUSTED"
	case errors.Is(err, core.ErrEmptyInvoice):
		return http.StatusUnprocessableEntity, "EMPTY_INVOICE"
	case errors.Is(err, core.ErrImmutableInvoice):
		return http.StatusConflict, "IMMUTABLE_INVOICE"
	case errors.Is(err, core.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, core.ErrCompanyExists):
		return http.StatusConflict, "COMPANY_EXISTS"
	case errors.Is(err, core.ErrProductNotFound):
		// An unknown product on a line is a bad request, not a missing resource.
		return http.StatusBadRequest, "PRODUCT_NOT_FOUND"
	case errors.Is(err, core.ErrInvoiceNotFound),
		errors.Is(err, core.ErrCompanyNotFound),
		errors.Is(err, app.ErrUnknownSchema):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, core.ErrReferenceGeneration):
		return http.StatusBadGateway, "REFERENCE_GENERATION_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// writeServiceError writes err with the status errorStatus assigns it.
// Internal errors are logged and their message withheld from the client.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("request_id", requestIDFromContext(r.Context())).Msg("request failed")
		msg = "internal server error"
	}
	writeErrorResponse(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		Retryable: status == http.StatusServiceUnavailable,
		RequestID: requestIDFromContext(r.Context()),
	})
}
