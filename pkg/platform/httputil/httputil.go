package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "eet/pkg/domain-errors"
	"eet/pkg/platform/sentinel"
)

type errorBody struct {
	Error       string `json:"error"`
	Number      int    `json:"error_number,omitempty"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status and a JSON error body. Internal failures
// never expose their description.
func WriteError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	body := errorBody{Error: code, Number: dErrors.NumberOf(err)}
	if status != http.StatusInternalServerError {
		var de *dErrors.Error
		if errors.As(err, &de) {
			body.Description = de.Message
		} else {
			body.Description = err.Error()
		}
	}
	WriteJSON(w, status, body)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, sentinel.ErrUnsupported):
		return http.StatusNotImplemented, "unsupported"
	}
	code, ok := dErrors.CodeOf(err)
	if !ok {
		return http.StatusInternalServerError, "internal_error"
	}
	switch code {
	case dErrors.CodeInvalidInput, dErrors.CodeMissingRequiredField, dErrors.CodeInvalidField:
		return http.StatusBadRequest, string(code)
	case dErrors.CodeNotConfigured:
		return http.StatusServiceUnavailable, string(code)
	case dErrors.CodeTransport, dErrors.CodeTimeout, dErrors.CodeMalformedResponse, dErrors.CodeBkpMismatch:
		return http.StatusBadGateway, string(code)
	}
	return http.StatusInternalServerError, "internal_error"
}
