package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "eet/pkg/domain-errors"
	"eet/pkg/platform/sentinel"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		code       string
		number     float64
		hasMessage bool
	}{
		{"invalid input", dErrors.New(dErrors.CodeInvalidInput, "unknown status"), http.StatusBadRequest, "invalid_input", 301, true},
		{"missing field", dErrors.MissingField("porad_cis"), http.StatusBadRequest, "missing_required_field", 701, true},
		{"not configured", dErrors.New(dErrors.CodeNotConfigured, "no certificate"), http.StatusServiceUnavailable, "not_configured", 204, true},
		{"upstream timeout", dErrors.New(dErrors.CodeTimeout, "deadline"), http.StatusBadGateway, "timeout", 902, true},
		{"bkp mismatch", dErrors.New(dErrors.CodeBkpMismatch, "echo differs"), http.StatusBadGateway, "bkp_mismatch", 801, true},
		{"wrapped not found", fmt.Errorf("journal: %w", sentinel.ErrNotFound), http.StatusNotFound, "not_found", 0, true},
		{"unsupported", sentinel.ErrUnsupported, http.StatusNotImplemented, "unsupported", 0, true},
		{"internal hides description", dErrors.New(dErrors.CodeInternal, "db failed"), http.StatusInternalServerError, "internal_error", 500, false},
		{"uncoded error is internal", errors.New("boom"), http.StatusInternalServerError, "internal_error", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.code, body["error"])
			if tt.number != 0 {
				assert.Equal(t, tt.number, body["error_number"])
			} else {
				assert.NotContains(t, body, "error_number")
			}
			_, hasMessage := body["error_description"]
			assert.Equal(t, tt.hasMessage, hasMessage)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusAccepted, map[string]string{"fik": "b3a09b52-7c87-4014-a496-4c7a53cf9125-ff"})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"fik":"b3a09b52-7c87-4014-a496-4c7a53cf9125-ff"}`, w.Body.String())
}
