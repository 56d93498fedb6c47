// Package handler exposes the submission journal over HTTP for operators.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"eet/internal/journal"
	dErrors "eet/pkg/domain-errors"
	"eet/pkg/platform/httputil"
	"eet/pkg/platform/sentinel"
)

type Handler struct {
	store  journal.Store
	logger *slog.Logger
}

func New(store journal.Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Register mounts journal endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/submissions", h.HandleList)
	r.Get("/submissions/{uuid}", h.HandleGet)
}

type submissionResponse struct {
	MessageUUID string          `json:"message_uuid"`
	Latest      journal.Entry   `json:"latest"`
	Attempts    []journal.Entry `json:"attempts"`
}

// HandleGet handles GET /submissions/{uuid}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	if _, err := uuid.Parse(id); err != nil {
		httputil.WriteError(w, dErrors.InvalidField("uuid_zpravy", "must be a uuid"))
		return
	}

	entries, err := h.store.Find(r.Context(), id)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			h.logger.ErrorContext(r.Context(), "journal lookup failed", "message_uuid", id, "error", err)
		}
		httputil.WriteError(w, err)
		return
	}
	latest, _ := journal.Latest(entries)
	httputil.WriteJSON(w, http.StatusOK, submissionResponse{MessageUUID: id, Latest: latest, Attempts: entries})
}

// HandleList handles GET /submissions?status=failed,rejected.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	lister, ok := h.store.(journal.Lister)
	if !ok {
		httputil.WriteError(w, sentinel.ErrUnsupported)
		return
	}

	statuses, err := parseStatuses(r.URL.Query().Get("status"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := lister.ListByStatus(r.Context(), statuses...)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "journal listing failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"submissions": entries})
}

func parseStatuses(raw string) ([]journal.Status, error) {
	if raw == "" {
		return []journal.Status{journal.StatusFailed, journal.StatusRejected}, nil
	}
	var out []journal.Status
	for _, part := range strings.Split(raw, ",") {
		s := journal.Status(strings.TrimSpace(part))
		switch s {
		case journal.StatusRegistered, journal.StatusVerified, journal.StatusRejected, journal.StatusFailed:
			out = append(out, s)
		default:
			return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown status "+string(s))
		}
	}
	return out, nil
}
