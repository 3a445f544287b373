package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/mocaprec/internal/store"
)

// RecordingsHandler serves the recordings catalog.
type RecordingsHandler struct {
	store *store.Store
}

// NewRecordingsHandler creates a RecordingsHandler over s.
func NewRecordingsHandler(s *store.Store) *RecordingsHandler {
	return &RecordingsHandler{store: s}
}

// ServeHTTP routes /api/recordings, /api/recordings/{id} and
// /api/recordings/{id}/hooks.
func (h *RecordingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/recordings")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch {
	case sub == "hooks" && r.Method == http.MethodGet:
		h.hooks(w, r, id)
	case sub != "":
		http.NotFound(w, r)
	case r.Method == http.MethodGet:
		h.get(w, r, id)
	case r.Method == http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type listRecordingsResponse struct {
	Recordings []*store.Recording `json:"recordings"`
}

type listHookRunsResponse struct {
	HookRuns []store.HookRun `json:"hook_runs"`
}

// list handles GET /api/recordings, optionally filtered by ?subject=.
func (h *RecordingsHandler) list(w http.ResponseWriter, r *http.Request) {
	var (
		recs []*store.Recording
		err  error
	)
	if subject := r.URL.Query().Get("subject"); subject != "" {
		recs, err = h.store.Recordings().ListBySubject(subject)
	} else {
		recs, err = h.store.Recordings().List()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list recordings")
		return
	}

	if recs == nil {
		recs = []*store.Recording{}
	}
	writeJSON(w, http.StatusOK, listRecordingsResponse{Recordings: recs})
}

// get handles GET /api/recordings/{id}.
func (h *RecordingsHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.store.Recordings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "recording not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get recording")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// delete handles DELETE /api/recordings/{id}. The files stay on disk.
func (h *RecordingsHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Recordings().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "recording not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete recording")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// hooks handles GET /api/recordings/{id}/hooks.
func (h *RecordingsHandler) hooks(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Recordings().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "recording not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get recording")
		return
	}

	runs, err := h.store.HookRuns().ListByRecording(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list hook runs")
		return
	}
	if runs == nil {
		runs = []store.HookRun{}
	}
	writeJSON(w, http.StatusOK, listHookRunsResponse{HookRuns: runs})
}
