package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/mocaprec/internal/device"
	"github.com/ayusman/mocaprec/internal/session"
	"github.com/ayusman/mocaprec/internal/store"
)

// Controller is the recording session as seen by the control surface.
type Controller interface {
	Start(ctx context.Context, subject string, sequence, trial int) (session.RecordingConfig, error)
	Stop()
	State() session.State
	Current() (session.RecordingConfig, bool)
	LastOutcome() (session.Outcome, bool)
	Enablement() (start, stop bool)
}

// SessionHandler serves /api/session, /api/session/start and /api/session/stop.
type SessionHandler struct {
	ctrl  Controller
	store *store.Store
}

// NewSessionHandler creates a SessionHandler. The store is optional and
// only used to pick the next trial number when a start request omits it.
func NewSessionHandler(ctrl Controller, s *store.Store) *SessionHandler {
	return &SessionHandler{ctrl: ctrl, store: s}
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/session")
	action = strings.Trim(action, "/")

	switch action {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.status())
	case "start":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.start(w, r)
	case "stop":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.ctrl.Stop()
		writeJSON(w, http.StatusOK, h.status())
	default:
		http.NotFound(w, r)
	}
}

type startRequest struct {
	Subject  string `json:"subject"`
	Sequence int    `json:"sequence"`
	Trial    int    `json:"trial"`
}

type outcomeResponse struct {
	ID         string `json:"id,omitempty"`
	BaseName   string `json:"base_name"`
	Error      string `json:"error,omitempty"`
	Ticks      int64  `json:"ticks"`
	Snapshots  int64  `json:"snapshots"`
	Rows       int64  `json:"rows"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
}

type statusResponse struct {
	State       session.State            `json:"state"`
	Recording   *session.RecordingConfig `json:"recording,omitempty"`
	CanStart    bool                     `json:"can_start"`
	CanStop     bool                     `json:"can_stop"`
	LastOutcome *outcomeResponse         `json:"last_outcome,omitempty"`
}

type startResponse struct {
	Recording session.RecordingConfig `json:"recording"`
}

func (h *SessionHandler) status() statusResponse {
	resp := statusResponse{State: h.ctrl.State()}
	resp.CanStart, resp.CanStop = h.ctrl.Enablement()

	if rc, ok := h.ctrl.Current(); ok {
		resp.Recording = &rc
	}
	if out, ok := h.ctrl.LastOutcome(); ok {
		resp.LastOutcome = &outcomeResponse{
			ID:         out.ID,
			BaseName:   out.Recording.BaseName(),
			Error:      out.Error,
			Ticks:      out.Ticks,
			Snapshots:  out.Snapshots,
			Rows:       out.Rows,
			StartedAt:  formatTime(out.StartedAt),
			FinishedAt: formatTime(out.FinishedAt),
		}
	}
	return resp
}

// start handles POST /api/session/start.
func (h *SessionHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Trial == 0 && h.store != nil {
		next, err := h.store.Recordings().NextTrial(strings.TrimSpace(req.Subject), req.Sequence)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to pick trial number")
			return
		}
		req.Trial = next
	}

	rc, err := h.ctrl.Start(r.Context(), req.Subject, req.Sequence, req.Trial)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, startResponse{Recording: rc})
	case errors.Is(err, session.ErrAlreadyActive):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrInvalidIdentifiers):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, device.ErrDeviceUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
