package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/mocaprec/internal/device"
	"github.com/ayusman/mocaprec/internal/session"
	"github.com/ayusman/mocaprec/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// fakeController records calls and returns canned results.
type fakeController struct {
	state    session.State
	current  *session.RecordingConfig
	outcome  *session.Outcome
	startErr error
	started  []string
	stops    int
}

func (c *fakeController) Start(ctx context.Context, subject string, sequence, trial int) (session.RecordingConfig, error) {
	c.started = append(c.started, fmt.Sprintf("%s/%d/%d", subject, sequence, trial))
	if c.startErr != nil {
		return session.RecordingConfig{}, c.startErr
	}
	rc, err := session.NewRecordingConfig(os.TempDir(), subject, sequence, trial)
	if err != nil {
		return session.RecordingConfig{}, err
	}
	c.state = session.Running
	c.current = &rc
	return rc, nil
}

func (c *fakeController) Stop() {
	c.stops++
	if c.state == session.Running {
		c.state = session.Idle
		c.current = nil
	}
}

func (c *fakeController) State() session.State { return c.state }

func (c *fakeController) Current() (session.RecordingConfig, bool) {
	if c.current == nil {
		return session.RecordingConfig{}, false
	}
	return *c.current, true
}

func (c *fakeController) LastOutcome() (session.Outcome, bool) {
	if c.outcome == nil {
		return session.Outcome{}, false
	}
	return *c.outcome, true
}

func (c *fakeController) Enablement() (bool, bool) {
	return c.state == session.Idle, c.state == session.Running
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSessionHandler_Status(t *testing.T) {
	ctrl := &fakeController{}
	handler := NewSessionHandler(ctrl, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var resp struct {
		State     string           `json:"state"`
		CanStart  bool             `json:"can_start"`
		CanStop   bool             `json:"can_stop"`
		Recording *json.RawMessage `json:"recording"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.State != "idle" || !resp.CanStart || resp.CanStop || resp.Recording != nil {
		t.Errorf("status = %+v", resp)
	}
}

func TestSessionHandler_Start(t *testing.T) {
	ctrl := &fakeController{}
	handler := NewSessionHandler(ctrl, nil)

	rec := post(t, handler, "/api/session/start", `{"subject":"alice","sequence":2,"trial":3}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp struct {
		Recording struct {
			BaseName  string `json:"base_name"`
			EulerPath string `json:"euler_path"`
		} `json:"recording"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Recording.BaseName != "alice_2_3" {
		t.Errorf("base name = %q, want alice_2_3", resp.Recording.BaseName)
	}
	if resp.Recording.EulerPath != filepath.Join(os.TempDir(), "alice_2_3_euler.csv") {
		t.Errorf("euler path = %q", resp.Recording.EulerPath)
	}
}

func TestSessionHandler_StartErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   string
		status int
	}{
		{"already active", session.ErrAlreadyActive, `{"subject":"a","sequence":1,"trial":1}`, http.StatusConflict},
		{"invalid identifiers", fmt.Errorf("%w: trial", session.ErrInvalidIdentifiers), `{"subject":"a","sequence":1,"trial":1}`, http.StatusBadRequest},
		{"device unavailable", fmt.Errorf("%w: device 1", device.ErrDeviceUnavailable), `{"subject":"a","sequence":1,"trial":1}`, http.StatusServiceUnavailable},
		{"other", fmt.Errorf("disk full"), `{"subject":"a","sequence":1,"trial":1}`, http.StatusInternalServerError},
		{"bad body", nil, `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewSessionHandler(&fakeController{startErr: tt.err}, nil)

			rec := post(t, handler, "/api/session/start", tt.body)
			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}

			var resp errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || resp.Error == "" {
				t.Errorf("expected JSON error body, got %q", rec.Body.String())
			}
		})
	}
}

func TestSessionHandler_StartPicksNextTrial(t *testing.T) {
	s := newTestStore(t)
	for trial := 1; trial <= 2; trial++ {
		rec := &store.Recording{ID: fmt.Sprintf("r%d", trial), Subject: "alice", Sequence: 4, Trial: trial}
		if err := s.Recordings().Create(rec); err != nil {
			t.Fatalf("failed to create recording: %v", err)
		}
	}

	ctrl := &fakeController{}
	handler := NewSessionHandler(ctrl, s)

	rec := post(t, handler, "/api/session/start", `{"subject":"alice","sequence":4}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rec.Code)
	}
	if len(ctrl.started) != 1 || ctrl.started[0] != "alice/4/3" {
		t.Errorf("Start calls = %v, want [alice/4/3]", ctrl.started)
	}
}

func TestSessionHandler_Stop(t *testing.T) {
	ctrl := &fakeController{}
	handler := NewSessionHandler(ctrl, nil)

	// Stopping an idle session is fine.
	if rec := post(t, handler, "/api/session/stop", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	post(t, handler, "/api/session/start", `{"subject":"bob","sequence":1,"trial":1}`)
	rec := post(t, handler, "/api/session/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ctrl.stops != 2 || ctrl.State() != session.Idle {
		t.Errorf("stops = %d, state = %v", ctrl.stops, ctrl.State())
	}
}

func TestSessionHandler_Methods(t *testing.T) {
	handler := NewSessionHandler(&fakeController{}, nil)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodPost, "/api/session", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/session/start", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/session/stop", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/session/pause", http.StatusNotFound},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != tt.status {
			t.Errorf("%s %s: expected status %d, got %d", tt.method, tt.path, tt.status, rec.Code)
		}
	}
}
