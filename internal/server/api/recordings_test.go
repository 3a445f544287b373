package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ayusman/mocaprec/internal/store"
)

func seedRecordings(t *testing.T, s *store.Store) {
	t.Helper()

	base := time.Now().Add(-time.Hour)
	recs := []*store.Recording{
		{ID: "rec-1", Subject: "alice", Sequence: 1, Trial: 1, StartedAt: base},
		{ID: "rec-2", Subject: "bob", Sequence: 1, Trial: 1, StartedAt: base.Add(time.Minute)},
		{ID: "rec-3", Subject: "alice", Sequence: 1, Trial: 2, StartedAt: base.Add(2 * time.Minute)},
	}
	for _, rec := range recs {
		if err := s.Recordings().Create(rec); err != nil {
			t.Fatalf("failed to create recording: %v", err)
		}
	}
}

func TestRecordingsHandler_List(t *testing.T) {
	s := newTestStore(t)
	seedRecordings(t, s)
	handler := NewRecordingsHandler(s)

	tests := []struct {
		path string
		want []string
	}{
		{"/api/recordings", []string{"rec-3", "rec-2", "rec-1"}},
		{"/api/recordings?subject=alice", []string{"rec-1", "rec-3"}},
		{"/api/recordings?subject=nobody", []string{}},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected status %d, got %d", tt.path, http.StatusOK, rec.Code)
		}

		var resp listRecordingsResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(resp.Recordings) != len(tt.want) {
			t.Fatalf("%s: got %d recordings, want %d", tt.path, len(resp.Recordings), len(tt.want))
		}
		for i, id := range tt.want {
			if resp.Recordings[i].ID != id {
				t.Errorf("%s: recording %d = %s, want %s", tt.path, i, resp.Recordings[i].ID, id)
			}
		}
	}
}

func TestRecordingsHandler_GetAndDelete(t *testing.T) {
	s := newTestStore(t)
	seedRecordings(t, s)
	handler := NewRecordingsHandler(s)

	req := httptest.NewRequest(http.MethodGet, "/api/recordings/rec-2", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var got store.Recording
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Subject != "bob" || got.Status != store.StatusRecording {
		t.Errorf("recording = %+v", got)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/recordings/rec-2", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE: expected status %d, got %d", http.StatusNoContent, rec.Code)
	}

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		req = httptest.NewRequest(method, "/api/recordings/rec-2", nil)
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s after delete: expected status %d, got %d", method, http.StatusNotFound, rec.Code)
		}
	}
}

func TestRecordingsHandler_Hooks(t *testing.T) {
	s := newTestStore(t)
	seedRecordings(t, s)
	handler := NewRecordingsHandler(s)

	runs := []*store.HookRun{
		{RecordingID: "rec-1", Hook: "checksum", Success: true},
		{RecordingID: "rec-1", Hook: "upload", Error: "offline"},
	}
	for _, run := range runs {
		if err := s.HookRuns().Create(run); err != nil {
			t.Fatalf("failed to create hook run: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/recordings/rec-1/hooks", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var resp listHookRunsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.HookRuns) != 2 || resp.HookRuns[0].Hook != "checksum" || resp.HookRuns[1].Error != "offline" {
		t.Errorf("hook runs = %+v", resp.HookRuns)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/recordings/missing/hooks", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestRecordingsHandler_MethodNotAllowed(t *testing.T) {
	handler := NewRecordingsHandler(newTestStore(t))

	req := httptest.NewRequest(http.MethodPost, "/api/recordings", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
