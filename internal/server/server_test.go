package server

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/mocaprec/internal/overlay"
	"github.com/ayusman/mocaprec/internal/tracker"
	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"
)

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		contentType := rec.Header().Get("Content-Type")
		if contentType != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", contentType)
		}

		var response map[string]interface{}
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}

		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		methods := []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}

		for _, method := range methods {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/nonexistent", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestServer_StaticFiles(t *testing.T) {
	// Create a temporary directory with a static file
	tmpDir, err := os.MkdirTemp("", "mocaprec-server-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// Create a test HTML file
	testContent := "<html><body>Hello, World!</body></html>"
	if err := os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	// Create a CSS file for testing direct file access
	cssContent := "body { color: red; }"
	if err := os.WriteFile(filepath.Join(tmpDir, "style.css"), []byte(cssContent), 0644); err != nil {
		t.Fatalf("failed to create test CSS file: %v", err)
	}

	s := New(Config{StaticDir: tmpDir})

	t.Run("serves index.html at root path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		if rec.Body.String() != testContent {
			t.Errorf("expected body %q, got %q", testContent, rec.Body.String())
		}
	})

	t.Run("serves static files from configured directory", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/style.css", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		if rec.Body.String() != cssContent {
			t.Errorf("expected body %q, got %q", cssContent, rec.Body.String())
		}
	})

	t.Run("returns 404 for non-existent static files", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/nonexistent.html", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestServer_NoStaticDir(t *testing.T) {
	s := New(Config{})

	t.Run("root path returns 404 when no static dir configured", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("creates server with config", func(t *testing.T) {
		cfg := Config{StaticDir: "/some/path"}
		s := New(cfg)

		if s == nil {
			t.Fatal("expected non-nil server")
		}

		if s.config.StaticDir != cfg.StaticDir {
			t.Errorf("expected StaticDir %s, got %s", cfg.StaticDir, s.config.StaticDir)
		}
	})

	t.Run("server implements http.Handler", func(t *testing.T) {
		s := New(Config{})
		var _ http.Handler = s
	})
}

func TestServer_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mocaprec_ticks_total 3\n"))
	})
	s := New(Config{Metrics: metrics})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "mocaprec_ticks_total") {
		t.Errorf("GET /metrics = %d %q", rec.Code, rec.Body.String())
	}
}

func TestServer_RoutesNeedCollaborators(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/api/session", "/api/recordings", "/api/stream", "/api/skeletons", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusNotFound, rec.Code)
		}
	}
}

func TestStreamHandler(t *testing.T) {
	hub := overlay.NewHub(1)
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	snap := tracker.StandingSnapshot(1)
	if err := hub.Attach(nil).Show(0, &frame, &snap); err != nil {
		t.Fatalf("Show() error = %v", err)
	}

	ts := httptest.NewServer(New(Config{Hub: hub}))
	defer ts.Close()

	t.Run("rejects a bad device", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/stream?device=x")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
		}
	})

	t.Run("streams the preview", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/stream?device=0")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
			t.Fatalf("Content-Type = %q", ct)
		}

		r := bufio.NewReader(resp.Body)
		boundary, err := r.ReadString('\n')
		if err != nil {
			t.Fatal(err)
		}
		if strings.TrimSpace(boundary) != "--frame" {
			t.Errorf("first line = %q, want --frame", boundary)
		}
		header, _ := r.ReadString('\n')
		if strings.TrimSpace(header) != "Content-Type: image/jpeg" {
			t.Errorf("part header = %q", header)
		}
	})
}

func TestSkeletonsHandler(t *testing.T) {
	hub := overlay.NewHub(0)
	ts := httptest.NewServer(New(Config{Hub: hub}))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/skeletons"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for hub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	snap := tracker.StandingSnapshot(4)
	snap.DeviceIndex = 1
	hub.Publish(&snap)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var msg overlay.SkeletonMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	if msg.Device != 1 || msg.BodyID != 4 || len(msg.Joints) != 32 {
		t.Errorf("message = device %d body %d joints %d", msg.Device, msg.BodyID, len(msg.Joints))
	}

	conn.Close()
	deadline = time.Now().Add(5 * time.Second)
	for hub.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler did not unsubscribe after the client left")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
