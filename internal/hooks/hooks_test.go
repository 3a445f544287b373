package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// writeHook creates a hook directory under dir with a manifest and a shell script.
func writeHook(t *testing.T, dir string, m Manifest, script string) string {
	t.Helper()

	hookDir := filepath.Join(dir, m.Name)
	if err := os.MkdirAll(hookDir, 0755); err != nil {
		t.Fatalf("failed to create hook dir: %v", err)
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(hookDir, ManifestFile), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	if script != "" {
		if err := os.WriteFile(filepath.Join(hookDir, m.Executable), []byte(script), 0755); err != nil {
			t.Fatalf("failed to write script: %v", err)
		}
	}
	return hookDir
}

func TestManager_Discover(t *testing.T) {
	dir := t.TempDir()

	hookDir := writeHook(t, dir, Manifest{
		Name:        "checksum",
		Version:     "1.0.0",
		Description: "Writes SHA-256 sums",
		Executable:  "checksum",
		Events:      []string{EventRecordingFinished},
	}, "")
	writeHook(t, dir, Manifest{Name: "notify", Executable: "notify.sh", Events: []string{"other"}}, "")

	// Directories without a valid manifest are skipped.
	os.MkdirAll(filepath.Join(dir, "empty"), 0755)
	os.MkdirAll(filepath.Join(dir, "broken"), 0755)
	os.WriteFile(filepath.Join(dir, "broken", ManifestFile), []byte("{"), 0644)
	os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0644)

	m := NewManager(dir)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	hooks := m.List()
	if len(hooks) != 2 {
		t.Fatalf("List() = %d hooks, want 2", len(hooks))
	}
	if hooks[0].Manifest.Name != "checksum" || hooks[1].Manifest.Name != "notify" {
		t.Errorf("List() order = %s, %s", hooks[0].Manifest.Name, hooks[1].Manifest.Name)
	}
	if hooks[0].Path != hookDir || hooks[0].Executable != filepath.Join(hookDir, "checksum") {
		t.Errorf("hook location = %q / %q", hooks[0].Path, hooks[0].Executable)
	}

	finished := m.ForEvent(EventRecordingFinished)
	if len(finished) != 1 || finished[0].Manifest.Name != "checksum" {
		t.Errorf("ForEvent() = %v, want [checksum]", finished)
	}

	if _, err := m.Get("missing"); !errors.Is(err, ErrHookNotFound) {
		t.Errorf("Get() error = %v, want ErrHookNotFound", err)
	}
}

func TestManager_Discover_MissingDir(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope"))
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(m.List()) != 0 {
		t.Error("expected no hooks")
	}
	if m.Dir() == "" {
		t.Error("Dir() should return the configured path")
	}
}

func testRequest() *Request {
	return &Request{
		Event: EventRecordingFinished,
		Recording: RecordingInfo{
			ID:        "rec-1",
			Subject:   "p01",
			Sequence:  1,
			Trial:     2,
			EulerPath: "/data/p01_1_2_euler.csv",
			QuatPath:  "/data/p01_1_2_quat.csv",
			Status:    "completed",
		},
	}
}

func TestExecutor_Execute(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	tests := []struct {
		name    string
		script  string
		timeout time.Duration
		wantErr error
		check   func(t *testing.T, resp *Response, err error)
	}{
		{
			name: "echoes request",
			script: `#!/bin/sh
INPUT=$(cat)
echo "{\"success\":true,\"data\":{\"received\":$INPUT}}"
`,
			timeout: 5 * time.Second,
			check: func(t *testing.T, resp *Response, err error) {
				if err != nil {
					t.Fatalf("Execute() error = %v", err)
				}
				var data struct {
					Received Request `json:"received"`
				}
				if err := json.Unmarshal(resp.Data, &data); err != nil {
					t.Fatalf("failed to unmarshal response data: %v", err)
				}
				if data.Received.Event != EventRecordingFinished || data.Received.Recording.Trial != 2 {
					t.Errorf("hook received %+v", data.Received)
				}
				if string(data.Received.Config) != `{"algo":"sha256"}` {
					t.Errorf("hook config = %s, want manifest config", data.Received.Config)
				}
			},
		},
		{
			name: "error response",
			script: `#!/bin/sh
echo '{"success":false,"error":"disk full"}'
`,
			timeout: 5 * time.Second,
			check: func(t *testing.T, resp *Response, err error) {
				if err != nil {
					t.Fatalf("Execute() error = %v", err)
				}
				if resp.Success || resp.Error != "disk full" {
					t.Errorf("response = %+v", resp)
				}
			},
		},
		{
			name: "invalid json",
			script: `#!/bin/sh
echo 'not valid json'
`,
			timeout: 5 * time.Second,
			check: func(t *testing.T, resp *Response, err error) {
				if err == nil {
					t.Fatal("expected error for invalid JSON")
				}
			},
		},
		{
			name: "non-zero exit",
			script: `#!/bin/sh
echo "Error: something failed" >&2
exit 1
`,
			timeout: 5 * time.Second,
			check: func(t *testing.T, resp *Response, err error) {
				if err == nil {
					t.Fatal("expected error for non-zero exit")
				}
			},
		},
		{
			name: "timeout",
			script: `#!/bin/sh
sleep 10
echo '{"success":true}'
`,
			timeout: 100 * time.Millisecond,
			check: func(t *testing.T, resp *Response, err error) {
				if !errors.Is(err, ErrHookTimeout) {
					t.Fatalf("Execute() error = %v, want ErrHookTimeout", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			hookDir := writeHook(t, dir, Manifest{
				Name:       "test-hook",
				Executable: "hook.sh",
				Events:     []string{EventRecordingFinished},
				Config:     json.RawMessage(`{"algo":"sha256"}`),
			}, tt.script)

			m := NewManager(dir)
			if err := m.Discover(); err != nil {
				t.Fatal(err)
			}
			h, err := m.Get("test-hook")
			if err != nil {
				t.Fatal(err)
			}
			if h.Path != hookDir {
				t.Fatalf("hook path = %q", h.Path)
			}

			resp, err := NewExecutor(tt.timeout).Execute(context.Background(), h, testRequest())
			tt.check(t, resp, err)
		})
	}
}

func TestRunner_Run(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir := t.TempDir()
	writeHook(t, dir, Manifest{Name: "a-fails", Executable: "run.sh", Events: []string{EventRecordingFinished}},
		"#!/bin/sh\ncat >/dev/null\necho '{\"success\":false,\"error\":\"nope\"}'\n")
	writeHook(t, dir, Manifest{Name: "b-works", Executable: "run.sh", Events: []string{EventRecordingFinished}},
		"#!/bin/sh\ncat >/dev/null\necho '{\"success\":true}'\n")
	writeHook(t, dir, Manifest{Name: "c-other", Executable: "run.sh", Events: []string{"other"}},
		"#!/bin/sh\nexit 1\n")

	m := NewManager(dir)
	if err := m.Discover(); err != nil {
		t.Fatal(err)
	}

	results := NewRunner(m, NewExecutor(5*time.Second)).Run(context.Background(), *testRequest())

	if len(results) != 2 {
		t.Fatalf("Run() = %d results, want 2", len(results))
	}
	if results[0].Hook != "a-fails" || results[0].Success() || results[0].Message() != "nope" {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1].Hook != "b-works" || !results[1].Success() || results[1].Message() != "" {
		t.Errorf("results[1] = %+v", results[1])
	}
}
