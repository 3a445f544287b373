// Package main provides a hook that writes a SHA-256 manifest next to a
// finished recording.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ayusman/mocaprec/internal/hooks"
)

// Config is read from the "config" field of the hook manifest.
type Config struct {
	// Suffix is appended to the recording's base name for the manifest file.
	Suffix string `json:"suffix"`
}

// Entry is one checksummed file.
type Entry struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

func main() {
	var req hooks.Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Event != hooks.EventRecordingFinished {
		writeErrorResponse(fmt.Sprintf("unknown event: %s", req.Event))
		return
	}

	cfg := Config{Suffix: ".sha256"}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("failed to parse config: %v", err))
			return
		}
	}

	path, entries, err := writeManifest(req.Recording, cfg.Suffix)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	data, _ := json.Marshal(map[string]any{
		"manifest": path,
		"files":    entries,
	})
	writeResponse(hooks.Response{Success: true, Data: data})
}

// writeManifest hashes every output file of rec that exists and writes the
// sums in sha256sum format. It returns the manifest path.
func writeManifest(rec hooks.RecordingInfo, suffix string) (string, []Entry, error) {
	var entries []Entry
	for _, p := range []string{rec.VideoPath, rec.EulerPath, rec.QuatPath} {
		if p == "" {
			continue
		}
		e, err := hashFile(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return "", nil, fmt.Errorf("hash %s: %w", p, err)
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return "", nil, fmt.Errorf("recording %s has no output files", rec.ID)
	}

	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s  %s\n", e.SHA256, filepath.Base(e.Path))
	}

	path := manifestPath(rec.EulerPath, suffix)
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return "", nil, fmt.Errorf("write manifest: %w", err)
	}
	return path, entries, nil
}

// manifestPath derives <base><suffix> from the Euler file path.
func manifestPath(eulerPath, suffix string) string {
	return strings.TrimSuffix(eulerPath, "_euler.csv") + suffix
}

func hashFile(path string) (Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return Entry{}, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Path: path, Size: n, SHA256: hex.EncodeToString(h.Sum(nil))}, nil
}

func writeResponse(resp hooks.Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}

func writeErrorResponse(msg string) {
	writeResponse(hooks.Response{Success: false, Error: msg})
}
