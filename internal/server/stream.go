package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ayusman/mocaprec/internal/overlay"
)

// streamInterval is how often the preview is checked for a new frame.
const streamInterval = 66 * time.Millisecond // ~15 FPS

// StreamHandler serves the overlay preview of one device as MJPEG.
type StreamHandler struct {
	hub *overlay.Hub
}

// NewStreamHandler creates a new StreamHandler reading previews from hub.
func NewStreamHandler(hub *overlay.Hub) *StreamHandler {
	return &StreamHandler{hub: hub}
}

// ServeHTTP streams MJPEG frames of ?device=N (default 0) until the client leaves.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dev := 0
	if v := r.URL.Query().Get("device"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid device", http.StatusBadRequest)
			return
		}
		dev = n
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var last time.Time
	for {
		if jpeg, at := h.hub.Preview(dev); jpeg != nil && at.After(last) {
			last = at
			if err := writeFrame(w, jpeg); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writeFrame(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\r\n")
	return err
}
