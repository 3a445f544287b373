// Package hooks runs external programs after a recording finishes.
package hooks

import "encoding/json"

// EventRecordingFinished is sent once the output files of a recording are closed.
const EventRecordingFinished = "recording.finished"

// Manifest describes a hook's metadata and the events it handles.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Handles reports whether the hook subscribes to event.
func (m Manifest) Handles(event string) bool {
	for _, e := range m.Events {
		if e == event {
			return true
		}
	}
	return false
}

// RecordingInfo describes the recording a hook is run for.
type RecordingInfo struct {
	ID        string `json:"id"`
	Subject   string `json:"subject"`
	Sequence  int    `json:"sequence"`
	Trial     int    `json:"trial"`
	VideoPath string `json:"video_path"`
	EulerPath string `json:"euler_path"`
	QuatPath  string `json:"quat_path"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Rows      int64  `json:"rows"`
}

// Request is written to the hook's stdin as JSON.
type Request struct {
	Event     string          `json:"event"`
	Recording RecordingInfo   `json:"recording"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Response is read from the hook's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}
