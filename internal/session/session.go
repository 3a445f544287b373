// Package session runs a recording: it opens the frame sources and output
// files, steps every source once per tick and tears everything down again.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/mocaprec/internal/device"
	"github.com/ayusman/mocaprec/internal/export"
	"github.com/ayusman/mocaprec/internal/hooks"
	"github.com/ayusman/mocaprec/internal/observe"
	"github.com/ayusman/mocaprec/internal/overlay"
	"github.com/ayusman/mocaprec/internal/store"
	"github.com/ayusman/mocaprec/internal/tracker"
	"github.com/ayusman/mocaprec/internal/video"
)

var (
	// ErrAlreadyActive is returned by Start unless the session is idle.
	ErrAlreadyActive = errors.New("recording already active")

	// ErrInvalidIdentifiers is returned for a bad subject, sequence or trial.
	ErrInvalidIdentifiers = errors.New("invalid recording identifiers")
)

// State is the lifecycle state of a session.
type State int

const (
	Idle State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "idle"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DeviceSpec is one device to open, in open order.
type DeviceSpec struct {
	Index  int
	Role   device.SyncRole
	Config device.Config
}

// Config wires a session to its collaborators. Devices must list the
// primary first. Sinks, video, store, hooks and metrics are optional.
type Config struct {
	OutputDir string
	Devices   []DeviceSpec

	Opener     device.Opener
	NewTracker tracker.Factory
	Tracker    tracker.Config

	// Calibrations overrides the intrinsics reported by the devices.
	Calibrations map[int]device.Calibration

	NewSink  overlay.Factory
	NewVideo video.Factory
	FPS      float64

	// NewExporter opens the CSV files. Nil means export.OpenWriter.
	NewExporter export.Factory

	Store   *store.Store
	Hooks   *hooks.Runner
	Metrics *observe.Metrics

	// OnStateChange is called after every state transition.
	OnStateChange func(State)

	// LogJoints logs every joint of every snapshot.
	LogJoints bool
}

// Outcome summarises a finished recording.
type Outcome struct {
	ID         string          `json:"id,omitempty"`
	Recording  RecordingConfig `json:"recording"`
	Err        error           `json:"-"`
	Error      string          `json:"error,omitempty"`
	Ticks      int64           `json:"ticks"`
	Snapshots  int64           `json:"snapshots"`
	Rows       int64           `json:"rows"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Session records from a fixed set of devices, one recording at a time.
type Session struct {
	cfg     Config
	mu      sync.Mutex
	state   State
	current *run
	last    *run
	outcome *Outcome
	running atomic.Bool
}

// New creates an idle session.
func New(cfg Config) *Session {
	if cfg.FPS <= 0 {
		cfg.FPS = device.DefaultFPS
	}
	return &Session{cfg: cfg}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Enablement reports which control is usable: start only while idle, stop
// only while running. Both are never true at once.
func (s *Session) Enablement() (start, stop bool) {
	st := s.State()
	return st == Idle, st == Running
}

// Current returns the configuration of the active recording.
func (s *Session) Current() (RecordingConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return RecordingConfig{}, false
	}
	return s.current.rc, true
}

// LastOutcome returns the outcome of the most recent finished recording.
func (s *Session) LastOutcome() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return Outcome{}, false
	}
	return *s.outcome, true
}

// Start opens everything a recording needs and starts the worker. On any
// failure the parts acquired so far are released in reverse order and the
// session stays idle.
func (s *Session) Start(ctx context.Context, subject string, sequence, trial int) (RecordingConfig, error) {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return RecordingConfig{}, ErrAlreadyActive
	}

	rc, err := NewRecordingConfig(s.cfg.OutputDir, subject, sequence, trial)
	if err != nil {
		s.mu.Unlock()
		return RecordingConfig{}, err
	}
	s.state = Starting
	s.mu.Unlock()
	s.notify(Starting)

	r, err := s.open(context.WithoutCancel(ctx), rc)
	if err != nil {
		s.setState(Idle)
		log.Printf("Recording %s failed to start: %v", rc.BaseName(), err)
		return RecordingConfig{}, err
	}

	s.mu.Lock()
	s.current = r
	s.last = r
	s.running.Store(true)
	s.state = Running
	s.mu.Unlock()
	s.notify(Running)

	s.cfg.Metrics.RecordActive(r.ctx, 1)
	log.Printf("Recording %s started with %d devices", rc.BaseName(), len(r.sources))

	go s.work(r)
	return rc, nil
}

// Stop clears the run flag and waits until the session is idle again.
// It does nothing unless the session is running.
func (s *Session) Stop() {
	s.mu.Lock()
	r := s.current
	if s.state != Running || r == nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.running.Store(false)
	<-r.idle
}

// Wait blocks until the latest recording is idle and its hooks have run,
// and returns its outcome.
func (s *Session) Wait() (Outcome, bool) {
	s.mu.Lock()
	r := s.last
	s.mu.Unlock()

	if r == nil {
		return Outcome{}, false
	}
	<-r.done
	return s.LastOutcome()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.notify(st)
}

func (s *Session) notify(st State) {
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(st)
	}
}

// ensureDir creates the output directory.
func ensureDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}
