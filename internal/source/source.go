// Package source pairs one depth device with its body tracker and turns each
// synchronized capture into at most one skeleton snapshot.
package source

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ayusman/mocaprec/internal/device"
	"github.com/ayusman/mocaprec/internal/skeleton"
	"github.com/ayusman/mocaprec/internal/tracker"
	"gocv.io/x/gocv"
)

// StepResult is what one Step produced. Snapshot and Color may be nil.
type StepResult struct {
	// Captured is false when the device delivered nothing in time.
	Captured bool

	// Snapshot is the first tracked body, if the tracker had a result ready.
	Snapshot *skeleton.Snapshot

	// Color is the color image of the capture. The caller must close it.
	Color *gocv.Mat
}

// Close releases the color frame, if any.
func (r StepResult) Close() {
	if r.Color != nil {
		r.Color.Close()
	}
}

// FrameSource owns one device and the tracker bound to it.
type FrameSource struct {
	index  int
	role   device.SyncRole
	cfg    device.Config
	dev    device.Device
	trk    tracker.Tracker
	calib  device.Calibration
	mu     sync.Mutex
	closed bool
}

// Open opens the device at index, starts it with cfg in the given sync role
// and creates a tracker for it. Anything acquired before a failure is
// released again. All failures wrap device.ErrDeviceUnavailable.
func Open(index int, role device.SyncRole, cfg device.Config, opener device.Opener, newTracker tracker.Factory, tcfg tracker.Config) (*FrameSource, error) {
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = device.DefaultCaptureTimeout
	}
	cfg.SyncRole = role
	if role != device.RoleSecondary {
		cfg.SubordinateDelay = 0
	} else if cfg.SubordinateDelay <= 0 {
		cfg.SubordinateDelay = device.DefaultSubordinateDelay
	}

	dev, err := opener(index)
	if err != nil {
		return nil, unavailable(index, "open", err)
	}

	if err := dev.Start(cfg); err != nil {
		dev.Close()
		return nil, unavailable(index, "start", err)
	}

	calib, err := dev.Calibration()
	if err != nil {
		dev.Close()
		return nil, unavailable(index, "read calibration", err)
	}

	trk, err := newTracker(index, calib, tcfg)
	if err != nil {
		dev.Close()
		return nil, unavailable(index, "create tracker", err)
	}

	log.Printf("Frame source %d opened as %s", index, role)

	return &FrameSource{
		index: index,
		role:  role,
		cfg:   cfg,
		dev:   dev,
		trk:   trk,
		calib: calib,
	}, nil
}

func unavailable(index int, op string, err error) error {
	if errors.Is(err, device.ErrDeviceUnavailable) {
		return fmt.Errorf("device %d: %s: %w", index, op, err)
	}
	return fmt.Errorf("%w: device %d: %s: %v", device.ErrDeviceUnavailable, index, op, err)
}

// Index returns the device index.
func (s *FrameSource) Index() int { return s.index }

// Role returns the sync role the device was started with.
func (s *FrameSource) Role() device.SyncRole { return s.role }

// Calibration returns the intrinsics read when the source was opened.
func (s *FrameSource) Calibration() device.Calibration { return s.calib }

// Step captures once, feeds the tracker and polls it without blocking.
//
// A capture timeout or a result without bodies yields an empty StepResult and
// no error. Tracker faults and device loss are returned as errors; the
// session treats them as fatal.
func (s *FrameSource) Step() (StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return StepResult{}, fmt.Errorf("device %d: %w", s.index, device.ErrNotStarted)
	}

	capture, err := s.dev.Capture(s.cfg.CaptureTimeout)
	if err != nil {
		if errors.Is(err, device.ErrCaptureTimeout) {
			return StepResult{}, nil
		}
		return StepResult{}, fmt.Errorf("device %d: capture: %w", s.index, err)
	}
	defer capture.Close()

	if err := s.trk.Enqueue(capture); err != nil {
		return StepResult{}, fmt.Errorf("device %d: enqueue: %w", s.index, asFault(err))
	}

	res := StepResult{Captured: true}
	res.Color, capture.Color = capture.Color, nil

	result, err := s.trk.PopResult(0)
	if err != nil {
		res.Close()
		return StepResult{}, fmt.Errorf("device %d: pop result: %w", s.index, asFault(err))
	}
	if result.NumBodies() == 0 {
		return res, nil
	}

	// Only the first body is recorded.
	snap := result.Bodies[0]
	snap.DeviceIndex = s.index
	snap.Timestamp = result.Timestamp
	if snap.Timestamp == 0 {
		snap.Timestamp = capture.Timestamp
	}
	res.Snapshot = &snap

	return res, nil
}

func asFault(err error) error {
	if errors.Is(err, tracker.ErrTrackerFault) {
		return err
	}
	return fmt.Errorf("%w: %v", tracker.ErrTrackerFault, err)
}

// Close releases the tracker, then the device. It is safe to call more than once.
func (s *FrameSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.trk.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close tracker %d: %w", s.index, err))
	}
	if err := s.dev.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close device %d: %w", s.index, err))
	}

	log.Printf("Frame source %d closed", s.index)
	return errors.Join(errs...)
}
