// Package tracker defines the body-tracking engine capability: captures go in,
// per-body skeletons come out.
package tracker

import (
	"errors"
	"time"

	"github.com/ayusman/mocaprec/internal/device"
	"github.com/ayusman/mocaprec/internal/skeleton"
)

// ErrTrackerFault is returned when the tracking engine fails. A fault is not
// recoverable without re-creating the tracker and its device.
var ErrTrackerFault = errors.New("tracker fault")

// Tracker consumes captures and produces body tracking results asynchronously.
type Tracker interface {
	// Enqueue submits a capture for processing. The tracker does not retain c.
	Enqueue(c *device.Capture) error

	// PopResult returns the oldest finished result, waiting at most timeout.
	// A zero timeout never blocks. It returns (nil, nil) when no result is ready.
	PopResult(timeout time.Duration) (*Result, error)

	// Close releases the engine.
	Close() error
}

// Result is the output of one processed capture.
type Result struct {
	Timestamp time.Duration
	Bodies    []skeleton.Snapshot
}

// NumBodies returns the number of bodies detected.
func (r *Result) NumBodies() int {
	if r == nil {
		return 0
	}
	return len(r.Bodies)
}

// Config holds configuration options for the tracking engine.
type Config struct {
	// ProcessingMode selects the inference backend: "gpu", "cuda", "directml" or "cpu".
	ProcessingMode string

	// SensorOrientation tells the engine how the camera is mounted.
	SensorOrientation string

	// Command is the engine process to launch, program first.
	Command []string

	// QueueSize is the number of finished results kept before the oldest is dropped.
	QueueSize int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ProcessingMode:    "gpu",
		SensorOrientation: "default",
		Command:           []string{"python3", "scripts/bodytracking_service.py"},
		QueueSize:         3,
	}
}

// Factory creates a tracker bound to the calibration of device index.
type Factory func(index int, calib device.Calibration, cfg Config) (Tracker, error)
