// Package device defines the depth-camera capability consumed by the recorder
// and provides a GoCV-backed implementation plus a scripted mock.
package device

import (
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// Default device settings.
const (
	DefaultFPS            = 30
	DefaultWidth          = 1920
	DefaultHeight         = 1080
	DefaultCaptureTimeout = 200 * time.Millisecond

	// DefaultSubordinateDelay is the exposure offset applied to a secondary
	// device so its depth laser does not interfere with the primary.
	DefaultSubordinateDelay = 160 * time.Microsecond
)

var (
	// ErrDeviceUnavailable is returned when a device cannot be opened or configured.
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrCaptureTimeout is returned when no synchronized capture arrived in time.
	// It is transient: the caller skips the tick.
	ErrCaptureTimeout = errors.New("capture timeout")

	// ErrDeviceLost is returned when a streaming device stops responding.
	ErrDeviceLost = errors.New("device lost")

	// ErrNotStarted is returned when capturing from a device that is not streaming.
	ErrNotStarted = errors.New("device is not streaming")
)

// SyncRole is the wired synchronization role of a device.
type SyncRole int

const (
	// RoleStandalone runs on its own clock.
	RoleStandalone SyncRole = iota
	// RolePrimary drives the sync signal.
	RolePrimary
	// RoleSecondary locks its exposure to the primary's sync signal.
	RoleSecondary
)

// String returns the configuration name of the role.
func (r SyncRole) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleSecondary:
		return "secondary"
	default:
		return "standalone"
	}
}

// ParseSyncRole parses a role name as written in configuration files.
func ParseSyncRole(s string) (SyncRole, error) {
	switch s {
	case "", "standalone":
		return RoleStandalone, nil
	case "primary", "master":
		return RolePrimary, nil
	case "secondary", "subordinate":
		return RoleSecondary, nil
	}
	return RoleStandalone, fmt.Errorf("unknown sync role %q", s)
}

// Config holds the streaming configuration applied when a device starts.
type Config struct {
	Width  int
	Height int
	FPS    int

	// DepthMode names the depth sensor mode, e.g. "nfov_unbinned".
	DepthMode string

	// SyncRole and SubordinateDelay set up the hardware sync relationship.
	SyncRole         SyncRole
	SubordinateDelay time.Duration

	// SynchronizedImagesOnly drops captures that lack either color or depth.
	SynchronizedImagesOnly bool

	// CaptureTimeout bounds a single Capture call.
	CaptureTimeout time.Duration
}

// DefaultConfig returns a Config for 1080p color at 30 FPS.
func DefaultConfig() Config {
	return Config{
		Width:                  DefaultWidth,
		Height:                 DefaultHeight,
		FPS:                    DefaultFPS,
		DepthMode:              "nfov_unbinned",
		SynchronizedImagesOnly: true,
		CaptureTimeout:         DefaultCaptureTimeout,
	}
}

// Calibration carries the color camera intrinsics reported by a device.
// A zero Fx means the intrinsics are unknown.
type Calibration struct {
	Width  int
	Height int
	Fx     float64
	Fy     float64
	Cx     float64
	Cy     float64
}

// Known reports whether the intrinsics are populated.
func (c Calibration) Known() bool {
	return c.Fx > 0 && c.Fy > 0
}

// Capture is one time-aligned set of images from a device.
// Color and Depth may be nil when the device does not deliver that stream.
type Capture struct {
	DeviceIndex int
	Timestamp   time.Duration
	Color       *gocv.Mat
	Depth       *gocv.Mat
}

// Close releases the images held by the capture.
func (c *Capture) Close() {
	if c == nil {
		return
	}
	if c.Color != nil {
		c.Color.Close()
		c.Color = nil
	}
	if c.Depth != nil {
		c.Depth.Close()
		c.Depth = nil
	}
}

// Device is one physical depth camera.
type Device interface {
	// Index returns the device index the device was opened with.
	Index() int

	// Start configures the device and starts streaming.
	Start(cfg Config) error

	// Capture returns the next synchronized capture, waiting at most timeout.
	// It returns ErrCaptureTimeout when nothing arrived in time and
	// ErrDeviceLost when the device stopped responding.
	Capture(timeout time.Duration) (*Capture, error)

	// Calibration returns the intrinsics of the color camera.
	Calibration() (Calibration, error)

	// Close stops streaming and releases the device.
	Close() error
}

// Opener opens the device at index.
type Opener func(index int) (Device, error)
