package device

import (
	"fmt"
	"log"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MaxMissedReads is the number of consecutive failed reads after which a
// streaming device is reported as lost.
const MaxMissedReads = 30

// ParseAPI maps a backend name to the OpenCV capture API preference.
func ParseAPI(name string) (gocv.VideoCaptureAPI, error) {
	switch name {
	case "", "any":
		return gocv.VideoCaptureAny, nil
	case "v4l2":
		return gocv.VideoCaptureV4L2, nil
	case "dshow":
		return gocv.VideoCaptureDshow, nil
	case "msmf":
		return gocv.VideoCaptureMSMF, nil
	case "openni2":
		return gocv.VideoCaptureOpenNI2, nil
	}
	return gocv.VideoCaptureAny, fmt.Errorf("unknown capture backend %q", name)
}

// gocvDevice reads the color stream of a camera through GoCV (OpenCV).
type gocvDevice struct {
	index   int
	api     gocv.VideoCaptureAPI
	calib   Calibration
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	cfg     Config
	started time.Time
	misses  int
}

// NewGoCVOpener returns an Opener for GoCV capture devices using the given
// backend. calib supplies per-index intrinsics, as OpenCV does not report them.
func NewGoCVOpener(api gocv.VideoCaptureAPI, calib map[int]Calibration) Opener {
	return func(index int) (Device, error) {
		return &gocvDevice{
			index: index,
			api:   api,
			calib: calib[index],
		}, nil
	}
}

// Index returns the device index.
func (d *gocvDevice) Index() int {
	return d.index
}

// Start opens the capture and applies resolution and frame rate.
func (d *gocvDevice) Start(cfg Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}

	capture, err := gocv.OpenVideoCaptureWithAPI(d.index, d.api)
	if err != nil {
		return fmt.Errorf("%w: open device %d: %v", ErrDeviceUnavailable, d.index, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("%w: device %d did not open", ErrDeviceUnavailable, d.index)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))

	// Wired sync is configured on the camera itself; OpenCV only sees the
	// resulting stream.
	log.Printf("Device %d streaming %dx%d@%d (%s sync)", d.index, cfg.Width, cfg.Height, cfg.FPS, cfg.SyncRole)

	d.capture = capture
	d.cfg = cfg
	d.running = true
	d.started = time.Now()
	d.misses = 0

	return nil
}

// Capture reads a single color frame. The read itself is bounded by the
// camera's frame interval.
func (d *gocvDevice) Capture(timeout time.Duration) (*Capture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running || d.capture == nil {
		return nil, ErrNotStarted
	}

	mat := gocv.NewMat()
	if ok := d.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		d.misses++
		if d.misses >= MaxMissedReads {
			return nil, fmt.Errorf("%w: device %d missed %d reads", ErrDeviceLost, d.index, d.misses)
		}
		return nil, ErrCaptureTimeout
	}
	d.misses = 0

	return &Capture{
		DeviceIndex: d.index,
		Timestamp:   time.Since(d.started),
		Color:       &mat,
	}, nil
}

// Calibration returns the configured intrinsics, filling in the frame size.
func (d *gocvDevice) Calibration() (Calibration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c := d.calib
	if c.Width == 0 {
		c.Width = d.cfg.Width
	}
	if c.Height == 0 {
		c.Height = d.cfg.Height
	}
	return c, nil
}

// Close releases the capture.
func (d *gocvDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running || d.capture == nil {
		d.running = false
		return nil
	}

	err := d.capture.Close()
	d.capture = nil
	d.running = false

	return err
}
