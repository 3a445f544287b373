package sim

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/ayusman/mocaprec/internal/device"
	"gocv.io/x/gocv"
)

// Frame size of simulated color images.
const (
	Width  = 640
	Height = 360
)

// Device produces blank color frames at the configured frame rate.
type Device struct {
	index   int
	mu      sync.Mutex
	running bool
	fps     int
	started time.Time
	frame   int
}

// NewOpener returns an Opener that hands out simulated devices for any index.
func NewOpener() device.Opener {
	return func(index int) (device.Device, error) {
		return &Device{index: index}, nil
	}
}

func (d *Device) Index() int { return d.index }

func (d *Device) Start(cfg device.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.fps = cfg.FPS
	if d.fps <= 0 {
		d.fps = device.DefaultFPS
	}
	d.started = time.Now()
	d.frame = 0
	d.running = true
	return nil
}

// Capture waits for the next frame slot. If it lies further away than
// timeout the call returns device.ErrCaptureTimeout.
func (d *Device) Capture(timeout time.Duration) (*device.Capture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil, device.ErrNotStarted
	}

	period := time.Second / time.Duration(d.fps)
	due := d.started.Add(time.Duration(d.frame+1) * period)
	if wait := time.Until(due); wait > 0 {
		if wait > timeout {
			time.Sleep(timeout)
			return nil, device.ErrCaptureTimeout
		}
		time.Sleep(wait)
	}
	d.frame++

	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 30, 30, 0), Height, Width, gocv.MatTypeCV8UC3)
	gocv.PutText(&mat, fmt.Sprintf("sim %d  #%d", d.index, d.frame), image.Pt(12, 28),
		gocv.FontHersheySimplex, 0.7, color.RGBA{R: 220, G: 220, B: 220, A: 255}, 1)

	return &device.Capture{
		DeviceIndex: d.index,
		Timestamp:   time.Duration(d.frame) * period,
		Color:       &mat,
	}, nil
}

// Calibration returns pinhole intrinsics matching the simulated frame.
func (d *Device) Calibration() (device.Calibration, error) {
	return device.Calibration{
		Width:  Width,
		Height: Height,
		Fx:     500,
		Fy:     500,
		Cx:     Width / 2,
		Cy:     Height / 2,
	}, nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
	return nil
}
