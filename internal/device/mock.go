package device

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MockDevice plays back a scripted sequence of capture outcomes for testing.
// A nil entry yields a capture; any other entry is returned as the error.
// Once the script is consumed every Capture returns ErrCaptureTimeout.
type MockDevice struct {
	index     int
	script    []error
	pos       int
	calib     Calibration
	colorRows int
	colorCols int
	startErr  error
	onClose   func()
	exhausted chan struct{}
	mu        sync.Mutex
	running   bool
	cfg       Config
	closes    int
}

// NewMockDevice creates a MockDevice for index with the given script.
func NewMockDevice(index int, script []error) *MockDevice {
	return &MockDevice{
		index:     index,
		script:    script,
		exhausted: make(chan struct{}),
	}
}

// SetColor makes every capture carry a black BGR frame of the given size.
func (d *MockDevice) SetColor(rows, cols int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.colorRows, d.colorCols = rows, cols
}

// SetCalibration sets the intrinsics returned by Calibration.
func (d *MockDevice) SetCalibration(c Calibration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calib = c
}

// SetStartError makes Start fail with err.
func (d *MockDevice) SetStartError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.startErr = err
}

// OnClose registers fn to run when the device is closed.
func (d *MockDevice) OnClose(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onClose = fn
}

// Exhausted is closed once every scripted capture has been consumed.
func (d *MockDevice) Exhausted() <-chan struct{} {
	return d.exhausted
}

func (d *MockDevice) Index() int { return d.index }

func (d *MockDevice) Start(cfg Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return d.startErr
	}
	d.cfg = cfg
	d.running = true
	return nil
}

func (d *MockDevice) Capture(timeout time.Duration) (*Capture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil, ErrNotStarted
	}

	if d.pos >= len(d.script) {
		return nil, ErrCaptureTimeout
	}

	err := d.script[d.pos]
	d.pos++
	if d.pos == len(d.script) {
		close(d.exhausted)
	}
	if err != nil {
		return nil, err
	}

	c := &Capture{
		DeviceIndex: d.index,
		Timestamp:   time.Duration(d.pos) * time.Second / DefaultFPS,
	}
	if d.colorRows > 0 && d.colorCols > 0 {
		mat := gocv.NewMatWithSize(d.colorRows, d.colorCols, gocv.MatTypeCV8UC3)
		c.Color = &mat
	}
	return c, nil
}

func (d *MockDevice) Calibration() (Calibration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calib, nil
}

func (d *MockDevice) Close() error {
	d.mu.Lock()
	d.running = false
	d.closes++
	fn := d.onClose
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

// Config returns the configuration passed to Start.
func (d *MockDevice) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// IsRunning reports whether the device has been started and not closed.
func (d *MockDevice) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Closes returns how many times Close was called.
func (d *MockDevice) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// Captures returns how many scripted captures have been consumed.
func (d *MockDevice) Captures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pos
}

// MockOpener hands out the given mock devices by index and counts opens.
type MockOpener struct {
	devices map[int]*MockDevice
	mu      sync.Mutex
	opens   int
}

// NewMockOpener creates a MockOpener serving devs.
func NewMockOpener(devs ...*MockDevice) *MockOpener {
	m := &MockOpener{devices: make(map[int]*MockDevice)}
	for _, d := range devs {
		m.devices[d.index] = d
	}
	return m
}

// Open implements Opener.
func (m *MockOpener) Open(index int) (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[index]
	if !ok {
		return nil, fmt.Errorf("%w: no device at index %d", ErrDeviceUnavailable, index)
	}
	m.opens++
	return d, nil
}

// Opens returns how many devices have been opened.
func (m *MockOpener) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}
