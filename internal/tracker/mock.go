package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/mocaprec/internal/device"
	"github.com/ayusman/mocaprec/internal/skeleton"
)

// MockStep scripts the outcome of one Enqueue call.
type MockStep struct {
	// Bodies is the result produced for the capture. An empty slice still
	// produces a result, with zero bodies.
	Bodies []skeleton.Snapshot

	// NoResult makes the capture produce nothing, as when the engine is still busy.
	NoResult bool

	// Err is returned by the PopResult that follows.
	Err error
}

// MockTracker is a test implementation of the Tracker interface.
// It allows tests to control the tracking results per enqueued capture.
type MockTracker struct {
	steps    []MockStep
	pos      int
	queue    []*Result
	err      error
	mu       sync.Mutex
	enqueued int
	closed   bool
	onClose  func()
}

// NewMockTracker creates a MockTracker that plays back steps, one per Enqueue.
// Captures past the end of the script produce no result.
func NewMockTracker(steps ...MockStep) *MockTracker {
	return &MockTracker{steps: steps}
}

// OnClose registers fn to run when the tracker is closed.
func (m *MockTracker) OnClose(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClose = fn
}

func (m *MockTracker) Enqueue(c *device.Capture) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enqueued++
	if m.pos >= len(m.steps) {
		return nil
	}

	step := m.steps[m.pos]
	m.pos++

	if step.Err != nil {
		m.err = step.Err
		return nil
	}
	if step.NoResult {
		return nil
	}

	var ts time.Duration
	if c != nil {
		ts = c.Timestamp
	}
	m.queue = append(m.queue, &Result{Timestamp: ts, Bodies: step.Bodies})
	return nil
}

func (m *MockTracker) PopResult(timeout time.Duration) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	if len(m.queue) == 0 {
		return nil, nil
	}
	r := m.queue[0]
	m.queue = m.queue[1:]
	return r, nil
}

func (m *MockTracker) Close() error {
	m.mu.Lock()
	m.closed = true
	fn := m.onClose
	m.mu.Unlock()

	if fn != nil {
		fn()
	}
	return nil
}

// Enqueued returns how many captures were submitted.
func (m *MockTracker) Enqueued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enqueued
}

// IsClosed reports whether Close was called.
func (m *MockTracker) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockFactory hands out scripted trackers by device index.
type MockFactory struct {
	trackers map[int]*MockTracker
	mu       sync.Mutex
	creates  int
	err      error
}

// NewMockFactory creates a MockFactory. trackers is keyed by device index.
func NewMockFactory(trackers map[int]*MockTracker) *MockFactory {
	return &MockFactory{trackers: trackers}
}

// SetError makes every Create call fail with err.
func (f *MockFactory) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Create implements Factory.
func (f *MockFactory) Create(index int, calib device.Calibration, cfg Config) (Tracker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.trackers[index]
	if !ok {
		return nil, fmt.Errorf("%w: no tracker for device %d", ErrTrackerFault, index)
	}
	f.creates++
	return t, nil
}

// Creates returns how many trackers were handed out.
func (f *MockFactory) Creates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates
}

// StandingSnapshot returns a snapshot for body with joints laid out in a
// fixed standing pose and identity orientations. Position values encode the
// joint index so rows are easy to tell apart.
func StandingSnapshot(body uint32) skeleton.Snapshot {
	s := skeleton.NewSnapshot(body)
	for i := 0; i < skeleton.JointCount; i++ {
		s.Set(skeleton.JointID(i),
			skeleton.Vec3{X: float32(i) * 10, Y: -float32(i) * 20, Z: 2000 + float32(body)},
			skeleton.Identity,
		)
	}
	return *s
}
