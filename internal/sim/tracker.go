package sim

import (
	"math"
	"sync"
	"time"

	"github.com/ayusman/mocaprec/internal/device"
	"github.com/ayusman/mocaprec/internal/skeleton"
	"github.com/ayusman/mocaprec/internal/tracker"
)

// Tracker reports the simulated performer for every enqueued capture.
// Each device sees the performer from a different angle.
type Tracker struct {
	yaw    float64
	mu     sync.Mutex
	queue  []*tracker.Result
	limit  int
	closed bool
}

// NewTracker is a tracker.Factory for simulated devices.
func NewTracker(index int, calib device.Calibration, cfg tracker.Config) (tracker.Tracker, error) {
	limit := cfg.QueueSize
	if limit <= 0 {
		limit = 1
	}
	return &Tracker{
		yaw:   float64(index) * math.Pi / 4,
		limit: limit,
	}, nil
}

func (t *Tracker) Enqueue(c *device.Capture) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return tracker.ErrTrackerFault
	}

	snap := Pose(c.Timestamp.Seconds(), t.yaw)
	snap.Timestamp = c.Timestamp

	t.queue = append(t.queue, &tracker.Result{
		Timestamp: c.Timestamp,
		Bodies:    []skeleton.Snapshot{*snap},
	})
	if len(t.queue) > t.limit {
		t.queue = t.queue[1:]
	}
	return nil
}

func (t *Tracker) PopResult(timeout time.Duration) (*tracker.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.queue) == 0 {
		return nil, nil
	}
	r := t.queue[0]
	t.queue = t.queue[1:]
	return r, nil
}

func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.queue = nil
	return nil
}
