package overlay

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/ayusman/mocaprec/internal/device"
	"github.com/ayusman/mocaprec/internal/skeleton"
	"gocv.io/x/gocv"
)

// subscriberBuffer is the number of messages a slow subscriber may lag
// behind before messages to it are dropped.
const subscriberBuffer = 16

// JointMessage is one joint as published to subscribers.
type JointMessage struct {
	Joint       skeleton.JointID     `json:"joint"`
	Name        string               `json:"name"`
	Position    skeleton.Vec3        `json:"position"`
	Orientation skeleton.Quaternion  `json:"orientation"`
	Euler       skeleton.EulerAngles `json:"euler"`
}

// SkeletonMessage is the JSON document published for every tracked frame.
type SkeletonMessage struct {
	Device      int            `json:"device"`
	BodyID      uint32         `json:"body_id"`
	TimestampMS int64          `json:"timestamp_ms"`
	Joints      []JointMessage `json:"joints"`
}

// NewSkeletonMessage converts s for publishing.
func NewSkeletonMessage(s *skeleton.Snapshot) SkeletonMessage {
	msg := SkeletonMessage{
		Device:      s.DeviceIndex,
		BodyID:      s.BodyID,
		TimestampMS: s.Timestamp.Milliseconds(),
		Joints:      make([]JointMessage, 0, skeleton.JointCount),
	}
	for _, j := range s.Joints {
		msg.Joints = append(msg.Joints, JointMessage{
			Joint:       j.Joint,
			Name:        j.Joint.String(),
			Position:    j.Position,
			Orientation: j.Orientation,
			Euler:       j.Euler(),
		})
	}
	return msg
}

// Hub fans tracked skeletons out to subscribers and keeps the most recent
// annotated JPEG per device for previews. It outlives individual recordings.
type Hub struct {
	previewEvery int

	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}
	previews    map[int][]byte
	updated     map[int]time.Time
	frames      map[int]int
}

// NewHub creates a Hub that encodes a preview every previewEvery frames per
// device. A value of zero or less disables previews.
func NewHub(previewEvery int) *Hub {
	return &Hub{
		previewEvery: previewEvery,
		subscribers:  make(map[chan []byte]struct{}),
		previews:     make(map[int][]byte),
		updated:      make(map[int]time.Time),
		frames:       make(map[int]int),
	}
}

// Subscribe returns a channel of JSON skeleton messages. The returned
// function unsubscribes and closes the channel.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Publish sends s to every subscriber without blocking.
func (h *Hub) Publish(s *skeleton.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.subscribers) == 0 {
		return
	}

	msg, err := json.Marshal(NewSkeletonMessage(s))
	if err != nil {
		log.Printf("encode skeleton message: %v", err)
		return
	}

	for ch := range h.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Preview returns the latest JPEG for device and when it was taken.
func (h *Hub) Preview(device int) ([]byte, time.Time) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.previews[device], h.updated[device]
}

func (h *Hub) storePreview(device int, calib device.Calibration, frame *gocv.Mat, s *skeleton.Snapshot) error {
	h.mu.Lock()
	n := h.frames[device]
	h.frames[device] = n + 1
	h.mu.Unlock()

	if h.previewEvery <= 0 || n%h.previewEvery != 0 || frame == nil || frame.Empty() {
		return nil
	}

	img := frame.Clone()
	defer img.Close()
	Draw(&img, calib, s)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return err
	}
	defer buf.Close()

	jpeg := append([]byte(nil), buf.GetBytes()...)

	h.mu.Lock()
	h.previews[device] = jpeg
	h.updated[device] = time.Now()
	h.mu.Unlock()
	return nil
}

// Attach returns a Sink feeding the hub for one recording. Closing the sink
// leaves the hub running.
func (h *Hub) Attach(calibs map[int]device.Calibration) Sink {
	return &hubSink{hub: h, calibs: calibs}
}

type hubSink struct {
	hub    *Hub
	calibs map[int]device.Calibration
}

func (s *hubSink) Show(dev int, frame *gocv.Mat, snap *skeleton.Snapshot) error {
	if snap != nil {
		s.hub.Publish(snap)
	}
	return s.hub.storePreview(dev, s.calibs[dev], frame, snap)
}

func (s *hubSink) Poll() {}

func (s *hubSink) Close() error { return nil }
