package tracker

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/ayusman/mocaprec/internal/device"
	"github.com/ayusman/mocaprec/internal/skeleton"
	"gocv.io/x/gocv"
)

// shutdownGrace is how long Close waits for the engine process to exit on its own.
const shutdownGrace = 2 * time.Second

// SidecarTracker runs the body tracking engine as a child process.
//
// Protocol, all integers big-endian:
//
//	hello:  one JSON line (calibration and engine settings)
//	frame:  int64 timestamp in microseconds,
//	        uint32 length + JPEG color image,
//	        uint32 length + raw 16-bit depth image
//	result: one JSON line per processed frame
//
// Frames are handed to a writer goroutine through a one-slot queue. When the
// engine falls behind the oldest pending frame is dropped, so Enqueue never
// waits on the pipe.
type SidecarTracker struct {
	index      int
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	frames     chan []byte
	results    chan *Result
	done       chan struct{}
	quit       chan struct{}
	writerDone chan struct{}
	mu         sync.Mutex
	err        error
	closed     bool
}

// NewSidecar is a Factory that launches cfg.Command for device index.
func NewSidecar(index int, calib device.Calibration, cfg Config) (Tracker, error) {
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("%w: no engine command configured", ErrTrackerFault)
	}
	queue := cfg.QueueSize
	if queue <= 0 {
		queue = 1
	}

	cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	// Capture stderr for debugging
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start engine: %v", ErrTrackerFault, err)
	}

	t := &SidecarTracker{
		index:      index,
		cmd:        cmd,
		stdin:      stdin,
		frames:     make(chan []byte, 1),
		results:    make(chan *Result, queue),
		done:       make(chan struct{}),
		quit:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}

	// The writer only sees frames after NewSidecar returns, so the hello
	// line below is always first on the pipe.
	go t.writeLoop()

	if err := t.hello(calib, cfg); err != nil {
		t.Close()
		return nil, err
	}

	go t.readLoop(bufio.NewReader(stdout))

	log.Printf("Body tracker for device %d started (%s)", index, cfg.ProcessingMode)
	return t, nil
}

type helloMessage struct {
	Device            int     `json:"device"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	Fx                float64 `json:"fx"`
	Fy                float64 `json:"fy"`
	Cx                float64 `json:"cx"`
	Cy                float64 `json:"cy"`
	ProcessingMode    string  `json:"processing_mode"`
	SensorOrientation string  `json:"sensor_orientation"`
}

func (t *SidecarTracker) hello(calib device.Calibration, cfg Config) error {
	msg, err := json.Marshal(helloMessage{
		Device:            t.index,
		Width:             calib.Width,
		Height:            calib.Height,
		Fx:                calib.Fx,
		Fy:                calib.Fy,
		Cx:                calib.Cx,
		Cy:                calib.Cy,
		ProcessingMode:    cfg.ProcessingMode,
		SensorOrientation: cfg.SensorOrientation,
	})
	if err != nil {
		return fmt.Errorf("encode hello: %w", err)
	}
	if _, err := t.stdin.Write(append(msg, '\n')); err != nil {
		return fmt.Errorf("%w: write hello: %v", ErrTrackerFault, err)
	}
	return nil
}

// Enqueue encodes the capture and queues it for the engine.
func (t *SidecarTracker) Enqueue(c *device.Capture) error {
	if err := t.fault(); err != nil {
		return err
	}
	if t.isClosed() {
		return fmt.Errorf("%w: device %d: tracker closed", ErrTrackerFault, t.index)
	}

	var color []byte
	if c.Color != nil && !c.Color.Empty() {
		buf, err := gocv.IMEncode(gocv.JPEGFileExt, *c.Color)
		if err != nil {
			return fmt.Errorf("encode color: %w", err)
		}
		defer buf.Close()
		color = buf.GetBytes()
	}

	var depth []byte
	if c.Depth != nil && !c.Depth.Empty() {
		depth = c.Depth.ToBytes()
	}

	var frame bytes.Buffer
	frame.Grow(16 + len(color) + len(depth))
	binary.Write(&frame, binary.BigEndian, c.Timestamp.Microseconds())
	writeBlock(&frame, color)
	writeBlock(&frame, depth)

	t.pushFrame(frame.Bytes())
	return nil
}

// pushFrame queues f, dropping the pending frame when the slot is taken.
func (t *SidecarTracker) pushFrame(f []byte) {
	for {
		select {
		case t.frames <- f:
			return
		default:
		}
		select {
		case <-t.frames:
		default:
		}
	}
}

// writeLoop copies queued frames to the engine until Close or a write error.
func (t *SidecarTracker) writeLoop() {
	defer close(t.writerDone)

	for {
		select {
		case <-t.quit:
			return
		case f := <-t.frames:
			if _, err := t.stdin.Write(f); err != nil {
				t.setFault(fmt.Errorf("write frame: %w", err))
				return
			}
		}
	}
}

func writeBlock(w io.Writer, data []byte) error {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))
	if _, err := w.Write(length); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	_, err := w.Write(data)
	return err
}

// PopResult returns the oldest queued result.
func (t *SidecarTracker) PopResult(timeout time.Duration) (*Result, error) {
	select {
	case r := <-t.results:
		return r, nil
	default:
	}

	if timeout <= 0 {
		return nil, t.fault()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-t.results:
		return r, nil
	case <-t.done:
		return nil, t.fault()
	case <-timer.C:
		return nil, nil
	}
}

// Close shuts down the engine process.
func (t *SidecarTracker) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	// Closing stdin also releases a writer blocked on a full pipe.
	close(t.quit)
	t.stdin.Close()
	<-t.writerDone

	waitErr := make(chan error, 1)
	go func() { waitErr <- t.cmd.Wait() }()

	select {
	case err := <-waitErr:
		return err
	case <-time.After(shutdownGrace):
		t.cmd.Process.Kill()
		return <-waitErr
	}
}

func (t *SidecarTracker) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *SidecarTracker) fault() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *SidecarTracker) setFault(err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err == nil {
		t.err = fmt.Errorf("%w: device %d: %v", ErrTrackerFault, t.index, err)
	}
	return t.err
}

// readLoop decodes result lines until the engine exits.
func (t *SidecarTracker) readLoop(r *bufio.Reader) {
	defer close(t.done)

	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			t.setFault(fmt.Errorf("read result: %w", err))
			return
		}

		var msg jsonResult
		if err := json.Unmarshal(line, &msg); err != nil {
			t.setFault(fmt.Errorf("parse result: %w", err))
			return
		}
		if msg.Error != "" {
			t.setFault(fmt.Errorf("engine: %s", msg.Error))
			return
		}

		t.push(msg.toResult())
	}
}

// push queues r, dropping the oldest result when the queue is full.
func (t *SidecarTracker) push(r *Result) {
	for {
		select {
		case t.results <- r:
			return
		default:
		}
		select {
		case <-t.results:
		default:
		}
	}
}

// jsonResult represents the JSON structure from the engine process.
type jsonResult struct {
	TimestampUsec int64      `json:"timestamp_usec"`
	Bodies        []jsonBody `json:"bodies"`
	Error         string     `json:"error,omitempty"`
}

type jsonBody struct {
	ID     uint32      `json:"id"`
	Joints []jsonJoint `json:"joints"`
}

type jsonJoint struct {
	Position    [3]float32 `json:"position"`
	Orientation [4]float32 `json:"orientation"` // w, x, y, z
}

func (m jsonResult) toResult() *Result {
	r := &Result{
		Timestamp: time.Duration(m.TimestampUsec) * time.Microsecond,
		Bodies:    make([]skeleton.Snapshot, 0, len(m.Bodies)),
	}

	for _, b := range m.Bodies {
		s := skeleton.NewSnapshot(b.ID)
		for i := 0; i < skeleton.JointCount && i < len(b.Joints); i++ {
			j := b.Joints[i]
			s.Set(skeleton.JointID(i),
				skeleton.Vec3{X: j.Position[0], Y: j.Position[1], Z: j.Position[2]},
				skeleton.Quaternion{W: j.Orientation[0], X: j.Orientation[1], Y: j.Orientation[2], Z: j.Orientation[3]},
			)
		}
		s.Timestamp = r.Timestamp
		r.Bodies = append(r.Bodies, *s)
	}

	return r
}
