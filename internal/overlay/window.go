package overlay

import (
	"fmt"
	"sort"

	"github.com/ayusman/mocaprec/internal/device"
	"github.com/ayusman/mocaprec/internal/skeleton"
	"gocv.io/x/gocv"
)

// WindowSink shows each device in its own desktop window.
type WindowSink struct {
	calibs  map[int]device.Calibration
	windows map[int]*gocv.Window
	order   []int
}

// NewWindowSink creates one window per device in calibs.
func NewWindowSink(calibs map[int]device.Calibration) *WindowSink {
	w := &WindowSink{
		calibs:  calibs,
		windows: make(map[int]*gocv.Window),
	}
	for idx := range calibs {
		w.order = append(w.order, idx)
	}
	sort.Ints(w.order)

	for _, idx := range w.order {
		w.windows[idx] = gocv.NewWindow(fmt.Sprintf("Device %d", idx))
	}
	return w
}

// Show draws s onto a copy of frame and displays it.
func (w *WindowSink) Show(dev int, frame *gocv.Mat, s *skeleton.Snapshot) error {
	win, ok := w.windows[dev]
	if !ok || frame == nil || frame.Empty() {
		return nil
	}

	img := frame.Clone()
	defer img.Close()

	Draw(&img, w.calibs[dev], s)
	win.IMShow(img)
	return nil
}

// Poll lets the window system process events.
func (w *WindowSink) Poll() {
	if len(w.order) == 0 {
		return
	}
	w.windows[w.order[0]].WaitKey(1)
}

// Close destroys every window.
func (w *WindowSink) Close() error {
	for i := len(w.order) - 1; i >= 0; i-- {
		w.windows[w.order[i]].Close()
	}
	w.windows = map[int]*gocv.Window{}
	w.order = nil
	return nil
}
