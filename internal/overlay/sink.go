// Package overlay displays color frames with the tracked skeleton drawn on top.
package overlay

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/ayusman/mocaprec/internal/device"
	"github.com/ayusman/mocaprec/internal/skeleton"
	"gocv.io/x/gocv"
)

// JointRadius is the radius of the dot drawn for each joint, in pixels.
const JointRadius = 5

var (
	jointColor = color.RGBA{R: 255, A: 255}
	boneColor  = color.RGBA{G: 255, A: 255}
)

// Sink receives one color frame per device and tick.
type Sink interface {
	// Show displays frame for device. s is nil when no body was tracked.
	// The sink must not retain frame.
	Show(device int, frame *gocv.Mat, s *skeleton.Snapshot) error

	// Poll services the display once per tick.
	Poll()

	// Close releases the sink.
	Close() error
}

// Factory creates a sink for a recording. calibs holds the intrinsics of
// every open device by index.
type Factory func(calibs map[int]device.Calibration) (Sink, error)

// Nop is a Sink that discards everything.
type Nop struct{}

func (Nop) Show(int, *gocv.Mat, *skeleton.Snapshot) error { return nil }
func (Nop) Poll()                                         {}
func (Nop) Close() error                                  { return nil }

type multi []Sink

// Multi returns a Sink that forwards to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m multi) Show(device int, frame *gocv.Mat, s *skeleton.Snapshot) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Show(device, frame, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Poll() {
	for _, sink := range m {
		sink.Poll()
	}
}

func (m multi) Close() error {
	var errs []error
	for i := len(m) - 1; i >= 0; i-- {
		if err := m[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Project maps a joint position onto the color image. With known intrinsics
// the pinhole model is used; otherwise x and y are taken as pixel
// coordinates directly.
func Project(calib device.Calibration, p skeleton.Vec3) image.Point {
	if calib.Known() && p.Z > 0 {
		z := float64(p.Z)
		return image.Pt(
			int(math.Round(calib.Fx*float64(p.X)/z+calib.Cx)),
			int(math.Round(calib.Fy*float64(p.Y)/z+calib.Cy)),
		)
	}
	return image.Pt(int(p.X), int(p.Y))
}

// Draw renders the bones and joints of s onto img.
func Draw(img *gocv.Mat, calib device.Calibration, s *skeleton.Snapshot) {
	if s == nil {
		return
	}

	var pts [skeleton.JointCount]image.Point
	for i, j := range s.Joints {
		pts[i] = Project(calib, j.Position)
	}

	for _, b := range skeleton.Bones {
		gocv.Line(img, pts[b.From], pts[b.To], boneColor, 2)
	}
	for _, p := range pts {
		gocv.Circle(img, p, JointRadius, jointColor, -1)
	}
}
