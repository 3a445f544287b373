// Package video writes the primary device's color stream to a video file.
package video

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"gocv.io/x/gocv"
)

// DefaultCodec is the FourCC used for .mp4 output.
const DefaultCodec = "mp4v"

// ErrVideoWrite is returned when the video file cannot be opened or written.
var ErrVideoWrite = errors.New("video write failed")

// Writer consumes color frames in capture order.
type Writer interface {
	// Write appends frame. The writer does not retain it.
	Write(frame *gocv.Mat) error

	// Close finalizes the file.
	Close() error
}

// Factory creates a Writer for path at the given frame rate.
type Factory func(path string, fps float64) (Writer, error)

// FileWriter encodes frames with OpenCV. The file is created on the first
// frame, whose size fixes the size of the video.
type FileWriter struct {
	path   string
	codec  string
	fps    float64
	mu     sync.Mutex
	vw     *gocv.VideoWriter
	width  int
	height int
	frames int
}

// NewFileWriter returns a FileWriter for path. An empty codec selects DefaultCodec.
func NewFileWriter(path, codec string, fps float64) *FileWriter {
	if codec == "" {
		codec = DefaultCodec
	}
	return &FileWriter{path: path, codec: codec, fps: fps}
}

// NewFactory returns a Factory producing FileWriters with codec.
func NewFactory(codec string) Factory {
	return func(path string, fps float64) (Writer, error) {
		return NewFileWriter(path, codec, fps), nil
	}
}

func (w *FileWriter) Write(frame *gocv.Mat) error {
	if frame == nil || frame.Empty() {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.vw == nil {
		vw, err := gocv.VideoWriterFile(w.path, w.codec, w.fps, frame.Cols(), frame.Rows(), true)
		if err != nil {
			return fmt.Errorf("%w: open %s: %v", ErrVideoWrite, w.path, err)
		}
		if !vw.IsOpened() {
			vw.Close()
			return fmt.Errorf("%w: open %s: codec %s unavailable", ErrVideoWrite, w.path, w.codec)
		}
		w.vw = vw
		w.width, w.height = frame.Cols(), frame.Rows()
		log.Printf("Video writer opened: %s (%dx%d @ %.0f FPS)", w.path, w.width, w.height, w.fps)
	}

	if frame.Cols() != w.width || frame.Rows() != w.height {
		return fmt.Errorf("%w: frame size %dx%d differs from %dx%d", ErrVideoWrite, frame.Cols(), frame.Rows(), w.width, w.height)
	}

	if err := w.vw.Write(*frame); err != nil {
		return fmt.Errorf("%w: %v", ErrVideoWrite, err)
	}
	w.frames++
	return nil
}

// Frames returns the number of frames written.
func (w *FileWriter) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.vw == nil {
		return nil
	}
	err := w.vw.Close()
	w.vw = nil
	if err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrVideoWrite, w.path, err)
	}
	return nil
}

// Discard is a Writer that drops every frame.
type Discard struct{}

func (Discard) Write(*gocv.Mat) error { return nil }
func (Discard) Close() error          { return nil }
