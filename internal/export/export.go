// Package export writes skeleton snapshots to the Euler and quaternion CSV files.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/ayusman/mocaprec/internal/skeleton"
)

// ErrFileWrite is returned when an output file cannot be written.
var ErrFileWrite = errors.New("file write failed")

// Column headers of the two output formats.
var (
	EulerHeader      = []string{"BodyID", "JointIndex", "PosX", "PosY", "PosZ", "Roll", "Pitch", "Yaw"}
	QuaternionHeader = []string{"BodyID", "JointIndex", "PosX", "PosY", "PosZ", "OriW", "OriX", "OriY", "OriZ"}
)

// stream is one append-only CSV file. size is the length of the file up to
// the last complete write.
type stream struct {
	path string
	f    file
	size int64
	rows int64
}

// file is the part of *os.File a stream writes through.
type file interface {
	io.Writer
	Truncate(size int64) error
	Sync() error
	Close() error
}

func openStream(path string, header []string) (*stream, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrFileWrite, path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", ErrFileWrite, path, err)
	}

	s := &stream{path: path, f: f, size: info.Size()}

	// Appending to an existing recording keeps its header.
	if s.size == 0 {
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		w.Write(header)
		w.Flush()
		if err := s.append(buf.Bytes(), 0); err != nil {
			f.Close()
			return nil, err
		}
	}

	return s, nil
}

// append writes p in one call. A short or failed write is rolled back so the
// file never ends in a partial row.
func (s *stream) append(p []byte, rows int) error {
	n, err := s.f.Write(p)
	if err != nil {
		werr := fmt.Errorf("%w: %s: %v", ErrFileWrite, s.path, err)
		if n > 0 {
			if terr := s.f.Truncate(s.size); terr != nil {
				return errors.Join(werr, fmt.Errorf("%w: roll back %s: %v", ErrFileWrite, s.path, terr))
			}
		}
		return werr
	}
	s.size += int64(n)
	s.rows += int64(rows)
	return nil
}

// rollback cuts the file back to an earlier size and row count.
func (s *stream) rollback(size, rows int64) error {
	if err := s.f.Truncate(size); err != nil {
		return fmt.Errorf("%w: roll back %s: %v", ErrFileWrite, s.path, err)
	}
	s.size = size
	s.rows = rows
	return nil
}

func (s *stream) close() error {
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return fmt.Errorf("%w: sync %s: %v", ErrFileWrite, s.path, err)
	}
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrFileWrite, s.path, err)
	}
	return nil
}

// Writer receives the snapshots of one recording.
type Writer interface {
	Export(s *skeleton.Snapshot) error
	Rows() (euler, quat int64)
	Close() error
}

// Factory opens a Writer for the two output paths.
type Factory func(eulerPath, quatPath string) (Writer, error)

// OpenWriter is a Factory backed by Open.
func OpenWriter(eulerPath, quatPath string) (Writer, error) {
	e, err := Open(eulerPath, quatPath)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Exporter appends snapshot rows to an Euler file and a quaternion file.
// Every snapshot yields exactly skeleton.JointCount rows in each file, in
// joint order.
type Exporter struct {
	euler  *stream
	quat   *stream
	mu     sync.Mutex
	closed bool
}

// Open opens (or creates) both files for appending. The header is written to
// a file only when it is empty.
func Open(eulerPath, quatPath string) (*Exporter, error) {
	euler, err := openStream(eulerPath, EulerHeader)
	if err != nil {
		return nil, err
	}

	quat, err := openStream(quatPath, QuaternionHeader)
	if err != nil {
		euler.close()
		return nil, err
	}

	return &Exporter{euler: euler, quat: quat}, nil
}

// ExportEuler appends one row per joint with the orientation as roll, pitch and yaw.
func (e *Exporter) ExportEuler(s *skeleton.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("%w: exporter closed", ErrFileWrite)
	}
	return e.euler.append(encode(s, eulerRecord), skeleton.JointCount)
}

// ExportQuaternion appends one row per joint with the raw orientation quaternion.
func (e *Exporter) ExportQuaternion(s *skeleton.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("%w: exporter closed", ErrFileWrite)
	}
	return e.quat.append(encode(s, quaternionRecord), skeleton.JointCount)
}

// Export writes s to both files, Euler first. When the quaternion write
// fails the Euler rows of s are removed again, so both files keep the same
// number of rows.
func (e *Exporter) Export(s *skeleton.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("%w: exporter closed", ErrFileWrite)
	}

	size, rows := e.euler.size, e.euler.rows
	if err := e.euler.append(encode(s, eulerRecord), skeleton.JointCount); err != nil {
		return err
	}
	if err := e.quat.append(encode(s, quaternionRecord), skeleton.JointCount); err != nil {
		return errors.Join(err, e.euler.rollback(size, rows))
	}
	return nil
}

// Rows returns the number of data rows written to each file by this exporter.
func (e *Exporter) Rows() (euler, quat int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.euler.rows, e.quat.rows
}

// Close flushes and closes both files.
func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	return errors.Join(e.euler.close(), e.quat.close())
}

func encode(s *skeleton.Snapshot, record func(skeleton.JointSample) []string) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, j := range s.Joints {
		w.Write(record(j))
	}
	w.Flush()
	return buf.Bytes()
}

func prefix(j skeleton.JointSample, n int) []string {
	rec := make([]string, 5, n)
	rec[0] = strconv.FormatUint(uint64(j.BodyID), 10)
	rec[1] = strconv.Itoa(int(j.Joint))
	rec[2] = formatFloat(j.Position.X)
	rec[3] = formatFloat(j.Position.Y)
	rec[4] = formatFloat(j.Position.Z)
	return rec
}

func eulerRecord(j skeleton.JointSample) []string {
	e := j.Euler()
	return append(prefix(j, len(EulerHeader)),
		formatFloat(e.Roll), formatFloat(e.Pitch), formatFloat(e.Yaw))
}

func quaternionRecord(j skeleton.JointSample) []string {
	q := j.Orientation
	return append(prefix(j, len(QuaternionHeader)),
		formatFloat(q.W), formatFloat(q.X), formatFloat(q.Y), formatFloat(q.Z))
}

// formatFloat prints the shortest text that reads back as the same float32.
func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
