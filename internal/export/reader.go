package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/ayusman/mocaprec/internal/skeleton"
)

// ErrBadRecord is returned when a CSV line cannot be parsed.
var ErrBadRecord = errors.New("malformed record")

// ReadQuaternionCSV parses a quaternion file and calls fn for every row in
// file order. Reading stops at the first error returned by fn.
func ReadQuaternionCSV(r io.Reader, fn func(skeleton.JointSample) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(QuaternionHeader)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: missing header", ErrBadRecord)
		}
		return fmt.Errorf("%w: header: %v", ErrBadRecord, err)
	}
	if !slices.Equal(header, QuaternionHeader) {
		return fmt.Errorf("%w: unexpected header %v", ErrBadRecord, header)
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadRecord, err)
		}

		j, err := parseQuaternionRecord(rec)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return fmt.Errorf("%w: line %d: %v", ErrBadRecord, line, err)
		}
		if err := fn(j); err != nil {
			return err
		}
	}
}

func parseQuaternionRecord(rec []string) (skeleton.JointSample, error) {
	var j skeleton.JointSample

	body, err := strconv.ParseUint(rec[0], 10, 32)
	if err != nil {
		return j, fmt.Errorf("body id: %w", err)
	}
	joint, err := strconv.Atoi(rec[1])
	if err != nil {
		return j, fmt.Errorf("joint index: %w", err)
	}
	if !skeleton.JointID(joint).Valid() {
		return j, fmt.Errorf("joint index %d out of range", joint)
	}

	var v [7]float32
	for i := range v {
		f, err := strconv.ParseFloat(rec[2+i], 32)
		if err != nil {
			return j, fmt.Errorf("column %s: %w", QuaternionHeader[2+i], err)
		}
		v[i] = float32(f)
	}

	j.BodyID = uint32(body)
	j.Joint = skeleton.JointID(joint)
	j.Position = skeleton.Vec3{X: v[0], Y: v[1], Z: v[2]}
	j.Orientation = skeleton.Quaternion{W: v[3], X: v[4], Y: v[5], Z: v[6]}
	return j, nil
}

// EulerWriter writes Euler rows to w in the same format as Exporter.
type EulerWriter struct {
	w    *csv.Writer
	rows int64
}

// NewEulerWriter writes the Euler header to w and returns a writer for rows.
func NewEulerWriter(w io.Writer) (*EulerWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(EulerHeader); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrFileWrite, err)
	}
	return &EulerWriter{w: cw}, nil
}

// Write appends the Euler row for j.
func (e *EulerWriter) Write(j skeleton.JointSample) error {
	if err := e.w.Write(eulerRecord(j)); err != nil {
		return fmt.Errorf("%w: %v", ErrFileWrite, err)
	}
	e.rows++
	return nil
}

// Rows returns the number of rows written.
func (e *EulerWriter) Rows() int64 { return e.rows }

// Flush writes any buffered rows.
func (e *EulerWriter) Flush() error {
	e.w.Flush()
	if err := e.w.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileWrite, err)
	}
	return nil
}
