package session

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// Limits of the sequence and trial numbers.
const (
	MinNumber = 1
	MaxNumber = 100
)

// Output file suffixes.
const (
	VideoSuffix      = ".mp4"
	EulerSuffix      = "_euler.csv"
	QuaternionSuffix = "_quat.csv"
)

// RecordingConfig names the output files of one recording. It is built once
// when a recording starts and never changes afterwards.
type RecordingConfig struct {
	subject   string
	sequence  int
	trial     int
	base      string
	videoPath string
	eulerPath string
	quatPath  string
}

// NewRecordingConfig derives the output paths in dir for the given
// identifiers. The base name is {subject}_{sequence}_{trial}.
func NewRecordingConfig(dir, subject string, sequence, trial int) (RecordingConfig, error) {
	subject = strings.TrimSpace(subject)

	switch {
	case subject == "":
		return RecordingConfig{}, fmt.Errorf("%w: subject is empty", ErrInvalidIdentifiers)
	case subject == "." || subject == ".." || strings.ContainsAny(subject, `/\`):
		return RecordingConfig{}, fmt.Errorf("%w: subject %q is not a valid file name", ErrInvalidIdentifiers, subject)
	case sequence < MinNumber || sequence > MaxNumber:
		return RecordingConfig{}, fmt.Errorf("%w: sequence %d not in %d..%d", ErrInvalidIdentifiers, sequence, MinNumber, MaxNumber)
	case trial < MinNumber || trial > MaxNumber:
		return RecordingConfig{}, fmt.Errorf("%w: trial %d not in %d..%d", ErrInvalidIdentifiers, trial, MinNumber, MaxNumber)
	}

	base := fmt.Sprintf("%s_%d_%d", subject, sequence, trial)
	stem := filepath.Join(dir, base)

	return RecordingConfig{
		subject:   subject,
		sequence:  sequence,
		trial:     trial,
		base:      base,
		videoPath: stem + VideoSuffix,
		eulerPath: stem + EulerSuffix,
		quatPath:  stem + QuaternionSuffix,
	}, nil
}

func (c RecordingConfig) Subject() string   { return c.subject }
func (c RecordingConfig) Sequence() int     { return c.sequence }
func (c RecordingConfig) Trial() int        { return c.trial }
func (c RecordingConfig) BaseName() string  { return c.base }
func (c RecordingConfig) VideoPath() string { return c.videoPath }
func (c RecordingConfig) EulerPath() string { return c.eulerPath }
func (c RecordingConfig) QuatPath() string  { return c.quatPath }

// IsZero reports whether c was never initialised.
func (c RecordingConfig) IsZero() bool { return c.base == "" }

func (c RecordingConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Subject   string `json:"subject"`
		Sequence  int    `json:"sequence"`
		Trial     int    `json:"trial"`
		BaseName  string `json:"base_name"`
		VideoPath string `json:"video_path"`
		EulerPath string `json:"euler_path"`
		QuatPath  string `json:"quat_path"`
	}{c.subject, c.sequence, c.trial, c.base, c.videoPath, c.eulerPath, c.quatPath})
}
