// Package config loads the recorder configuration from YAML.
package config

import (
	"path/filepath"
	"time"

	"github.com/ayusman/mocaprec/internal/device"
	"github.com/ayusman/mocaprec/internal/tracker"
)

// Environment variables that override file values.
const (
	EnvAddr      = "MOCAPREC_ADDR"
	EnvOutputDir = "MOCAPREC_OUTPUT_DIR"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Recording RecordingConfig `yaml:"recording"`
	Capture   CaptureConfig   `yaml:"capture"`
	Devices   []DeviceConfig  `yaml:"devices"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Overlay   OverlayConfig   `yaml:"overlay"`
	Video     VideoConfig     `yaml:"video"`
	Hooks     HooksConfig     `yaml:"hooks"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Simulate replaces the devices and trackers with generated motion.
	Simulate bool `yaml:"simulate"`
}

// ServerConfig configures the HTTP control surface.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// RecordingConfig sets where recordings go and the identifiers the tray uses.
type RecordingConfig struct {
	OutputDir string `yaml:"output_dir"`
	Database  string `yaml:"database"`
	Subject   string `yaml:"subject"`
	Sequence  int    `yaml:"sequence"`
}

// CaptureConfig selects the OpenCV capture backend.
type CaptureConfig struct {
	// API is one of any, v4l2, dshow, msmf, openni2.
	API string `yaml:"api"`
}

// DeviceConfig configures one depth camera. The first entry is the primary.
type DeviceConfig struct {
	Index            int           `yaml:"index"`
	Role             string        `yaml:"role"`
	Width            int           `yaml:"width"`
	Height           int           `yaml:"height"`
	FPS              int           `yaml:"fps"`
	DepthMode        string        `yaml:"depth_mode"`
	SubordinateDelay time.Duration `yaml:"subordinate_delay"`
	CaptureTimeout   time.Duration `yaml:"capture_timeout"`

	// Calibration is used when the backend cannot report intrinsics.
	Calibration *CalibrationConfig `yaml:"calibration"`
}

// CalibrationConfig holds color camera intrinsics.
type CalibrationConfig struct {
	Fx float64 `yaml:"fx"`
	Fy float64 `yaml:"fy"`
	Cx float64 `yaml:"cx"`
	Cy float64 `yaml:"cy"`
}

// TrackerConfig configures the body tracking engine.
type TrackerConfig struct {
	ProcessingMode    string   `yaml:"processing_mode"`
	SensorOrientation string   `yaml:"sensor_orientation"`
	Command           []string `yaml:"command"`
	QueueSize         int      `yaml:"queue_size"`
}

// OverlayConfig configures the skeleton display.
type OverlayConfig struct {
	// Window opens a desktop window per device.
	Window bool `yaml:"window"`

	// PreviewEvery encodes a JPEG preview every N frames per device; 0 disables it.
	PreviewEvery int `yaml:"preview_every"`
}

// VideoConfig configures the primary color stream output.
type VideoConfig struct {
	Enabled bool   `yaml:"enabled"`
	Codec   string `yaml:"codec"`
}

// HooksConfig configures post-recording hooks.
type HooksConfig struct {
	Dir     string        `yaml:"dir"`
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig configures diagnostic output.
type LoggingConfig struct {
	// Joints logs every exported joint.
	Joints bool `yaml:"joints"`
}

// Default returns the configuration used when no file is given. dataDir
// holds the database, hooks and recordings.
func Default(dataDir string) Config {
	tc := tracker.DefaultConfig()

	return Config{
		Server: ServerConfig{
			Addr: "127.0.0.1:8420",
		},
		Recording: RecordingConfig{
			OutputDir: filepath.Join(dataDir, "recordings"),
			Database:  filepath.Join(dataDir, "mocaprec.db"),
			Subject:   "subject",
			Sequence:  1,
		},
		Capture: CaptureConfig{
			API: "any",
		},
		Devices: []DeviceConfig{
			defaultDevice(0, device.RolePrimary),
			defaultDevice(1, device.RoleSecondary),
		},
		Tracker: TrackerConfig{
			ProcessingMode:    tc.ProcessingMode,
			SensorOrientation: tc.SensorOrientation,
			Command:           tc.Command,
			QueueSize:         tc.QueueSize,
		},
		Overlay: OverlayConfig{
			Window:       true,
			PreviewEvery: 2,
		},
		Video: VideoConfig{
			Enabled: true,
			Codec:   "mp4v",
		},
		Hooks: HooksConfig{
			Dir:     filepath.Join(dataDir, "hooks"),
			Timeout: 30 * time.Second,
		},
	}
}

func defaultDevice(index int, role device.SyncRole) DeviceConfig {
	dc := device.DefaultConfig()
	d := DeviceConfig{
		Index:          index,
		Role:           role.String(),
		Width:          dc.Width,
		Height:         dc.Height,
		FPS:            dc.FPS,
		DepthMode:      dc.DepthMode,
		CaptureTimeout: dc.CaptureTimeout,
	}
	if role == device.RoleSecondary {
		d.SubordinateDelay = device.DefaultSubordinateDelay
	}
	return d
}

// DeviceSpec is a device entry resolved for opening.
type DeviceSpec struct {
	Index  int
	Role   device.SyncRole
	Config device.Config
}

// DeviceSpecs resolves the device entries. Call Validate first.
func (c *Config) DeviceSpecs() []DeviceSpec {
	specs := make([]DeviceSpec, 0, len(c.Devices))
	for _, d := range c.Devices {
		role, _ := device.ParseSyncRole(d.Role)

		cfg := device.DefaultConfig()
		cfg.Width = d.Width
		cfg.Height = d.Height
		cfg.FPS = d.FPS
		if d.DepthMode != "" {
			cfg.DepthMode = d.DepthMode
		}
		cfg.SyncRole = role
		cfg.SubordinateDelay = d.SubordinateDelay
		if d.CaptureTimeout > 0 {
			cfg.CaptureTimeout = d.CaptureTimeout
		}

		specs = append(specs, DeviceSpec{Index: d.Index, Role: role, Config: cfg})
	}
	return specs
}

// Calibrations returns the configured intrinsics by device index.
func (c *Config) Calibrations() map[int]device.Calibration {
	calibs := make(map[int]device.Calibration)
	for _, d := range c.Devices {
		if d.Calibration == nil {
			continue
		}
		calibs[d.Index] = device.Calibration{
			Width:  d.Width,
			Height: d.Height,
			Fx:     d.Calibration.Fx,
			Fy:     d.Calibration.Fy,
			Cx:     d.Calibration.Cx,
			Cy:     d.Calibration.Cy,
		}
	}
	return calibs
}

// TrackerSettings converts the tracker section.
func (c *Config) TrackerSettings() tracker.Config {
	return tracker.Config{
		ProcessingMode:    c.Tracker.ProcessingMode,
		SensorOrientation: c.Tracker.SensorOrientation,
		Command:           c.Tracker.Command,
		QueueSize:         c.Tracker.QueueSize,
	}
}

// PrimaryFPS returns the frame rate of the first device.
func (c *Config) PrimaryFPS() float64 {
	if len(c.Devices) == 0 || c.Devices[0].FPS <= 0 {
		return device.DefaultFPS
	}
	return float64(c.Devices[0].FPS)
}
