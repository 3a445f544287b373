package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/ayusman/mocaprec/internal/device"
	"gopkg.in/yaml.v3"
)

// ValidProcessingModes lists the tracker inference backends.
var ValidProcessingModes = []string{"gpu", "cuda", "directml", "cpu"}

// Load reads the YAML configuration file at path on top of defaults,
// applies environment overrides and validates the result.
func Load(path string, defaults Config) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f, defaults)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r on top of defaults. Keys absent from
// the document keep their default value; a devices list replaces the
// default list entirely.
func LoadFromReader(r io.Reader, defaults Config) (*Config, error) {
	cfg := defaults
	cfg.Devices = slices.Clone(defaults.Devices)
	cfg.Tracker.Command = slices.Clone(defaults.Tracker.Command)

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	fillDeviceDefaults(cfg.Devices)

	ApplyEnv(&cfg, os.Getenv)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// fillDeviceDefaults completes device entries that only name an index and role.
func fillDeviceDefaults(devs []DeviceConfig) {
	dc := device.DefaultConfig()
	for i := range devs {
		d := &devs[i]
		if d.Width == 0 && d.Height == 0 {
			d.Width, d.Height = dc.Width, dc.Height
		}
		if d.FPS == 0 {
			d.FPS = dc.FPS
		}
		if d.DepthMode == "" {
			d.DepthMode = dc.DepthMode
		}
		if d.CaptureTimeout == 0 {
			d.CaptureTimeout = dc.CaptureTimeout
		}
		if d.SubordinateDelay == 0 {
			if role, err := device.ParseSyncRole(d.Role); err == nil && role == device.RoleSecondary {
				d.SubordinateDelay = device.DefaultSubordinateDelay
			}
		}
	}
}

// ApplyEnv overrides cfg with the MOCAPREC_* variables that are set.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(EnvAddr); v != "" {
		cfg.Server.Addr = v
	}
	if v := getenv(EnvOutputDir); v != "" {
		cfg.Recording.OutputDir = v
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if cfg.Recording.OutputDir == "" {
		errs = append(errs, errors.New("recording.output_dir is required"))
	}
	if cfg.Recording.Sequence < 1 || cfg.Recording.Sequence > 100 {
		errs = append(errs, fmt.Errorf("recording.sequence %d is out of range [1, 100]", cfg.Recording.Sequence))
	}

	if _, err := device.ParseAPI(cfg.Capture.API); err != nil {
		errs = append(errs, fmt.Errorf("capture.api: %w", err))
	}

	if len(cfg.Devices) == 0 {
		errs = append(errs, errors.New("at least one device is required"))
	}
	seen := make(map[int]int, len(cfg.Devices))
	for i, d := range cfg.Devices {
		prefix := fmt.Sprintf("devices[%d]", i)

		if prev, ok := seen[d.Index]; ok {
			errs = append(errs, fmt.Errorf("%s.index %d is a duplicate of devices[%d]", prefix, d.Index, prev))
		}
		seen[d.Index] = i

		role, err := device.ParseSyncRole(d.Role)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s.role: %w", prefix, err))
		} else if len(cfg.Devices) > 1 {
			if i == 0 && role != device.RolePrimary {
				errs = append(errs, fmt.Errorf("%s.role must be primary when several devices are used", prefix))
			}
			if i > 0 && role != device.RoleSecondary {
				errs = append(errs, fmt.Errorf("%s.role must be secondary", prefix))
			}
		}

		if d.Width <= 0 || d.Height <= 0 {
			errs = append(errs, fmt.Errorf("%s resolution %dx%d is invalid", prefix, d.Width, d.Height))
		}
		if d.FPS <= 0 {
			errs = append(errs, fmt.Errorf("%s.fps must be positive", prefix))
		}
		if d.SubordinateDelay < 0 || d.CaptureTimeout < 0 {
			errs = append(errs, fmt.Errorf("%s durations must not be negative", prefix))
		}
	}

	if !cfg.Simulate {
		if len(cfg.Tracker.Command) == 0 {
			errs = append(errs, errors.New("tracker.command is required"))
		}
	}
	if !slices.Contains(ValidProcessingModes, cfg.Tracker.ProcessingMode) {
		errs = append(errs, fmt.Errorf("tracker.processing_mode %q is invalid; valid values: gpu, cuda, directml, cpu", cfg.Tracker.ProcessingMode))
	}
	if cfg.Tracker.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("tracker.queue_size %d must be at least 1", cfg.Tracker.QueueSize))
	}

	if cfg.Overlay.PreviewEvery < 0 {
		errs = append(errs, errors.New("overlay.preview_every must not be negative"))
	}
	if cfg.Video.Enabled && len(cfg.Video.Codec) != 4 {
		errs = append(errs, fmt.Errorf("video.codec %q must be a four character code", cfg.Video.Codec))
	}
	if cfg.Hooks.Timeout <= 0 {
		errs = append(errs, errors.New("hooks.timeout must be positive"))
	}

	return errors.Join(errs...)
}
