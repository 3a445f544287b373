package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/ayusman/mocaprec/internal/config"
	"github.com/ayusman/mocaprec/internal/device"
	"github.com/ayusman/mocaprec/internal/hooks"
	"github.com/ayusman/mocaprec/internal/observe"
	"github.com/ayusman/mocaprec/internal/overlay"
	"github.com/ayusman/mocaprec/internal/session"
	"github.com/ayusman/mocaprec/internal/sim"
	"github.com/ayusman/mocaprec/internal/store"
	"github.com/ayusman/mocaprec/internal/tracker"
	"github.com/ayusman/mocaprec/internal/video"
)

// dataDirName is the per-user directory under $HOME holding the database,
// hooks and recordings.
const dataDirName = ".mocaprec"

// defaultDataDir returns ~/.mocaprec.
func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, dataDirName), nil
}

// loadConfig reads path, or dataDir/config.yaml when path is empty and that
// file exists, on top of the defaults.
func loadConfig(path, dataDir string) (*config.Config, error) {
	defaults := config.Default(dataDir)

	if path == "" {
		candidate := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(candidate); err != nil {
			cfg := defaults
			config.ApplyEnv(&cfg, os.Getenv)
			if err := config.Validate(&cfg); err != nil {
				return nil, err
			}
			return &cfg, nil
		}
		path = candidate
	}
	return config.Load(path, defaults)
}

// collaborators are the long-lived objects a session is wired to.
type collaborators struct {
	store   *store.Store
	hooks   *hooks.Runner
	hub     *overlay.Hub
	metrics *observe.Metrics
}

// sessionConfig turns the loaded configuration into a session.Config.
func sessionConfig(cfg *config.Config, c collaborators) (session.Config, error) {
	sc := session.Config{
		OutputDir:    cfg.Recording.OutputDir,
		Tracker:      cfg.TrackerSettings(),
		Calibrations: cfg.Calibrations(),
		FPS:          cfg.PrimaryFPS(),
		Store:        c.store,
		Hooks:        c.hooks,
		Metrics:      c.metrics,
		LogJoints:    cfg.Logging.Joints,
	}

	for _, d := range cfg.DeviceSpecs() {
		sc.Devices = append(sc.Devices, session.DeviceSpec{Index: d.Index, Role: d.Role, Config: d.Config})
	}

	if cfg.Simulate {
		sc.Opener = sim.NewOpener()
		sc.NewTracker = sim.NewTracker
	} else {
		api, err := device.ParseAPI(cfg.Capture.API)
		if err != nil {
			return session.Config{}, err
		}
		sc.Opener = device.NewGoCVOpener(api, cfg.Calibrations())
		sc.NewTracker = tracker.NewSidecar
	}

	if cfg.Video.Enabled {
		sc.NewVideo = video.NewFactory(cfg.Video.Codec)
	}

	window := cfg.Overlay.Window
	hub := c.hub
	sc.NewSink = func(calibs map[int]device.Calibration) (overlay.Sink, error) {
		var sinks []overlay.Sink
		if hub != nil {
			sinks = append(sinks, hub.Attach(calibs))
		}
		if window {
			sinks = append(sinks, overlay.NewWindowSink(calibs))
		}
		return overlay.Multi(sinks...), nil
	}

	return sc, nil
}

// openBrowser opens url with the platform's default handler.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
