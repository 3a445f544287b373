package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/mocaprec/internal/device"
	"github.com/ayusman/mocaprec/internal/overlay"
	"github.com/ayusman/mocaprec/internal/store"
)

func TestLoadConfig_Defaults(t *testing.T) {
	dataDir := t.TempDir()

	cfg, err := loadConfig("", dataDir)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Recording.Database != filepath.Join(dataDir, "mocaprec.db") {
		t.Errorf("database = %q", cfg.Recording.Database)
	}
	if len(cfg.Devices) != 2 {
		t.Errorf("devices = %d, want 2", len(cfg.Devices))
	}
}

func TestLoadConfig_DataDirFile(t *testing.T) {
	dataDir := t.TempDir()
	yaml := "simulate: true\nrecording:\n  subject: alice\n"
	if err := os.WriteFile(filepath.Join(dataDir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig("", dataDir)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if !cfg.Simulate || cfg.Recording.Subject != "alice" {
		t.Errorf("config = simulate %v subject %q", cfg.Simulate, cfg.Recording.Subject)
	}
}

func TestSessionConfig_Simulate(t *testing.T) {
	cfg, err := loadConfig("", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg.Simulate = true
	cfg.Overlay.Window = false
	cfg.Video.Enabled = false

	hub := overlay.NewHub(0)
	sc, err := sessionConfig(cfg, collaborators{hub: hub})
	if err != nil {
		t.Fatalf("sessionConfig() error = %v", err)
	}

	if len(sc.Devices) != 2 || sc.Devices[0].Role != device.RolePrimary || sc.Devices[1].Role != device.RoleSecondary {
		t.Errorf("devices = %+v", sc.Devices)
	}
	if sc.NewVideo != nil {
		t.Error("video factory should be nil when video is disabled")
	}

	dev, err := sc.Opener(0)
	if err != nil {
		t.Fatalf("Opener() error = %v", err)
	}
	calib, _ := dev.Calibration()
	if _, err := sc.NewTracker(0, calib, sc.Tracker); err != nil {
		t.Errorf("NewTracker() error = %v", err)
	}

	sink, err := sc.NewSink(nil)
	if err != nil || sink == nil {
		t.Fatalf("NewSink() = %v, %v", sink, err)
	}
	sink.Close()
}

func TestSessionConfig_BadCaptureAPI(t *testing.T) {
	cfg, err := loadConfig("", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg.Capture.API = "firewire"

	if _, err := sessionConfig(cfg, collaborators{}); err == nil {
		t.Error("sessionConfig() should reject an unknown capture backend")
	}
}

func TestLastIdentifiers(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	subject, seq := lastIdentifiers(st, "subject", 1)
	if subject != "subject" || seq != 1 {
		t.Errorf("without settings = (%q, %d), want configured values", subject, seq)
	}

	st.Settings().Set(store.SettingLastSubject, "alice")
	st.Settings().Set(store.SettingLastSequence, "7")

	subject, seq = lastIdentifiers(st, "subject", 1)
	if subject != "alice" || seq != 7 {
		t.Errorf("with settings = (%q, %d), want (alice, 7)", subject, seq)
	}
}
