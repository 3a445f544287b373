package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ayusman/mocaprec/internal/export"
	"github.com/ayusman/mocaprec/internal/skeleton"
	"github.com/ayusman/mocaprec/internal/tracker"
)

func TestOutputPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"alice_1_1_quat.csv", "alice_1_1_euler.csv"},
		{filepath.Join("out", "bob_2_3_quat.csv"), filepath.Join("out", "bob_2_3_euler.csv")},
		{"other.csv", "other_euler.csv"},
	}
	for _, tt := range tests {
		if got := outputPath(tt.in); got != tt.want {
			t.Errorf("outputPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConvertFile_MatchesRecorder(t *testing.T) {
	dir := t.TempDir()
	eulerPath := filepath.Join(dir, "a_1_1_euler.csv")
	quatPath := filepath.Join(dir, "a_1_1_quat.csv")

	exp, err := export.Open(eulerPath, quatPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, body := range []uint32{1, 2} {
		snap := tracker.StandingSnapshot(body)
		snap.Set(skeleton.Head, snap.Joint(skeleton.Head).Position, skeleton.Quaternion{W: 0.5, X: 0.5, Y: 0.5, Z: 0.5})
		if err := exp.Export(&snap); err != nil {
			t.Fatal(err)
		}
	}
	if err := exp.Close(); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "rebuilt.csv")
	rows, err := convertFile(quatPath, out, false, false)
	if err != nil {
		t.Fatalf("convertFile() error = %v", err)
	}
	if rows != 2*skeleton.JointCount {
		t.Errorf("rows = %d, want %d", rows, 2*skeleton.JointCount)
	}

	want, _ := os.ReadFile(eulerPath)
	got, _ := os.ReadFile(out)
	if !bytes.Equal(got, want) {
		t.Error("rebuilt Euler file differs from the recorded one")
	}

	// An existing output is kept unless forced.
	if _, err := convertFile(quatPath, out, false, false); !errors.Is(err, os.ErrExist) {
		t.Errorf("convertFile() over existing file error = %v, want ErrExist", err)
	}
	if _, err := convertFile(quatPath, out, true, false); err != nil {
		t.Errorf("convertFile() with force error = %v", err)
	}
}

func TestConvertFile_BadInputLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "bad_quat.csv")
	content := strings.Join(export.QuaternionHeader, ",") + "\n1,99,0,0,0,1,0,0,0\n"
	if err := os.WriteFile(in, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "bad_euler.csv")
	if _, err := convertFile(in, out, false, false); !errors.Is(err, export.ErrBadRecord) {
		t.Fatalf("convertFile() error = %v, want ErrBadRecord", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("output file should be removed after a failed conversion")
	}
}
