package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"release", "debug", "test"} {
		l, err := New(Options{Mode: mode, Level: "warn"})
		if err != nil {
			t.Fatalf("mode %s: %v", mode, err)
		}
		if l.Core().Enabled(-1) {
			t.Errorf("mode %s: debug should be disabled at warn", mode)
		}
	}
}

func TestNewInvalidLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autorig.log")
	l, err := New(Options{Mode: "release", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatal(err)
	}
	l.Info("image processed")
	Sync(l)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"image processed"`) {
		t.Errorf("Unexpected log file content %q", data)
	}
}
