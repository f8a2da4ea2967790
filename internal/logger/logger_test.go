package logger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveLogFilePathCreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	path, err := resolveLogFilePath(Options{Dir: dir})
	if err != nil {
		t.Fatalf("resolve log path: %v", err)
	}
	if path != filepath.Join(dir, defaultLogFilename) {
		t.Fatalf("unexpected log path %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log file to exist: %v", err)
	}
}

func TestNormalizePositiveInt(t *testing.T) {
	if got := normalizePositiveInt(0, 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
	if got := normalizePositiveInt(3, 7); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestZFallsBackWithoutInit(t *testing.T) {
	previous := L
	L = nil
	defer func() { L = previous }()

	if Z() == nil {
		t.Fatalf("expected fallback logger")
	}
}
