package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitWritesJSONFile(t *testing.T) {
	t.Cleanup(Replace(zap.NewNop()))
	path := filepath.Join(t.TempDir(), "nested", "arena.log")
	logger, err := Init(Options{Level: "debug", Format: "json", ToFile: true, File: path})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	L().Info("arena_test_event", zap.String("k", "v"))
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"msg":"arena_test_event"`) || !strings.Contains(string(raw), `"k":"v"`) {
		t.Fatalf("unexpected log output: %s", raw)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("WARNING") != zapcore.WarnLevel {
		t.Fatalf("warning should map to warn")
	}
	if parseLevel("bogus") != zapcore.InfoLevel {
		t.Fatalf("unknown level should default to info")
	}
}
