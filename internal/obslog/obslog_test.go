package obslog

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestBuildWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.log")
	logger, err := Build(Options{Level: "debug", Format: "json", ToFile: true, File: path})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	logger.Info("game_create", zap.String("game_id", "g1"))
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(raw) == 0 {
		t.Fatalf("expected log output in %s", path)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetNilFallsBackToNop(t *testing.T) {
	prev := L()
	t.Cleanup(func() { Set(prev) })
	Set(nil)
	if L() == nil {
		t.Fatalf("expected non-nil logger")
	}
}
