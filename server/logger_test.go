package server

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestInitLoggerWritesFile(t *testing.T) {
	t.Cleanup(func() { Log = zap.NewNop().Sugar() })

	path := filepath.Join(t.TempDir(), "relay.log")
	if err := InitLogger(LogConfig{File: path, Level: "info"}); err != nil {
		t.Fatalf("InitLogger() error = %v", err)
	}
	Log.Debugf("hidden %d", 1)
	Log.Infof("player %d joined", 7)
	SyncLogger()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "player 7 joined") {
		t.Fatalf("expected info line in log, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level: %q", out)
	}
}

func TestInitLoggerRejectsLevel(t *testing.T) {
	before := Log
	if err := InitLogger(LogConfig{Level: "chatty"}); err == nil {
		t.Fatalf("expected invalid level to fail")
	}
	if Log != before {
		t.Fatalf("logger replaced despite error")
	}
}
