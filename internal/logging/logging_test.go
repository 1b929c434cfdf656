package logging

import (
	"path/filepath"
	"testing"

	"review-rag/internal/config"
)

func TestSetup_DefaultsToStdout(t *testing.T) {
	cfg := &config.Config{}
	cfg.Log.Level = "INFO"
	cfg.Log.Output = ""

	logger, cleanup := Setup(cfg)
	defer cleanup()

	if logger == nil {
		t.Fatal("expected a non-nil logger")
	}
}

func TestSetup_RotatedFileOutput(t *testing.T) {
	cfg := &config.Config{}
	cfg.Log.Level = "DEBUG"
	cfg.Log.Output = filepath.Join(t.TempDir(), "reviewrag.log")
	cfg.Log.Rotation.MaxSize = 10

	logger, cleanup := Setup(cfg)
	defer cleanup()

	logger.Info("hello from test")
}

func TestSetup_JSONFormat(t *testing.T) {
	cfg := &config.Config{}
	cfg.Log.Format = "json"
	cfg.Log.Output = "stderr"

	logger, cleanup := Setup(cfg)
	defer cleanup()

	if logger == nil {
		t.Fatal("expected a non-nil logger")
	}
}
