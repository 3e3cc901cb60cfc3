package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	content := `{
	// This is a JSONC comment
	"store": {
		"path": "${{ .Env.TEST_DB_PATH }}"
	},
	"attribution": {
		"attention_window": "90s",
		"session_timeout": "45m"
	},
	"inference": {
		"gap_threshold": "15m"
	}
}`

	dir := t.TempDir()
	path := filepath.Join(dir, "config.jsonc")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TEST_DB_PATH", "/tmp/test.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Store.Path != "/tmp/test.db" {
		t.Errorf("expected store path /tmp/test.db, got %s", cfg.Store.Path)
	}
	if cfg.Attribution.AttentionWindow.Duration() != 90*time.Second {
		t.Errorf("expected attention_window 90s, got %s", cfg.Attribution.AttentionWindow.Duration())
	}
	if cfg.Attribution.SessionTimeout.Duration() != 45*time.Minute {
		t.Errorf("expected session_timeout 45m, got %s", cfg.Attribution.SessionTimeout.Duration())
	}
	if cfg.Inference.GapThreshold.Duration() != 15*time.Minute {
		t.Errorf("expected gap_threshold 15m, got %s", cfg.Inference.GapThreshold.Duration())
	}
}

func TestLoadDefaults(t *testing.T) {
	content := `{}`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.jsonc")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Attribution.AttentionWindow.Duration() != 120*time.Second {
		t.Errorf("expected default attention_window 2m, got %s", cfg.Attribution.AttentionWindow.Duration())
	}
	if cfg.Attribution.SessionTimeout.Duration() != 30*time.Minute {
		t.Errorf("expected default session_timeout 30m, got %s", cfg.Attribution.SessionTimeout.Duration())
	}
	if cfg.Inference.GapThreshold.Duration() != 30*time.Minute {
		t.Errorf("expected default gap_threshold 30m, got %s", cfg.Inference.GapThreshold.Duration())
	}
	if cfg.Watch.Cron != "*/5 * * * *" {
		t.Errorf("expected default watch cron */5 * * * *, got %q", cfg.Watch.Cron)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected default log level info, got %q", cfg.Log.Level)
	}
}

func TestLoadDefaults_MissingFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "does-not-exist.jsonc"))
	if err != nil {
		t.Fatalf("Load of missing file should yield defaults, got error: %v", err)
	}
	if cfg.Report.DefaultPeriod != "day" {
		t.Errorf("expected default_period day, got %q", cfg.Report.DefaultPeriod)
	}
}

func TestExpandEnvTemplates(t *testing.T) {
	t.Setenv("TEST_KEY", "my-secret")
	result := expandEnvTemplates(`{"key": "${{ .Env.TEST_KEY }}"}`)
	expected := `{"key": "my-secret"}`
	if result != expected {
		t.Errorf("expected %s, got %s", expected, result)
	}
}
