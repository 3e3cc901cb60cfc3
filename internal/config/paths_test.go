package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWorklogPath_Default(t *testing.T) {
	t.Setenv("WORKLOG_PATH", "")

	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatal(err)
	}

	got := WorklogPath()
	want := filepath.Join(home, ".worklog")
	if got != want {
		t.Errorf("WorklogPath() = %q, want %q", got, want)
	}
}

func TestWorklogPath_EnvOverride(t *testing.T) {
	t.Setenv("WORKLOG_PATH", "/tmp/custom-worklog")

	got := WorklogPath()
	want := "/tmp/custom-worklog"
	if got != want {
		t.Errorf("WorklogPath() = %q, want %q", got, want)
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv("WORKLOG_PATH", "/tmp/test-worklog")

	got := ConfigPath()
	want := "/tmp/test-worklog/config.jsonc"
	if got != want {
		t.Errorf("ConfigPath() = %q, want %q", got, want)
	}
}

func TestDotenvPath(t *testing.T) {
	t.Setenv("WORKLOG_PATH", "/tmp/test-worklog")

	got := DotenvPath()
	want := "/tmp/test-worklog/.env"
	if got != want {
		t.Errorf("DotenvPath() = %q, want %q", got, want)
	}
}

func TestDBPath(t *testing.T) {
	t.Setenv("WORKLOG_PATH", "/tmp/test-worklog")

	got := DBPath()
	want := "/tmp/test-worklog/worklog.db"
	if got != want {
		t.Errorf("DBPath() = %q, want %q", got, want)
	}
}
