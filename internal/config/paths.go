package config

import (
	"os"
	"path/filepath"
)

// WorklogPath returns the root directory for worklog data.
// It uses $WORKLOG_PATH if set, otherwise defaults to ~/.worklog.
func WorklogPath() string {
	if v := os.Getenv("WORKLOG_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".worklog")
	}
	return filepath.Join(home, ".worklog")
}

// ConfigPath returns the path to the worklog config file.
func ConfigPath() string {
	return filepath.Join(WorklogPath(), "config.jsonc")
}

// DotenvPath returns the path to the worklog .env file.
func DotenvPath() string {
	return filepath.Join(WorklogPath(), ".env")
}

// DBPath returns the default SQLite database path.
func DBPath() string {
	return filepath.Join(WorklogPath(), "worklog.db")
}

// HeartbeatPath returns the path to the watch loop's heartbeat file.
func HeartbeatPath() string {
	return filepath.Join(WorklogPath(), "heartbeat.json")
}
