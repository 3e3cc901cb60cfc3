package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/marcozac/go-jsonc"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, strips comments, expands ${{ .Env.VAR }}
// templates, unmarshals it into Config, and applies defaults. A missing
// file is not an error: it yields an all-defaults Config, since a fresh
// $WORKLOG_PATH need not contain one.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			applyDefaults(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := expandEnvTemplates(string(data))

	var cfg Config
	if err := jsonc.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields with sensible defaults, matching
// the constants named throughout spec.md (attention window 120s, session
// timeout 30m) and spec 4.C (gap threshold 30m).
func applyDefaults(cfg *Config) {
	if cfg.Store.Path == "" {
		cfg.Store.Path = DBPath()
	}
	if cfg.Attribution.AttentionWindow == 0 {
		cfg.Attribution.AttentionWindow = Duration(120 * time.Second)
	}
	if cfg.Attribution.SessionTimeout == 0 {
		cfg.Attribution.SessionTimeout = Duration(30 * time.Minute)
	}
	if cfg.Inference.GapThreshold == 0 {
		cfg.Inference.GapThreshold = Duration(30 * time.Minute)
	}
	if cfg.Watch.Cron == "" {
		cfg.Watch.Cron = "*/5 * * * *"
	}
	if cfg.Watch.HeartbeatInterval == 0 {
		cfg.Watch.HeartbeatInterval = Duration(30 * time.Second)
	}
	if cfg.Report.DefaultPeriod == "" {
		cfg.Report.DefaultPeriod = "day"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
