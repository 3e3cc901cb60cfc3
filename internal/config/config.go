package config

import "time"

// Config is the root configuration for the worklog binary.
type Config struct {
	Store       StoreConfig       `json:"store"`
	Attribution AttributionConfig `json:"attribution"`
	Inference   InferenceConfig   `json:"inference"`
	Watch       WatchConfig       `json:"watch"`
	Report      ReportConfig      `json:"report"`
	Log         LogConfig         `json:"log"`
}

// StoreConfig configures the backing event store.
type StoreConfig struct {
	Path string `json:"path,omitempty"` // default: $WORKLOG_PATH/worklog.db
}

// AttributionConfig configures the time-attribution engine's two durations
// (spec 4.E-4.G).
type AttributionConfig struct {
	AttentionWindow Duration `json:"attention_window,omitempty"` // default: 2m
	SessionTimeout  Duration `json:"session_timeout,omitempty"`  // default: 30m
}

// InferenceConfig configures stream inference (spec 4.C).
type InferenceConfig struct {
	GapThreshold Duration `json:"gap_threshold,omitempty"` // default: 30m
}

// WatchConfig configures the `worklog watch` periodic re-inference loop.
type WatchConfig struct {
	Cron              string   `json:"cron,omitempty"`               // default: "*/5 * * * *"
	HeartbeatInterval Duration `json:"heartbeat_interval,omitempty"` // default: 30s
}

// ReportConfig configures default report grouping.
type ReportConfig struct {
	DefaultPeriod string `json:"default_period,omitempty"` // "day" | "week" | "sprint" (default: "day")
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level string `json:"level,omitempty"` // "debug" | "info" | "warn" | "error" (default: "info")
}

// Duration wraps time.Duration for JSONC unmarshaling from strings like "2m".
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
