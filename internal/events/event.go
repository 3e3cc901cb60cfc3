// Package events defines the canonical event record replayed by stream
// inference and time attribution.
package events

import (
	"path"
	"time"
)

// Type is the closed set of event types the core interprets. Types outside
// this set are legal — the ingress contract accepts and stores them — but
// they carry no attribution meaning; inference still clusters them by cwd
// and timestamp.
type Type string

const (
	TmuxPaneFocus Type = "tmux_pane_focus"
	TmuxScroll    Type = "tmux_scroll"
	WindowFocus   Type = "window_focus"
	UserMessage   Type = "user_message"
	AgentSession  Type = "agent_session"
	AgentToolUse  Type = "agent_tool_use"
	AFKChange     Type = "afk_change"

	// Synthetic markers inserted by the attribution engine (4.F). They
	// never appear in storage.
	IdleStart       Type = "_idle_start"
	SessionTimeout  Type = "_session_timeout"
)

// AssignmentSource is the provenance tag on an event's stream assignment.
// Only User is immutable once set.
type AssignmentSource string

const (
	Imported AssignmentSource = "imported"
	Inferred AssignmentSource = "inferred"
	User     AssignmentSource = "user"
)

// Event is the canonical in-memory record. It is immutable once built;
// callers construct a new value rather than mutating fields.
type Event struct {
	ID                string
	Timestamp         time.Time
	Type              Type
	Source            string
	Data              map[string]any
	CWD               *string
	SessionID         *string
	StreamID          *string
	AssignmentSource  AssignmentSource
}

// Less implements the total order from 4.A: (timestamp, tiebreak), where
// UserMessage sorts after every other type at an identical timestamp so a
// concurrent message wins focus over a plain focus event.
func (e Event) Less(other Event) bool {
	if !e.Timestamp.Equal(other.Timestamp) {
		return e.Timestamp.Before(other.Timestamp)
	}
	return e.tiebreak() < other.tiebreak()
}

// tiebreak ranks UserMessage last among same-instant events.
func (e Event) tiebreak() int {
	if e.Type == UserMessage {
		return 1
	}
	return 0
}

// DataString returns data[key] as a string, or "" if absent or not a string.
func (e Event) DataString(key string) string {
	if e.Data == nil {
		return ""
	}
	v, ok := e.Data[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// App returns the data["app"] key used by window_focus events.
func (e Event) App() string { return e.DataString("app") }

// Action returns the data["action"] key used by agent_session events.
func (e Event) Action() string { return e.DataString("action") }

// AFKStatus returns the data["status"] key used by afk_change events.
func (e Event) AFKStatus() string { return e.DataString("status") }

// IsTerminalWindow reports whether a window_focus event names the terminal.
func (e Event) IsTerminalWindow() bool { return e.App() == "Terminal" }

// IsActivity reports whether the event counts toward last_activity per 4.E:
// tmux_pane_focus, tmux_scroll, or user_message.
func (e Event) IsActivity() bool {
	switch e.Type {
	case TmuxPaneFocus, TmuxScroll, UserMessage:
		return true
	default:
		return false
	}
}

// NormalizeCWD applies the cwd normalization rule from 4.C.1: strip a
// trailing slash unless the value is exactly "/"; nil and "" are the same
// sentinel, reported as the empty string.
func NormalizeCWD(cwd *string) string {
	if cwd == nil {
		return ""
	}
	v := *cwd
	if v == "" || v == "/" {
		return v
	}
	for len(v) > 1 && v[len(v)-1] == '/' {
		v = v[:len(v)-1]
	}
	return v
}

// Uncategorized is the sentinel stream name for a missing or empty cwd.
const Uncategorized = "Uncategorized"

// StreamName derives the default stream name for a normalized cwd: the
// basename, "/" for root, or Uncategorized for the empty sentinel.
func StreamName(normalizedCWD string) string {
	switch normalizedCWD {
	case "":
		return Uncategorized
	case "/":
		return "/"
	default:
		return path.Base(normalizedCWD)
	}
}
