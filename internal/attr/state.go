// Package attr implements time attribution (spec 4.D-4.G): replaying the
// event history inside a query window to split wall-clock time between
// direct (user-attended) and delegated (agent-working) milliseconds per
// stream.
package attr

import (
	"time"

	"github.com/sjawhar/worklog/internal/events"
)

// Params carries the two durations the replay is parameterized on.
type Params struct {
	AttentionWindow time.Duration
	SessionTimeout  time.Duration
}

// Totals is one stream's accumulated time for a query.
type Totals struct {
	DirectMs    int64
	DelegatedMs int64
}

// state is the mutable replay state threaded through the main loop (9.
// "Stateful replay vs cyclic references" — a single value passed by
// reference, no graph).
type state struct {
	currentStream  *string
	previousStream *string
	lastActivity   time.Time
	isIdle         bool
	isAFK          bool
	// activeSessions maps session id to session_last_event.
	activeSessions map[string]time.Time
}

// seedState reconstructs state at s from the events in [s-L, s), per 4.E.
func seedState(preWindow []events.Event, s time.Time, attentionWindow, sessionTimeout time.Duration, sessionMap map[string]string) state {
	st := state{
		lastActivity:   s,
		activeSessions: map[string]time.Time{},
	}

	st.currentStream = seedCurrentStream(preWindow, sessionMap)

	for i := len(preWindow) - 1; i >= 0; i-- {
		if preWindow[i].IsActivity() {
			st.lastActivity = preWindow[i].Timestamp
			break
		}
	}
	st.isIdle = s.Sub(st.lastActivity) > attentionWindow

	for i := len(preWindow) - 1; i >= 0; i-- {
		if preWindow[i].Type == events.AFKChange {
			st.isAFK = preWindow[i].AFKStatus() == "idle"
			break
		}
	}

	latestAction := map[string]string{}
	latestSessionEventAt := map[string]time.Time{}
	for _, e := range preWindow {
		if e.SessionID == nil {
			continue
		}
		sid := *e.SessionID
		if ts, ok := latestSessionEventAt[sid]; !ok || e.Timestamp.After(ts) {
			latestSessionEventAt[sid] = e.Timestamp
		}
		if e.Type == events.AgentSession {
			latestAction[sid] = e.Action()
		}
	}
	for sid, ts := range latestSessionEventAt {
		if latestAction[sid] == "started" && s.Sub(ts) <= sessionTimeout {
			st.activeSessions[sid] = ts
		}
	}

	return st
}

// seedCurrentStream derives current_stream from the latest pre-window
// focusing event (user_message, tmux_pane_focus, window_focus). A
// window_focus(Terminal) only ever restores a previous_stream value, which
// seeding cannot reconstruct (9, Open Questions), so it is skipped in favor
// of the next qualifying focusing event further back.
func seedCurrentStream(preWindow []events.Event, sessionMap map[string]string) *string {
	for i := len(preWindow) - 1; i >= 0; i-- {
		e := preWindow[i]
		switch e.Type {
		case events.TmuxPaneFocus:
			return e.StreamID
		case events.UserMessage:
			// Same "if non-null" guard as the replay transition: a message
			// that resolves to nothing isn't a focusing event, so keep
			// scanning backward for one that is.
			if resolved := resolveUserMessageStream(e, sessionMap); resolved != nil {
				return resolved
			}
			continue
		case events.WindowFocus:
			if e.IsTerminalWindow() {
				continue
			}
			return nil
		}
	}
	return nil
}

// resolveUserMessageStream implements the user_message transition rule
// shared by seeding and replay: session_stream_map[sid] ?? event.stream_id.
func resolveUserMessageStream(e events.Event, sessionMap map[string]string) *string {
	if e.SessionID != nil {
		if sid, ok := sessionMap[*e.SessionID]; ok {
			return &sid
		}
	}
	return e.StreamID
}
