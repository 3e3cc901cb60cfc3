package attr

import "github.com/sjawhar/worklog/internal/events"

// transition applies one event's state-transition effect per the 4.G
// table. Attribution for the interval ending at e.Timestamp must already
// have been accumulated against the pre-transition state by the caller.
func transition(st *state, e events.Event, sessionMap map[string]string) {
	switch e.Type {
	case events.TmuxPaneFocus:
		st.previousStream = st.currentStream
		st.currentStream = e.StreamID
		markActivity(st, e)
	case events.TmuxScroll:
		markActivity(st, e)
	case events.WindowFocus:
		if e.IsTerminalWindow() {
			if st.previousStream != nil {
				st.currentStream = st.previousStream
			}
		} else {
			st.previousStream = st.currentStream
			st.currentStream = nil
		}
	case events.UserMessage:
		// 4.G: current <- session_stream_map[sid] ?? event.stream_id, "if
		// non-null" — a message that resolves to nothing leaves focus
		// unchanged rather than clearing it.
		if resolved := resolveUserMessageStream(e, sessionMap); resolved != nil {
			st.currentStream = resolved
		}
		markActivity(st, e)
	case events.AgentSession:
		if e.SessionID == nil {
			return
		}
		switch e.Action() {
		case "started":
			st.activeSessions[*e.SessionID] = e.Timestamp
		case "ended":
			delete(st.activeSessions, *e.SessionID)
		}
	case events.AgentToolUse:
		if e.SessionID == nil {
			return
		}
		if _, active := st.activeSessions[*e.SessionID]; active {
			st.activeSessions[*e.SessionID] = e.Timestamp
		}
	case events.AFKChange:
		switch e.AFKStatus() {
		case "idle":
			st.isAFK = true
		case "active":
			st.isAFK = false
		}
	case events.IdleStart:
		st.isIdle = true
	case events.SessionTimeout:
		if e.SessionID != nil {
			delete(st.activeSessions, *e.SessionID)
		}
	}
}

func markActivity(st *state, e events.Event) {
	st.isIdle = false
	st.lastActivity = e.Timestamp
}
