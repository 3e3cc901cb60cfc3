package attr

import (
	"time"

	"github.com/sjawhar/worklog/internal/events"
)

// idleStartEvents computes the _idle_start markers for 4.F: one per gap
// between consecutive activity-class events (seeded last_activity counts
// as the first boundary) that is not closed by a later activity event
// before attention_window_ms elapses.
func idleStartEvents(seed state, windowEvents []events.Event, start, end time.Time, attentionWindow time.Duration) []events.Event {
	var out []events.Event
	prev := seed.lastActivity

	emit := func(candidate time.Time, before *time.Time) {
		if candidate.Before(start) || candidate.After(end) {
			return
		}
		if before != nil && !candidate.Before(*before) {
			return
		}
		out = append(out, events.Event{Type: events.IdleStart, Timestamp: candidate})
	}

	for _, e := range windowEvents {
		if !e.IsActivity() {
			continue
		}
		candidate := prev.Add(attentionWindow)
		ts := e.Timestamp
		emit(candidate, &ts)
		prev = e.Timestamp
	}
	emit(prev.Add(attentionWindow), nil)

	return out
}

// sessionTimeoutEvents computes the _session_timeout markers for 4.F. Each
// session is tracked through the segments in which it is active (started
// by seeding or a real agent_session(started) event, ended by a real
// agent_session(ended) event or by timing out); a synthetic timeout is
// emitted for a segment only when no later session-bearing event refreshes
// it before session_timeout_ms elapses, and ends that segment immediately
// so later events in the same run are evaluated against the restarted
// (inactive) state, mirroring the main loop's own pruning step.
func sessionTimeoutEvents(seed state, windowEvents []events.Event, start, end time.Time, sessionTimeout time.Duration) []events.Event {
	sids := map[string]bool{}
	for sid := range seed.activeSessions {
		sids[sid] = true
	}
	bySid := map[string][]events.Event{}
	for _, e := range windowEvents {
		if e.SessionID == nil {
			continue
		}
		if e.Type != events.AgentSession && e.Type != events.AgentToolUse {
			continue
		}
		sids[*e.SessionID] = true
		bySid[*e.SessionID] = append(bySid[*e.SessionID], e)
	}

	var out []events.Event
	for sid := range sids {
		active := false
		var lastRefresh time.Time
		if ts, ok := seed.activeSessions[sid]; ok {
			active = true
			lastRefresh = ts
		}

		emitTimeout := func(candidate time.Time) {
			if candidate.Before(start) || candidate.After(end) {
				return
			}
			sidCopy := sid
			out = append(out, events.Event{Type: events.SessionTimeout, Timestamp: candidate, SessionID: &sidCopy})
		}

		for _, e := range bySid[sid] {
			if !active {
				if e.Type == events.AgentSession && e.Action() == "started" {
					active = true
					lastRefresh = e.Timestamp
				}
				continue
			}
			candidate := lastRefresh.Add(sessionTimeout)
			if e.Timestamp.After(candidate) {
				emitTimeout(candidate)
				active = false
				if e.Type == events.AgentSession && e.Action() == "started" {
					active = true
					lastRefresh = e.Timestamp
				}
				continue
			}
			lastRefresh = e.Timestamp
			if e.Type == events.AgentSession && e.Action() == "ended" {
				active = false
			}
		}

		if active {
			emitTimeout(lastRefresh.Add(sessionTimeout))
		}
	}
	return out
}
