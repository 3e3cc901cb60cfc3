package attr

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sjawhar/worklog/internal/events"
	"github.com/sjawhar/worklog/internal/store"
)

// Attribute replays the event history in [start, end] and returns, per
// stream id, the direct and delegated milliseconds attributed to it
// (4.G). If start >= end, it returns an empty map without reading any
// events (4.G edge case).
func Attribute(ctx context.Context, s store.EventStore, start, end time.Time, params Params) (map[string]Totals, error) {
	results := map[string]Totals{}
	if !start.Before(end) {
		return results, nil
	}

	lookback := params.AttentionWindow
	if params.SessionTimeout > lookback {
		lookback = params.SessionTimeout
	}

	preWindow, err := s.Range(ctx, start.Add(-lookback), &start, nil)
	if err != nil {
		return nil, fmt.Errorf("attr: load pre-window events: %w", err)
	}

	sessionMap, err := s.SessionStreamMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("attr: load session stream map: %w", err)
	}

	// The store contract is half-open on end; widen by one millisecond
	// (the store's timestamp resolution) so the closed window [start,
	// end] used by the replay algorithm includes an event timestamped
	// exactly at end.
	inclusiveEnd := end.Add(time.Millisecond)
	windowEvents, err := s.Range(ctx, start, &inclusiveEnd, nil)
	if err != nil {
		return nil, fmt.Errorf("attr: load window events: %w", err)
	}

	st := seedState(preWindow, start, params.AttentionWindow, params.SessionTimeout, sessionMap)

	merged := mergeWithSynthetic(st, windowEvents, start, end, params)

	apply := func(delta time.Duration) {
		if delta <= 0 {
			return
		}
		ms := delta.Milliseconds()
		if !st.isAFK && !st.isIdle && st.currentStream != nil {
			t := results[*st.currentStream]
			t.DirectMs += ms
			results[*st.currentStream] = t
		}
		for sid := range st.activeSessions {
			stream, ok := sessionMap[sid]
			if !ok {
				continue
			}
			t := results[stream]
			t.DelegatedMs += ms
			results[stream] = t
		}
	}

	prune := func(at time.Time) {
		for sid, lastEvent := range st.activeSessions {
			if at.Sub(lastEvent) > params.SessionTimeout {
				delete(st.activeSessions, sid)
			}
		}
	}

	tPrev := start
	for _, e := range merged {
		delta := e.Timestamp.Sub(tPrev)
		prune(tPrev)
		apply(delta)
		transition(&st, e, sessionMap)
		tPrev = e.Timestamp
	}
	prune(tPrev)
	apply(end.Sub(tPrev))

	return results, nil
}

// mergeWithSynthetic combines the real window events with the _idle_start
// and _session_timeout markers from 4.F, sorted into the canonical total
// order (4.A). Stable sort preserves a real event ahead of a synthetic one
// at an identical timestamp, since the real event's transition is what the
// synthetic boundary is conditioned on not having happened yet. The one
// exception is user_message: Less ranks it after every other type, so a
// synthetic marker at the same instant sorts before it.
func mergeWithSynthetic(seed state, windowEvents []events.Event, start, end time.Time, params Params) []events.Event {
	synthetic := idleStartEvents(seed, windowEvents, start, end, params.AttentionWindow)
	synthetic = append(synthetic, sessionTimeoutEvents(seed, windowEvents, start, end, params.SessionTimeout)...)

	merged := make([]events.Event, 0, len(windowEvents)+len(synthetic))
	merged = append(merged, windowEvents...)
	merged = append(merged, synthetic...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Less(merged[j]) })
	return merged
}
