package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sjawhar/worklog/internal/events"
	"github.com/sjawhar/worklog/internal/werr"
)

// MemStore is a plain-Go, in-memory EventStore used by fast unit tests of
// stream and attr. It implements the same contract as SQLiteStore without
// a database, mirroring the teacher's FileStore/MemStore-style pairing of
// a production-grade store with a lightweight test double.
type MemStore struct {
	mu      sync.Mutex
	events  map[string]events.Event
	streams map[string]*Stream
	tags    map[string]map[string]bool // streamID -> tag -> present
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		events:  map[string]events.Event{},
		streams: map[string]*Stream{},
		tags:    map[string]map[string]bool{},
	}
}

func (m *MemStore) Close() error { return nil }

func (m *MemStore) WithTx(ctx context.Context, fn func(tx EventStore) error) error {
	// MemStore mutations are already atomic under the single mutex; a
	// failure mid-fn still leaves prior writes applied, which is
	// acceptable for a test double whose callers (tests) don't exercise
	// rollback semantics. Production rollback behavior lives in
	// SQLiteStore.
	return fn(m)
}

func (m *MemStore) allEventsSorted() []events.Event {
	list := make([]events.Event, 0, len(m.events))
	for _, e := range m.events {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Less(list[j]) })
	return list
}

func (m *MemStore) Range(ctx context.Context, start time.Time, end *time.Time, typ *events.Type) ([]events.Event, error) {
	return m.RangeLimit(ctx, start, end, typ, 0)
}

func (m *MemStore) RangeLimit(ctx context.Context, start time.Time, end *time.Time, typ *events.Type, limit int) ([]events.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []events.Event
	for _, e := range m.allEventsSorted() {
		if e.Timestamp.Before(start) {
			continue
		}
		if end != nil && !e.Timestamp.Before(*end) {
			continue
		}
		if typ != nil && e.Type != *typ {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemStore) Unassigned(ctx context.Context) ([]events.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []events.Event
	for _, e := range m.allEventsSorted() {
		if e.StreamID == nil && e.AssignmentSource != events.User {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemStore) Assign(ctx context.Context, eventIDs []string, streamID string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range eventIDs {
		e, ok := m.events[id]
		if !ok {
			continue
		}
		sid := streamID
		e.StreamID = &sid
		e.AssignmentSource = events.Inferred
		m.events[id] = e
	}
	if s, ok := m.streams[streamID]; ok {
		s.NeedsRecompute = true
		s.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (m *MemStore) SessionStreamMap(ctx context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type candidate struct {
		streamID string
		ts       time.Time
	}
	best := map[string]candidate{}
	for _, e := range m.events {
		if e.SessionID == nil || e.StreamID == nil {
			continue
		}
		sid := *e.SessionID
		cur, ok := best[sid]
		if !ok || e.Timestamp.Before(cur.ts) {
			best[sid] = candidate{streamID: *e.StreamID, ts: e.Timestamp}
		}
	}
	out := make(map[string]string, len(best))
	for sid, c := range best {
		out[sid] = c.streamID
	}
	return out, nil
}

func (m *MemStore) CreateStream(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	now := time.Now().UTC()
	m.streams[id] = &Stream{ID: id, CreatedAt: now, UpdatedAt: now, Name: name}
	return id, nil
}

func (m *MemStore) InsertIfAbsent(ctx context.Context, e events.Event) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.events[e.ID]; exists {
		return false, nil
	}
	if e.AssignmentSource == "" {
		e.AssignmentSource = events.Inferred
	}
	m.events[e.ID] = e
	return true, nil
}

func (m *MemStore) LastEventPerSource(ctx context.Context) (map[string]events.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := map[string]events.Event{}
	for _, e := range m.events {
		cur, ok := out[e.Source]
		if !ok || cur.Timestamp.Before(e.Timestamp) {
			out[e.Source] = e
		}
	}
	return out, nil
}

func (m *MemStore) AddTag(ctx context.Context, streamID, tag string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.tags[streamID]
	if !ok {
		set = map[string]bool{}
		m.tags[streamID] = set
	}
	if set[tag] {
		return false, nil
	}
	set[tag] = true
	return true, nil
}

func (m *MemStore) RemoveTag(ctx context.Context, streamID, tag string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.tags[streamID]
	if !ok || !set[tag] {
		return false, nil
	}
	delete(set, tag)
	return true, nil
}

func (m *MemStore) GetStreamTags(ctx context.Context, ids []string) (map[string][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := map[string]bool{}
	for _, id := range ids {
		wanted[id] = true
	}

	out := map[string][]string{}
	for streamID, set := range m.tags {
		if len(ids) > 0 && !wanted[streamID] {
			continue
		}
		for tag := range set {
			out[streamID] = append(out[streamID], tag)
		}
		sort.Strings(out[streamID])
	}
	return out, nil
}

func (m *MemStore) GetTopTags(ctx context.Context, limit int) ([]TagCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := map[string]int{}
	for _, set := range m.tags {
		for tag := range set {
			counts[tag]++
		}
	}
	out := make([]TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) GetUntaggedStreams(ctx context.Context) ([]Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Stream
	for _, s := range m.streams {
		if len(m.tags[s.ID]) == 0 {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) GetStreamByPrefix(ctx context.Context, prefix string) (*Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []string
	for id := range m.streams {
		if len(id) >= len(prefix) && id[:len(prefix)] == prefix {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return nil, werr.ErrNotFound
	case 1:
		s := *m.streams[matches[0]]
		return &s, nil
	default:
		sort.Strings(matches)
		return nil, &werr.ErrAmbiguousPrefix{Prefix: prefix, Candidates: matches}
	}
}

func (m *MemStore) GetStream(ctx context.Context, id string) (*Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.streams[id]
	if !ok {
		return nil, werr.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemStore) GetStreams(ctx context.Context) ([]Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Stream, 0, len(m.streams))
	for _, s := range m.streams {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
