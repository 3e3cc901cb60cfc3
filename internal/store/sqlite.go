package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sjawhar/worklog/internal/events"
	"github.com/sjawhar/worklog/internal/werr"
)

// timeFormat stores timestamps as lexicographically sortable UTC text with
// millisecond resolution, matching the event model's stated precision.
const timeFormat = "2006-01-02T15:04:05.000Z"

const schema = `
CREATE TABLE IF NOT EXISTS streams (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	name TEXT,
	time_direct_ms INTEGER DEFAULT 0,
	time_delegated_ms INTEGER DEFAULT 0,
	first_event_at TEXT,
	last_event_at TEXT,
	needs_recompute INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	type TEXT NOT NULL,
	source TEXT NOT NULL,
	schema_version INTEGER DEFAULT 1,
	data TEXT NOT NULL,
	cwd TEXT,
	session_id TEXT,
	stream_id TEXT,
	assignment_source TEXT DEFAULT 'inferred',
	FOREIGN KEY (stream_id) REFERENCES streams(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS stream_tags (
	stream_id TEXT NOT NULL,
	tag TEXT NOT NULL,
	PRIMARY KEY (stream_id, tag),
	FOREIGN KEY (stream_id) REFERENCES streams(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
CREATE INDEX IF NOT EXISTS idx_events_stream ON events(stream_id);
CREATE INDEX IF NOT EXISTS idx_events_cwd ON events(cwd);
CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
CREATE INDEX IF NOT EXISTS idx_streams_updated ON streams(updated_at);
CREATE INDEX IF NOT EXISTS idx_stream_tags_tag ON stream_tags(tag);
`

// SQLiteStore is the reference EventStore backed by modernc.org/sqlite
// (pure Go, no cgo). Not safe for concurrent use from multiple goroutines
// against the same *sql.DB beyond what database/sql itself serializes;
// callers that need concurrency open one Store per goroutine, per the
// teacher's "one FileStore per caller" convention.
type SQLiteStore struct {
	db  *sql.DB
	ctx queryer
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens or creates a SQLite database at path and applies the schema.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite + modernc driver: single writer
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	s := &SQLiteStore{db: db}
	s.ctx = db
	return s, nil
}

// OpenInMemory creates an in-memory SQLite database, for tests that want
// exact SQL-layer fidelity rather than MemStore's plain-Go semantics.
func OpenInMemory() (*SQLiteStore, error) {
	return Open(":memory:")
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx EventStore) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &SQLiteStore{db: s.db, ctx: tx}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Range(ctx context.Context, start time.Time, end *time.Time, typ *events.Type) ([]events.Event, error) {
	return s.rangeLimit(ctx, start, end, typ, 0)
}

func (s *SQLiteStore) RangeLimit(ctx context.Context, start time.Time, end *time.Time, typ *events.Type, limit int) ([]events.Event, error) {
	return s.rangeLimit(ctx, start, end, typ, limit)
}

func (s *SQLiteStore) rangeLimit(ctx context.Context, start time.Time, end *time.Time, typ *events.Type, limit int) ([]events.Event, error) {
	query := "SELECT id, timestamp, type, source, data, cwd, session_id, stream_id, assignment_source FROM events WHERE timestamp >= ?"
	args := []any{start.UTC().Format(timeFormat)}

	if end != nil {
		query += " AND timestamp < ?"
		args = append(args, end.UTC().Format(timeFormat))
	}
	if typ != nil {
		query += " AND type = ?"
		args = append(args, string(*typ))
	}
	query += " ORDER BY timestamp ASC, CASE WHEN type = 'user_message' THEN 1 ELSE 0 END ASC, rowid ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.ctx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("range events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *SQLiteStore) Unassigned(ctx context.Context) ([]events.Event, error) {
	query := `SELECT id, timestamp, type, source, data, cwd, session_id, stream_id, assignment_source
		FROM events WHERE stream_id IS NULL AND assignment_source != 'user'
		ORDER BY timestamp ASC, rowid ASC`
	rows, err := s.ctx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("unassigned events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *SQLiteStore) Assign(ctx context.Context, eventIDs []string, streamID string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	for _, id := range eventIDs {
		_, err := s.ctx.ExecContext(ctx,
			`UPDATE events SET stream_id = ?, assignment_source = 'inferred' WHERE id = ?`,
			streamID, id)
		if err != nil {
			return fmt.Errorf("assign event %s: %w", id, err)
		}
	}
	_, err := s.ctx.ExecContext(ctx,
		`UPDATE streams SET needs_recompute = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(timeFormat), streamID)
	if err != nil {
		return fmt.Errorf("mark stream recompute: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SessionStreamMap(ctx context.Context) (map[string]string, error) {
	query := `SELECT session_id, stream_id, MIN(timestamp) AS first_ts
		FROM events
		WHERE session_id IS NOT NULL AND stream_id IS NOT NULL
		GROUP BY session_id, stream_id`
	rows, err := s.ctx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("session stream map: %w", err)
	}
	defer rows.Close()

	type candidate struct {
		streamID string
		ts       string
	}
	best := map[string]candidate{}
	for rows.Next() {
		var sessionID, streamID, ts string
		if err := rows.Scan(&sessionID, &streamID, &ts); err != nil {
			return nil, fmt.Errorf("scan session map row: %w", err)
		}
		cur, ok := best[sessionID]
		if !ok || ts < cur.ts {
			best[sessionID] = candidate{streamID: streamID, ts: ts}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(best))
	for sid, c := range best {
		out[sid] = c.streamID
	}
	return out, nil
}

func (s *SQLiteStore) CreateStream(ctx context.Context, name string) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(timeFormat)
	_, err := s.ctx.ExecContext(ctx,
		`INSERT INTO streams (id, created_at, updated_at, name) VALUES (?, ?, ?, ?)`,
		id, now, now, name)
	if err != nil {
		return "", fmt.Errorf("create stream: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) InsertIfAbsent(ctx context.Context, e events.Event) (bool, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return false, fmt.Errorf("marshal data: %w", err)
	}

	assignmentSource := e.AssignmentSource
	if assignmentSource == "" {
		assignmentSource = events.Inferred
	}

	res, err := s.ctx.ExecContext(ctx,
		`INSERT OR IGNORE INTO events
			(id, timestamp, type, source, data, cwd, session_id, stream_id, assignment_source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.UTC().Format(timeFormat), string(e.Type), e.Source, string(data),
		nullableString(e.CWD), nullableString(e.SessionID), nullableString(e.StreamID), string(assignmentSource),
	)
	if err != nil {
		return false, fmt.Errorf("insert event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) LastEventPerSource(ctx context.Context) (map[string]events.Event, error) {
	query := `SELECT e.id, e.timestamp, e.type, e.source, e.data, e.cwd, e.session_id, e.stream_id, e.assignment_source
		FROM events e
		INNER JOIN (
			SELECT source, MAX(timestamp) AS max_ts FROM events GROUP BY source
		) latest ON e.source = latest.source AND e.timestamp = latest.max_ts`
	rows, err := s.ctx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("last event per source: %w", err)
	}
	defer rows.Close()

	list, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]events.Event, len(list))
	for _, e := range list {
		out[e.Source] = e
	}
	return out, nil
}

func (s *SQLiteStore) AddTag(ctx context.Context, streamID, tag string) (bool, error) {
	res, err := s.ctx.ExecContext(ctx,
		`INSERT OR IGNORE INTO stream_tags (stream_id, tag) VALUES (?, ?)`, streamID, tag)
	if err != nil {
		return false, fmt.Errorf("add tag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) RemoveTag(ctx context.Context, streamID, tag string) (bool, error) {
	res, err := s.ctx.ExecContext(ctx,
		`DELETE FROM stream_tags WHERE stream_id = ? AND tag = ?`, streamID, tag)
	if err != nil {
		return false, fmt.Errorf("remove tag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetStreamTags(ctx context.Context, ids []string) (map[string][]string, error) {
	query := `SELECT stream_id, tag FROM stream_tags`
	args := []any{}
	if len(ids) > 0 {
		placeholders := ""
		for i, id := range ids {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			args = append(args, id)
		}
		query += " WHERE stream_id IN (" + placeholders + ")"
	}

	rows, err := s.ctx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get stream tags: %w", err)
	}
	defer rows.Close()

	out := map[string][]string{}
	for rows.Next() {
		var streamID, tag string
		if err := rows.Scan(&streamID, &tag); err != nil {
			return nil, err
		}
		out[streamID] = append(out[streamID], tag)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetTopTags(ctx context.Context, limit int) ([]TagCount, error) {
	query := `SELECT tag, COUNT(DISTINCT stream_id) AS n FROM stream_tags GROUP BY tag ORDER BY n DESC, tag ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.ctx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get top tags: %w", err)
	}
	defer rows.Close()

	var out []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetUntaggedStreams(ctx context.Context) ([]Stream, error) {
	query := `SELECT s.id, s.created_at, s.updated_at, s.name, s.time_direct_ms, s.time_delegated_ms,
			s.first_event_at, s.last_event_at, s.needs_recompute
		FROM streams s
		LEFT JOIN stream_tags t ON t.stream_id = s.id
		WHERE t.stream_id IS NULL`
	rows, err := s.ctx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get untagged streams: %w", err)
	}
	defer rows.Close()
	return scanStreams(rows)
}

func (s *SQLiteStore) GetStreamByPrefix(ctx context.Context, prefix string) (*Stream, error) {
	query := `SELECT id, created_at, updated_at, name, time_direct_ms, time_delegated_ms,
			first_event_at, last_event_at, needs_recompute
		FROM streams WHERE id LIKE ? || '%'`
	rows, err := s.ctx.QueryContext(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("get stream by prefix: %w", err)
	}
	defer rows.Close()

	matches, err := scanStreams(rows)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, werr.ErrNotFound
	case 1:
		return &matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		return nil, &werr.ErrAmbiguousPrefix{Prefix: prefix, Candidates: ids}
	}
}

func (s *SQLiteStore) GetStream(ctx context.Context, id string) (*Stream, error) {
	query := `SELECT id, created_at, updated_at, name, time_direct_ms, time_delegated_ms,
			first_event_at, last_event_at, needs_recompute
		FROM streams WHERE id = ?`
	rows, err := s.ctx.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("get stream: %w", err)
	}
	defer rows.Close()
	matches, err := scanStreams(rows)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, werr.ErrNotFound
	}
	return &matches[0], nil
}

func (s *SQLiteStore) GetStreams(ctx context.Context) ([]Stream, error) {
	query := `SELECT id, created_at, updated_at, name, time_direct_ms, time_delegated_ms,
			first_event_at, last_event_at, needs_recompute
		FROM streams ORDER BY created_at ASC`
	rows, err := s.ctx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get streams: %w", err)
	}
	defer rows.Close()
	return scanStreams(rows)
}

// UpdateStreamTotals writes the denormalized cache columns (12's
// supplemented feature) and clears needs_recompute.
func (s *SQLiteStore) UpdateStreamTotals(ctx context.Context, streamID string, directMs, delegatedMs int64) error {
	_, err := s.ctx.ExecContext(ctx,
		`UPDATE streams SET time_direct_ms = ?, time_delegated_ms = ?, needs_recompute = 0, updated_at = ? WHERE id = ?`,
		directMs, delegatedMs, time.Now().UTC().Format(timeFormat), streamID)
	if err != nil {
		return fmt.Errorf("update stream totals: %w", err)
	}
	return nil
}

func scanEvents(rows *sql.Rows) ([]events.Event, error) {
	var out []events.Event
	for rows.Next() {
		var (
			id, ts, typ, source, data, assignmentSource string
			cwd, sessionID, streamID                    sql.NullString
		)
		if err := rows.Scan(&id, &ts, &typ, &source, &data, &cwd, &sessionID, &streamID, &assignmentSource); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		parsedTS, err := time.Parse(timeFormat, ts)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return nil, fmt.Errorf("unmarshal data: %w", err)
		}
		out = append(out, events.Event{
			ID:               id,
			Timestamp:        parsedTS,
			Type:             events.Type(typ),
			Source:           source,
			Data:             payload,
			CWD:              nullToPtr(cwd),
			SessionID:        nullToPtr(sessionID),
			StreamID:         nullToPtr(streamID),
			AssignmentSource: events.AssignmentSource(assignmentSource),
		})
	}
	return out, rows.Err()
}

func scanStreams(rows *sql.Rows) ([]Stream, error) {
	var out []Stream
	for rows.Next() {
		var (
			st                              Stream
			createdAt, updatedAt            string
			firstEventAt, lastEventAt       sql.NullString
			needsRecompute                  int
		)
		if err := rows.Scan(&st.ID, &createdAt, &updatedAt, &st.Name, &st.TimeDirectMs, &st.TimeDelegatedMs,
			&firstEventAt, &lastEventAt, &needsRecompute); err != nil {
			return nil, fmt.Errorf("scan stream: %w", err)
		}
		var err error
		if st.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if st.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		if firstEventAt.Valid {
			t, err := time.Parse(timeFormat, firstEventAt.String)
			if err != nil {
				return nil, err
			}
			st.FirstEventAt = &t
		}
		if lastEventAt.Valid {
			t, err := time.Parse(timeFormat, lastEventAt.String)
			if err != nil {
				return nil, err
			}
			st.LastEventAt = &t
		}
		st.NeedsRecompute = needsRecompute != 0
		out = append(out, st)
	}
	return out, rows.Err()
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullToPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
