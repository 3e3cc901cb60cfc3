// Package store defines the event-store contract that stream inference and
// time attribution depend on (spec 4.B, 6.3), plus two implementations:
// SQLiteStore (the reference backing layout) and MemStore (a fast in-memory
// store used by unit tests of the dependent packages).
package store

import (
	"context"
	"time"

	"github.com/sjawhar/worklog/internal/events"
)

// Stream is the append-only bundle of events tied to one working context.
type Stream struct {
	ID              string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Name            string
	TimeDirectMs    int64
	TimeDelegatedMs int64
	FirstEventAt    *time.Time
	LastEventAt     *time.Time
	NeedsRecompute  bool
}

// TagCount is one row of GetTopTags: a tag and the number of distinct
// streams carrying it.
type TagCount struct {
	Tag   string
	Count int
}

// EventStore is the contract the attribution engine, stream inference, and
// the rest of the application depend on. Every operation is transactional
// per call; Assign and CreateStream during inference are expected to be
// composed into one transaction by the caller (stream.Infer does this via
// WithTx).
type EventStore interface {
	// Range returns events with start <= ts < end, ascending by
	// (timestamp, tiebreak). end == nil means +∞. typ == nil means no type
	// filter.
	Range(ctx context.Context, start time.Time, end *time.Time, typ *events.Type) ([]events.Event, error)

	// RangeLimit is Range with an optional result cap (0 = unlimited),
	// exposed to the rest of the application per spec 6.
	RangeLimit(ctx context.Context, start time.Time, end *time.Time, typ *events.Type, limit int) ([]events.Event, error)

	// Unassigned returns events with a null stream_id and
	// assignment_source != user, ascending by timestamp.
	Unassigned(ctx context.Context) ([]events.Event, error)

	// Assign sets stream_id and assignment_source <- inferred for the
	// given event IDs. No-ops for empty input.
	Assign(ctx context.Context, eventIDs []string, streamID string) error

	// SessionStreamMap returns, for every session_id that ever appears
	// alongside a stream_id, the stream_id of its earliest such event.
	SessionStreamMap(ctx context.Context) (map[string]string, error)

	// CreateStream creates a new stream and returns its id.
	CreateStream(ctx context.Context, name string) (string, error)

	// InsertIfAbsent inserts an event idempotently by ID, reporting
	// whether it was actually inserted (false if it already existed).
	InsertIfAbsent(ctx context.Context, e events.Event) (bool, error)

	// LastEventPerSource returns the most recent event for each distinct
	// Source, for status-panel support.
	LastEventPerSource(ctx context.Context) (map[string]events.Event, error)

	AddTag(ctx context.Context, streamID, tag string) (bool, error)
	RemoveTag(ctx context.Context, streamID, tag string) (bool, error)
	GetStreamTags(ctx context.Context, ids []string) (map[string][]string, error)
	GetTopTags(ctx context.Context, limit int) ([]TagCount, error)
	GetUntaggedStreams(ctx context.Context) ([]Stream, error)
	GetStreamByPrefix(ctx context.Context, prefix string) (*Stream, error)
	GetStream(ctx context.Context, id string) (*Stream, error)
	GetStreams(ctx context.Context) ([]Stream, error)

	// WithTx runs fn within a single transaction; inference uses this so
	// a partial failure leaves no streams created and no events
	// reassigned.
	WithTx(ctx context.Context, fn func(tx EventStore) error) error

	Close() error
}
