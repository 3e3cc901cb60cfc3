// Package ingest implements the event ingress contract (spec.md §6,
// §7 "Input validity"): validating raw records from collaborator systems,
// computing content-hash IDs for locally-originated events, and inserting
// them into the store idempotently.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sjawhar/worklog/internal/bus"
	"github.com/sjawhar/worklog/internal/events"
	"github.com/sjawhar/worklog/internal/store"
	"github.com/sjawhar/worklog/internal/werr"
)

// RawRecord is an event as it arrives off the wire, before validation. ID
// and Timestamp are strings because a peer collector may hand either an
// RFC3339 timestamp or (for a local collector) no ID at all.
type RawRecord struct {
	ID        string
	Timestamp string // RFC3339; UTC preferred per spec.md §6
	Type      string
	Source    string
	Data      map[string]any
	CWD       *string
	SessionID *string
}

// validationConcurrency bounds the errgroup fan-out in InsertBatch:
// Validate is pure CPU (field checks + a SHA-256), so it parallelizes
// freely; the store write that follows does not (spec.md §5 single-writer
// model), so it stays sequential.
const validationConcurrency = 8

// Validate checks a RawRecord against the ingress contract (timestamp/type/
// source/data required; id/cwd/session_id optional) and returns the
// canonical events.Event. A record that already carries an ID (imported
// from a peer collector) is trusted as-given; one with no ID is assigned a
// deterministic content-hash ID so re-ingesting the same logical event is a
// no-op at the store layer.
func Validate(r RawRecord) (events.Event, error) {
	if r.Timestamp == "" {
		return events.Event{}, &werr.ErrInvalidRecord{Field: "timestamp"}
	}
	if r.Type == "" {
		return events.Event{}, &werr.ErrInvalidRecord{Field: "type"}
	}
	if r.Source == "" {
		return events.Event{}, &werr.ErrInvalidRecord{Field: "source"}
	}
	if r.Data == nil {
		return events.Event{}, &werr.ErrInvalidRecord{Field: "data"}
	}

	ts, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		ts, err = time.Parse(time.RFC3339Nano, r.Timestamp)
		if err != nil {
			return events.Event{}, &werr.ErrInvalidRecord{Field: "timestamp"}
		}
	}

	typ := events.Type(r.Type)

	id := r.ID
	if id == "" {
		id = events.ComputeID(r.Source, typ, r.Timestamp, r.Data, r.CWD, r.SessionID)
	}

	return events.Event{
		ID:               id,
		Timestamp:        ts.UTC(),
		Type:             typ,
		Source:           r.Source,
		Data:             r.Data,
		CWD:              r.CWD,
		SessionID:        r.SessionID,
		AssignmentSource: events.Inferred,
	}, nil
}

// Result summarizes one InsertBatch call.
type Result struct {
	Inserted  int
	Duplicate int
	Rejected  int
}

// InsertBatch validates and inserts a batch of raw records. Validation
// runs across a bounded worker pool; insertion is sequential against s,
// per the store's single-writer contract. A record that fails validation
// is logged at slog.Warn and skipped — ingress errors are per-record,
// never batch-fatal (spec.md §7). If b is non-nil, a bus.EventIngested or
// bus.EventDuplicate notification is published per successfully processed
// record.
func InsertBatch(ctx context.Context, s store.EventStore, b *bus.Bus, raw []RawRecord) (Result, error) {
	validated := make([]*events.Event, len(raw))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(validationConcurrency)
	for i, r := range raw {
		i, r := i, r
		group.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			e, err := Validate(r)
			if err != nil {
				slog.Warn("ingest: rejected record", "index", i, "error", err)
				return nil
			}
			validated[i] = &e
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Result{}, fmt.Errorf("ingest: validate batch: %w", err)
	}

	var res Result
	for _, e := range validated {
		if e == nil {
			res.Rejected++
			continue
		}
		inserted, err := s.InsertIfAbsent(ctx, *e)
		if err != nil {
			return res, fmt.Errorf("ingest: insert %s: %w", e.ID, err)
		}
		if inserted {
			res.Inserted++
			if b != nil {
				b.Publish(bus.NewEvent(bus.EventIngested, map[string]any{"id": e.ID, "type": string(e.Type)}))
			}
		} else {
			res.Duplicate++
			if b != nil {
				b.Publish(bus.NewEvent(bus.EventDuplicate, map[string]any{"id": e.ID}))
			}
		}
	}

	slog.Info("ingest: batch complete", "inserted", res.Inserted, "duplicate", res.Duplicate, "rejected", res.Rejected)
	return res, nil
}
