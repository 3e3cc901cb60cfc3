package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/sjawhar/worklog/internal/bus"
	"github.com/sjawhar/worklog/internal/store"
	"github.com/sjawhar/worklog/internal/werr"
)

func TestValidate_MissingFields(t *testing.T) {
	cases := []struct {
		name string
		r    RawRecord
	}{
		{"missing timestamp", RawRecord{Type: "tmux_scroll", Source: "s", Data: map[string]any{}}},
		{"missing type", RawRecord{Timestamp: "2025-01-25T10:00:00Z", Source: "s", Data: map[string]any{}}},
		{"missing source", RawRecord{Timestamp: "2025-01-25T10:00:00Z", Type: "tmux_scroll", Data: map[string]any{}}},
		{"missing data", RawRecord{Timestamp: "2025-01-25T10:00:00Z", Type: "tmux_scroll", Source: "s"}},
		{"bad timestamp", RawRecord{Timestamp: "not-a-time", Type: "tmux_scroll", Source: "s", Data: map[string]any{}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Validate(c.r)
			var invalid *werr.ErrInvalidRecord
			if err == nil {
				t.Fatal("expected error")
			}
			if !asInvalidRecord(err, &invalid) {
				t.Fatalf("expected ErrInvalidRecord, got %T: %v", err, err)
			}
		})
	}
}

func asInvalidRecord(err error, target **werr.ErrInvalidRecord) bool {
	e, ok := err.(*werr.ErrInvalidRecord)
	if ok {
		*target = e
	}
	return ok
}

func TestValidate_ComputesContentHashWhenIDMissing(t *testing.T) {
	r := RawRecord{
		Timestamp: "2025-01-25T10:00:00Z",
		Type:      "tmux_scroll",
		Source:    "local.tmux",
		Data:      map[string]any{},
	}
	e1, err := Validate(r)
	if err != nil {
		t.Fatal(err)
	}
	e2, err := Validate(r)
	if err != nil {
		t.Fatal(err)
	}
	if e1.ID == "" {
		t.Fatal("expected a computed ID")
	}
	if e1.ID != e2.ID {
		t.Errorf("expected deterministic ID, got %q and %q", e1.ID, e2.ID)
	}
}

func TestValidate_TrustsGivenID(t *testing.T) {
	r := RawRecord{
		ID:        "peer-assigned-id",
		Timestamp: "2025-01-25T10:00:00Z",
		Type:      "tmux_scroll",
		Source:    "remote.tmux",
		Data:      map[string]any{},
	}
	e, err := Validate(r)
	if err != nil {
		t.Fatal(err)
	}
	if e.ID != "peer-assigned-id" {
		t.Errorf("expected trusted ID, got %q", e.ID)
	}
}

func TestInsertBatch_SkipsRejectedNeverFailsBatch(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()

	raw := []RawRecord{
		{Timestamp: "2025-01-25T10:00:00Z", Type: "tmux_scroll", Source: "s", Data: map[string]any{}},
		{Type: "tmux_scroll", Source: "s", Data: map[string]any{}}, // missing timestamp
		{Timestamp: "2025-01-25T10:00:01Z", Type: "tmux_scroll", Source: "s", Data: map[string]any{}},
	}

	res, err := InsertBatch(ctx, s, nil, raw)
	if err != nil {
		t.Fatalf("InsertBatch should not fail on a bad record: %v", err)
	}
	if res.Inserted != 2 {
		t.Errorf("expected 2 inserted, got %d", res.Inserted)
	}
	if res.Rejected != 1 {
		t.Errorf("expected 1 rejected, got %d", res.Rejected)
	}
}

func TestInsertBatch_DuplicateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()
	r := RawRecord{
		ID:        "fixed-id",
		Timestamp: "2025-01-25T10:00:00Z",
		Type:      "tmux_scroll",
		Source:    "s",
		Data:      map[string]any{},
	}

	res1, err := InsertBatch(ctx, s, nil, []RawRecord{r})
	if err != nil {
		t.Fatal(err)
	}
	if res1.Inserted != 1 {
		t.Fatalf("expected 1 inserted, got %d", res1.Inserted)
	}

	res2, err := InsertBatch(ctx, s, nil, []RawRecord{r})
	if err != nil {
		t.Fatal(err)
	}
	if res2.Duplicate != 1 || res2.Inserted != 0 {
		t.Fatalf("expected duplicate on re-insert, got %+v", res2)
	}

	from, err := time.Parse(time.RFC3339, "2025-01-25T10:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	all, err := s.Range(ctx, from, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one stored event, got %d", len(all))
	}
}

func TestInsertBatch_PublishesBusEvents(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()
	b := bus.NewBus(16)
	defer b.Close()

	ch, unsub := b.SubscribeChan(4, bus.EventIngested)
	defer unsub()

	_, err := InsertBatch(ctx, s, b, []RawRecord{
		{Timestamp: "2025-01-25T10:00:00Z", Type: "tmux_scroll", Source: "s", Data: map[string]any{}},
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-ch:
		if e.Type != bus.EventIngested {
			t.Errorf("expected EventIngested, got %s", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for published bus event")
	}
}
