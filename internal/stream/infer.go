// Package stream implements stream inference (spec 4.C): clustering
// unassigned events into streams by normalized working directory and
// temporal adjacency.
package stream

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sjawhar/worklog/internal/events"
	"github.com/sjawhar/worklog/internal/store"
)

// DefaultGapThreshold is the maximum gap between successive same-cwd events
// that still keeps them in the same cluster.
const DefaultGapThreshold = 30 * time.Minute

// Options configures a single inference run.
type Options struct {
	// GapThreshold is the maximum gap kept within one cluster. A gap
	// strictly greater starts a new cluster; a gap exactly equal to the
	// threshold keeps events together. Zero means DefaultGapThreshold.
	GapThreshold time.Duration
}

// Infer partitions all unassigned events into clusters by normalized cwd
// and temporal adjacency, creates one stream per cluster, and assigns every
// event in the cluster to it. It returns the number of events assigned.
//
// The whole operation runs inside one transaction (store 4.B/5): on any
// failure, no streams are created and no events are reassigned.
func Infer(ctx context.Context, s store.EventStore, opts Options) (int, error) {
	gap := opts.GapThreshold
	if gap <= 0 {
		gap = DefaultGapThreshold
	}

	unassigned, err := s.Unassigned(ctx)
	if err != nil {
		return 0, fmt.Errorf("load unassigned events: %w", err)
	}
	if len(unassigned) == 0 {
		return 0, nil
	}

	clusters := cluster(unassigned, gap)

	assigned := 0
	err = s.WithTx(ctx, func(tx store.EventStore) error {
		for _, c := range clusters {
			streamID, err := tx.CreateStream(ctx, c.name)
			if err != nil {
				return fmt.Errorf("create stream for %q: %w", c.name, err)
			}
			ids := make([]string, len(c.events))
			for i, e := range c.events {
				ids[i] = e.ID
			}
			if err := tx.Assign(ctx, ids, streamID); err != nil {
				return fmt.Errorf("assign cluster to %s: %w", streamID, err)
			}
			assigned += len(ids)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return assigned, nil
}

type eventCluster struct {
	name   string
	events []events.Event
}

// cluster groups events by normalized cwd (4.C.1-2), then within each
// group walks them in timestamp order splitting into maximal clusters
// where successive events differ by at most gap (4.C.3).
func cluster(unassigned []events.Event, gap time.Duration) []eventCluster {
	byCWD := map[string][]events.Event{}
	order := []string{}
	for _, e := range unassigned {
		key := events.NormalizeCWD(e.CWD)
		if _, seen := byCWD[key]; !seen {
			order = append(order, key)
		}
		byCWD[key] = append(byCWD[key], e)
	}

	var out []eventCluster
	for _, key := range order {
		group := byCWD[key]
		sort.Slice(group, func(i, j int) bool { return group[i].Less(group[j]) })

		name := events.StreamName(key)
		start := 0
		for i := 1; i <= len(group); i++ {
			if i < len(group) && group[i].Timestamp.Sub(group[i-1].Timestamp) <= gap {
				continue
			}
			out = append(out, eventCluster{name: name, events: append([]events.Event(nil), group[start:i]...)})
			start = i
		}
	}
	return out
}
