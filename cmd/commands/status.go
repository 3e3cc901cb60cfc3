package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/sjawhar/worklog/internal/bus"
	"github.com/sjawhar/worklog/internal/config"
	"github.com/sjawhar/worklog/internal/events"
	"github.com/sjawhar/worklog/internal/heartbeat"
	"github.com/sjawhar/worklog/internal/store"
)

// NewStatusCommand returns the status subcommand: a point-in-time snapshot
// of the `worklog watch` loop's liveness plus the last event seen per
// source, for a quick "is this still tracking me" check.
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show watch-loop liveness and last activity per source",
		Flags: []cli.Flag{
			dbFlag,
			&cli.BoolFlag{Name: "follow", Aliases: []string{"f"}, Usage: "Keep running, printing activity as it's detected"},
		},
		Action: runStatus,
	}
}

func runStatus(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("follow") {
		return runStatusFollow(ctx, cmd)
	}
	status, hb, err := heartbeat.Check(config.HeartbeatPath(), 2*time.Minute)
	if err != nil {
		return fmt.Errorf("check heartbeat: %w", err)
	}

	switch status {
	case heartbeat.StatusAlive:
		fmt.Printf("watch: ALIVE (pid %d, uptime %s)\n", hb.PID, hb.Uptime)
	case heartbeat.StatusStale:
		fmt.Printf("watch: STALE (pid %d, last heartbeat %s ago)\n",
			hb.PID, time.Since(hb.Timestamp).Truncate(time.Second))
	case heartbeat.StatusDead:
		fmt.Println("watch: NOT RUNNING")
	}

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	last, err := s.LastEventPerSource(ctx)
	if err != nil {
		return fmt.Errorf("last event per source: %w", err)
	}
	if len(last) == 0 {
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tLAST EVENT\tTYPE")
	for source, e := range last {
		fmt.Fprintf(w, "%s\t%s\t%s\n", source, e.Timestamp.Format("2006-01-02 15:04:05"), e.Type)
	}
	return w.Flush()
}

// runStatusFollow is the live status panel promised by SPEC_FULL §2/§11: it
// has no IPC into a separate `worklog watch` process, so it detects new
// activity itself by polling LastEventPerSource and republishes anything
// new onto a local bus, which is what it actually renders from. This keeps
// "notice new activity" and "print it" decoupled through the same
// Subscribe/SubscribeChan surface the rest of worklog uses, rather than
// printing directly from the poll loop.
func runStatusFollow(ctx context.Context, cmd *cli.Command) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	b := bus.NewBus(64)
	defer b.Close()

	ch, unsubscribe := b.SubscribeChan(64, bus.EventIngested)
	defer unsubscribe()

	seen, err := primeSeen(ctx, s)
	if err != nil {
		return fmt.Errorf("last event per source: %w", err)
	}
	for source, ts := range seen {
		fmt.Printf("%s  %-20s last seen\n", ts.Format("2006-01-02 15:04:05"), source)
	}

	fmt.Println("watching for new activity, ctrl-c to stop...")

	poll := time.NewTicker(2 * time.Second)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-ch:
			source, _ := e.Payload["source"].(string)
			typ, _ := e.Payload["type"].(string)
			fmt.Printf("%s  %-20s %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), source, typ)
		case <-poll.C:
			last, err := s.LastEventPerSource(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "status --follow: poll failed: %v\n", err)
				continue
			}
			publishNewActivity(b, seen, last)
		}
	}
}

// primeSeen seeds the follow loop's baseline so the first poll only reports
// activity that lands after the command starts, not the whole history.
func primeSeen(ctx context.Context, s *store.SQLiteStore) (map[string]time.Time, error) {
	last, err := s.LastEventPerSource(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]time.Time, len(last))
	for source, e := range last {
		seen[source] = e.Timestamp
	}
	return seen, nil
}

// publishNewActivity diffs a freshly polled per-source snapshot against the
// baseline in seen, publishing (and recording) one bus event per source
// whose latest timestamp advanced.
func publishNewActivity(b *bus.Bus, seen map[string]time.Time, last map[string]events.Event) {
	for source, e := range last {
		if prev, ok := seen[source]; ok && !e.Timestamp.After(prev) {
			continue
		}
		seen[source] = e.Timestamp
		ev := bus.NewEvent(bus.EventIngested, map[string]any{
			"source": source,
			"type":   string(e.Type),
		})
		ev.Timestamp = e.Timestamp
		b.Publish(ev)
	}
}
