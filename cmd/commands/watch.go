package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/sjawhar/worklog/internal/bus"
	"github.com/sjawhar/worklog/internal/config"
	"github.com/sjawhar/worklog/internal/heartbeat"
	"github.com/sjawhar/worklog/internal/scheduler"
	"github.com/sjawhar/worklog/internal/store"
	"github.com/sjawhar/worklog/internal/stream"
)

// NewWatchCommand returns the watch subcommand: a long-running loop that
// periodically re-runs stream inference on a cron schedule, writing a
// heartbeat file status can check and publishing bus notifications for
// anything observing live activity (SPEC_FULL §11).
func NewWatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Periodically cluster unassigned events into streams",
		Flags: []cli.Flag{
			dbFlag,
			&cli.StringFlag{Name: "every", Usage: "Cron expression for re-inference cadence (default: config watch.cron)"},
		},
		Action: runWatch,
	}
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	cfg := loadConfig(cmd)
	everyOverride := cmd.String("every")
	sched, gap, err := watchSchedule(cfg, everyOverride)
	if err != nil {
		return fmt.Errorf("parse --every: %w", err)
	}

	// Reloader lets a running watch loop pick up an edited config (cron
	// cadence, gap threshold) without restarting, mirroring the teacher's
	// reload-on-signal pattern. Reload() is only ever called from this
	// function's own select loop below, so the sched/gap closures it
	// mutates need no extra synchronization.
	reloader := config.NewReloader(cmd.String("config"), config.DotenvPath(), cfg)
	reloader.OnReload(func(newCfg *config.Config) {
		newSched, newGap, err := watchSchedule(newCfg, everyOverride)
		if err != nil {
			slog.Warn("watch: reloaded config has invalid cron, keeping previous schedule", "error", err)
			return
		}
		sched, gap = newSched, newGap
		slog.Info("watch: config reloaded", "cron", sched.String(), "gap_threshold", gap)
	})

	b := bus.NewBus(64)
	defer b.Close()

	hb := heartbeat.NewWriter(config.HeartbeatPath())
	hb.Start()
	defer hb.Stop()

	slog.Info("watch started", "cron", sched.String())

	tick := time.NewTicker(heartbeatPollInterval(cfg))
	defer tick.Stop()

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)

	lastFired := time.Time{}
	for {
		select {
		case <-ctx.Done():
			slog.Info("watch stopped")
			return nil
		case <-reload:
			if err := reloader.Reload(); err != nil {
				slog.Warn("watch: config reload failed", "error", err)
			}
		case now := <-tick.C:
			if !sched.Matches(now) || now.Truncate(time.Minute).Equal(lastFired) {
				continue
			}
			lastFired = now.Truncate(time.Minute)
			runOnce(ctx, s, b, gap)
		}
	}
}

// watchSchedule resolves the cron schedule and gap threshold a watch loop
// should use: the --every flag always wins over config.Watch.Cron, so a
// config reload never silently overrides an explicit command-line cadence.
func watchSchedule(cfg *config.Config, everyOverride string) (*scheduler.CronExpr, time.Duration, error) {
	cronExpr := cfg.Watch.Cron
	if everyOverride != "" {
		cronExpr = everyOverride
	}
	sched, err := scheduler.ParseCron(cronExpr)
	if err != nil {
		return nil, 0, err
	}
	return sched, cfg.Inference.GapThreshold.Duration(), nil
}

func runOnce(ctx context.Context, s *store.SQLiteStore, b *bus.Bus, gap time.Duration) {
	n, err := stream.Infer(ctx, s, stream.Options{GapThreshold: gap})
	payload := map[string]any{"assigned": n}
	if err != nil {
		slog.Error("inference run failed", "error", err)
		payload["error"] = err.Error()
	} else {
		slog.Info("inference run complete", "assigned", n)
	}
	b.Publish(bus.NewEvent(bus.EventStreamsInferred, payload))
}

// heartbeatPollInterval bounds how often the watch loop wakes to check the
// cron schedule; it never needs to be coarser than a minute, since cron
// expressions are minute-granular.
func heartbeatPollInterval(cfg *config.Config) time.Duration {
	if d := cfg.Watch.HeartbeatInterval.Duration(); d > 0 && d < time.Minute {
		return d
	}
	return 30 * time.Second
}
