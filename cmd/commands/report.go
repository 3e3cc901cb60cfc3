package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/sjawhar/worklog/internal/attr"
	"github.com/sjawhar/worklog/internal/report"
)

// NewReportCommand returns the report subcommand: runs attribution over a
// window and prints totals grouped by tag (spec 4.G-4.H).
func NewReportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Report direct/delegated time by tag over a window",
		Flags: []cli.Flag{
			dbFlag,
			&cli.StringFlag{Name: "since", Usage: "Window start, RFC3339 (default: start of --period)"},
			&cli.StringFlag{Name: "until", Usage: "Window end, RFC3339 (default: now)"},
			&cli.StringFlag{Name: "period", Usage: "Named window: day, week, or sprint (default: config report.default_period)"},
			&cli.BoolFlag{Name: "json", Usage: "Print JSON instead of a table"},
		},
		Action: runReport,
	}
}

func runReport(ctx context.Context, cmd *cli.Command) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	now := time.Now()
	cfg := loadConfig(cmd)
	periodName := cfg.Report.DefaultPeriod
	if v := cmd.String("period"); v != "" {
		periodName = v
	}
	if periodName == "" {
		periodName = "day"
	}
	start, end, err := report.Period(periodName, now)
	if err != nil {
		return fmt.Errorf("resolve --period: %w", err)
	}
	if v := cmd.String("since"); v != "" {
		start, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("parse --since: %w", err)
		}
	}
	if v := cmd.String("until"); v != "" {
		end, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("parse --until: %w", err)
		}
	} else {
		end = now
	}

	totals, err := attr.Attribute(ctx, s, start, end, attr.Params{
		AttentionWindow: cfg.Attribution.AttentionWindow.Duration(),
		SessionTimeout:  cfg.Attribution.SessionTimeout.Duration(),
	})
	if err != nil {
		return fmt.Errorf("attribute: %w", err)
	}

	ids := make([]string, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	tags, err := s.GetStreamTags(ctx, ids)
	if err != nil {
		return fmt.Errorf("get stream tags: %w", err)
	}

	summary := report.ByTag(totals, tags)

	if cmd.Bool("json") {
		return json.NewEncoder(os.Stdout).Encode(summary)
	}
	return printReportTable(summary)
}

func printReportTable(s report.Summary) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tDIRECT\tDELEGATED\tSTREAMS")
	for _, g := range s.Groups {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", g.Tag, formatMs(g.DirectMs), formatMs(g.DelegatedMs), len(g.Streams))
	}
	fmt.Fprintf(w, "TOTAL\t%s\t%s\t\n", formatMs(s.TotalDirectMs), formatMs(s.TotalDelegatedMs))
	return w.Flush()
}

func formatMs(ms int64) string {
	return time.Duration(ms * int64(time.Millisecond)).Truncate(time.Second).String()
}
