package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/sjawhar/worklog/internal/bus"
	"github.com/sjawhar/worklog/internal/ingest"
)

// wireRecord is the JSON shape one line of `worklog ingest` input takes,
// mirroring the ingress contract in spec.md §6.
type wireRecord struct {
	ID        string         `json:"id,omitempty"`
	Timestamp string         `json:"timestamp"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Data      map[string]any `json:"data"`
	CWD       *string        `json:"cwd,omitempty"`
	SessionID *string        `json:"session_id,omitempty"`
}

// NewIngestCommand returns the ingest subcommand: reads newline-delimited
// JSON records from a file (or stdin with "-") and inserts them.
func NewIngestCommand() *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "Ingest newline-delimited JSON event records",
		ArgsUsage: "<file|->",
		Flags: []cli.Flag{
			dbFlag,
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Print each ingested/duplicate record as it's processed"},
		},
		Action: runIngest,
	}
}

func runIngest(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: worklog ingest <file|->")
	}

	var f *os.File
	if path == "-" {
		f = os.Stdin
	} else {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
	}

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	var raw []ingest.RawRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var wr wireRecord
		if err := json.Unmarshal(line, &wr); err != nil {
			fmt.Fprintf(os.Stderr, "line %d: skipping invalid JSON: %v\n", lineNo, err)
			continue
		}
		raw = append(raw, ingest.RawRecord{
			ID:        wr.ID,
			Timestamp: wr.Timestamp,
			Type:      wr.Type,
			Source:    wr.Source,
			Data:      wr.Data,
			CWD:       wr.CWD,
			SessionID: wr.SessionID,
		})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read records: %w", err)
	}

	// A real bus, not nil: InsertBatch publishes one notification per
	// processed record, and this command is itself a subscriber so
	// --verbose can tail them as they happen instead of only seeing the
	// final tally.
	b := bus.NewBus(64)
	defer b.Close()
	verbose := cmd.Bool("verbose")
	unsubscribe := b.Subscribe(func(e bus.Event) {
		if !verbose {
			return
		}
		switch e.Type {
		case bus.EventIngested:
			fmt.Printf("ingested %v (%v)\n", e.Payload["id"], e.Payload["type"])
		case bus.EventDuplicate:
			fmt.Printf("duplicate %v\n", e.Payload["id"])
		}
	})
	defer unsubscribe()

	res, err := ingest.InsertBatch(ctx, s, b, raw)
	if err != nil {
		return fmt.Errorf("ingest batch: %w", err)
	}

	fmt.Printf("inserted=%d duplicate=%d rejected=%d\n", res.Inserted, res.Duplicate, res.Rejected)
	return nil
}
