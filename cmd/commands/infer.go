package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/sjawhar/worklog/internal/stream"
)

// NewInferCommand returns the infer subcommand: runs stream inference over
// all unassigned events (spec 4.C).
func NewInferCommand() *cli.Command {
	return &cli.Command{
		Name:   "infer",
		Usage:  "Cluster unassigned events into streams",
		Flags:  []cli.Flag{dbFlag},
		Action: runInfer,
	}
}

func runInfer(ctx context.Context, cmd *cli.Command) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	cfg := loadConfig(cmd)
	n, err := stream.Infer(ctx, s, stream.Options{GapThreshold: cfg.Inference.GapThreshold.Duration()})
	if err != nil {
		return fmt.Errorf("infer: %w", err)
	}

	fmt.Printf("assigned %d event(s)\n", n)
	return nil
}
