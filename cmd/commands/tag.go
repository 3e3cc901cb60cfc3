package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/sjawhar/worklog/internal/store"
)

// NewTagCommand returns the tag subcommand tree (spec.md §6.3, supplemented
// per SPEC_FULL §12: tag CRUD lives at the store layer; LLM-based
// suggestion is out of scope).
func NewTagCommand() *cli.Command {
	return &cli.Command{
		Name:  "tag",
		Usage: "Manage stream tags",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a tag to a stream",
				ArgsUsage: "<stream-prefix> <tag>",
				Flags:     []cli.Flag{dbFlag},
				Action:    runTagAdd,
			},
			{
				Name:      "remove",
				Usage:     "Remove a tag from a stream",
				ArgsUsage: "<stream-prefix> <tag>",
				Flags:     []cli.Flag{dbFlag},
				Action:    runTagRemove,
			},
			{
				Name:   "top",
				Usage:  "Show the most-used tags",
				Flags:  []cli.Flag{dbFlag, &cli.IntFlag{Name: "limit", Value: 10}},
				Action: runTagTop,
			},
			{
				Name:   "untagged",
				Usage:  "List streams with no tags",
				Flags:  []cli.Flag{dbFlag},
				Action: runTagUntagged,
			},
		},
	}
}

func resolveStream(ctx context.Context, s *store.SQLiteStore, prefix string) (*store.Stream, error) {
	st, err := s.GetStreamByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("resolve stream %q: %w", prefix, err)
	}
	return st, nil
}

func runTagAdd(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args()
	if args.Len() != 2 {
		return fmt.Errorf("usage: worklog tag add <stream-prefix> <tag>")
	}

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := resolveStream(ctx, s, args.Get(0))
	if err != nil {
		return err
	}

	added, err := s.AddTag(ctx, st.ID, args.Get(1))
	if err != nil {
		return fmt.Errorf("add tag: %w", err)
	}
	if added {
		fmt.Printf("tagged %s with %q\n", st.ID, args.Get(1))
	} else {
		fmt.Printf("%s already tagged %q\n", st.ID, args.Get(1))
	}
	return nil
}

func runTagRemove(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args()
	if args.Len() != 2 {
		return fmt.Errorf("usage: worklog tag remove <stream-prefix> <tag>")
	}

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := resolveStream(ctx, s, args.Get(0))
	if err != nil {
		return err
	}

	removed, err := s.RemoveTag(ctx, st.ID, args.Get(1))
	if err != nil {
		return fmt.Errorf("remove tag: %w", err)
	}
	if removed {
		fmt.Printf("removed %q from %s\n", args.Get(1), st.ID)
	} else {
		fmt.Printf("%s was not tagged %q\n", st.ID, args.Get(1))
	}
	return nil
}

func runTagTop(ctx context.Context, cmd *cli.Command) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	counts, err := s.GetTopTags(ctx, int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("get top tags: %w", err)
	}

	if len(counts) == 0 {
		fmt.Println("No tags found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tSTREAMS")
	for _, c := range counts {
		fmt.Fprintf(w, "%s\t%d\n", c.Tag, c.Count)
	}
	return w.Flush()
}

func runTagUntagged(ctx context.Context, cmd *cli.Command) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	streams, err := s.GetUntaggedStreams(ctx)
	if err != nil {
		return fmt.Errorf("get untagged streams: %w", err)
	}

	if len(streams) == 0 {
		fmt.Println("No untagged streams.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCREATED")
	for _, st := range streams {
		fmt.Fprintf(w, "%s\t%s\t%s\n", st.ID, st.Name, st.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
