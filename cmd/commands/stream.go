package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
)

// NewStreamCommand returns the stream subcommand tree.
func NewStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "stream",
		Usage: "Inspect streams",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List all streams",
				Flags:  []cli.Flag{dbFlag},
				Action: runStreamList,
			},
			{
				Name:      "show",
				Usage:     "Show a stream's details and tags",
				ArgsUsage: "<stream-prefix>",
				Flags:     []cli.Flag{dbFlag},
				Action:    runStreamShow,
			},
		},
		DefaultCommand: "list",
	}
}

func runStreamList(ctx context.Context, cmd *cli.Command) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	streams, err := s.GetStreams(ctx)
	if err != nil {
		return fmt.Errorf("get streams: %w", err)
	}
	if len(streams) == 0 {
		fmt.Println("No streams found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDIRECT\tDELEGATED\tUPDATED")
	for _, st := range streams {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			st.ID[:8], st.Name, formatMs(st.TimeDirectMs), formatMs(st.TimeDelegatedMs),
			st.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runStreamShow(ctx context.Context, cmd *cli.Command) error {
	prefix := cmd.Args().First()
	if prefix == "" {
		return fmt.Errorf("usage: worklog stream show <stream-prefix>")
	}

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := resolveStream(ctx, s, prefix)
	if err != nil {
		return err
	}

	tags, err := s.GetStreamTags(ctx, []string{st.ID})
	if err != nil {
		return fmt.Errorf("get stream tags: %w", err)
	}

	fmt.Printf("ID:        %s\n", st.ID)
	fmt.Printf("Name:      %s\n", st.Name)
	fmt.Printf("Created:   %s\n", st.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated:   %s\n", st.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Direct:    %s\n", formatMs(st.TimeDirectMs))
	fmt.Printf("Delegated: %s\n", formatMs(st.TimeDelegatedMs))
	fmt.Printf("Tags:      %s\n", strings.Join(tags[st.ID], ", "))
	return nil
}
