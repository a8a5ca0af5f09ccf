package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/ashureev/cosmic-journey/internal/domain"
	"github.com/spf13/cobra"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Limit int
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent journeys, newest first",
		Example: `  journeyctl list
  journeyctl list --limit 50 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 10, "maximum number of journeys")
	return cmd
}

func runList(cmd *cobra.Command, opts *ListOptions) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	journeys, err := opts.Client().ListRecent(ctx, opts.Limit)
	if err != nil {
		return WrapExitError("failed to list journeys", err)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(out, journeys)
	}

	fmt.Fprintf(out, "Total Journeys: %d\n", len(journeys))
	if len(journeys) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSESSION\tSCREEN\tPATH\tCREATED\tCOMPLETED")
	for _, j := range journeys {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			j.ID, j.SessionID, j.CurrentScreen, pathName(j.SelectedPath),
			formatTime(&j.CreatedAt), formatTime(j.CompletedAt))
	}
	return tw.Flush()
}

// NewGetCommand creates the get command.
func NewGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <journey-id>",
		Short: "Show one journey by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showJourney(cmd, opts, func(ctx context.Context) (*domain.Journey, error) {
				return opts.Client().GetJourney(ctx, args[0])
			})
		},
	}
}

// NewSessionCommand creates the session command.
func NewSessionCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "session <session-id>",
		Short: "Show the journey recorded for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showJourney(cmd, opts, func(ctx context.Context) (*domain.Journey, error) {
				return opts.Client().GetJourneyBySession(ctx, args[0])
			})
		},
	}
}

func showJourney(cmd *cobra.Command, opts *RootOptions, fetch func(context.Context) (*domain.Journey, error)) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	j, err := fetch(ctx)
	if err != nil {
		return WrapExitError("failed to fetch journey", err)
	}
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), j)
	}
	writeJourney(cmd.OutOrStdout(), j)
	return nil
}
