package cli

import (
	"fmt"

	"github.com/ashureev/cosmic-journey/internal/domain"
	"github.com/ashureev/cosmic-journey/internal/flow"
	"github.com/spf13/cobra"
)

// NewShareCommand creates the share command.
func NewShareCommand(opts *RootOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "share",
		Short: "Print the share message for a completed path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := domain.Path(path)
			if !p.Valid() {
				return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("unknown path %q", path)}
			}
			text := flow.ShareText(&p)
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"path": path, "text": text})
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", string(domain.PathWonder), "completed path (wonder|reflection)")
	return cmd
}
