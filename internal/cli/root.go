// Package cli implements journeyctl, the operator CLI for a journey server.
package cli

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/ashureev/cosmic-journey/internal/apiclient"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server  string
	Format  string // "json" | "text"
	Timeout time.Duration
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Client returns an API client for the configured server.
func (o *RootOptions) Client() *apiclient.Client {
	return apiclient.New(o.Server)
}

func defaultServer() string {
	if s := os.Getenv("JOURNEY_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCommand creates the root command for journeyctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "journeyctl",
		Short: "Inspect and drive a Cosmic Journey server",
		Long:  "journeyctl lists recorded journeys, looks up sessions and walks a journey end to end against a running server.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", defaultServer(), "journey server base URL (env JOURNEY_SERVER)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "overall request timeout")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewSessionCommand(opts))
	cmd.AddCommand(NewWalkCommand(opts))
	cmd.AddCommand(NewShareCommand(opts))

	return cmd
}
