package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ashureev/cosmic-journey/internal/domain"
	"github.com/ashureev/cosmic-journey/internal/flow"
	"github.com/ashureev/cosmic-journey/internal/session"
	"github.com/spf13/cobra"
)

// WalkOptions holds flags for the walk command.
type WalkOptions struct {
	*RootOptions
	Path    string
	Resume  string
	Verbose bool
}

// WalkResult is the outcome of a walk.
type WalkResult struct {
	SessionID     string                `json:"sessionId"`
	JourneyID     string                `json:"journeyId"`
	Screens       []domain.Screen       `json:"screens"`
	Constellation *domain.Constellation `json:"constellation"`
	Share         string                `json:"share"`
	Errors        []string              `json:"errors,omitempty"`
}

// NewWalkCommand creates the walk command.
func NewWalkCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WalkOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "walk",
		Short: "Walk a journey to the climactic screen",
		Long: `Walk drives a visitor session against the server: it looks the session
up, resumes from the stored screen when there is one, and advances through
journey, branch and climactic, persisting every step.`,
		Example: `  journeyctl walk --path reflection
  journeyctl walk --resume session_1717171717171_abc123xyz`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWalk(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Path, "path", string(domain.PathWonder), "path to choose at the branch (wonder|reflection)")
	cmd.Flags().StringVar(&opts.Resume, "resume", "", "resume an existing session id")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log persistence activity to stderr")
	return cmd
}

func runWalk(cmd *cobra.Command, opts *WalkOptions) error {
	path := domain.Path(opts.Path)
	if !path.Valid() {
		return &ExitError{Code: ExitCommandError, Message: fmt.Sprintf("unknown path %q", opts.Path)}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	logOut := io.Discard
	if opts.Verbose {
		logOut = cmd.ErrOrStderr()
	}

	var mu sync.Mutex
	var failures []string
	protoOpts := []session.Option{
		session.WithLogger(slog.New(slog.NewTextHandler(logOut, nil))),
		session.WithErrorHandler(func(op string, err error) {
			mu.Lock()
			defer mu.Unlock()
			failures = append(failures, op+": "+err.Error())
		}),
	}
	if opts.Resume != "" {
		protoOpts = append(protoOpts, session.WithSessionID(opts.Resume))
	}

	p := session.New(opts.Client(), protoOpts...)
	p.Start(ctx)
	defer func() { _ = p.Close() }()

	// Let the lookup settle so a resumed session starts from its stored screen.
	if err := p.Wait(ctx); err != nil {
		return WrapExitError("session lookup timed out", err)
	}

	result := WalkResult{Screens: []domain.Screen{p.State().Screen}}
	for p.State().Screen != domain.ScreenClimactic {
		tr, err := step(p, path)
		if err != nil {
			return WrapExitError("walk failed", err)
		}
		result.Screens = append(result.Screens, tr.Screen)
	}

	if err := p.Wait(ctx); err != nil {
		return WrapExitError("persistence did not finish", err)
	}

	state := p.State()
	result.SessionID = state.SessionID
	result.JourneyID = state.JourneyID
	result.Constellation = state.Constellation
	result.Share = flow.ShareText(state.Path)
	mu.Lock()
	result.Errors = failures
	mu.Unlock()

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		if err := writeJSON(out, result); err != nil {
			return err
		}
	} else {
		writeWalk(out, result)
	}

	if len(result.Errors) > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d persistence call(s) failed", len(result.Errors))}
	}
	return nil
}

func step(p *session.Protocol, path domain.Path) (flow.Transition, error) {
	switch p.State().Screen {
	case domain.ScreenLanding:
		return p.StartJourney()
	case domain.ScreenJourney:
		return p.SelectPath(path)
	default:
		return p.ContinueToClimax()
	}
}

func writeWalk(w io.Writer, r WalkResult) {
	for i, s := range r.Screens {
		if i == 0 {
			fmt.Fprintf(w, "%s", s.Label())
			continue
		}
		fmt.Fprintf(w, " -> %s", s.Label())
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "session: %s\n", r.SessionID)
	fmt.Fprintf(w, "journey: %s\n", r.JourneyID)
	if c := r.Constellation; c != nil {
		fmt.Fprintf(w, "constellation: %s\n  %s\n", c.Label, c.Description)
	}
	fmt.Fprintln(w, r.Share)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}
}
