package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ashureev/cosmic-journey/internal/domain"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // server reachable but the request failed
	ExitCommandError = 2 // bad input or server unreachable
	ExitNotFound     = 3
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps err with an exit code picked from its kind.
func WrapExitError(message string, err error) *ExitError {
	code := ExitFailure
	if errors.Is(err, domain.ErrNotFound) {
		code = ExitNotFound
	} else if errors.Is(err, domain.ErrValidation) {
		code = ExitCommandError
	}
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func pathName(p *domain.Path) string {
	if p == nil {
		return "-"
	}
	return string(*p)
}

// writeJourney prints one journey as indented key/value lines.
func writeJourney(w io.Writer, j *domain.Journey) {
	fmt.Fprintf(w, "%s\n", j.Title())
	fmt.Fprintf(w, "  id:         %s\n", j.ID)
	fmt.Fprintf(w, "  session:    %s\n", j.SessionID)
	fmt.Fprintf(w, "  screen:     %s\n", j.CurrentScreen)
	fmt.Fprintf(w, "  path:       %s\n", pathName(j.SelectedPath))
	fmt.Fprintf(w, "  created:    %s\n", formatTime(&j.CreatedAt))
	fmt.Fprintf(w, "  updated:    %s\n", formatTime(&j.UpdatedAt))
	fmt.Fprintf(w, "  completed:  %s\n", formatTime(j.CompletedAt))
	if c := j.ConstellationData; c != nil {
		fmt.Fprintf(w, "  stars:      %s (%d points, %d connections)\n", c.Label, len(c.Points), len(c.Connections))
	}
}
