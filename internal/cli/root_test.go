package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ashureev/cosmic-journey/internal/api"
	"github.com/ashureev/cosmic-journey/internal/config"
	"github.com/ashureev/cosmic-journey/internal/domain"
	"github.com/ashureev/cosmic-journey/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	repo := store.NewMemory()
	r := chi.NewRouter()
	api.NewJourneyHandler(api.NewHandler(repo, nil, &config.Config{RecentLimitMax: 100})).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, repo
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "journeyctl", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"list", "get", "session", "walk", "share"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, "Command %s should exist", name)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	t.Setenv("JOURNEY_SERVER", "http://journeys.internal:9000")
	cmd := NewRootCommand()

	server := cmd.PersistentFlags().Lookup("server")
	require.NotNil(t, server)
	assert.Equal(t, "http://journeys.internal:9000", server.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "share", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestListCommand(t *testing.T) {
	srv, repo := newServer(t)
	ctx := context.Background()
	_, err := repo.CreateJourney(ctx, domain.NewJourney{SessionID: "session_a"})
	require.NoError(t, err)
	_, err = repo.CreateJourney(ctx, domain.NewJourney{SessionID: "session_b", SelectedPath: domain.PathPtr(domain.PathReflection)})
	require.NoError(t, err)

	out, err := execute(t, "list", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Total Journeys: 2")
	assert.Contains(t, out, "session_b")
	assert.Contains(t, out, "reflection")

	out, err = execute(t, "list", "--server", srv.URL, "--format", "json", "--limit", "1")
	require.NoError(t, err)
	var journeys []domain.Journey
	require.NoError(t, json.Unmarshal([]byte(out), &journeys))
	assert.Len(t, journeys, 1)
}

func TestGetAndSessionCommands(t *testing.T) {
	srv, repo := newServer(t)
	j, err := repo.CreateJourney(context.Background(), domain.NewJourney{SessionID: "session_a", CurrentScreen: domain.ScreenBranch})
	require.NoError(t, err)

	out, err := execute(t, "get", j.ID, "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Journey Started")
	assert.Contains(t, out, "branch")

	out, err = execute(t, "session", "session_a", "--server", srv.URL, "--format", "json")
	require.NoError(t, err)
	var got domain.Journey
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, j.ID, got.ID)

	_, err = execute(t, "session", "nobody", "--server", srv.URL)
	require.Error(t, err)
	assert.Equal(t, ExitNotFound, GetExitCode(err))
}

func TestWalkCommand(t *testing.T) {
	srv, repo := newServer(t)

	out, err := execute(t, "walk", "--server", srv.URL, "--path", "reflection", "--format", "json")
	require.NoError(t, err)

	var result WalkResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, []domain.Screen{
		domain.ScreenLanding, domain.ScreenJourney, domain.ScreenBranch, domain.ScreenClimactic,
	}, result.Screens)
	require.NotNil(t, result.Constellation)
	assert.Equal(t, "The Consciousness Debugger", result.Constellation.Label)
	assert.Contains(t, result.Share, "Path of Reflection")
	assert.Empty(t, result.Errors)

	j, err := repo.GetJourneyBySessionID(context.Background(), result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, result.JourneyID, j.ID)
	assert.Equal(t, domain.ScreenClimactic, j.CurrentScreen)
	assert.NotNil(t, j.CompletedAt)
}

func TestWalkCommandResumes(t *testing.T) {
	srv, repo := newServer(t)
	ctx := context.Background()
	seeded, err := repo.CreateJourney(ctx, domain.NewJourney{
		SessionID:     "session_resume",
		CurrentScreen: domain.ScreenBranch,
		SelectedPath:  domain.PathPtr(domain.PathWonder),
	})
	require.NoError(t, err)

	out, err := execute(t, "walk", "--server", srv.URL, "--resume", "session_resume")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Branch -> Climactic\n"), "unexpected output: %s", out)
	assert.Contains(t, out, "journey: "+seeded.ID)
	assert.Contains(t, out, "The Reality Hacker")

	all, err := repo.RecentJourneys(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestWalkCommandRejectsPath(t *testing.T) {
	_, err := execute(t, "walk", "--path", "sideways")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestShareCommand(t *testing.T) {
	out, err := execute(t, "share", "--path", "reflection")
	require.NoError(t, err)
	assert.Equal(t, "I just completed the Path of Reflection on my cosmic journey and discovered my unique constellation!\n", out)
}
