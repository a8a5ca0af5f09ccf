// Package apiclient is an HTTP client for the journey API. It satisfies
// session.JourneyAPI.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/cosmic-journey/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Client talks to a journey server.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response. It unwraps to the matching domain error.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("journey api: %d %s", e.Status, e.Message)
}

// Unwrap maps the status code onto the domain error kinds.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrStaleUpdate
	case http.StatusBadRequest:
		return domain.ErrValidation
	default:
		return nil
	}
}

type createBody struct {
	SessionID         string                `json:"sessionId"`
	SelectedPath      *domain.Path          `json:"selectedPath,omitempty"`
	CurrentScreen     domain.Screen         `json:"currentScreen,omitempty"`
	CompletedAt       *time.Time            `json:"completedAt,omitempty"`
	ConstellationData *domain.Constellation `json:"constellationData,omitempty"`
}

type updateBody struct {
	SessionID         *string               `json:"sessionId,omitempty"`
	SelectedPath      *domain.Path          `json:"selectedPath,omitempty"`
	CurrentScreen     *domain.Screen        `json:"currentScreen,omitempty"`
	CompletedAt       *time.Time            `json:"completedAt,omitempty"`
	ConstellationData *domain.Constellation `json:"constellationData,omitempty"`
	Seq               int64                 `json:"seq,omitempty"`
}

// CreateJourney posts a new journey.
func (c *Client) CreateJourney(ctx context.Context, in domain.NewJourney) (*domain.Journey, error) {
	body := createBody{
		SessionID:         in.SessionID,
		SelectedPath:      in.SelectedPath,
		CurrentScreen:     in.CurrentScreen,
		CompletedAt:       in.CompletedAt,
		ConstellationData: in.ConstellationData,
	}
	var j domain.Journey
	if err := c.do(ctx, http.MethodPost, "/api/journeys", body, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// UpdateJourney sends a partial update.
func (c *Client) UpdateJourney(ctx context.Context, id string, upd domain.JourneyUpdate) (*domain.Journey, error) {
	body := updateBody{
		SessionID:         upd.SessionID,
		SelectedPath:      upd.SelectedPath,
		CurrentScreen:     upd.CurrentScreen,
		CompletedAt:       upd.CompletedAt,
		ConstellationData: upd.ConstellationData,
		Seq:               upd.Seq,
	}
	var j domain.Journey
	if err := c.do(ctx, http.MethodPut, "/api/journeys/"+url.PathEscape(id), body, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// GetJourney fetches a journey by id.
func (c *Client) GetJourney(ctx context.Context, id string) (*domain.Journey, error) {
	var j domain.Journey
	if err := c.do(ctx, http.MethodGet, "/api/journeys/"+url.PathEscape(id), nil, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// GetJourneyBySession fetches the journey recorded for sessionID.
func (c *Client) GetJourneyBySession(ctx context.Context, sessionID string) (*domain.Journey, error) {
	var j domain.Journey
	if err := c.do(ctx, http.MethodGet, "/api/journeys/session/"+url.PathEscape(sessionID), nil, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// ListRecent returns up to limit journeys, newest first. A non-positive
// limit leaves the choice to the server.
func (c *Client) ListRecent(ctx context.Context, limit int) ([]*domain.Journey, error) {
	path := "/api/journeys"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []*domain.Journey
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
