// Package daemonclient is an HTTP client for the local per-workstation
// Daemon IPC API (spec.md §4.3), used by the rift CLI to beam projects in
// and out without knowing how the Daemon is implemented. Grounded in the
// teacher's internal/coop.Client (functional Option constructor, typed
// error, getJSON/postJSON helpers over a single *http.Client).
package daemonclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to one Daemon's loopback IPC API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the default HTTP request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a daemon client for the Daemon listening at baseURL (e.g.
// "http://127.0.0.1:7525").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Status mirrors daemon.Status for the IPC /status and /beam responses.
type Status struct {
	ProjectID           string `json:"project_id"`
	RiftID              string `json:"rift_id"`
	LocalRoot           string `json:"local_root"`
	Connected           bool   `json:"connected"`
	CheckpointCount     int    `json:"checkpoint_count"`
	InitialSyncRequired bool   `json:"initial_sync_required"`
}

// Health reports whether the Daemon is reachable and healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.getJSON(ctx, "/health", nil)
}

// ListTracked returns the set of projects the Daemon currently tracks.
func (c *Client) ListTracked(ctx context.Context) ([]Status, error) {
	var out []Status
	if err := c.getJSON(ctx, "/status", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TrackedHistoryEntry mirrors daemonstate.TrackedEntry for the
// /status?previous=true response.
type TrackedHistoryEntry struct {
	ProjectID  string    `json:"project_id"`
	RiftID     string    `json:"rift_id"`
	LocalRoot  string    `json:"local_root"`
	LastBeamed time.Time `json:"last_beamed"`
}

// PreviouslyTracked returns the Daemon's tracked-project history, read
// from .rift/metadata.toml, regardless of whether those projects are
// currently tracked.
func (c *Client) PreviouslyTracked(ctx context.Context) ([]TrackedHistoryEntry, error) {
	var out []TrackedHistoryEntry
	if err := c.getJSON(ctx, "/status?previous=true", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Beam tells the Daemon to start tracking projectName's riftName (empty
// riftName defaults to "main") rooted at localRoot. The Daemon resolves
// both names against the Coordinator itself (spec.md §4.2).
func (c *Client) Beam(ctx context.Context, projectName, riftName, userID, localRoot string) (*Status, error) {
	req := map[string]string{
		"project_name": projectName,
		"rift_name":    riftName,
		"user_id":      userID,
		"local_root":   localRoot,
	}
	var out Status
	if err := c.postJSON(ctx, "/beam", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Disconnect tells the Daemon to stop tracking a project.
func (c *Client) Disconnect(ctx context.Context, projectID string) error {
	return c.postJSON(ctx, "/disconnect", map[string]string{"project_id": projectID}, nil)
}

// Shutdown asks the Daemon to disconnect every project and exit.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.postJSON(ctx, "/shutdown", nil, nil)
}

// Error is returned when the Daemon's IPC API responds with a failed
// envelope (internal/apierr.Envelope's wire shape).
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("daemon: %s (%d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("daemon: HTTP %d: %s", e.StatusCode, e.Message)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}
	return c.decodeData(resp, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("daemon: marshal: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon: POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}
	return c.decodeData(resp, out)
}

// envelope mirrors internal/apierr.Envelope's wire shape without importing
// the Coordinator-side package, since the Daemon's IPC responses use the
// same shape independently.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}

func (c *Client) decodeData(resp *http.Response, out any) error {
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("daemon: decode response: %w", err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("daemon: decode response data: %w", err)
	}
	return nil
}

func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	derr := &Error{StatusCode: resp.StatusCode}

	var env envelope
	if json.Unmarshal(body, &env) == nil && env.Error != "" {
		derr.Code = env.Code
		derr.Message = env.Error
	} else {
		derr.Message = strings.TrimSpace(string(body))
	}
	return derr
}
