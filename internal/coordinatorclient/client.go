// Package coordinatorclient is an HTTP client for the Coordinator's REST
// API (spec.md §6), used by the rift CLI for everything that isn't routed
// through the local Daemon: auth, project and rift management, history.
// Shares the teacher-grounded shape of internal/daemonclient (itself
// grounded in internal/coop.Client): functional Option constructor, typed
// error, getJSON/postJSON helpers.
package coordinatorclient

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

	"github.com/riftsync/rift/internal/model"
	"github.com/riftsync/rift/internal/store"
)

// Client talks to one Coordinator's REST API.
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

// New creates a client for the Coordinator at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// VerifyAuth exchanges a username/email pair for the registered (or
// newly-registered) model.User, standing in for the OAuth/JWT flow
// spec.md explicitly leaves out of scope (§8 Non-goals).
func (c *Client) VerifyAuth(ctx context.Context, username, email string) (model.User, error) {
	var out model.User
	err := c.postJSON(ctx, "/auth/verify", map[string]string{"username": username, "email": email}, &out)
	return out, err
}

// CreateProjectResult mirrors handleCreateProject's response shape.
type CreateProjectResult struct {
	Project  model.Project `json:"project"`
	MainRift model.Rift    `json:"main_rift"`
}

func (c *Client) CreateProject(ctx context.Context, name, description, ownerUserID string) (CreateProjectResult, error) {
	var out CreateProjectResult
	err := c.postJSON(ctx, "/projects", map[string]string{
		"name": name, "description": description, "owner_user_id": ownerUserID,
	}, &out)
	return out, err
}

func (c *Client) ListProjects(ctx context.Context, userID string, includeInactive bool) ([]model.Project, error) {
	q := url.Values{"user_id": {userID}}
	if includeInactive {
		q.Set("include_inactive", "true")
	}
	var out []model.Project
	err := c.getJSON(ctx, "/projects?"+q.Encode(), &out)
	return out, err
}

func (c *Client) ListRifts(ctx context.Context, projectID string) ([]model.Rift, error) {
	var out []model.Rift
	err := c.getJSON(ctx, "/projects/"+url.PathEscape(projectID)+"/rifts", &out)
	return out, err
}

func (c *Client) CreateRift(ctx context.Context, projectID, name, parentRiftID string) (model.Rift, error) {
	var out model.Rift
	err := c.postJSON(ctx, "/projects/"+url.PathEscape(projectID)+"/rifts", map[string]string{
		"name": name, "parent_rift_id": parentRiftID,
	}, &out)
	return out, err
}

func (c *Client) SwitchRift(ctx context.Context, riftID, userID string) error {
	q := url.Values{"user_id": {userID}}
	return c.postJSON(ctx, "/rifts/"+url.PathEscape(riftID)+"/switch?"+q.Encode(), nil, nil)
}

func (c *Client) RiftState(ctx context.Context, riftID string) (store.RiftState, error) {
	var out store.RiftState
	err := c.getJSON(ctx, "/rifts/"+url.PathEscape(riftID)+"/state", &out)
	return out, err
}

func (c *Client) RiftHistory(ctx context.Context, riftID string, limit int) ([]model.Checkpoint, error) {
	path := "/rifts/" + url.PathEscape(riftID) + "/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []model.Checkpoint
	err := c.getJSON(ctx, path, &out)
	return out, err
}

// Error is returned when the Coordinator responds with a failed envelope.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("coordinator: %s (%d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("coordinator: HTTP %d: %s", e.StatusCode, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
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
		return fmt.Errorf("coordinator: GET %s: %w", path, err)
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
			return fmt.Errorf("coordinator: marshal: %w", err)
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
		return fmt.Errorf("coordinator: POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}
	return c.decodeData(resp, out)
}

func (c *Client) decodeData(resp *http.Response, out any) error {
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("coordinator: decode response: %w", err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("coordinator: decode response data: %w", err)
	}
	return nil
}

func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	cerr := &Error{StatusCode: resp.StatusCode}

	var env envelope
	if json.Unmarshal(body, &env) == nil && env.Error != "" {
		cerr.Code = env.Code
		cerr.Message = env.Error
	} else {
		cerr.Message = strings.TrimSpace(string(body))
	}
	return cerr
}
