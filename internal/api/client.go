package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/muurk/voxsync/internal/logging"
	"github.com/muurk/voxsync/internal/version"
)

const (
	// DefaultBaseURL is where the backend listens out of the box
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout bounds every request. The backend answers from memory, so a
	// slow reply means a stuck backend rather than a slow one.
	DefaultTimeout = 5 * time.Second

	// RequestIDHeader carries the per-call correlation ID
	RequestIDHeader = "X-Request-ID"

	// maxErrorBody caps how much of an error response is read into messages
	maxErrorBody = 4096
)

// Client is a stateless client for the backend configuration API.
// Every method maps to exactly one HTTP round trip. Nothing is retried.
type Client struct {
	// BaseURL is the backend root (e.g., "http://localhost:8000")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client
}

// NewClient creates a client for the backend at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// SetTimeout sets the per-request timeout. Zero disables it.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// Ping checks that the backend root answers
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/", nil, nil)
}

// ListDevices returns the audio devices the backend can open
func (c *Client) ListDevices(ctx context.Context) ([]AudioDevice, error) {
	var devices []AudioDevice
	if err := c.do(ctx, http.MethodGet, "/devices", nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// profileList is the body of GET /profiles
type profileList struct {
	Profiles []string `json:"profiles"`
}

// ListProfiles returns the names of every stored profile in backend order
func (c *Client) ListProfiles(ctx context.Context) ([]string, error) {
	var resp profileList
	if err := c.do(ctx, http.MethodGet, "/profiles", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Profiles == nil {
		return []string{}, nil
	}
	return resp.Profiles, nil
}

// GetProfile fetches a stored profile by name
func (c *Client) GetProfile(ctx context.Context, name string) (Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, profilePath(name), nil, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// saveProfileRequest is the body of POST /profiles
type saveProfileRequest struct {
	Profile Profile `json:"profile"`
}

// SaveProfile stores a profile under its name, replacing any existing one
func (c *Client) SaveProfile(ctx context.Context, p Profile) error {
	return c.do(ctx, http.MethodPost, "/profiles", saveProfileRequest{Profile: p.Clamped()}, nil)
}

// DeleteProfile removes a stored profile.
// The backend decides what is protected; a refusal is returned as a
// protected-resource error.
func (c *Client) DeleteProfile(ctx context.Context, name string) error {
	err := c.do(ctx, http.MethodDelete, profilePath(name), nil, nil)
	if err == nil {
		return nil
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return err
	}
	if isProtectedRejection(apiErr, name) {
		protected := NewProtectedError(apiErr.Op, name, apiErr.StatusCode)
		protected.RequestID = apiErr.RequestID
		return protected
	}
	return err
}

// UpdateConfig replaces the backend audio configuration
func (c *Client) UpdateConfig(ctx context.Context, cfg Config) error {
	return c.do(ctx, http.MethodPost, "/config", cfg, nil)
}

// ApplyProfile makes p the profile the audio engine runs with
func (c *Client) ApplyProfile(ctx context.Context, p Profile) error {
	return c.do(ctx, http.MethodPost, "/profile/apply", p.Clamped(), nil)
}

// GetStatus polls the current backend status
func (c *Client) GetStatus(ctx context.Context) (StatusSnapshot, error) {
	var s StatusSnapshot
	if err := c.do(ctx, http.MethodGet, "/status", nil, &s); err != nil {
		return StatusSnapshot{}, err
	}
	return s, nil
}

// errorBody is the error shape returned by the backend
type errorBody struct {
	Detail    string `json:"detail"`
	Protected bool   `json:"protected"`
}

// do performs a single round trip. body is JSON encoded when non-nil and the
// response is decoded into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	op := method + " " + path
	requestID := uuid.NewString()
	start := time.Now()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return NewParseError(op, "failed to encode request body", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return NewTransportError(op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		apiErr := NewTransportError(op, err)
		apiErr.RequestID = requestID
		logging.LogRequest(requestID, method, path, 0, time.Since(start), apiErr)
		return apiErr
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := statusError(op, resp)
		apiErr.RequestID = requestID
		logging.LogRequest(requestID, method, path, resp.StatusCode, time.Since(start), apiErr)
		return apiErr
	}

	if out != nil {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			apiErr := NewTransportError(op, err)
			apiErr.RequestID = requestID
			logging.LogRequest(requestID, method, path, resp.StatusCode, time.Since(start), apiErr)
			return apiErr
		}
		if err := json.Unmarshal(data, out); err != nil {
			apiErr := NewParseError(op, "failed to parse JSON response", err)
			apiErr.RequestID = requestID
			logging.LogRequest(requestID, method, path, resp.StatusCode, time.Since(start), apiErr)
			return apiErr
		}
	} else {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	}

	logging.LogRequest(requestID, method, path, resp.StatusCode, time.Since(start), nil)
	return nil
}

// statusError converts a non-2xx response into an *Error
func statusError(op string, resp *http.Response) *Error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var eb errorBody
	_ = json.Unmarshal(data, &eb)
	message := eb.Detail
	if message == "" {
		message = strings.TrimSpace(string(data))
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	var e *Error
	if resp.StatusCode == http.StatusNotFound {
		e = NewNotFoundError(op, message)
	} else {
		e = NewHTTPError(op, resp.StatusCode, message)
	}
	if eb.Protected {
		e.Kind = KindProtected
	}
	return e
}

// isProtectedRejection reports whether a failed DELETE of name was a policy
// refusal. The explicit protected flag and the policy status codes are
// authoritative. The last case covers backends that answer 404 with a detail
// saying default profiles are protected; the profile name is removed from the
// detail first so it cannot match by itself.
func isProtectedRejection(e *Error, name string) bool {
	if e.Kind == KindProtected {
		return true
	}
	switch e.StatusCode {
	case http.StatusForbidden, http.StatusConflict, http.StatusLocked:
		return true
	case http.StatusNotFound:
		detail := strings.ReplaceAll(e.Message, name, "")
		return strings.Contains(strings.ToLower(detail), "protected")
	}
	return false
}

func profilePath(name string) string {
	return "/profiles/" + url.PathEscape(name)
}
