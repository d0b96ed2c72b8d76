package lalal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	defaultBaseURL      = "https://www.lalal.ai"
	defaultPollInterval = 5 * time.Second
	defaultPollTimeout  = 10 * time.Minute
	defaultHTTPTimeout  = 2 * time.Minute

	// MaxUploadBytes is the service's upload size cap.
	MaxUploadBytes = 100 * 1024 * 1024
)

// Client wraps the LALAL.AI split API.
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithPollInterval sets how often task status is checked.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithPollTimeout caps how long to wait for a split task to settle.
func WithPollTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.pollTimeout = timeout
		}
	}
}

// WithUploadTimeout bounds individual HTTP calls, uploads included.
func WithUploadTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient constructs a LALAL.AI API client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:       strings.TrimSpace(apiKey),
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
		pollInterval: defaultPollInterval,
		pollTimeout:  defaultPollTimeout,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type uploadResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
	Error  string `json:"error"`
}

// Upload streams a source file to the service and returns its file id.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("lalal upload: open source: %w", err)
	}
	defer file.Close()

	endpoint, err := url.JoinPath(c.baseURL, "/api/upload/")
	if err != nil {
		return "", fmt.Errorf("lalal upload: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, file)
	if err != nil {
		return "", fmt.Errorf("lalal upload: request: %w", err)
	}
	req.Header.Set("Authorization", "license "+c.apiKey)
	req.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileBase(path)))

	var payload uploadResponse
	if err := c.do(req, &payload); err != nil {
		return "", fmt.Errorf("lalal upload: %w", err)
	}
	if payload.Status != "success" || payload.ID == "" {
		return "", fmt.Errorf("lalal upload: rejected: %s", payload.Error)
	}
	return payload.ID, nil
}

type splitResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Split starts a separation task for an uploaded file.
func (c *Client) Split(ctx context.Context, fileID string, stems []string) error {
	endpoint, err := url.JoinPath(c.baseURL, "/api/split/")
	if err != nil {
		return fmt.Errorf("lalal split: build url: %w", err)
	}
	form := url.Values{}
	form.Set("id", fileID)
	form.Set("stems", strings.Join(stems, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("lalal split: request: %w", err)
	}
	req.Header.Set("Authorization", "license "+c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var payload splitResponse
	if err := c.do(req, &payload); err != nil {
		return fmt.Errorf("lalal split: %w", err)
	}
	if payload.Status != "success" {
		return fmt.Errorf("lalal split: rejected: %s", payload.Error)
	}
	return nil
}

// TaskStatus reports the state of a split task.
type TaskStatus struct {
	State      string            `json:"state"`
	Error      string            `json:"error"`
	StemTracks map[string]string `json:"stem_tracks"`
}

// Settled reports whether the task reached a final state.
func (s TaskStatus) Settled() bool {
	return s.State == "success" || s.State == "error" || s.State == "cancelled"
}

type checkResponse struct {
	Status string     `json:"status"`
	Error  string     `json:"error"`
	Task   TaskStatus `json:"task"`
}

// Check fetches the current status of a split task.
func (c *Client) Check(ctx context.Context, fileID string) (TaskStatus, error) {
	endpoint, err := url.JoinPath(c.baseURL, "/api/check/")
	if err != nil {
		return TaskStatus{}, fmt.Errorf("lalal check: build url: %w", err)
	}
	form := url.Values{}
	form.Set("id", fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return TaskStatus{}, fmt.Errorf("lalal check: request: %w", err)
	}
	req.Header.Set("Authorization", "license "+c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var payload checkResponse
	if err := c.do(req, &payload); err != nil {
		return TaskStatus{}, fmt.Errorf("lalal check: %w", err)
	}
	if payload.Status != "success" {
		return TaskStatus{}, fmt.Errorf("lalal check: rejected: %s", payload.Error)
	}
	return payload.Task, nil
}

// Download fetches one stem track to a local path.
func (c *Client) Download(ctx context.Context, trackURL, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trackURL, nil)
	if err != nil {
		return fmt.Errorf("lalal download: request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lalal download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("lalal download: http %d", resp.StatusCode)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("lalal download: create file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("lalal download: write file: %w", err)
	}
	return out.Close()
}

func (c *Client) do(req *http.Request, payload any) error {
	if c.apiKey == "" {
		return errors.New("api key required")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, payload); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func fileBase(path string) string {
	if idx := strings.LastIndexAny(path, `/\`); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
