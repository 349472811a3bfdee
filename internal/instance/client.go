// pattern: Imperative Shell

package instance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a thin HTTP client for communicating with a running projsync server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client targeting the given base URL.
func NewClient(baseURL string) *Client {
	return NewClientWithTimeout(baseURL, 30*time.Second)
}

// NewClientWithTimeout creates a Client with a custom timeout.
func NewClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health checks GET /api/health.
func (c *Client) Health() error {
	_, err := c.do(http.MethodGet, "/api/health", nil)
	return err
}

// Projects returns the registry snapshot as raw JSON.
func (c *Client) Projects() ([]byte, error) {
	return c.do(http.MethodGet, "/api/projects", nil)
}

// Scan returns a dry-run reconciliation result as raw JSON.
func (c *Client) Scan() ([]byte, error) {
	return c.do(http.MethodGet, "/api/scan", nil)
}

// Reconcile runs one unattended pass with the given policy on the server.
func (c *Client) Reconcile(policy string, dryRun bool) ([]byte, error) {
	q := url.Values{}
	if policy != "" {
		q.Set("policy", policy)
	}
	if dryRun {
		q.Set("dry_run", "1")
	}
	path := "/api/reconcile"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.do(http.MethodPost, path, nil)
}

// AddProject registers a project at a root-relative path.
func (c *Client) AddProject(path, name string) ([]byte, error) {
	return c.do(http.MethodPost, "/api/projects", map[string]string{"path": path, "name": name})
}

// RemoveProject deletes a record by ID.
func (c *Client) RemoveProject(id int64) ([]byte, error) {
	return c.do(http.MethodDelete, "/api/projects/"+strconv.FormatInt(id, 10), nil)
}

// Logs returns recent log entries filtered by scope prefix and minimum level.
func (c *Client) Logs(scope, level string) ([]byte, error) {
	q := url.Values{}
	if scope != "" {
		q.Set("scope", scope)
	}
	if level != "" {
		q.Set("level", level)
	}
	path := "/api/logs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.do(http.MethodGet, path, nil)
}

// do performs a request with an optional JSON body and returns the response body.
func (c *Client) do(method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to projsync: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("projsync returned status %d: %s", resp.StatusCode, extractErrorMessage(respBody))
	}
	return respBody, nil
}

// extractErrorMessage attempts to extract the error message from a JSON response body.
// If the body is not valid JSON or doesn't have an "error" field, returns the raw body string.
func extractErrorMessage(body []byte) string {
	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}
	return string(body)
}
