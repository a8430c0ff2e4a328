package radarr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cleanarr/internal/services"
)

const serviceName = "radarr"

// Movie is a Radarr library entry.
type Movie struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Year   int    `json:"year"`
	TmdbID int64  `json:"tmdbId"`
}

// SystemStatus is the subset of /system/status used for connection probes.
type SystemStatus struct {
	Version string `json:"version"`
}

// Client provides access to the Radarr HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	username   string
	password   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBasicAuth adds HTTP basic auth credentials for a proxy in front of Radarr.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// New creates a Radarr client.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("radarr base url required")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("radarr api key required")
	}
	client := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SystemStatus fetches the server status; used as the startup probe.
func (c *Client) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	var status SystemStatus
	if err := c.doJSON(ctx, http.MethodGet, "/api/v3/system/status", "system status", &status); err != nil {
		return nil, err
	}
	if status.Version == "" {
		return nil, &services.Error{Service: serviceName, Op: "system status", Kind: services.KindUnavailable, Err: errors.New("response missing version")}
	}
	return &status, nil
}

// Movies returns the full movie catalog.
func (c *Client) Movies(ctx context.Context) ([]Movie, error) {
	var movies []Movie
	if err := c.doJSON(ctx, http.MethodGet, "/api/v3/movie", "list movies", &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// DeleteMovie removes a movie, optionally deleting its files and adding
// an import exclusion so it is not re-added automatically.
func (c *Client) DeleteMovie(ctx context.Context, movieID int64, deleteFiles, addExclusion bool) error {
	if movieID <= 0 {
		return errors.New("movie id must be positive")
	}
	params := url.Values{}
	params.Set("deleteFiles", strconv.FormatBool(deleteFiles))
	params.Set("addImportExclusion", strconv.FormatBool(addExclusion))

	path := fmt.Sprintf("/api/v3/movie/%d?%s", movieID, params.Encode())
	return c.doJSON(ctx, http.MethodDelete, path, "delete movie", nil)
}

func (c *Client) doJSON(ctx context.Context, method, path, op string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.WrapTransport(serviceName, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return services.StatusError(serviceName, op, resp.StatusCode)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
