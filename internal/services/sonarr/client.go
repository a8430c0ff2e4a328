package sonarr

import (
	"bytes"
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

const serviceName = "sonarr"

// Series is a Sonarr library entry.
type Series struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Year   int    `json:"year"`
	TvdbID int64  `json:"tvdbId"`
}

// Episode is a single episode record of a series.
type Episode struct {
	ID            int64 `json:"id"`
	SeriesID      int64 `json:"seriesId"`
	SeasonNumber  int   `json:"seasonNumber"`
	EpisodeNumber int   `json:"episodeNumber"`
	Monitored     bool  `json:"monitored"`
	HasFile       bool  `json:"hasFile"`
}

// SystemStatus is the subset of /system/status used for connection probes.
type SystemStatus struct {
	Version string `json:"version"`
}

// Client provides access to the Sonarr HTTP API.
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

// WithBasicAuth adds HTTP basic auth credentials for a proxy in front of Sonarr.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// New creates a Sonarr client.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("sonarr base url required")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("sonarr api key required")
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
	if err := c.do(ctx, http.MethodGet, "/api/v3/system/status", nil, "system status", &status); err != nil {
		return nil, err
	}
	if status.Version == "" {
		return nil, &services.Error{Service: serviceName, Op: "system status", Kind: services.KindUnavailable, Err: errors.New("response missing version")}
	}
	return &status, nil
}

// Series returns the full series catalog.
func (c *Client) Series(ctx context.Context) ([]Series, error) {
	var series []Series
	if err := c.do(ctx, http.MethodGet, "/api/v3/series", nil, "list series", &series); err != nil {
		return nil, err
	}
	return series, nil
}

// Episodes returns every episode record for a series.
func (c *Client) Episodes(ctx context.Context, seriesID int64) ([]Episode, error) {
	if seriesID <= 0 {
		return nil, errors.New("series id must be positive")
	}
	var episodes []Episode
	path := "/api/v3/episode?seriesId=" + strconv.FormatInt(seriesID, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, "list episodes", &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}

// DeleteSeries removes a series, optionally deleting its files and adding
// an import exclusion so it is not re-added automatically.
func (c *Client) DeleteSeries(ctx context.Context, seriesID int64, deleteFiles, addExclusion bool) error {
	if seriesID <= 0 {
		return errors.New("series id must be positive")
	}
	params := url.Values{}
	params.Set("deleteFiles", strconv.FormatBool(deleteFiles))
	params.Set("addImportListExclusion", strconv.FormatBool(addExclusion))

	path := fmt.Sprintf("/api/v3/series/%d?%s", seriesID, params.Encode())
	return c.do(ctx, http.MethodDelete, path, nil, "delete series", nil)
}

// SetEpisodeMonitored flips the monitored flag on a single episode.
func (c *Client) SetEpisodeMonitored(ctx context.Context, episodeID int64, monitored bool) error {
	if episodeID <= 0 {
		return errors.New("episode id must be positive")
	}
	body, err := json.Marshal(map[string]any{
		"episodeIds": []int64{episodeID},
		"monitored":  monitored,
	})
	if err != nil {
		return fmt.Errorf("encode monitor request: %w", err)
	}
	return c.do(ctx, http.MethodPut, "/api/v3/episode/monitor", body, "set episode monitored", nil)
}

// IsFullyDownloaded reports whether every monitored episode of the
// series has a file on disk. Series with no monitored episodes count as
// fully downloaded.
func IsFullyDownloaded(episodes []Episode) bool {
	for _, episode := range episodes {
		if episode.Monitored && !episode.HasFile {
			return false
		}
	}
	return true
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, op string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
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

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
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
