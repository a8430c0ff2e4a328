package qbittorrent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cleanarr/internal/services"
)

const serviceName = "qbittorrent"

// presenceThreshold is the minimum match score for a torrent to count
// as the media item still being present in the download client.
const presenceThreshold = 0.6

// Torrent is a qBittorrent transfer entry.
type Torrent struct {
	Hash     string  `json:"hash"`
	Name     string  `json:"name"`
	State    string  `json:"state"`
	Progress float64 `json:"progress"`
	Category string  `json:"category"`
}

// Client provides access to the qBittorrent Web API. Authentication is
// either the cookie session from /auth/login or HTTP basic auth when
// the client sits behind a reverse proxy.
type Client struct {
	baseURL      string
	username     string
	password     string
	useBasicAuth bool
	loggedIn     bool
	httpClient   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. A cookie jar is
// attached if the given client lacks one.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBasicAuth sends credentials as HTTP basic auth on every request
// instead of performing the session login.
func WithBasicAuth() Option {
	return func(c *Client) {
		c.useBasicAuth = true
	}
}

// New creates a qBittorrent client.
func New(baseURL, username, password string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("qbittorrent base url required")
	}
	client := &Client{
		baseURL:    baseURL,
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		client.httpClient.Jar = jar
	}
	return client, nil
}

// Login establishes the cookie session. It is a no-op under basic auth.
func (c *Client) Login(ctx context.Context) error {
	if c.useBasicAuth {
		c.loggedIn = true
		return nil
	}
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.WrapTransport(serviceName, "login", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return services.StatusError(serviceName, "login", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return services.WrapTransport(serviceName, "login", err)
	}
	// The endpoint answers 200 with "Fails." on bad credentials.
	if strings.TrimSpace(string(body)) != "Ok." {
		return &services.Error{Service: serviceName, Op: "login", Kind: services.KindUnavailable, Err: errors.New("credentials rejected")}
	}
	c.loggedIn = true
	return nil
}

// Version returns the application version; used as the startup probe.
func (c *Client) Version(ctx context.Context) (string, error) {
	if err := c.ensureSession(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v2/app/version", nil)
	if err != nil {
		return "", fmt.Errorf("build version request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.WrapTransport(serviceName, "version", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", services.StatusError(serviceName, "version", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", services.WrapTransport(serviceName, "version", err)
	}
	return strings.TrimSpace(string(body)), nil
}

// Torrents lists transfers, optionally restricted by a state filter
// such as "completed" or "downloading".
func (c *Client) Torrents(ctx context.Context, filter string) ([]Torrent, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	endpoint := c.baseURL + "/api/v2/torrents/info"
	if filter != "" {
		endpoint += "?filter=" + url.QueryEscape(filter)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build torrents request: %w", err)
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.WrapTransport(serviceName, "list torrents", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, services.StatusError(serviceName, "list torrents", resp.StatusCode)
	}
	var torrents []Torrent
	if err := json.NewDecoder(resp.Body).Decode(&torrents); err != nil {
		return nil, fmt.Errorf("decode torrents response: %w", err)
	}
	return torrents, nil
}

// AllTorrents lists every transfer regardless of state.
func (c *Client) AllTorrents(ctx context.Context) ([]Torrent, error) {
	return c.Torrents(ctx, "")
}

// CompletedTorrents lists only transfers that finished downloading.
func (c *Client) CompletedTorrents(ctx context.Context) ([]Torrent, error) {
	return c.Torrents(ctx, "completed")
}

// IsMediaPresent reports whether any completed torrent looks like the
// given title. Only finished transfers count; an in-flight download is
// not a seeding obligation yet. Each torrent name is normalized and
// compared by token overlap, with a bonus when the torrent name carries
// the item's release year.
func (c *Client) IsMediaPresent(ctx context.Context, title string, year int) (bool, error) {
	torrents, err := c.CompletedTorrents(ctx)
	if err != nil {
		return false, err
	}
	return MatchesAny(torrents, title, year), nil
}

// MatchesAny reports whether any of the torrents scores at or above the
// presence threshold for the title.
func MatchesAny(torrents []Torrent, title string, year int) bool {
	normalizedTitle := NormalizeReleaseName(title)
	if normalizedTitle == "" {
		return false
	}
	for _, torrent := range torrents {
		if matchScore(torrent.Name, normalizedTitle, year) >= presenceThreshold {
			return true
		}
	}
	return false
}

func matchScore(torrentName, normalizedTitle string, year int) float64 {
	score := tokenJaccard(NormalizeReleaseName(torrentName), normalizedTitle)
	if year > 0 && strings.Contains(torrentName, strconv.Itoa(year)) {
		score += 0.2
	}
	return score
}

func (c *Client) ensureSession(ctx context.Context) error {
	if c.loggedIn {
		return nil
	}
	return c.Login(ctx)
}

func (c *Client) setAuth(req *http.Request) {
	if c.useBasicAuth && c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}
