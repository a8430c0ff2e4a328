package jellyfin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"cleanarr/internal/services"
)

const serviceName = "jellyfin"

// watchedItemFields is the field set requested for watched movie/series items.
const watchedItemFields = "Name,OriginalTitle,ProductionYear,Overview,Genres,RunTimeTicks,DateCreated,UserData"

// User is a Jellyfin account able to mark media as played or favorite.
type User struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// UserData carries the per-user playback state attached to an item.
type UserData struct {
	IsFavorite     bool   `json:"IsFavorite"`
	LastPlayedDate string `json:"LastPlayedDate"`
}

// Item is a Jellyfin library item: movie, series, season, or episode.
// Season and episode numbers are pointers because Jellyfin omits them for
// specials and extras.
type Item struct {
	ID                string   `json:"Id"`
	Name              string   `json:"Name"`
	ProductionYear    int      `json:"ProductionYear"`
	ParentIndexNumber *int     `json:"ParentIndexNumber"`
	IndexNumber       *int     `json:"IndexNumber"`
	SeasonName        string   `json:"SeasonName"`
	UserData          UserData `json:"UserData"`
}

type itemsResponse struct {
	Items []Item `json:"Items"`
}

// apiBases are the URL prefixes probed to find the server's API root.
var apiBases = []string{"", "/jellyfin", "/emby"}

// Client provides access to the Jellyfin HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	apiBase    string
	httpClient *http.Client
	limiter    *rate.Limiter
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

// WithRateLimit overrides the default request limiter.
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// New creates a Jellyfin client.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("jellyfin base url required")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("jellyfin api key required")
	}
	client := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		// The episode lookups fan out per viewer per series; keep the
		// request rate polite by default.
		limiter: rate.NewLimiter(rate.Every(time.Second/8), 8),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Probe detects the server's API base path by trying the known prefixes
// and must be called before any other method. A failed probe classifies
// as unavailable.
func (c *Client) Probe(ctx context.Context) error {
	var lastErr error
	for _, base := range apiBases {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+base+"/Users/Me", nil)
		if err != nil {
			return fmt.Errorf("build probe request: %w", err)
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = services.WrapTransport(serviceName, "probe", err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			c.apiBase = base
			return nil
		}
		lastErr = services.StatusError(serviceName, "probe", resp.StatusCode)
	}
	if lastErr == nil {
		lastErr = &services.Error{Service: serviceName, Op: "probe", Kind: services.KindUnavailable}
	}
	return lastErr
}

// CurrentUser returns the user owning the API key. It is the fallback
// when listing all users requires admin privileges the key lacks.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.get(ctx, "current user", "/Users/Me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Users returns all users on the server. Requires admin privileges.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.get(ctx, "list users", "/Users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// WatchedItems returns the played items of the given types for a user.
func (c *Client) WatchedItems(ctx context.Context, userID string, itemTypes []string) ([]Item, error) {
	if len(itemTypes) == 0 {
		itemTypes = []string{"Movie", "Series"}
	}
	params := url.Values{}
	params.Set("UserId", userID)
	params.Set("IncludeItemTypes", strings.Join(itemTypes, ","))
	params.Set("Filters", "IsPlayed")
	params.Set("Recursive", "true")
	params.Set("Fields", watchedItemFields)

	var payload itemsResponse
	if err := c.get(ctx, "list watched items", "/Items", params, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// WatchedEpisodes returns the played episodes of a series for a user.
func (c *Client) WatchedEpisodes(ctx context.Context, userID, seriesID string) ([]Item, error) {
	params := url.Values{}
	params.Set("UserId", userID)
	params.Set("ParentId", seriesID)
	params.Set("IncludeItemTypes", "Episode")
	params.Set("Filters", "IsPlayed")
	params.Set("Recursive", "true")
	params.Set("Fields", "Name,ParentIndexNumber,IndexNumber,SeasonName,Overview,RunTimeTicks,DateCreated,UserData")

	var payload itemsResponse
	if err := c.get(ctx, "list watched episodes", "/Items", params, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// FavoriteEpisodes returns the favorited episodes of a series for a user.
func (c *Client) FavoriteEpisodes(ctx context.Context, userID, seriesID string) ([]Item, error) {
	params := url.Values{}
	params.Set("UserId", userID)
	params.Set("ParentId", seriesID)
	params.Set("IncludeItemTypes", "Episode")
	params.Set("Filters", "IsFavorite")
	params.Set("Recursive", "true")
	params.Set("Fields", "Name,ParentIndexNumber,IndexNumber,UserData")

	var payload itemsResponse
	if err := c.get(ctx, "list favorite episodes", "/Items", params, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// FavoriteSeasons returns the favorited seasons of a series for a user.
func (c *Client) FavoriteSeasons(ctx context.Context, userID, seriesID string) ([]Item, error) {
	params := url.Values{}
	params.Set("UserId", userID)
	params.Set("ParentId", seriesID)
	params.Set("IncludeItemTypes", "Season")
	params.Set("Filters", "IsFavorite")
	params.Set("Recursive", "false")
	params.Set("Fields", "Name,IndexNumber,UserData")

	var payload itemsResponse
	if err := c.get(ctx, "list favorite seasons", "/Items", params, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// DeleteItem deletes a media item and its files from the server.
func (c *Client) DeleteItem(ctx context.Context, itemID string) error {
	if strings.TrimSpace(itemID) == "" {
		return errors.New("item id required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+c.apiBase+"/Items/"+url.PathEscape(itemID), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.WrapTransport(serviceName, "delete item", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return services.StatusError(serviceName, "delete item", resp.StatusCode)
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.baseURL + c.apiBase + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.WrapTransport(serviceName, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return services.StatusError(serviceName, op, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}
