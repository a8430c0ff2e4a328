package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cleanarr/internal/services"
	"cleanarr/internal/services/jellyfin"
	"cleanarr/internal/services/radarr"
	"cleanarr/internal/services/sonarr"
)

// MediaServer is the Jellyfin surface the engine needs.
type MediaServer interface {
	Users(ctx context.Context) ([]jellyfin.User, error)
	CurrentUser(ctx context.Context) (*jellyfin.User, error)
	WatchedItems(ctx context.Context, userID string, itemTypes []string) ([]jellyfin.Item, error)
	WatchedEpisodes(ctx context.Context, userID, seriesID string) ([]jellyfin.Item, error)
	FavoriteEpisodes(ctx context.Context, userID, seriesID string) ([]jellyfin.Item, error)
	FavoriteSeasons(ctx context.Context, userID, seriesID string) ([]jellyfin.Item, error)
	DeleteItem(ctx context.Context, itemID string) error
}

// MovieCatalog is the Radarr surface the engine needs.
type MovieCatalog interface {
	Movies(ctx context.Context) ([]radarr.Movie, error)
	DeleteMovie(ctx context.Context, movieID int64, deleteFiles, addExclusion bool) error
}

// SeriesCatalog is the Sonarr surface the engine needs.
type SeriesCatalog interface {
	Series(ctx context.Context) ([]sonarr.Series, error)
	Episodes(ctx context.Context, seriesID int64) ([]sonarr.Episode, error)
	DeleteSeries(ctx context.Context, seriesID int64, deleteFiles, addExclusion bool) error
	SetEpisodeMonitored(ctx context.Context, episodeID int64, monitored bool) error
}

// TorrentChecker reports whether media still exists in the download client.
type TorrentChecker interface {
	IsMediaPresent(ctx context.Context, title string, year int) (bool, error)
}

// Engine reconciles watched media against the catalogs and builds the
// deletion plan. The catalog and torrent clients may be nil when the
// corresponding service is absent; the engine then skips that category.
type Engine struct {
	server   MediaServer
	movies   MovieCatalog
	series   SeriesCatalog
	torrents TorrentChecker
	logger   *slog.Logger
}

// NewEngine creates an Engine. The media server is required.
func NewEngine(server MediaServer, movies MovieCatalog, series SeriesCatalog, torrents TorrentChecker, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		server:   server,
		movies:   movies,
		series:   series,
		torrents: torrents,
		logger:   logger,
	}
}

// PlanOptions control which candidates a run considers.
type PlanOptions struct {
	// MatchThreshold is the minimum similarity-plus-year-bonus score for
	// a catalog match. Zero means the default of 0.8.
	MatchThreshold float64
	// WatchedBeforeDays keeps only items last played at least this many
	// days ago. Negative disables the age filter; zero still drops items
	// without a parseable play date.
	WatchedBeforeDays int
	IncludeMovies     bool
	IncludeSeries     bool
	// CollectEpisodes schedules per-episode cleanup for watched series
	// that cannot be deleted whole.
	CollectEpisodes bool
	// Now anchors the age filter; zero means the wall clock.
	Now time.Time
}

const defaultMatchThreshold = 0.8

// Plan builds the deletion plan. A catalog that answers with an
// availability error is logged and skipped; any other error aborts.
func (e *Engine) Plan(ctx context.Context, opts PlanOptions) (*Plan, error) {
	if opts.MatchThreshold <= 0 {
		opts.MatchThreshold = defaultMatchThreshold
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	users, err := e.resolveUsers(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.Info("reconciling watched media", "users", len(users))

	plan := &Plan{}
	if opts.IncludeMovies && e.movies != nil {
		if err := e.planMovies(ctx, users, opts, plan); err != nil {
			return nil, err
		}
	}
	if opts.IncludeSeries && e.series != nil {
		if err := e.planSeries(ctx, users, opts, plan); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// resolveUsers lists all users, falling back to the key's own user when
// the listing needs admin privileges the key lacks.
func (e *Engine) resolveUsers(ctx context.Context) ([]jellyfin.User, error) {
	users, err := e.server.Users(ctx)
	if err == nil && len(users) > 0 {
		return users, nil
	}
	if err != nil {
		e.logger.Debug("user listing failed, falling back to key owner", "error", err)
	}
	user, userErr := e.server.CurrentUser(ctx)
	if userErr != nil {
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		return nil, fmt.Errorf("resolve current user: %w", userErr)
	}
	return []jellyfin.User{*user}, nil
}

func (e *Engine) planMovies(ctx context.Context, users []jellyfin.User, opts PlanOptions, plan *Plan) error {
	catalog, err := e.movies.Movies(ctx)
	if err != nil {
		if services.IsUnavailable(err) {
			e.logger.Warn("movie catalog unavailable, skipping movies", "error", err)
			return nil
		}
		return fmt.Errorf("load movie catalog: %w", err)
	}
	entries := make([]CatalogEntry, 0, len(catalog))
	for _, movie := range catalog {
		entries = append(entries, CatalogEntry{ID: movie.ID, Title: movie.Title, Year: movie.Year})
	}

	watched, err := e.watchedByType(ctx, users, "Movie", opts)
	if err != nil {
		return err
	}
	for _, item := range watched {
		candidate, ok := bestCatalogMatch(item, entries, opts.MatchThreshold)
		if !ok {
			e.logger.Debug("no catalog match for watched movie", "title", item.Name, "year", item.Year)
			continue
		}
		candidate.InTorrents = e.isInTorrents(ctx, item.Name, item.Year)
		plan.Movies = append(plan.Movies, candidate)
	}
	e.logger.Info("movie candidates collected", "watched", len(watched), "matched", len(plan.Movies))
	return nil
}

func (e *Engine) planSeries(ctx context.Context, users []jellyfin.User, opts PlanOptions, plan *Plan) error {
	catalog, err := e.series.Series(ctx)
	if err != nil {
		if services.IsUnavailable(err) {
			e.logger.Warn("series catalog unavailable, skipping series", "error", err)
			return nil
		}
		return fmt.Errorf("load series catalog: %w", err)
	}
	entries := make([]CatalogEntry, 0, len(catalog))
	for _, series := range catalog {
		entries = append(entries, CatalogEntry{ID: series.ID, Title: series.Title, Year: series.Year})
	}

	watched, err := e.watchedByType(ctx, users, "Series", opts)
	if err != nil {
		return err
	}
	matched := 0
	for _, item := range watched {
		candidate, ok := bestCatalogMatch(item, entries, opts.MatchThreshold)
		if !ok {
			e.logger.Debug("no catalog match for watched series", "title", item.Name, "year", item.Year)
			continue
		}
		matched++

		episodes, err := e.series.Episodes(ctx, candidate.Entry.ID)
		if err != nil {
			return fmt.Errorf("load episodes for %q: %w", candidate.Entry.Title, err)
		}
		hasFavorites, err := e.hasFavoriteSubItems(ctx, users, item.ID)
		if err != nil {
			return err
		}

		series := SeriesCandidate{
			MatchCandidate:      candidate,
			FullyDownloaded:     sonarr.IsFullyDownloaded(episodes),
			HasFavoriteEpisodes: hasFavorites,
		}
		series.InTorrents = e.isInTorrents(ctx, item.Name, item.Year)

		// Only favorited sub-items block whole-series deletion;
		// FullyDownloaded is informational.
		if !series.HasFavoriteEpisodes {
			plan.Series = append(plan.Series, series)
			continue
		}
		if opts.CollectEpisodes && !series.InTorrents {
			collected, err := e.collectEpisodes(ctx, users, item, episodes, opts)
			if err != nil {
				return err
			}
			plan.Episodes = append(plan.Episodes, collected...)
		}
	}
	e.logger.Info("series candidates collected",
		"watched", len(watched),
		"matched", matched,
		"series", len(plan.Series),
		"episodes", len(plan.Episodes))
	return nil
}

// watchedByType gathers, merges, and filters the watched items of one
// Jellyfin type across all users.
func (e *Engine) watchedByType(ctx context.Context, users []jellyfin.User, itemType string, opts PlanOptions) ([]WatchedItem, error) {
	perUser := make([][]jellyfin.Item, 0, len(users))
	for _, user := range users {
		items, err := e.server.WatchedItems(ctx, user.ID, []string{itemType})
		if err != nil {
			return nil, fmt.Errorf("list watched items for user %q: %w", user.Name, err)
		}
		perUser = append(perUser, items)
	}
	merged := mergeWatched(perUser)
	merged = filterFavorites(merged)
	merged = filterByWatchAge(merged, opts.WatchedBeforeDays, opts.Now)
	return merged, nil
}

// hasFavoriteSubItems reports whether any user favorited an episode or
// season of the series. Checked only for matched series to keep the
// request count down.
func (e *Engine) hasFavoriteSubItems(ctx context.Context, users []jellyfin.User, seriesID string) (bool, error) {
	for _, user := range users {
		episodes, err := e.server.FavoriteEpisodes(ctx, user.ID, seriesID)
		if err != nil {
			return false, fmt.Errorf("list favorite episodes for user %q: %w", user.Name, err)
		}
		if len(episodes) > 0 {
			return true, nil
		}
		seasons, err := e.server.FavoriteSeasons(ctx, user.ID, seriesID)
		if err != nil {
			return false, fmt.Errorf("list favorite seasons for user %q: %w", user.Name, err)
		}
		if len(seasons) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// isInTorrents checks the download client for the title. A missing or
// failing client counts as absent; the check is advisory and must not
// block planning.
func (e *Engine) isInTorrents(ctx context.Context, title string, year int) bool {
	if e.torrents == nil {
		return false
	}
	present, err := e.torrents.IsMediaPresent(ctx, title, year)
	if err != nil {
		e.logger.Warn("torrent presence check failed", "title", title, "error", err)
		return false
	}
	return present
}
