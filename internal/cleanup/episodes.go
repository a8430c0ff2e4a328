package cleanup

import (
	"context"
	"fmt"

	"cleanarr/internal/services/jellyfin"
	"cleanarr/internal/services/sonarr"
)

type episodeKey struct {
	season  int
	episode int
}

// collectEpisodes gathers the watched, non-favorite episodes of a series
// across all users and joins them to their Sonarr records by season and
// episode number. Episodes without numbers (specials, extras) or without
// a Sonarr counterpart are skipped. Returns nil when nothing qualifies.
func (e *Engine) collectEpisodes(ctx context.Context, users []jellyfin.User, series WatchedItem, sonarrEpisodes []sonarr.Episode, opts PlanOptions) ([]EpisodeCleanup, error) {
	sonarrByNumber := make(map[episodeKey]sonarr.Episode, len(sonarrEpisodes))
	for _, episode := range sonarrEpisodes {
		sonarrByNumber[episodeKey{episode.SeasonNumber, episode.EpisodeNumber}] = episode
	}

	seen := make(map[string]struct{})
	var collected []EpisodeCleanup
	for _, user := range users {
		watched, err := e.server.WatchedEpisodes(ctx, user.ID, series.ID)
		if err != nil {
			return nil, fmt.Errorf("list watched episodes for user %q: %w", user.Name, err)
		}
		excluded, err := e.favoriteEpisodeExclusions(ctx, user.ID, series.ID)
		if err != nil {
			return nil, err
		}

		for _, item := range watched {
			if _, dup := seen[item.ID]; dup {
				continue
			}
			if item.ParentIndexNumber == nil || item.IndexNumber == nil {
				continue
			}
			season := *item.ParentIndexNumber
			number := *item.IndexNumber
			if excluded.episodes[item.ID] || excluded.seasons[season] {
				continue
			}
			if opts.WatchedBeforeDays >= 0 {
				lastPlayed := parseLastPlayed(item.UserData.LastPlayedDate)
				if lastPlayed.IsZero() || lastPlayed.After(opts.Now.AddDate(0, 0, -opts.WatchedBeforeDays)) {
					continue
				}
			}
			record, ok := sonarrByNumber[episodeKey{season, number}]
			if !ok {
				continue
			}
			seen[item.ID] = struct{}{}

			collected = append(collected, EpisodeCleanup{
				SeriesName:      series.Name,
				EpisodeName:     item.Name,
				JellyfinID:      item.ID,
				SeasonNumber:    season,
				EpisodeNumber:   number,
				SonarrEpisodeID: record.ID,
			})
		}
	}
	return collected, nil
}

type favoriteExclusions struct {
	episodes map[string]bool
	seasons  map[int]bool
}

// favoriteEpisodeExclusions builds the per-user set of episode IDs and
// season numbers that favorites protect from cleanup.
func (e *Engine) favoriteEpisodeExclusions(ctx context.Context, userID, seriesID string) (favoriteExclusions, error) {
	exclusions := favoriteExclusions{
		episodes: make(map[string]bool),
		seasons:  make(map[int]bool),
	}
	favoriteEpisodes, err := e.server.FavoriteEpisodes(ctx, userID, seriesID)
	if err != nil {
		return exclusions, fmt.Errorf("list favorite episodes: %w", err)
	}
	for _, episode := range favoriteEpisodes {
		exclusions.episodes[episode.ID] = true
	}
	favoriteSeasons, err := e.server.FavoriteSeasons(ctx, userID, seriesID)
	if err != nil {
		return exclusions, fmt.Errorf("list favorite seasons: %w", err)
	}
	for _, season := range favoriteSeasons {
		if season.IndexNumber != nil {
			exclusions.seasons[*season.IndexNumber] = true
		}
	}
	return exclusions, nil
}
