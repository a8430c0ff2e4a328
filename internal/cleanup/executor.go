package cleanup

import (
	"context"
	"fmt"
	"strconv"
)

// ExecuteOptions control how a plan is carried out.
type ExecuteOptions struct {
	// DryRun counts what would happen without calling any delete API.
	DryRun bool
	// DeleteFiles removes media files from disk, not just the catalog entry.
	DeleteFiles bool
	// AddExclusion blocks the deleted item from being re-imported.
	AddExclusion bool
	// Observer, when set, is called once per attempted deletion with the
	// outcome. remoteID is the collaborator-side identifier of the item.
	// Used for audit recording.
	Observer func(category, title, remoteID string, err error)
}

// Execute carries out the plan: episodes first, then movies, then whole
// series. Failures are isolated per item and collected in the result.
func (e *Engine) Execute(ctx context.Context, plan *Plan, opts ExecuteOptions) Result {
	var result Result

	for _, episode := range plan.Episodes {
		title := fmt.Sprintf("%s S%02dE%02d %s", episode.SeriesName, episode.SeasonNumber, episode.EpisodeNumber, episode.EpisodeName)
		if opts.DryRun {
			e.logger.Info("would delete episode", "title", title)
			result.EpisodesDeleted++
			continue
		}
		if err := e.server.DeleteItem(ctx, episode.JellyfinID); err != nil {
			e.recordFailure(&result, opts, "episode", title, episode.JellyfinID, err)
			continue
		}
		result.EpisodesDeleted++
		e.notify(opts, "episode", title, episode.JellyfinID, nil)
		e.logger.Info("deleted episode", "title", title)

		// Unmonitoring keeps Sonarr from re-grabbing the episode. The
		// deletion already succeeded, so a failure here only warns.
		if episode.SonarrEpisodeID != 0 && e.series != nil {
			if err := e.series.SetEpisodeMonitored(ctx, episode.SonarrEpisodeID, false); err != nil {
				e.logger.Warn("failed to unmonitor episode", "title", title, "error", err)
			} else {
				result.EpisodesUnmonitored++
			}
		}
	}

	for _, movie := range plan.Movies {
		if opts.DryRun {
			e.logger.Info("would delete movie", "title", movie.Entry.Title, "score", movie.Score)
			result.MoviesDeleted++
			continue
		}
		remoteID := strconv.FormatInt(movie.Entry.ID, 10)
		if err := e.movies.DeleteMovie(ctx, movie.Entry.ID, opts.DeleteFiles, opts.AddExclusion); err != nil {
			e.recordFailure(&result, opts, "movie", movie.Entry.Title, remoteID, err)
			continue
		}
		result.MoviesDeleted++
		e.notify(opts, "movie", movie.Entry.Title, remoteID, nil)
		e.logger.Info("deleted movie", "title", movie.Entry.Title)
	}

	for _, series := range plan.Series {
		if opts.DryRun {
			e.logger.Info("would delete series", "title", series.Entry.Title, "score", series.Score)
			result.SeriesDeleted++
			continue
		}
		remoteID := strconv.FormatInt(series.Entry.ID, 10)
		if err := e.series.DeleteSeries(ctx, series.Entry.ID, opts.DeleteFiles, opts.AddExclusion); err != nil {
			e.recordFailure(&result, opts, "series", series.Entry.Title, remoteID, err)
			continue
		}
		result.SeriesDeleted++
		e.notify(opts, "series", series.Entry.Title, remoteID, nil)
		e.logger.Info("deleted series", "title", series.Entry.Title)
	}

	return result
}

func (e *Engine) recordFailure(result *Result, opts ExecuteOptions, category, title, remoteID string, err error) {
	result.Failures++
	switch category {
	case "movie":
		result.MoviesFailed++
	case "series":
		result.SeriesFailed++
	case "episode":
		result.EpisodesFailed++
	}
	result.Errors = append(result.Errors, fmt.Sprintf("%s %q: %v", category, title, err))
	e.notify(opts, category, title, remoteID, err)
	e.logger.Error("deletion failed", "category", category, "title", title, "error", err)
}

func (e *Engine) notify(opts ExecuteOptions, category, title, remoteID string, err error) {
	if opts.Observer != nil {
		opts.Observer(category, title, remoteID, err)
	}
}
