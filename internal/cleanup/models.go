package cleanup

import "time"

// WatchedItem is a movie or series watched by at least one Jellyfin
// user, merged across users. Favorite is true when any user favorited
// the item; LastPlayed is the most recent play across users and is the
// zero time when Jellyfin reported no playback date.
type WatchedItem struct {
	ID         string
	Name       string
	Year       int
	Favorite   bool
	LastPlayed time.Time
}

// CatalogEntry is a Radarr movie or Sonarr series reduced to the fields
// matching needs.
type CatalogEntry struct {
	ID    int64
	Title string
	Year  int
}

// MatchCandidate pairs a watched item with the catalog entry it matched.
// Score is the plain title similarity without the year bonus, so callers
// can apply their own similarity cutoff. InTorrents is true when the
// download client still carries a matching transfer.
type MatchCandidate struct {
	Item       WatchedItem
	Entry      CatalogEntry
	Score      float64
	InTorrents bool
}

// SeriesCandidate is a matched series together with the state that
// decides between whole-series deletion and per-episode cleanup.
type SeriesCandidate struct {
	MatchCandidate
	FullyDownloaded     bool
	HasFavoriteEpisodes bool
}

// EpisodeCleanup is a single watched episode scheduled for deletion in
// Jellyfin and unmonitoring in Sonarr. Only episodes with a Sonarr
// record are ever planned, so SonarrEpisodeID is always set.
type EpisodeCleanup struct {
	SeriesName      string
	EpisodeName     string
	JellyfinID      string
	SeasonNumber    int
	EpisodeNumber   int
	SonarrEpisodeID int64
}

// Plan is the full set of deletions a run proposes.
type Plan struct {
	Movies   []MatchCandidate
	Series   []SeriesCandidate
	Episodes []EpisodeCleanup
}

// Empty reports whether the plan proposes no work at all.
func (p *Plan) Empty() bool {
	return len(p.Movies) == 0 && len(p.Series) == 0 && len(p.Episodes) == 0
}

// Result summarizes an executed plan. Deleted plus failed equals the
// submitted count per category. Errors carries one message per failed
// item; failures never abort the remaining deletions.
type Result struct {
	MoviesDeleted       int
	MoviesFailed        int
	SeriesDeleted       int
	SeriesFailed        int
	EpisodesDeleted     int
	EpisodesFailed      int
	EpisodesUnmonitored int
	Skipped             int
	Failures            int
	Errors              []string
}
