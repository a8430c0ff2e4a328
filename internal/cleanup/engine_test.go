package cleanup_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"cleanarr/internal/cleanup"
	"cleanarr/internal/services"
	"cleanarr/internal/services/jellyfin"
	"cleanarr/internal/services/radarr"
	"cleanarr/internal/services/sonarr"
)

type fakeServer struct {
	users            []jellyfin.User
	usersErr         error
	watched          map[string][]jellyfin.Item
	watchedEpisodes  map[string][]jellyfin.Item
	favoriteEpisodes map[string][]jellyfin.Item
	favoriteSeasons  map[string][]jellyfin.Item
	deleted          []string
	deleteErr        map[string]error
}

func (f *fakeServer) Users(ctx context.Context) ([]jellyfin.User, error) {
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	return f.users, nil
}

func (f *fakeServer) CurrentUser(ctx context.Context) (*jellyfin.User, error) {
	if len(f.users) == 0 {
		return nil, errors.New("no users configured")
	}
	return &f.users[0], nil
}

func (f *fakeServer) WatchedItems(ctx context.Context, userID string, itemTypes []string) ([]jellyfin.Item, error) {
	return f.watched[userID+"/"+itemTypes[0]], nil
}

func (f *fakeServer) WatchedEpisodes(ctx context.Context, userID, seriesID string) ([]jellyfin.Item, error) {
	return f.watchedEpisodes[userID+"/"+seriesID], nil
}

func (f *fakeServer) FavoriteEpisodes(ctx context.Context, userID, seriesID string) ([]jellyfin.Item, error) {
	return f.favoriteEpisodes[userID+"/"+seriesID], nil
}

func (f *fakeServer) FavoriteSeasons(ctx context.Context, userID, seriesID string) ([]jellyfin.Item, error) {
	return f.favoriteSeasons[userID+"/"+seriesID], nil
}

func (f *fakeServer) DeleteItem(ctx context.Context, itemID string) error {
	if err := f.deleteErr[itemID]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, itemID)
	return nil
}

type fakeMovies struct {
	movies    []radarr.Movie
	listErr   error
	deleted   []int64
	deleteErr map[int64]error
}

func (f *fakeMovies) Movies(ctx context.Context) ([]radarr.Movie, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.movies, nil
}

func (f *fakeMovies) DeleteMovie(ctx context.Context, movieID int64, deleteFiles, addExclusion bool) error {
	if err := f.deleteErr[movieID]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, movieID)
	return nil
}

type fakeSeries struct {
	series      []sonarr.Series
	episodes    map[int64][]sonarr.Episode
	deleted     []int64
	unmonitored []int64
}

func (f *fakeSeries) Series(ctx context.Context) ([]sonarr.Series, error) {
	return f.series, nil
}

func (f *fakeSeries) Episodes(ctx context.Context, seriesID int64) ([]sonarr.Episode, error) {
	return f.episodes[seriesID], nil
}

func (f *fakeSeries) DeleteSeries(ctx context.Context, seriesID int64, deleteFiles, addExclusion bool) error {
	f.deleted = append(f.deleted, seriesID)
	return nil
}

func (f *fakeSeries) SetEpisodeMonitored(ctx context.Context, episodeID int64, monitored bool) error {
	f.unmonitored = append(f.unmonitored, episodeID)
	return nil
}

type fakeTorrents struct {
	present map[string]bool
}

func (f *fakeTorrents) IsMediaPresent(ctx context.Context, title string, year int) (bool, error) {
	return f.present[title], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPlanMatchesWatchedMovie(t *testing.T) {
	t.Parallel()

	server := &fakeServer{
		users: []jellyfin.User{{ID: "u1", Name: "alice"}},
		watched: map[string][]jellyfin.Item{
			"u1/Movie": {
				{ID: "m1", Name: "The Matrix", ProductionYear: 1999},
				{ID: "m2", Name: "Home Video", ProductionYear: 2020},
			},
		},
	}
	movies := &fakeMovies{movies: []radarr.Movie{
		{ID: 10, Title: "Matrix", Year: 1999},
		{ID: 11, Title: "Blade Runner", Year: 1982},
	}}

	engine := cleanup.NewEngine(server, movies, nil, nil, testLogger())
	plan, err := engine.Plan(context.Background(), cleanup.PlanOptions{IncludeMovies: true, WatchedBeforeDays: -1})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Movies) != 1 {
		t.Fatalf("expected 1 movie candidate, got %d", len(plan.Movies))
	}
	if plan.Movies[0].Entry.ID != 10 {
		t.Fatalf("expected Matrix to match, got entry %d", plan.Movies[0].Entry.ID)
	}

	result := engine.Execute(context.Background(), plan, cleanup.ExecuteOptions{DryRun: true})
	if result.MoviesDeleted != 1 {
		t.Fatalf("expected dry run to count 1 movie, got %d", result.MoviesDeleted)
	}
	if len(movies.deleted) != 0 {
		t.Fatal("dry run must not call the delete API")
	}
}

func TestPlanSkipsFavorites(t *testing.T) {
	t.Parallel()

	server := &fakeServer{
		users: []jellyfin.User{{ID: "u1", Name: "alice"}},
		watched: map[string][]jellyfin.Item{
			"u1/Movie": {
				{ID: "m1", Name: "The Matrix", ProductionYear: 1999, UserData: jellyfin.UserData{IsFavorite: true}},
			},
		},
	}
	movies := &fakeMovies{movies: []radarr.Movie{{ID: 10, Title: "Matrix", Year: 1999}}}

	engine := cleanup.NewEngine(server, movies, nil, nil, testLogger())
	plan, err := engine.Plan(context.Background(), cleanup.PlanOptions{IncludeMovies: true, WatchedBeforeDays: -1})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Movies) != 0 {
		t.Fatalf("favorited media must never become a candidate, got %+v", plan.Movies)
	}
}

func TestPlanWatchAgeFilter(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	server := &fakeServer{
		users: []jellyfin.User{{ID: "u1", Name: "alice"}},
		watched: map[string][]jellyfin.Item{
			"u1/Movie": {
				{ID: "m1", Name: "Old Watch", ProductionYear: 2000, UserData: jellyfin.UserData{LastPlayedDate: now.AddDate(0, 0, -61).Format(time.RFC3339)}},
				{ID: "m2", Name: "Recent Watch", ProductionYear: 2001, UserData: jellyfin.UserData{LastPlayedDate: now.AddDate(0, 0, -17).Format(time.RFC3339)}},
			},
		},
	}
	movies := &fakeMovies{movies: []radarr.Movie{
		{ID: 10, Title: "Old Watch", Year: 2000},
		{ID: 11, Title: "Recent Watch", Year: 2001},
	}}

	engine := cleanup.NewEngine(server, movies, nil, nil, testLogger())
	plan, err := engine.Plan(context.Background(), cleanup.PlanOptions{
		IncludeMovies:     true,
		WatchedBeforeDays: 30,
		Now:               now,
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Movies) != 1 || plan.Movies[0].Entry.ID != 10 {
		t.Fatalf("expected only the 61-day-old watch, got %+v", plan.Movies)
	}
}

func TestPlanUnavailableCatalogSkipsCategory(t *testing.T) {
	t.Parallel()

	server := &fakeServer{
		users: []jellyfin.User{{ID: "u1", Name: "alice"}},
		watched: map[string][]jellyfin.Item{
			"u1/Movie": {{ID: "m1", Name: "The Matrix", ProductionYear: 1999}},
		},
	}
	movies := &fakeMovies{listErr: &services.Error{Service: "radarr", Op: "list movies", Kind: services.KindUnavailable}}

	engine := cleanup.NewEngine(server, movies, nil, nil, testLogger())
	plan, err := engine.Plan(context.Background(), cleanup.PlanOptions{IncludeMovies: true, WatchedBeforeDays: -1})
	if err != nil {
		t.Fatalf("an unavailable catalog must not abort planning: %v", err)
	}
	if len(plan.Movies) != 0 {
		t.Fatalf("expected no movie candidates, got %+v", plan.Movies)
	}
}

func TestPlanUsersFallbackToCurrentUser(t *testing.T) {
	t.Parallel()

	server := &fakeServer{
		users:    []jellyfin.User{{ID: "u1", Name: "alice"}},
		usersErr: &services.Error{Service: "jellyfin", Op: "list users", Kind: services.KindUnavailable, Status: 403},
		watched: map[string][]jellyfin.Item{
			"u1/Movie": {{ID: "m1", Name: "The Matrix", ProductionYear: 1999}},
		},
	}
	movies := &fakeMovies{movies: []radarr.Movie{{ID: 10, Title: "Matrix", Year: 1999}}}

	engine := cleanup.NewEngine(server, movies, nil, nil, testLogger())
	plan, err := engine.Plan(context.Background(), cleanup.PlanOptions{IncludeMovies: true, WatchedBeforeDays: -1})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Movies) != 1 {
		t.Fatalf("expected fallback user's watches to plan, got %+v", plan.Movies)
	}
}

func TestPlanSeriesWithFavoriteEpisodeFallsBackToEpisodes(t *testing.T) {
	t.Parallel()

	season := 1
	ep1, ep2 := 1, 2
	server := &fakeServer{
		users: []jellyfin.User{{ID: "u1", Name: "alice"}},
		watched: map[string][]jellyfin.Item{
			"u1/Series": {{ID: "s1", Name: "Breaking Bad", ProductionYear: 2008}},
		},
		watchedEpisodes: map[string][]jellyfin.Item{
			"u1/s1": {
				{ID: "e1", Name: "Pilot", ParentIndexNumber: &season, IndexNumber: &ep1},
				{ID: "e2", Name: "Cat's in the Bag", ParentIndexNumber: &season, IndexNumber: &ep2},
			},
		},
		favoriteEpisodes: map[string][]jellyfin.Item{
			"u1/s1": {{ID: "e1", Name: "Pilot", ParentIndexNumber: &season, IndexNumber: &ep1}},
		},
	}
	series := &fakeSeries{
		series: []sonarr.Series{{ID: 7, Title: "Breaking Bad", Year: 2008}},
		episodes: map[int64][]sonarr.Episode{
			7: {
				{ID: 100, SeasonNumber: 1, EpisodeNumber: 1, Monitored: true, HasFile: true},
				{ID: 101, SeasonNumber: 1, EpisodeNumber: 2, Monitored: true, HasFile: true},
			},
		},
	}

	engine := cleanup.NewEngine(server, nil, series, nil, testLogger())
	plan, err := engine.Plan(context.Background(), cleanup.PlanOptions{
		IncludeSeries:     true,
		CollectEpisodes:   true,
		WatchedBeforeDays: -1,
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Series) != 0 {
		t.Fatal("a series with a favorited episode must not be deleted whole")
	}
	if len(plan.Episodes) != 1 {
		t.Fatalf("expected 1 episode after excluding the favorite, got %d", len(plan.Episodes))
	}
	episode := plan.Episodes[0]
	if episode.JellyfinID != "e2" || episode.SonarrEpisodeID != 101 {
		t.Fatalf("unexpected episode %+v", episode)
	}
}

func TestPlanDropsEpisodesWithoutSonarrRecord(t *testing.T) {
	t.Parallel()

	season := 1
	ep2, ep3 := 2, 3
	server := &fakeServer{
		users: []jellyfin.User{{ID: "u1", Name: "alice"}},
		watched: map[string][]jellyfin.Item{
			"u1/Series": {{ID: "s1", Name: "Breaking Bad", ProductionYear: 2008}},
		},
		watchedEpisodes: map[string][]jellyfin.Item{
			"u1/s1": {
				{ID: "e2", Name: "Cat's in the Bag", ParentIndexNumber: &season, IndexNumber: &ep2},
				{ID: "e3", Name: "Orphaned", ParentIndexNumber: &season, IndexNumber: &ep3},
			},
		},
		favoriteEpisodes: map[string][]jellyfin.Item{
			"u1/s1": {{ID: "e1", Name: "Pilot"}},
		},
	}
	// Sonarr only knows the first two episodes; e3 has no record to join.
	series := &fakeSeries{
		series: []sonarr.Series{{ID: 7, Title: "Breaking Bad", Year: 2008}},
		episodes: map[int64][]sonarr.Episode{
			7: {
				{ID: 100, SeasonNumber: 1, EpisodeNumber: 1, Monitored: true, HasFile: true},
				{ID: 101, SeasonNumber: 1, EpisodeNumber: 2, Monitored: true, HasFile: true},
			},
		},
	}

	engine := cleanup.NewEngine(server, nil, series, nil, testLogger())
	plan, err := engine.Plan(context.Background(), cleanup.PlanOptions{
		IncludeSeries:     true,
		CollectEpisodes:   true,
		WatchedBeforeDays: -1,
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Episodes) != 1 {
		t.Fatalf("an episode unknown to Sonarr must not be planned, got %+v", plan.Episodes)
	}
	if plan.Episodes[0].JellyfinID != "e2" || plan.Episodes[0].SonarrEpisodeID != 101 {
		t.Fatalf("unexpected episode %+v", plan.Episodes[0])
	}
}

func TestPlanFullyDownloadedSeriesDeletedWhole(t *testing.T) {
	t.Parallel()

	server := &fakeServer{
		users: []jellyfin.User{{ID: "u1", Name: "alice"}},
		watched: map[string][]jellyfin.Item{
			"u1/Series": {{ID: "s1", Name: "Breaking Bad", ProductionYear: 2008}},
		},
	}
	series := &fakeSeries{
		series: []sonarr.Series{{ID: 7, Title: "Breaking Bad", Year: 2008}},
		episodes: map[int64][]sonarr.Episode{
			7: {{ID: 100, SeasonNumber: 1, EpisodeNumber: 1, Monitored: true, HasFile: true}},
		},
	}

	engine := cleanup.NewEngine(server, nil, series, nil, testLogger())
	plan, err := engine.Plan(context.Background(), cleanup.PlanOptions{IncludeSeries: true, WatchedBeforeDays: -1})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Series) != 1 || plan.Series[0].Entry.ID != 7 {
		t.Fatalf("expected whole-series candidate, got %+v", plan.Series)
	}
	if !plan.Series[0].FullyDownloaded {
		t.Fatal("expected fully downloaded flag")
	}

	result := engine.Execute(context.Background(), plan, cleanup.ExecuteOptions{})
	if result.SeriesDeleted != 1 || len(series.deleted) != 1 {
		t.Fatalf("expected series deletion, got %+v", result)
	}
}

func TestPlanPartiallyDownloadedSeriesStillDeletedWhole(t *testing.T) {
	t.Parallel()

	server := &fakeServer{
		users: []jellyfin.User{{ID: "u1", Name: "alice"}},
		watched: map[string][]jellyfin.Item{
			"u1/Series": {{ID: "s1", Name: "Breaking Bad", ProductionYear: 2008}},
		},
	}
	series := &fakeSeries{
		series: []sonarr.Series{{ID: 7, Title: "Breaking Bad", Year: 2008}},
		episodes: map[int64][]sonarr.Episode{
			7: {
				{ID: 100, SeasonNumber: 1, EpisodeNumber: 1, Monitored: true, HasFile: true},
				{ID: 101, SeasonNumber: 1, EpisodeNumber: 2, Monitored: true, HasFile: false},
			},
		},
	}

	engine := cleanup.NewEngine(server, nil, series, nil, testLogger())
	plan, err := engine.Plan(context.Background(), cleanup.PlanOptions{IncludeSeries: true, WatchedBeforeDays: -1})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Series) != 1 || plan.Series[0].Entry.ID != 7 {
		t.Fatalf("a watched series without favorites must be a whole-series candidate, got %+v", plan.Series)
	}
	if plan.Series[0].FullyDownloaded {
		t.Fatal("expected the missing file to clear the fully downloaded flag")
	}
}

func TestPlanTorrentPresenceMarksCandidate(t *testing.T) {
	t.Parallel()

	server := &fakeServer{
		users: []jellyfin.User{{ID: "u1", Name: "alice"}},
		watched: map[string][]jellyfin.Item{
			"u1/Movie": {{ID: "m1", Name: "The Matrix", ProductionYear: 1999}},
		},
	}
	movies := &fakeMovies{movies: []radarr.Movie{{ID: 10, Title: "Matrix", Year: 1999}}}
	torrents := &fakeTorrents{present: map[string]bool{"The Matrix": true}}

	engine := cleanup.NewEngine(server, movies, nil, torrents, testLogger())
	plan, err := engine.Plan(context.Background(), cleanup.PlanOptions{IncludeMovies: true, WatchedBeforeDays: -1})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Movies) != 1 || !plan.Movies[0].InTorrents {
		t.Fatalf("expected candidate marked as present in torrents, got %+v", plan.Movies)
	}

	safe, skipped := cleanup.FilterSafe(plan)
	if skipped != 1 || len(safe.Movies) != 0 {
		t.Fatalf("expected safety gate to skip the candidate, got skipped=%d plan=%+v", skipped, safe)
	}
}

func TestExecuteIsolatesFailures(t *testing.T) {
	t.Parallel()

	server := &fakeServer{
		users: []jellyfin.User{{ID: "u1", Name: "alice"}},
		watched: map[string][]jellyfin.Item{
			"u1/Movie": {
				{ID: "m1", Name: "Alpha", ProductionYear: 2001},
				{ID: "m2", Name: "Beta", ProductionYear: 2002},
				{ID: "m3", Name: "Gamma", ProductionYear: 2003},
			},
		},
	}
	movies := &fakeMovies{
		movies: []radarr.Movie{
			{ID: 10, Title: "Alpha", Year: 2001},
			{ID: 11, Title: "Beta", Year: 2002},
			{ID: 12, Title: "Gamma", Year: 2003},
		},
		deleteErr: map[int64]error{11: errors.New("backend exploded")},
	}

	engine := cleanup.NewEngine(server, movies, nil, nil, testLogger())
	plan, err := engine.Plan(context.Background(), cleanup.PlanOptions{IncludeMovies: true, WatchedBeforeDays: -1})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Movies) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(plan.Movies))
	}

	var observed []string
	result := engine.Execute(context.Background(), plan, cleanup.ExecuteOptions{
		DeleteFiles: true,
		Observer: func(category, title, remoteID string, err error) {
			observed = append(observed, category+"/"+title)
		},
	})
	if result.MoviesDeleted != 2 {
		t.Fatalf("expected 2 deletions despite the failure, got %d", result.MoviesDeleted)
	}
	if result.Failures != 1 || result.MoviesFailed != 1 || len(result.Errors) != 1 {
		t.Fatalf("expected 1 isolated movie failure, got %+v", result)
	}
	if len(observed) != 3 {
		t.Fatalf("expected observer called for every attempt, got %v", observed)
	}
}

func TestExecuteEpisodesDeleteAndUnmonitor(t *testing.T) {
	t.Parallel()

	server := &fakeServer{}
	series := &fakeSeries{}
	engine := cleanup.NewEngine(server, nil, series, nil, testLogger())

	plan := &cleanup.Plan{
		Episodes: []cleanup.EpisodeCleanup{
			{SeriesName: "Breaking Bad", EpisodeName: "Pilot", JellyfinID: "e1", SeasonNumber: 1, EpisodeNumber: 1, SonarrEpisodeID: 100},
			{SeriesName: "Breaking Bad", EpisodeName: "Cat's in the Bag", JellyfinID: "e2", SeasonNumber: 1, EpisodeNumber: 2, SonarrEpisodeID: 101},
		},
	}
	result := engine.Execute(context.Background(), plan, cleanup.ExecuteOptions{})
	if result.EpisodesDeleted != 2 {
		t.Fatalf("expected 2 episode deletions, got %d", result.EpisodesDeleted)
	}
	if result.EpisodesUnmonitored != 2 {
		t.Fatalf("expected 2 unmonitored episodes, got %d", result.EpisodesUnmonitored)
	}
	if len(server.deleted) != 2 {
		t.Fatalf("expected Jellyfin deletions, got %v", server.deleted)
	}
	if len(series.unmonitored) != 2 || series.unmonitored[0] != 100 || series.unmonitored[1] != 101 {
		t.Fatalf("expected episodes 100 and 101 unmonitored, got %v", series.unmonitored)
	}
}

func TestFilterByScoreUsesPlainSimilarity(t *testing.T) {
	t.Parallel()

	plan := &cleanup.Plan{
		Movies: []cleanup.MatchCandidate{
			{Entry: cleanup.CatalogEntry{ID: 1, Title: "Exact"}, Score: 1.0},
			{Entry: cleanup.CatalogEntry{ID: 2, Title: "Fuzzy"}, Score: 0.85},
		},
	}
	filtered, skipped := cleanup.FilterByScore(plan, 0.9)
	if skipped != 1 || len(filtered.Movies) != 1 || filtered.Movies[0].Entry.ID != 1 {
		t.Fatalf("expected only the exact match to survive, got %+v", filtered)
	}
}
