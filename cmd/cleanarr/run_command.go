package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"cleanarr/internal/cleanup"
	"cleanarr/internal/config"
	"cleanarr/internal/history"
	"cleanarr/internal/logging"
	"cleanarr/internal/services"
	"cleanarr/internal/services/jellyfin"
	"cleanarr/internal/services/qbittorrent"
	"cleanarr/internal/services/radarr"
	"cleanarr/internal/services/sonarr"
)

type runFlags struct {
	delete              bool
	keepFiles           bool
	addExclusion        bool
	moviesOnly          bool
	seriesOnly          bool
	episodes            bool
	watchedBeforeDays   int
	similarityThreshold float64
}

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	flags := runFlags{watchedBeforeDays: -1, similarityThreshold: -1}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Plan and optionally execute a cleanup pass",
		Long: `Reconciles media watched in Jellyfin against the Radarr and Sonarr
catalogs and builds a deletion plan. Without --delete the plan is only
printed; with --delete the matched media is removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			if flags.moviesOnly && flags.seriesOnly {
				return fmt.Errorf("--movies-only and --series-only are mutually exclusive")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runCleanup(ctx, cfg, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.delete, "delete", false, "Execute the plan instead of printing it")
	cmd.Flags().BoolVar(&flags.keepFiles, "keep-files", false, "Remove catalog entries but keep media files on disk")
	cmd.Flags().BoolVar(&flags.addExclusion, "add-exclusion", false, "Block deleted media from automatic re-import")
	cmd.Flags().BoolVar(&flags.moviesOnly, "movies-only", false, "Consider only movies")
	cmd.Flags().BoolVar(&flags.seriesOnly, "series-only", false, "Consider only series")
	cmd.Flags().BoolVar(&flags.episodes, "episodes", false, "Clean up watched episodes of series that cannot be deleted whole")
	cmd.Flags().IntVar(&flags.watchedBeforeDays, "watched-before-days", -1, "Only consider media last watched at least this many days ago")
	cmd.Flags().Float64Var(&flags.similarityThreshold, "similarity-threshold", -1, "Minimum title similarity for a candidate (0 to 1)")

	return cmd
}

func runCleanup(ctx context.Context, cfg *config.Config, flags runFlags) error {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	logger = logging.WithComponent(logger, "run")

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another cleanup pass is already running (lock %s)", cfg.LockPath())
	}
	defer func() { _ = lock.Unlock() }()

	server, err := connectJellyfin(ctx, cfg, logger)
	if err != nil {
		return err
	}
	movies := connectRadarr(ctx, cfg, logger)
	series := connectSonarr(ctx, cfg, logger)
	torrents := connectQbittorrent(ctx, cfg, logger)

	engine := cleanup.NewEngine(server, movies, series, torrents, logger)

	planOpts := cleanup.PlanOptions{
		MatchThreshold:    cfg.Cleanup.MatchThreshold,
		WatchedBeforeDays: cfg.Cleanup.WatchedBeforeDays,
		IncludeMovies:     !flags.seriesOnly,
		IncludeSeries:     !flags.moviesOnly,
		CollectEpisodes:   flags.episodes || cfg.Cleanup.CollectEpisodes,
	}
	if flags.watchedBeforeDays >= 0 {
		planOpts.WatchedBeforeDays = flags.watchedBeforeDays
	}

	plan, err := engine.Plan(ctx, planOpts)
	if err != nil {
		return fmt.Errorf("build cleanup plan: %w", err)
	}

	similarity := cfg.Cleanup.SimilarityThreshold
	if flags.similarityThreshold >= 0 {
		similarity = flags.similarityThreshold
	}
	plan, skippedScore := cleanup.FilterByScore(plan, similarity)

	skippedSafety := 0
	if cfg.Cleanup.SafetyGate {
		plan, skippedSafety = cleanup.FilterSafe(plan)
		if skippedSafety > 0 {
			logger.Info("safety gate skipped candidates still in torrents", "skipped", skippedSafety)
		}
	}

	printPlan(plan, flags.delete)
	if plan.Empty() {
		fmt.Println("Nothing to clean up.")
		return nil
	}

	runID := uuid.NewString()
	store := openHistory(cfg, logger)
	if store != nil {
		defer store.Close()
		if err := store.BeginRun(ctx, runID, time.Now(), !flags.delete); err != nil {
			logger.Warn("failed to record run start", "error", err)
		}
	}

	execOpts := cleanup.ExecuteOptions{
		DryRun:       !flags.delete,
		DeleteFiles:  cfg.Cleanup.DeleteFiles && !flags.keepFiles,
		AddExclusion: cfg.Cleanup.AddExclusion || flags.addExclusion,
	}
	if store != nil && flags.delete {
		execOpts.Observer = func(category, title, remoteID string, err error) {
			if recordErr := store.RecordDeletion(ctx, runID, category, title, remoteID, err); recordErr != nil {
				logger.Warn("failed to record deletion", "title", title, "error", recordErr)
			}
		}
	}

	result := engine.Execute(ctx, plan, execOpts)
	result.Skipped = skippedScore + skippedSafety

	if store != nil {
		if err := store.FinishRun(ctx, runID, time.Now(), result); err != nil {
			logger.Warn("failed to record run result", "error", err)
		}
	}

	printResult(result, flags.delete)
	if len(result.Errors) > 0 {
		return fmt.Errorf("%d deletions failed", result.Failures)
	}
	return nil
}

func connectJellyfin(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*jellyfin.Client, error) {
	client, err := jellyfin.New(cfg.Jellyfin.URL, cfg.Jellyfin.APIKey)
	if err != nil {
		return nil, fmt.Errorf("configure jellyfin client: %w", err)
	}
	if err := client.Probe(ctx); err != nil {
		return nil, fmt.Errorf("connect to jellyfin: %w", err)
	}
	logger.Debug("jellyfin reachable", "url", cfg.Jellyfin.URL)
	return client, nil
}

// connectRadarr returns nil when Radarr is unconfigured or unreachable;
// the engine then skips movies for this pass.
func connectRadarr(ctx context.Context, cfg *config.Config, logger *slog.Logger) cleanup.MovieCatalog {
	if cfg.Radarr.URL == "" {
		return nil
	}
	var opts []radarr.Option
	if cfg.Radarr.Username != "" {
		opts = append(opts, radarr.WithBasicAuth(cfg.Radarr.Username, cfg.Radarr.Password))
	}
	client, err := radarr.New(cfg.Radarr.URL, cfg.Radarr.APIKey, opts...)
	if err != nil {
		logger.Warn("radarr misconfigured, skipping movies", "error", err)
		return nil
	}
	if _, err := client.SystemStatus(ctx); err != nil {
		if services.IsUnavailable(err) || services.IsTransient(err) {
			logger.Warn("radarr unreachable, skipping movies", "error", err)
			return nil
		}
		logger.Warn("radarr probe failed, skipping movies", "error", err)
		return nil
	}
	return client
}

// connectSonarr returns nil when Sonarr is unconfigured or unreachable;
// the engine then skips series for this pass.
func connectSonarr(ctx context.Context, cfg *config.Config, logger *slog.Logger) cleanup.SeriesCatalog {
	if cfg.Sonarr.URL == "" {
		return nil
	}
	var opts []sonarr.Option
	if cfg.Sonarr.Username != "" {
		opts = append(opts, sonarr.WithBasicAuth(cfg.Sonarr.Username, cfg.Sonarr.Password))
	}
	client, err := sonarr.New(cfg.Sonarr.URL, cfg.Sonarr.APIKey, opts...)
	if err != nil {
		logger.Warn("sonarr misconfigured, skipping series", "error", err)
		return nil
	}
	if _, err := client.SystemStatus(ctx); err != nil {
		logger.Warn("sonarr unreachable, skipping series", "error", err)
		return nil
	}
	return client
}

// connectQbittorrent returns nil when the download client is absent; the
// torrent presence check then reports everything as absent.
func connectQbittorrent(ctx context.Context, cfg *config.Config, logger *slog.Logger) cleanup.TorrentChecker {
	if cfg.Qbittorrent.URL == "" {
		return nil
	}
	var opts []qbittorrent.Option
	if cfg.Qbittorrent.UseBasicAuth {
		opts = append(opts, qbittorrent.WithBasicAuth())
	}
	client, err := qbittorrent.New(cfg.Qbittorrent.URL, cfg.Qbittorrent.Username, cfg.Qbittorrent.Password, opts...)
	if err != nil {
		logger.Warn("qbittorrent misconfigured, skipping torrent checks", "error", err)
		return nil
	}
	if _, err := client.Version(ctx); err != nil {
		logger.Warn("qbittorrent unreachable, skipping torrent checks", "error", err)
		return nil
	}
	return client
}

func openHistory(cfg *config.Config, logger *slog.Logger) *history.Store {
	if !cfg.History.Enabled || cfg.History.Path == "" {
		return nil
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		logger.Warn("history store unavailable, run will not be recorded", "error", err)
		return nil
	}
	return store
}

func printPlan(plan *cleanup.Plan, deleting bool) {
	verb := "Would delete"
	if deleting {
		verb = "Deleting"
	}

	if len(plan.Movies) > 0 {
		rows := make([][]string, 0, len(plan.Movies))
		for _, movie := range plan.Movies {
			rows = append(rows, []string{
				movie.Entry.Title,
				strconv.Itoa(movie.Entry.Year),
				fmt.Sprintf("%.2f", movie.Score),
				yesNo(movie.Item.Favorite),
			})
		}
		fmt.Printf("%s %d movie(s):\n", verb, len(plan.Movies))
		fmt.Println(renderTable(
			[]string{"Title", "Year", "Score", "Favorite"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
		))
	}

	if len(plan.Series) > 0 {
		rows := make([][]string, 0, len(plan.Series))
		for _, series := range plan.Series {
			rows = append(rows, []string{
				series.Entry.Title,
				strconv.Itoa(series.Entry.Year),
				fmt.Sprintf("%.2f", series.Score),
				yesNo(series.FullyDownloaded),
			})
		}
		fmt.Printf("%s %d series:\n", verb, len(plan.Series))
		fmt.Println(renderTable(
			[]string{"Title", "Year", "Score", "Complete"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
		))
	}

	if len(plan.Episodes) > 0 {
		rows := make([][]string, 0, len(plan.Episodes))
		for _, episode := range plan.Episodes {
			rows = append(rows, []string{
				episode.SeriesName,
				fmt.Sprintf("S%02dE%02d", episode.SeasonNumber, episode.EpisodeNumber),
				episode.EpisodeName,
			})
		}
		fmt.Printf("%s %d episode(s):\n", verb, len(plan.Episodes))
		fmt.Println(renderTable(
			[]string{"Series", "Episode", "Name"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft},
		))
	}
}

func printResult(result cleanup.Result, deleted bool) {
	mode := "dry run"
	if deleted {
		mode = "executed"
	}
	fmt.Printf("Cleanup %s: %d movie(s), %d series, %d episode(s); %d skipped, %d failed\n",
		mode, result.MoviesDeleted, result.SeriesDeleted, result.EpisodesDeleted,
		result.Skipped, result.Failures)
	if result.Failures > 0 {
		fmt.Printf("  failed: %d movie(s), %d series, %d episode(s)\n",
			result.MoviesFailed, result.SeriesFailed, result.EpisodesFailed)
	}
	for _, msg := range result.Errors {
		fmt.Println("  error:", msg)
	}
}
