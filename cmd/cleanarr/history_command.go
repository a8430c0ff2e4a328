package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"cleanarr/internal/history"
)

func newHistoryCommand(cmdCtx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent cleanup runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistoryStore(cmdCtx)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("load run history: %w", err)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs.")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				mode := "delete"
				if run.DryRun {
					mode = "dry run"
				}
				rows = append(rows, []string{
					run.ID,
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					mode,
					strconv.Itoa(run.MoviesDeleted),
					strconv.Itoa(run.SeriesDeleted),
					strconv.Itoa(run.EpisodesDeleted),
					strconv.Itoa(run.Failures),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Run", "Started", "Mode", "Movies", "Series", "Episodes", "Failures"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	cmd.AddCommand(newHistoryShowCommand(cmdCtx))
	cmd.AddCommand(newHistoryPruneCommand(cmdCtx))
	return cmd
}

func newHistoryShowCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the deletions of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistoryStore(cmdCtx)
			if err != nil {
				return err
			}
			defer store.Close()

			deletions, err := store.Deletions(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load deletions: %w", err)
			}
			if len(deletions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No deletions recorded for this run.")
				return nil
			}

			rows := make([][]string, 0, len(deletions))
			for _, deletion := range deletions {
				rows = append(rows, []string{
					deletion.Category,
					deletion.Title,
					deletion.Status,
					deletion.Error,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Category", "Title", "Status", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newHistoryPruneCommand(cmdCtx *commandContext) *cobra.Command {
	var keepDays int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistoryStore(cmdCtx)
			if err != nil {
				return err
			}
			defer store.Close()

			pruned, err := store.Prune(cmd.Context(), time.Duration(keepDays)*24*time.Hour)
			if err != nil {
				return fmt.Errorf("prune history: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d run(s)\n", pruned)
			return nil
		},
	}

	cmd.Flags().IntVar(&keepDays, "keep-days", 90, "Keep runs newer than this many days")
	return cmd
}

func openHistoryStore(cmdCtx *commandContext) (*history.Store, error) {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled || cfg.History.Path == "" {
		return nil, fmt.Errorf("history is disabled in the configuration")
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return store, nil
}
