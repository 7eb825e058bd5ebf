package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"goatfarm-breeding-forecast/internal/history"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create record store and forecast history tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()

		// Open migrates the store before returning it.
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		_ = store.Close()
		fmt.Fprintf(w, "Record store ready (driver=%s)\n", cfg.Store.Driver)

		if cfg.History.DatabaseURL == "" {
			fmt.Fprintln(w, "Forecast history not configured; skipped.")
			return nil
		}
		recorder, err := history.Open(cmd.Context(), cfg.History.DatabaseURL, cfg.History.Schema)
		if err != nil {
			return err
		}
		defer recorder.Close()
		fmt.Fprintln(w, "Forecast history tables ready")
		return nil
	},
}

var (
	historyOwner string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored forecast runs for a farm",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireOwner(historyOwner); err != nil {
			return err
		}
		if cfg.History.DatabaseURL == "" {
			return eris.New("database URL missing; set GOATFARM_HISTORY_DATABASE_URL or DATABASE_URL")
		}
		recorder, err := history.Open(cmd.Context(), cfg.History.DatabaseURL, cfg.History.Schema)
		if err != nil {
			return err
		}
		defer recorder.Close()

		runs, err := recorder.Recent(cmd.Context(), historyOwner, historyLimit)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(w, "No forecast runs stored.")
			return nil
		}
		for _, run := range runs {
			tag := run.Tag
			if tag == "" {
				tag = "-"
			}
			fmt.Fprintf(w, "%s | as of %s | total %d | due soon %d | overdue %d | listed %d | %s\n",
				run.ID, run.AsOf.Format("2006-01-02"), run.TotalCount, run.DueSoonCount,
				run.OverdueCount, run.ListedCount, tag)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyOwner, "owner", "", "farm owner")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum runs to list")
	rootCmd.AddCommand(migrateCmd, historyCmd)
}
