package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"goatfarm-breeding-forecast/internal/breeding"
	"goatfarm-breeding-forecast/internal/export"
	"goatfarm-breeding-forecast/internal/history"
	"goatfarm-breeding-forecast/internal/records"
)

var (
	forecastInput     string
	forecastOwner     string
	forecastAsOf      string
	forecastFormat    string
	forecastJSON      string
	forecastAlerts    string
	forecastMinStatus string
	forecastExport    string
	forecastDB        bool
	forecastDBSchema  string
	forecastDBTag     string
	forecastInitDB    bool
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast upcoming kiddings from breeding records",
	Long: "Normalizes breeding records from a snapshot file (--input) or the record store " +
		"(--owner), resolves due dates and lists births due within the horizon.",
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := parseAsOf(forecastAsOf, time.Now())
		if err != nil {
			return err
		}
		minStatus, ok := breeding.ParseStatus(forecastMinStatus)
		if !ok {
			return eris.Errorf("invalid --min-status %q", forecastMinStatus)
		}

		fc, source, err := buildForecast(cmd.Context(), forecastInput, forecastOwner, asOf)
		if err != nil {
			return err
		}
		return emitForecast(cmd.Context(), cmd.OutOrStdout(), fc, source, minStatus)
	},
}

func init() {
	f := forecastCmd.Flags()
	f.StringVar(&forecastInput, "input", "", "breeding snapshot file (JSON or YAML)")
	f.StringVar(&forecastOwner, "owner", "", "farm owner whose stored breeding records are used")
	f.StringVar(&forecastAsOf, "as-of", "", "forecast as-of date (YYYY-MM-DD, default today)")
	f.StringVar(&forecastFormat, "format", "text", "stdout format: text, json or yaml")
	f.StringVar(&forecastJSON, "json", "", "optional JSON output path")
	f.StringVar(&forecastAlerts, "alerts", "", "optional CSV output for alert statuses")
	f.StringVar(&forecastMinStatus, "min-status", "due_soon", "minimum status for alerts (scheduled, due_soon, overdue)")
	f.StringVar(&forecastExport, "export", "", "export the forecast to the configured sink (csv, xlsx or json)")
	f.BoolVar(&forecastDB, "db", false, "store the run in Postgres (history.database_url or DATABASE_URL)")
	f.StringVar(&forecastDBSchema, "db-schema", "", "Postgres schema for history tables (default from config)")
	f.StringVar(&forecastDBTag, "db-tag", "", "optional label for this forecast run")
	f.BoolVar(&forecastInitDB, "init-db", false, "create history tables and seed them if empty")
	rootCmd.AddCommand(forecastCmd)
}

// buildForecast loads the raw breeding collection and summarizes it under the
// configured policy.
func buildForecast(ctx context.Context, input, owner string, asOf time.Time) (breeding.Forecast, string, error) {
	raw, source, err := loadBreeding(ctx, input, owner)
	if err != nil {
		return breeding.Forecast{}, "", err
	}
	policy := cfg.Breeding
	normalized := policy.Normalize(raw)
	if skipped := len(breeding.Items(raw)) - len(normalized); skipped > 0 {
		zap.L().Debug("skipped malformed breeding entries", zap.Int("skipped", skipped), zap.String("source", source))
	}
	return policy.Summarize(normalized, asOf), source, nil
}

func loadBreeding(ctx context.Context, input, owner string) (any, string, error) {
	if input != "" {
		raw, err := records.LoadSnapshot(input)
		if err != nil {
			return nil, "", err
		}
		return raw, filepath.Base(input), nil
	}
	if err := requireOwner(owner); err != nil {
		return nil, "", eris.New("--input or --owner is required")
	}
	store, err := openStore(ctx)
	if err != nil {
		return nil, "", err
	}
	defer store.Close()
	raw, err := store.List(ctx, owner, records.CollectionBreeding)
	if err != nil {
		return nil, "", err
	}
	return raw, owner, nil
}

func emitForecast(ctx context.Context, w io.Writer, fc breeding.Forecast, source string, minStatus breeding.Status) error {
	switch forecastFormat {
	case "", "text":
		printForecast(w, fc, source)
	default:
		if err := encode(w, forecastFormat, export.NewForecastDocument(fc)); err != nil {
			return err
		}
	}

	if forecastJSON != "" {
		if err := writeJSON(export.NewForecastDocument(fc), forecastJSON); err != nil {
			return err
		}
		fmt.Fprintf(w, "\nJSON forecast saved to %s\n", forecastJSON)
	}

	if forecastAlerts != "" {
		if err := writeAlertsCSV(fc, forecastAlerts, minStatus); err != nil {
			return err
		}
		fmt.Fprintf(w, "Alert CSV saved to %s\n", forecastAlerts)
	}

	if forecastExport != "" {
		format, err := export.ParseFormat(forecastExport)
		if err != nil {
			return err
		}
		data, err := export.RenderForecast(fc, minStatus, format)
		if err != nil {
			return err
		}
		if err := exportTo(ctx, w, export.FileName("forecast", fc.AsOf, format), data, format); err != nil {
			return err
		}
	}

	if forecastDB || forecastInitDB {
		return recordForecast(ctx, w, fc, source)
	}
	return nil
}

func recordForecast(ctx context.Context, w io.Writer, fc breeding.Forecast, source string) error {
	if cfg.History.DatabaseURL == "" {
		return eris.New("database URL missing; set GOATFARM_HISTORY_DATABASE_URL or DATABASE_URL")
	}
	schema := forecastDBSchema
	if schema == "" {
		schema = cfg.History.Schema
	}
	recorder, err := history.Open(ctx, cfg.History.DatabaseURL, schema)
	if err != nil {
		return err
	}
	defer recorder.Close()

	owner := forecastOwner
	if owner == "" {
		owner = source
	}

	seeded := false
	if forecastInitDB {
		runID, err := recorder.Seed(ctx, owner, fc, forecastDBTag)
		if err != nil {
			return err
		}
		if runID != "" {
			seeded = true
			fmt.Fprintf(w, "\nSeeded Postgres with initial forecast run (run_id=%s)\n", runID)
		}
	}
	if !forecastDB {
		return nil
	}
	if seeded {
		fmt.Fprintln(w, "Skipped duplicate insert; current forecast already used for seed.")
		return nil
	}
	runID, err := recorder.Record(ctx, owner, fc, forecastDBTag)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nStored forecast run in Postgres (run_id=%s)\n", runID)
	return nil
}
