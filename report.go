package main

import (
	"time"

	"github.com/spf13/cobra"

	"goatfarm-breeding-forecast/internal/export"
	"goatfarm-breeding-forecast/internal/herd"
)

var (
	reportOwner  string
	reportAsOf   string
	reportTop    int
	reportFormat string
	reportExport string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build the farm report: sales, revenue, predicted births and advice",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireOwner(reportOwner); err != nil {
			return err
		}
		asOf, err := parseAsOf(reportAsOf, time.Now())
		if err != nil {
			return err
		}
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		farm, err := herd.Load(cmd.Context(), store, reportOwner)
		if err != nil {
			return err
		}
		report := herd.BuildReport(farm, asOf, herd.Options{Policy: cfg.Breeding, TopSales: reportTop})

		w := cmd.OutOrStdout()
		switch reportFormat {
		case "", "text":
			printReport(w, report)
		default:
			doc := export.ReportDocument{Report: report, Forecast: export.NewForecastDocument(report.Forecast)}
			if err := encode(w, reportFormat, doc); err != nil {
				return err
			}
		}

		if reportExport == "" {
			return nil
		}
		format, err := export.ParseFormat(reportExport)
		if err != nil {
			return err
		}
		data, err := export.RenderReport(report, format)
		if err != nil {
			return err
		}
		return exportTo(cmd.Context(), w, export.FileName("report", report.AsOf, format), data, format)
	},
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportOwner, "owner", "", "farm owner")
	f.StringVar(&reportAsOf, "as-of", "", "report as-of date (YYYY-MM-DD, default today)")
	f.IntVar(&reportTop, "top", herd.DefaultTopSales, "number of top sales to list")
	f.StringVar(&reportFormat, "format", "text", "stdout format: text, json or yaml")
	f.StringVar(&reportExport, "export", "", "export the report to the configured sink (csv, xlsx or json)")
	rootCmd.AddCommand(reportCmd)
}
