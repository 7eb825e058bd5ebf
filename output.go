package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"goatfarm-breeding-forecast/internal/breeding"
	"goatfarm-breeding-forecast/internal/export"
	"goatfarm-breeding-forecast/internal/herd"
	"goatfarm-breeding-forecast/internal/records"
)

const ruleWidth = 38

// parseAsOf resolves an --as-of flag value, defaulting to now.
func parseAsOf(value string, now time.Time) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return breeding.DateOnly(now), nil
	}
	parsed, ok := breeding.ParseDate(value)
	if !ok {
		return time.Time{}, eris.Errorf("invalid --as-of date %q", value)
	}
	return parsed, nil
}

// openStore opens the configured record store for a single command. The
// memory driver lives only as long as the process, so records written
// through it are gone when the command exits.
func openStore(ctx context.Context) (records.Store, error) {
	store, err := records.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open record store")
	}
	if isMemoryDriver(cfg.Store.Driver) {
		zap.L().Warn("memory record store does not persist between commands; set store.driver to sqlite or postgres")
	}
	zap.L().Debug("record store opened", zap.String("driver", cfg.Store.Driver))
	return store, nil
}

func isMemoryDriver(driver string) bool {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "memory":
		return true
	}
	return false
}

func requireOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return eris.New("--owner is required")
	}
	return nil
}

func printForecast(w io.Writer, fc breeding.Forecast, source string) {
	fmt.Fprintln(w, "Goat Farm Breeding Forecast")
	fmt.Fprintln(w, strings.Repeat("=", ruleWidth))
	fmt.Fprintf(w, "Source: %s\n", source)
	fmt.Fprintf(w, "As of: %s\n", breeding.FormatDate(fc.AsOf))
	fmt.Fprintf(w, "Window: due soon %d days, horizon %d days\n", fc.DueSoonDays, fc.HorizonDays)
	fmt.Fprintf(w, "Expected births: %d | Due soon: %d | Overdue: %d\n", fc.TotalCount, fc.DueSoonCount, fc.OverdueCount)

	fmt.Fprintln(w, "\nUpcoming births")
	fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
	if len(fc.Entries) == 0 {
		fmt.Fprintln(w, "No births within the horizon.")
	} else {
		for _, entry := range fc.Entries {
			fmt.Fprintf(w, "%s x %s | due %s | %d days | %s\n",
				entry.FemaleID,
				entry.MaleID,
				breeding.FormatDate(entry.DueDate),
				entry.DaysLeft,
				entry.Status.Label(),
			)
		}
	}

	fmt.Fprintf(w, "\n%s\n", fc.Insight())
}

func printReport(w io.Writer, report herd.Report) {
	fmt.Fprintf(w, "%s Report\n", report.FarmName)
	fmt.Fprintln(w, strings.Repeat("=", ruleWidth))
	fmt.Fprintf(w, "As of: %s\n", breeding.FormatDate(report.AsOf))
	fmt.Fprintf(w, "Goats: %d (%d male, %d female) | Breeding: %d | Health: %d | Sales: %d\n",
		report.Goats.Total, report.Goats.Males, report.Goats.Females,
		report.Summary.Breeding, report.Summary.Health, report.Summary.Sales)
	fmt.Fprintf(w, "Total revenue: Ksh %s\n", herd.FormatAmount(report.TotalRevenue))

	fmt.Fprintln(w, "\nTop sales")
	fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
	if len(report.TopSales) == 0 {
		fmt.Fprintln(w, "No sales recorded.")
	}
	for _, sale := range report.TopSales {
		buyer := sale.Buyer
		if buyer == "" {
			buyer = "Unknown buyer"
		}
		fmt.Fprintf(w, "%s | Ksh %s | %s\n", sale.GoatID, herd.FormatAmount(sale.Price), buyer)
	}

	if len(report.MonthlyRevenue) > 0 {
		fmt.Fprintln(w, "\nMonthly revenue")
		fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
		for _, month := range report.MonthlyRevenue {
			fmt.Fprintf(w, "%s: Ksh %s\n", month.Month, herd.FormatAmount(month.Total))
		}
		if report.Trend != nil {
			fmt.Fprintf(w, "Projected %s: Ksh %s\n", report.Trend.NextMonth, herd.FormatAmount(report.Trend.Projected))
		}
	}

	if len(report.PriceOutliers) > 0 {
		fmt.Fprintln(w, "\nUnusual prices")
		fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
		for _, o := range report.PriceOutliers {
			fmt.Fprintf(w, "%s | Ksh %s | z %.1f\n", o.GoatID, herd.FormatAmount(o.Price), o.ZScore)
		}
	}

	fmt.Fprintln(w, "\nPredicted births")
	fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
	if len(report.Forecast.Entries) == 0 {
		fmt.Fprintln(w, "No births within the horizon.")
	}
	for _, entry := range report.Forecast.Entries {
		fmt.Fprintf(w, "%s | due %s | %s\n", entry.FemaleID, breeding.FormatDate(entry.DueDate), entry.Status.Label())
	}

	fmt.Fprintln(w, "\nRecommendations")
	fmt.Fprintln(w, strings.Repeat("-", ruleWidth))
	for _, rec := range report.Recommendations {
		fmt.Fprintf(w, "- %s\n", rec)
	}
}

// encode writes v as indented JSON or YAML.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		// Going through JSON keeps the json field names and omitempty rules.
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return err
		}
		blockStyle(&node)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&node); err != nil {
			return err
		}
		return enc.Close()
	default:
		return eris.Errorf("unsupported output format %q", format)
	}
}

func blockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle | yaml.DoubleQuotedStyle
	for _, child := range n.Content {
		blockStyle(child)
	}
}

func writeJSON(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func writeAlertsCSV(fc breeding.Forecast, path string, minStatus breeding.Status) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return export.WriteForecastCSV(file, fc, minStatus)
}

// exportTo renders data to the configured sink and reports the location.
func exportTo(ctx context.Context, w io.Writer, name string, data []byte, format export.Format) error {
	sink, err := export.NewSink(ctx, cfg.Export)
	if err != nil {
		return err
	}
	location, err := sink.Put(ctx, name, data, format.ContentType())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Exported %s\n", location)
	return nil
}
