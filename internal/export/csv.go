package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"goatfarm-breeding-forecast/internal/breeding"
	"goatfarm-breeding-forecast/internal/herd"
)

var forecastHeader = []string{"female_id", "male_id", "due_date", "days_left", "status", "record_key"}

// WriteForecastCSV writes the listed entries whose status is at least minStatus.
func WriteForecastCSV(w io.Writer, fc breeding.Forecast, minStatus breeding.Status) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(forecastHeader); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, entry := range fc.Filter(minStatus) {
		record := []string{
			entry.FemaleID,
			entry.MaleID,
			breeding.FormatDate(entry.DueDate),
			strconv.Itoa(entry.DaysLeft),
			entry.Status.Label(),
			entry.RecordKey,
		}
		if err := writer.Write(record); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	writer.Flush()
	return eris.Wrap(writer.Error(), "export: flush csv")
}

// WriteReportCSV writes the report as section,name,value rows.
func WriteReportCSV(w io.Writer, report herd.Report) error {
	rows := [][]string{
		{"section", "name", "value"},
		{"farm", "name", report.FarmName},
		{"farm", "as_of", breeding.FormatDate(report.AsOf)},
		{"summary", "goats", strconv.Itoa(report.Summary.Goats)},
		{"summary", "breeding", strconv.Itoa(report.Summary.Breeding)},
		{"summary", "sales", strconv.Itoa(report.Summary.Sales)},
		{"summary", "health", strconv.Itoa(report.Summary.Health)},
		{"goats", "males", strconv.Itoa(report.Goats.Males)},
		{"goats", "females", strconv.Itoa(report.Goats.Females)},
		{"revenue", "total", formatFloat(report.TotalRevenue)},
	}
	for _, m := range report.MonthlyRevenue {
		rows = append(rows, []string{"revenue", m.Month, formatFloat(m.Total)})
	}
	if report.Trend != nil {
		rows = append(rows, []string{"revenue", "projected_" + report.Trend.NextMonth, formatFloat(report.Trend.Projected)})
	}
	for i, sale := range report.TopSales {
		rows = append(rows, []string{"top_sales", fmt.Sprintf("%d:%s", i+1, sale.GoatID), formatFloat(sale.Price)})
	}
	for _, o := range report.PriceOutliers {
		rows = append(rows, []string{"price_outlier", o.Key, formatFloat(o.Price)})
	}
	rows = append(rows,
		[]string{"forecast", "total_count", strconv.Itoa(report.Forecast.TotalCount)},
		[]string{"forecast", "due_soon_count", strconv.Itoa(report.Forecast.DueSoonCount)},
		[]string{"forecast", "overdue_count", strconv.Itoa(report.Forecast.OverdueCount)},
		[]string{"insight", string(report.Insight.Level), report.Insight.Message},
	)
	for _, rec := range report.Recommendations {
		rows = append(rows, []string{"recommendation", "", rec})
	}

	writer := csv.NewWriter(w)
	if err := writer.WriteAll(rows); err != nil {
		return eris.Wrap(err, "export: write report csv")
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
