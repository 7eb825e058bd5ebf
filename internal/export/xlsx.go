package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"goatfarm-breeding-forecast/internal/breeding"
	"goatfarm-breeding-forecast/internal/herd"
)

// WriteForecastXLSX writes a workbook with one Forecast sheet.
func WriteForecastXLSX(w io.Writer, fc breeding.Forecast, minStatus breeding.Status) error {
	f := xlsx.NewFile()
	if err := addForecastSheet(f, fc, minStatus); err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "xlsx: write workbook")
}

// WriteReportXLSX writes the farm report as a multi-sheet workbook.
func WriteReportXLSX(w io.Writer, report herd.Report) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "xlsx: add summary sheet")
	}
	addStrings(summary, "Farm", report.FarmName)
	addStrings(summary, "As of", breeding.FormatDate(report.AsOf))
	addInt(summary, "Total goats", report.Summary.Goats)
	addInt(summary, "Males", report.Goats.Males)
	addInt(summary, "Females", report.Goats.Females)
	addInt(summary, "Breeding records", report.Summary.Breeding)
	addInt(summary, "Sales", report.Summary.Sales)
	addInt(summary, "Health checks", report.Summary.Health)
	addFloat(summary, "Total revenue", report.TotalRevenue)
	addStrings(summary, "Insight", report.Insight.Message)

	sales, err := f.AddSheet("Top Sales")
	if err != nil {
		return eris.Wrap(err, "xlsx: add sales sheet")
	}
	addStrings(sales, "Goat ID", "Buyer", "Price", "Date")
	for _, sale := range report.TopSales {
		row := sales.AddRow()
		row.AddCell().SetString(sale.GoatID)
		row.AddCell().SetString(sale.Buyer)
		row.AddCell().SetFloat(sale.Price)
		row.AddCell().SetString(breeding.FormatDate(sale.Date))
	}

	revenue, err := f.AddSheet("Revenue")
	if err != nil {
		return eris.Wrap(err, "xlsx: add revenue sheet")
	}
	addStrings(revenue, "Month", "Total")
	for _, m := range report.MonthlyRevenue {
		addFloat(revenue, m.Month, m.Total)
	}
	if report.Trend != nil {
		addFloat(revenue, report.Trend.NextMonth+" (projected)", report.Trend.Projected)
	}

	if err := addForecastSheet(f, report.Forecast, breeding.StatusScheduled); err != nil {
		return err
	}

	recs, err := f.AddSheet("Recommendations")
	if err != nil {
		return eris.Wrap(err, "xlsx: add recommendations sheet")
	}
	for _, rec := range report.Recommendations {
		addStrings(recs, rec)
	}

	return eris.Wrap(f.Write(w), "xlsx: write workbook")
}

func addForecastSheet(f *xlsx.File, fc breeding.Forecast, minStatus breeding.Status) error {
	sheet, err := f.AddSheet("Forecast")
	if err != nil {
		return eris.Wrap(err, "xlsx: add forecast sheet")
	}
	addStrings(sheet, "Female ID", "Male ID", "Due Date", "Days Left", "Status")
	for _, entry := range fc.Filter(minStatus) {
		row := sheet.AddRow()
		row.AddCell().SetString(entry.FemaleID)
		row.AddCell().SetString(entry.MaleID)
		row.AddCell().SetString(breeding.FormatDate(entry.DueDate))
		row.AddCell().SetInt(entry.DaysLeft)
		row.AddCell().SetString(entry.Status.Label())
	}
	return nil
}

func addStrings(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func addInt(sheet *xlsx.Sheet, label string, v int) {
	row := sheet.AddRow()
	row.AddCell().SetString(label)
	row.AddCell().SetInt(v)
}

func addFloat(sheet *xlsx.Sheet, label string, v float64) {
	row := sheet.AddRow()
	row.AddCell().SetString(label)
	row.AddCell().SetFloat(v)
}
