// Package export renders forecasts and farm reports as JSON, CSV or XLSX
// documents and writes them to a local directory or an S3 bucket.
package export

import (
	"time"

	"goatfarm-breeding-forecast/internal/breeding"
)

// ForecastDocument is the published shape of a forecast.
type ForecastDocument struct {
	AsOf         string          `json:"as_of" yaml:"as_of"`
	TotalCount   int             `json:"total_count" yaml:"total_count"`
	DueSoonCount int             `json:"due_soon_count" yaml:"due_soon_count"`
	OverdueCount int             `json:"overdue_count" yaml:"overdue_count"`
	ForecastList []EntryDocument `json:"forecast_list" yaml:"forecast_list"`
}

// EntryDocument is one listed birth with its status label.
type EntryDocument struct {
	FemaleID string `json:"female_id" yaml:"female_id"`
	MaleID   string `json:"male_id" yaml:"male_id"`
	DueDate  string `json:"due_date" yaml:"due_date"`
	DaysLeft int    `json:"days_left" yaml:"days_left"`
	Status   string `json:"status" yaml:"status"`
}

// NewForecastDocument converts fc into its published form. The list is
// never nil so it encodes as an empty array.
func NewForecastDocument(fc breeding.Forecast) ForecastDocument {
	doc := ForecastDocument{
		AsOf:         breeding.FormatDate(fc.AsOf),
		TotalCount:   fc.TotalCount,
		DueSoonCount: fc.DueSoonCount,
		OverdueCount: fc.OverdueCount,
		ForecastList: make([]EntryDocument, 0, len(fc.Entries)),
	}
	for _, entry := range fc.Entries {
		doc.ForecastList = append(doc.ForecastList, EntryDocument{
			FemaleID: entry.FemaleID,
			MaleID:   entry.MaleID,
			DueDate:  breeding.FormatDate(entry.DueDate),
			DaysLeft: entry.DaysLeft,
			Status:   entry.Status.Label(),
		})
	}
	return doc
}

// FileName builds a dated export name such as "forecast-2025-03-01.csv".
func FileName(kind string, asOf time.Time, format Format) string {
	return kind + "-" + breeding.FormatDate(asOf) + "." + string(format)
}
