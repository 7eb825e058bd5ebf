package export

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"goatfarm-breeding-forecast/internal/breeding"
	"goatfarm-breeding-forecast/internal/herd"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ParseFormat accepts csv, xlsx or json in any case.
func ParseFormat(value string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(value))); f {
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	default:
		return "", eris.Errorf("export: unsupported format %q", value)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return xlsxContentType
	case FormatJSON:
		return "application/json"
	default:
		return "text/csv"
	}
}

// RenderForecast encodes fc in the given format. CSV and XLSX list only
// entries whose status is at least minStatus; JSON always carries the whole
// forecast.
func RenderForecast(fc breeding.Forecast, minStatus breeding.Status, format Format) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatCSV:
		err = WriteForecastCSV(&buf, fc, minStatus)
	case FormatXLSX:
		err = WriteForecastXLSX(&buf, fc, minStatus)
	case FormatJSON:
		return marshalJSON(NewForecastDocument(fc))
	default:
		return nil, eris.Errorf("export: unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderReport encodes the farm report in the given format.
func RenderReport(report herd.Report, format Format) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatCSV:
		err = WriteReportCSV(&buf, report)
	case FormatXLSX:
		err = WriteReportXLSX(&buf, report)
	case FormatJSON:
		return marshalJSON(ReportDocument{Report: report, Forecast: NewForecastDocument(report.Forecast)})
	default:
		return nil, eris.Errorf("export: unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReportDocument is the published shape of a farm report.
type ReportDocument struct {
	herd.Report
	Forecast ForecastDocument `json:"forecast"`
}

func marshalJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "export: encode json")
	}
	return append(data, '\n'), nil
}
