package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"goatfarm-breeding-forecast/internal/breeding"
	"goatfarm-breeding-forecast/internal/herd"
)

func sampleForecast() breeding.Forecast {
	today := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	raw := map[string]any{
		"a": map[string]any{"female_id": "D1", "male_id": "B1", "due_date": "2025-02-27"},
		"b": map[string]any{"female_id": "D2", "male_id": "B1", "due_date": "2025-03-05"},
		"c": map[string]any{"female_id": "D3", "male_id": "B2", "due_date": "2025-03-20"},
		"d": map[string]any{"female_id": "D4", "male_id": "B2", "due_date": "2025-08-01"},
	}
	return breeding.Summarize(breeding.Normalize(raw), today)
}

func TestNewForecastDocument(t *testing.T) {
	doc := NewForecastDocument(sampleForecast())
	assert.Equal(t, "2025-03-01", doc.AsOf)
	assert.Equal(t, 4, doc.TotalCount)
	assert.Equal(t, 1, doc.DueSoonCount)
	assert.Equal(t, 1, doc.OverdueCount)
	require.Len(t, doc.ForecastList, 3)
	assert.Equal(t, EntryDocument{FemaleID: "D1", MaleID: "B1", DueDate: "2025-02-27", DaysLeft: -2, Status: "Overdue"}, doc.ForecastList[0])
	assert.Equal(t, "Due Soon", doc.ForecastList[1].Status)
	assert.Equal(t, "Scheduled", doc.ForecastList[2].Status)

	empty := NewForecastDocument(breeding.Forecast{})
	data, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"forecast_list":[]`)
}

func TestWriteForecastCSV_MinStatus(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteForecastCSV(&buf, sampleForecast(), breeding.StatusDueSoon))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, forecastHeader, rows[0])
	assert.Equal(t, []string{"D1", "B1", "2025-02-27", "-2", "Overdue", "a"}, rows[1])
	assert.Equal(t, "Due Soon", rows[2][4])
}

func TestWriteForecastXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteForecastXLSX(&buf, sampleForecast(), breeding.StatusScheduled))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	sheet, ok := f.Sheet["Forecast"]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 4)
	assert.Equal(t, "Female ID", sheet.Rows[0].Cells[0].Value)
	assert.Equal(t, "D1", sheet.Rows[1].Cells[0].Value)
	assert.Equal(t, "-2", sheet.Rows[1].Cells[3].Value)
	assert.Equal(t, "Scheduled", sheet.Rows[3].Cells[4].Value)
}

func sampleReport() herd.Report {
	farm := herd.Farm{
		Name:     "Sunrise Goats",
		Goats:    map[string]map[string]any{"g1": {"gender": "Female"}},
		Breeding: map[string]map[string]any{"b1": {"female_id": "g1", "male_id": "B1", "due_date": "2025-03-05"}},
		Sales: map[string]map[string]any{
			"s1": {"goat_id": "G7", "buyer_name": "Amina", "price": 5200.0, "sale_date": "2025-01-12"},
			"s2": {"goat_id": "G8", "price": 4100.0, "sale_date": "2025-02-02"},
		},
	}
	return herd.BuildReport(farm, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), herd.Options{})
}

func TestWriteReportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReportCSV(&buf, sampleReport()))

	reader := csv.NewReader(&buf)
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"farm", "name", "Sunrise Goats"}, rows[1])
	assert.Contains(t, rows, []string{"revenue", "total", "9300.00"})
	assert.Contains(t, rows, []string{"revenue", "2025-01", "5200.00"})
	assert.Contains(t, rows, []string{"top_sales", "1:G7", "5200.00"})
	assert.Contains(t, rows, []string{"insight", "info", "1 birth(s) due within 7 days. Prepare birthing area."})
}

func TestWriteReportXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReportXLSX(&buf, sampleReport()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	for _, name := range []string{"Summary", "Top Sales", "Revenue", "Forecast", "Recommendations"} {
		_, ok := f.Sheet[name]
		assert.True(t, ok, "missing sheet %s", name)
	}
	assert.Equal(t, "Sunrise Goats", f.Sheet["Summary"].Rows[0].Cells[1].Value)
	assert.Equal(t, "G7", f.Sheet["Top Sales"].Rows[1].Cells[0].Value)
}

func TestRenderAndParseFormat(t *testing.T) {
	for _, name := range []string{"csv", "XLSX", " json "} {
		format, err := ParseFormat(name)
		require.NoError(t, err)
		data, err := RenderForecast(sampleForecast(), breeding.StatusScheduled, format)
		require.NoError(t, err)
		assert.NotEmpty(t, data)

		data, err = RenderReport(sampleReport(), format)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
	_, err := ParseFormat("pdf")
	require.Error(t, err)

	data, err := RenderReport(sampleReport(), FormatJSON)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Sunrise Goats", decoded["farm_name"])
	assert.Contains(t, decoded, "forecast")

	assert.Equal(t, "text/csv", FormatCSV.ContentType())
	assert.Equal(t, "forecast-2025-03-01.xlsx", FileName("forecast", time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC), FormatXLSX))
}

func TestDirSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	sink, err := NewSink(context.Background(), Config{Sink: "fs", Dir: dir})
	require.NoError(t, err)

	loc, err := sink.Put(context.Background(), "../forecast.csv", []byte("a,b\n"), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "forecast.csv"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))
}

func TestNewSink_Unknown(t *testing.T) {
	_, err := NewSink(context.Background(), Config{Sink: "ftp"})
	require.Error(t, err)
	_, err = NewSink(context.Background(), Config{Sink: "s3"})
	require.Error(t, err)
}

func TestS3Sink_Put(t *testing.T) {
	var (
		mu      sync.Mutex
		method  string
		gotPath string
		body    []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method = r.Method
		gotPath = r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink, err := NewSink(context.Background(), Config{
		Sink:            "s3",
		Bucket:          "farm-exports",
		Prefix:          "/reports/",
		Endpoint:        srv.URL,
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
	})
	require.NoError(t, err)

	loc, err := sink.Put(context.Background(), "forecast-2025-03-01.json", []byte(`{"female_id":"D1"}`), "application/json")
	require.NoError(t, err)
	assert.Equal(t, "s3://farm-exports/reports/forecast-2025-03-01.json", loc)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/farm-exports/reports/forecast-2025-03-01.json", gotPath)
	assert.True(t, strings.Contains(string(body), `"female_id":"D1"`))
}
