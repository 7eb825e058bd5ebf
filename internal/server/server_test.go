package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"goatfarm-breeding-forecast/internal/breeding"
	"goatfarm-breeding-forecast/internal/export"
	"goatfarm-breeding-forecast/internal/history"
	"goatfarm-breeding-forecast/internal/metrics"
	"goatfarm-breeding-forecast/internal/news"
	"goatfarm-breeding-forecast/internal/records"
)

var fixedNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type stubNews struct {
	items []news.Item
	err   error
}

func (s stubNews) Fetch(context.Context) ([]news.Item, error) { return s.items, s.err }

type stubHistory struct{ runs []history.Run }

func (s stubHistory) Recent(_ context.Context, owner string, limit int) ([]history.Run, error) {
	var out []history.Run
	for _, run := range s.runs {
		if run.Owner == owner && len(out) < limit {
			out = append(out, run)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T, opts Options) (*httptest.Server, records.Store) {
	t.Helper()
	if opts.Store == nil {
		opts.Store = records.NewMemory()
	}
	opts.Logger = zaptest.NewLogger(t)
	opts.Now = func() time.Time { return fixedNow }
	srv := httptest.NewServer(New(opts).Handler())
	t.Cleanup(srv.Close)
	return srv, opts.Store
}

func seedFarm(t *testing.T, store records.Store) {
	t.Helper()
	ctx := context.Background()
	add := func(collection string, rec records.Record) {
		_, err := store.Add(ctx, "farm-1", collection, rec)
		require.NoError(t, err)
	}
	add(records.CollectionGoats, records.Record{"tag_number": "G1", "breed": "Boer", "gender": "Female"})
	add(records.CollectionGoats, records.Record{"tag_number": "G2", "breed": "Saanen", "gender": "Male"})
	add(records.CollectionBreeding, records.Record{"female_id": "G1", "male_id": "G2", "due_date": "2025-02-27"})
	add(records.CollectionBreeding, records.Record{"female_id": "G3", "male_id": "G2", "mating_date": "2024-10-05"})
	add(records.CollectionSales, records.Record{"goat_id": "G9", "price": 5200.0, "sale_date": "2025-01-10"})
	require.NoError(t, store.SetFarmName(ctx, "farm-1", "Sunrise Goats"))
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	var body map[string]string
	resp := getJSON(t, srv.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestDashboard(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	seedFarm(t, store)

	var dash Dashboard
	resp := getJSON(t, srv.URL+"/api/farms/farm-1/dashboard", &dash)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "Sunrise Goats", dash.FarmName)
	assert.Equal(t, 2, dash.Goats.Total)
	assert.Equal(t, "2025-03-01", dash.Forecast.AsOf)
	assert.Equal(t, 2, dash.Forecast.TotalCount)
	assert.Equal(t, 1, dash.Forecast.OverdueCount)
	assert.Equal(t, 1, dash.Forecast.DueSoonCount)
	require.Len(t, dash.Forecast.ForecastList, 2)
	assert.Equal(t, "Overdue", dash.Forecast.ForecastList[0].Status)
	// 2024-10-05 + 150 days
	assert.Equal(t, "2025-03-04", dash.Forecast.ForecastList[1].DueDate)
	assert.Equal(t, breeding.InsightWarning, dash.Insight.Level)
}

func TestForecast_AsOfAndFormats(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	seedFarm(t, store)

	var doc export.ForecastDocument
	resp := getJSON(t, srv.URL+"/api/farms/farm-1/breeding/forecast?as_of=2025-02-20", &doc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, doc.OverdueCount)
	assert.Equal(t, 1, doc.DueSoonCount)

	resp, err := http.Get(srv.URL + "/api/farms/farm-1/breeding/forecast?format=csv&min_status=overdue")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "forecast-2025-03-01.csv")
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "G1,G2,2025-02-27,-2,Overdue"))

	resp = getJSON(t, srv.URL+"/api/farms/farm-1/breeding/forecast?as_of=someday", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = getJSON(t, srv.URL+"/api/farms/farm-1/breeding/forecast?min_status=soonish", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = getJSON(t, srv.URL+"/api/farms/farm-1/breeding/forecast?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestForecast_EmptyFarm(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	var doc map[string]any
	resp := getJSON(t, srv.URL+"/api/farms/nobody/breeding/forecast", &doc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{}, doc["forecast_list"])
	assert.Equal(t, 0.0, doc["total_count"])
}

func TestReport(t *testing.T) {
	m := metrics.New()
	srv, store := newTestServer(t, Options{Metrics: m})
	seedFarm(t, store)

	var body map[string]any
	resp := getJSON(t, srv.URL+"/api/farms/farm-1/reports?top=1", &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Sunrise Goats", body["farm_name"])
	assert.Equal(t, 5200.0, body["total_revenue"])
	assert.Len(t, body["top_sales"], 1)
	assert.NotEmpty(t, body["recommendations"])

	resp, err := http.Get(srv.URL + "/api/farms/farm-1/reports?format=xlsx")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, export.FormatXLSX.ContentType(), resp.Header.Get("Content-Type"))

	resp = getJSON(t, srv.URL+"/api/farms/farm-1/reports?top=-3", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	metricsBody, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(metricsBody), `goatfarm_forecast_births{bucket="overdue",owner="farm-1"} 1`)
	assert.Contains(t, string(metricsBody), "goatfarm_http_requests_total")
}

func TestRecordsCRUD(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	base := srv.URL + "/api/farms/farm-1/records/breeding"

	resp, err := http.Post(base, "application/json", strings.NewReader(`{"female_id":"D1","male_id":"B1","mating_date":"2025-01-01"}`))
	require.NoError(t, err)
	var created map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	key := created["key"]
	require.NotEmpty(t, key)

	var list map[string]records.Record
	resp = getJSON(t, base, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, list, key)

	var rec records.Record
	resp = getJSON(t, base+"/"+key, &rec)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "D1", rec["female_id"])

	req, _ := http.NewRequest(http.MethodDelete, base+"/"+key, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = getJSON(t, base+"/"+key, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecords_Errors(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	resp, err := http.Post(srv.URL+"/api/farms/farm-1/records/breeding", "application/json", strings.NewReader(`{"female_id":"D1"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/farms/farm-1/records/breeding", "application/json", strings.NewReader(`[1,2]`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = getJSON(t, srv.URL+"/api/farms/farm-1/records/cattle", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProfile(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	url := srv.URL + "/api/farms/farm-1/profile"

	var profile Profile
	resp := getJSON(t, url, &profile)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, records.DefaultFarmName, profile.FarmName)

	req, _ := http.NewRequest(http.MethodPut, url, bytes.NewBufferString(`{"farm_name":"Hilltop Goats"}`))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&profile))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hilltop Goats", profile.FarmName)

	req, _ = http.NewRequest(http.MethodPut, url, bytes.NewBufferString(`{"farm_name":"  "}`))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNews(t *testing.T) {
	srv, _ := newTestServer(t, Options{News: stubNews{items: []news.Item{{Title: "Goat prices rise"}}}})
	var items []news.Item
	resp := getJSON(t, srv.URL+"/api/news", &items)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, items, 1)
	assert.Equal(t, "Goat prices rise", items[0].Title)

	failing, _ := newTestServer(t, Options{News: stubNews{err: errors.New("feeds down")}})
	resp = getJSON(t, failing.URL+"/api/news", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	none, _ := newTestServer(t, Options{})
	resp = getJSON(t, none.URL+"/api/news", &items)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, items)
}

func TestHistory(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	resp := getJSON(t, srv.URL+"/api/farms/farm-1/breeding/history", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	runs := []history.Run{{ID: "r1", Owner: "farm-1", TotalCount: 3}, {ID: "r2", Owner: "farm-2"}}
	srv, _ = newTestServer(t, Options{History: stubHistory{runs: runs}})
	var got []history.Run
	resp = getJSON(t, srv.URL+"/api/farms/farm-1/breeding/history?limit=5", &got)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ID)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, Options{CORSOrigins: []string{"https://farm.example"}})
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/farms/farm-1/dashboard", nil)
	req.Header.Set("Origin", "https://farm.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://farm.example", resp.Header.Get("Access-Control-Allow-Origin"))
}
