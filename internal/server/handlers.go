package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"goatfarm-breeding-forecast/internal/breeding"
	"goatfarm-breeding-forecast/internal/export"
	"goatfarm-breeding-forecast/internal/herd"
	"goatfarm-breeding-forecast/internal/records"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Dashboard is the payload of the dashboard endpoint.
type Dashboard struct {
	FarmName string                  `json:"farm_name"`
	Summary  herd.Summary            `json:"summary"`
	Goats    herd.GoatCounts         `json:"goats"`
	Forecast export.ForecastDocument `json:"forecast"`
	Insight  breeding.Insight        `json:"insight"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	asOf, ok := s.asOf(w, r)
	if !ok {
		return
	}
	farm, err := herd.Load(r.Context(), s.store, owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	fc := s.forecast(owner, farm.Breeding, asOf)
	writeJSON(w, http.StatusOK, Dashboard{
		FarmName: farm.Name,
		Summary:  farm.Summary(),
		Goats:    herd.CountGoats(farm.Goats),
		Forecast: export.NewForecastDocument(fc),
		Insight:  fc.Insight(),
	})
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	asOf, ok := s.asOf(w, r)
	if !ok {
		return
	}
	format, err := formatParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	minStatus := breeding.StatusScheduled
	if v := r.URL.Query().Get("min_status"); v != "" {
		if minStatus, ok = breeding.ParseStatus(v); !ok {
			writeMessage(w, http.StatusBadRequest, "invalid min_status: "+v)
			return
		}
	}

	raw, err := s.store.List(r.Context(), owner, records.CollectionBreeding)
	if err != nil {
		s.writeError(w, err)
		return
	}
	fc := s.forecast(owner, raw, asOf)
	if format == export.FormatJSON {
		writeJSON(w, http.StatusOK, export.NewForecastDocument(fc))
		return
	}
	data, err := export.RenderForecast(fc, minStatus, format)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeFile(w, export.FileName("forecast", fc.AsOf, format), format, data)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeMessage(w, http.StatusNotFound, "forecast history is not configured")
		return
	}
	limit, err := intParam(r, "limit", 20)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := s.history.Recent(r.Context(), chi.URLParam(r, "owner"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	asOf, ok := s.asOf(w, r)
	if !ok {
		return
	}
	top, err := intParam(r, "top", s.topSales)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	format, err := formatParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	farm, err := herd.Load(r.Context(), s.store, owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	report := herd.BuildReport(farm, asOf, herd.Options{Policy: s.policy, TopSales: top})
	if s.metrics != nil {
		s.metrics.ObserveForecast(owner, report.Forecast)
	}
	if format == export.FormatJSON {
		writeJSON(w, http.StatusOK, export.ReportDocument{Report: report, Forecast: export.NewForecastDocument(report.Forecast)})
		return
	}
	data, err := export.RenderReport(report, format)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeFile(w, export.FileName("report", report.AsOf, format), format, data)
}

// Profile is the farm name plus the owner's profile records.
type Profile struct {
	FarmName string                    `json:"farm_name"`
	Profiles map[string]records.Record `json:"profiles"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	name, err := s.store.FarmName(r.Context(), owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	profiles, err := s.store.List(r.Context(), owner, records.CollectionUserProfile)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Profile{FarmName: name, Profiles: profiles})
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	var req struct {
		FarmName string `json:"farm_name"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.store.SetFarmName(r.Context(), owner, req.FarmName); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleGetProfile(w, r)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "collection"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	var rec records.Record
	if err := decodeBody(w, r, &rec); err != nil || rec == nil {
		writeMessage(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}
	owner, collection := chi.URLParam(r, "owner"), chi.URLParam(r, "collection")
	key, err := s.store.Add(r.Context(), owner, collection, rec)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Debug("record added", zap.String("owner", owner), zap.String("collection", collection), zap.String("key", key))
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "collection"), chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	err := s.store.Delete(r.Context(), chi.URLParam(r, "owner"), chi.URLParam(r, "collection"), chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	if s.news == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	items, err := s.news.Fetch(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) forecast(owner string, raw map[string]records.Record, asOf time.Time) breeding.Forecast {
	fc := s.policy.Summarize(s.policy.Normalize(raw), asOf)
	if s.metrics != nil {
		s.metrics.ObserveForecast(owner, fc)
	}
	return fc
}

func (s *Server) asOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	value := strings.TrimSpace(r.URL.Query().Get("as_of"))
	if value == "" {
		return breeding.DateOnly(s.now()), true
	}
	day, ok := breeding.ParseDate(value)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid as_of date: "+value)
		return time.Time{}, false
	}
	return day, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, records.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, records.ErrInvalidCollection), errors.Is(err, records.ErrValidation):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("request failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func formatParam(r *http.Request) (export.Format, error) {
	value := r.URL.Query().Get("format")
	if value == "" {
		return export.FormatJSON, nil
	}
	return export.ParseFormat(value)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + name + ": " + value)
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeFile(w http.ResponseWriter, name string, format export.Format, data []byte) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
