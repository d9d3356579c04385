package main

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitalhub/vitals/internal/api"
	"github.com/vitalhub/vitals/internal/counterfactual"
	"github.com/vitalhub/vitals/internal/engine"
	"github.com/vitalhub/vitals/internal/store"
	"github.com/vitalhub/vitals/pkg/otel"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// queryInt parses an integer query parameter, falling back to def when
// absent. Malformed values report ok=false so callers can 400.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func queryFloat(r *http.Request, name string) (float64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// handleRecords serves POST (ingest one record) and GET (trailing history).
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleIngest(w, r)
	case http.MethodGet:
		days, ok := queryInt(r, "days", 0)
		if !ok || days < 0 {
			respondError(w, http.StatusBadRequest, "invalid days parameter")
			return
		}
		respondJSON(w, http.StatusOK, s.engine.Records(days))
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		w.Header().Set("Retry-After", "10")
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var rec api.UnifiedRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	switch err := s.engine.Ingest(r.Context(), rec); {
	case err == nil:
		respondJSON(w, http.StatusCreated, map[string]string{"status": "stored", "date": rec.Date})
	case errors.Is(err, store.ErrDuplicateDate):
		respondError(w, http.StatusConflict, "record already exists for "+rec.Date)
	default:
		log.Printf("Ingest error for %s: %v", rec.Date, err)
		respondError(w, http.StatusBadRequest, err.Error())
	}
}

func (s *Server) handleBaselines(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, s.engine.Baselines())
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit, ok := queryInt(r, "limit", 20)
	if !ok || limit < 0 {
		respondError(w, http.StatusBadRequest, "invalid limit parameter")
		return
	}
	severity := api.Severity(r.URL.Query().Get("severity"))
	if severity != "" && !severity.Valid() {
		respondError(w, http.StatusBadRequest, "invalid severity: must be info, warning, or critical")
		return
	}
	respondJSON(w, http.StatusOK, s.engine.Anomalies(severity, limit))
}

func (s *Server) handleAnomalyTimeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	days, ok := queryInt(r, "days", 14)
	if !ok || days <= 0 || days > 365 {
		respondError(w, http.StatusBadRequest, "invalid days parameter")
		return
	}
	respondJSON(w, http.StatusOK, s.engine.AnomalyTimeline(days))
}

func (s *Server) handleCorrelations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit, ok := queryInt(r, "limit", 10)
	if !ok || limit < 0 {
		respondError(w, http.StatusBadRequest, "invalid limit parameter")
		return
	}
	respondJSON(w, http.StatusOK, s.engine.Correlations(limit))
}

// handleSimulate answers what-if queries. GET reads deltas from query
// parameters; POST takes a JSON body of api.SimulationDeltas.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var deltas api.SimulationDeltas

	switch r.Method {
	case http.MethodGet:
		var ok1, ok2, ok3 bool
		deltas.SleepHours, ok1 = queryFloat(r, "sleep_hours_delta")
		deltas.Steps, ok2 = queryFloat(r, "steps_delta")
		deltas.CaloriesIn, ok3 = queryFloat(r, "calories_in_delta")
		if !ok1 || !ok2 || !ok3 {
			respondError(w, http.StatusBadRequest, "deltas must be numeric")
			return
		}
	case http.MethodPost:
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&deltas); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	_, span := otel.StartSpan(r.Context(), "vitals-server", "simulate",
		otel.SimulationAttributes(deltas.SleepHours, deltas.Steps, deltas.CaloriesIn)...)
	defer span.End()

	res, err := s.engine.Simulate(deltas)
	if err != nil {
		if errors.Is(err, counterfactual.ErrInvalidQuery) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		otel.RecordError(span, err, "simulation failed")
		log.Printf("Simulation error: %v", err)
		respondError(w, http.StatusInternalServerError, "simulation failed")
		return
	}
	span.SetAttributes(otel.AttrDrift.Bool(!res.Drift.InDomain))
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := s.engine.Current()
	respondJSON(w, http.StatusOK, map[string]any{
		"model_info":   s.engine.ModelInfo(),
		"baseline_day": snap.BaselineDate,
	})
}

func (s *Server) handleHealthScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, s.engine.HealthScore())
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	trends := s.engine.Trends()
	if trends == nil {
		trends = []engine.Trend{}
	}
	respondJSON(w, http.StatusOK, trends)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	latest := s.engine.LatestMetrics()
	if latest == nil {
		respondError(w, http.StatusNotFound, "no records")
		return
	}
	respondJSON(w, http.StatusOK, latest)
}

func (s *Server) metricsHandler() http.Handler {
	handler := promhttp.Handler()

	if !s.metricsAuth.enabled {
		return handler
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.metricsAuth.user || pass != s.metricsAuth.password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
