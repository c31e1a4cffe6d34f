package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hollisb/airgrid/internal/store"
)

// Server exposes stored readings and smoothing results read-only over HTTP,
// plus Prometheus metrics.
type Server struct {
	store *store.Store
	port  string
}

func NewServer(store *store.Store, port string) *Server {
	return &Server{store: store, port: port}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/readings", s.handleReadings)
	mux.HandleFunc("/api/runs/latest", s.handleLatestRun)
	mux.HandleFunc("/api/values", s.handleValues)
	mux.HandleFunc("/api/sweep", s.handleSweep)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

type readingView struct {
	SensorID   string  `json:"sensor_id,omitempty"`
	MeasuredAt string  `json:"measured_at"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Value      float64 `json:"value"`
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	readings, err := s.store.GetReadings(start, end)
	if err != nil {
		log.Printf("api: get readings: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	views := make([]readingView, 0, len(readings))
	for _, rd := range readings {
		views = append(views, readingView{
			SensorID:   rd.SensorID,
			MeasuredAt: rd.MeasuredAt.UTC().Format(time.RFC3339),
			Latitude:   rd.Latitude,
			Longitude:  rd.Longitude,
			Value:      rd.Value,
		})
	}
	writeJSON(w, views)
}

type runView struct {
	ID           int64   `json:"id"`
	Bandwidth    float64 `json:"bandwidth"`
	Steps        int     `json:"steps"`
	MissingCells int     `json:"missing_cells"`
	CreatedAt    string  `json:"created_at"`
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetLatestRun()
	if err != nil {
		log.Printf("api: latest run: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "no smoothing runs yet", http.StatusNotFound)
		return
	}
	writeJSON(w, runView{
		ID:           run.ID,
		Bandwidth:    run.Bandwidth,
		Steps:        run.Steps,
		MissingCells: run.MissingCells,
		CreatedAt:    run.CreatedAt.UTC().Format(time.RFC3339),
	})
}

type valueView struct {
	MeasuredAt string   `json:"measured_at"`
	GridID     int      `json:"grid_id"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Value      *float64 `json:"value"` // null means the cell had no support
}

func (s *Server) handleValues(w http.ResponseWriter, r *http.Request) {
	runParam := r.URL.Query().Get("run")
	if runParam == "" {
		http.Error(w, "missing run parameter", http.StatusBadRequest)
		return
	}
	runID, err := strconv.ParseInt(runParam, 10, 64)
	if err != nil {
		http.Error(w, "invalid run parameter", http.StatusBadRequest)
		return
	}

	run, err := s.store.GetRun(runID)
	if err != nil {
		log.Printf("api: get run %d: %v", runID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	values, err := s.store.GetSmoothedValues(runID)
	if err != nil {
		log.Printf("api: get values for run %d: %v", runID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	views := make([]valueView, 0, len(values))
	for _, sv := range values {
		view := valueView{
			MeasuredAt: sv.MeasuredAt.UTC().Format(time.RFC3339),
			GridID:     sv.GridID,
			Latitude:   sv.Latitude,
			Longitude:  sv.Longitude,
		}
		if sv.Value.Valid {
			v := sv.Value.Float64
			view.Value = &v
		}
		views = append(views, view)
	}
	writeJSON(w, views)
}

type sweepView struct {
	Bandwidth      float64  `json:"bandwidth"`
	CVError        *float64 `json:"cv_error"`
	ExcludedSplits int      `json:"excluded_splits"`
	SkippedSteps   int      `json:"skipped_steps"`
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	points, err := s.store.GetLatestSweep()
	if err != nil {
		log.Printf("api: latest sweep: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	views := make([]sweepView, 0, len(points))
	for _, p := range points {
		view := sweepView{
			Bandwidth:      p.Bandwidth,
			ExcludedSplits: p.ExcludedSplits,
			SkippedSteps:   p.SkippedSteps,
		}
		if p.CVError.Valid {
			v := p.CVError.Float64
			view.CVError = &v
		}
		views = append(views, view)
	}
	writeJSON(w, views)
}

func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	start := time.Time{}
	end := time.Now().UTC()

	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return start, end, err
		}
		start = t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return start, end, err
		}
		end = t
	}
	return start, end, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}
