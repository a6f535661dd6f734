// Package server exposes the curtailment and dispatch engines over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/gridslack/gridslack/pkg/classifier"
	"github.com/gridslack/gridslack/pkg/dispatch"
	"github.com/gridslack/gridslack/pkg/evidence"
	"github.com/gridslack/gridslack/pkg/log"
	"github.com/gridslack/gridslack/pkg/metrics"
	"github.com/gridslack/gridslack/pkg/recommender"
	"github.com/gridslack/gridslack/pkg/storage"
	"github.com/levenlabs/go-lflag"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server handles the HTTP API for the gridslack system. It orchestrates the
// decision engines and the storage layer; the engines themselves stay pure
// and persistence happens here.
type Server struct {
	storage     storage.Database
	dispatcher  *dispatch.Controller
	classifier  *classifier.Classifier
	recommender *recommender.Recommender
	validator   *evidence.Validator

	listenAddr string
	serverName string
	httpServer *http.Server

	maxStatsWindow time.Duration
	defaultWindow  time.Duration
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(s storage.Database, d *dispatch.Controller) *Server {
	srv := &Server{
		storage:     s,
		dispatcher:  d,
		classifier:  classifier.New(classifier.DefaultConfig()),
		recommender: recommender.New(recommender.DefaultConfig()),
		validator:   evidence.NewValidator(),
		serverName:  "gridslack",

		maxStatsWindow: 366 * 24 * time.Hour,
		defaultWindow:  30 * 24 * time.Hour,
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			log.Ctx(context.Background()).Error("failed to register metrics", slog.Any("error", err))
			os.Exit(1)
		}
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/curtailment/detect", s.handleDetectCurtailment)
	apiMux.HandleFunc("POST /api/curtailment/recommend", s.handleRecommend)
	apiMux.HandleFunc("POST /api/curtailment/close", s.handleCloseEvent)
	apiMux.HandleFunc("POST /api/curtailment/outcome", s.handleRecommendationOutcome)
	apiMux.HandleFunc("GET /api/curtailment/statistics", s.handleStatistics)
	apiMux.HandleFunc("POST /api/storage/dispatch", s.handleDispatch)
	apiMux.HandleFunc("GET /api/storage/status", s.handleBatteryStatus)
	apiMux.HandleFunc("GET /api/storage/logs", s.handleDispatchLogs)
	apiMux.HandleFunc("POST /api/evidence/validate", s.handleValidateEvidence)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiMux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux)))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}

// parseTimeRange reads the start/end query parameters, defaulting to the
// trailing default window and rejecting windows beyond the maximum.
func (s *Server) parseTimeRange(r *http.Request) (time.Time, time.Time, error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" || endStr == "" {
		end := time.Now()
		return end.Add(-s.defaultWindow), end, nil
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time: %w", err)
	}

	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time: %w", err)
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("start time must be before end time")
	}

	if end.Sub(start) > s.maxStatsWindow {
		return time.Time{}, time.Time{}, fmt.Errorf("time range cannot exceed %s", s.maxStatsWindow)
	}

	return start, end, nil
}
