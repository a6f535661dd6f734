package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gridslack/gridslack/pkg/log"
	"github.com/gridslack/gridslack/pkg/metrics"
	"github.com/gridslack/gridslack/pkg/stats"
	"github.com/gridslack/gridslack/pkg/storage"
	"github.com/gridslack/gridslack/pkg/types"
)

// handleDetectCurtailment runs the classifier over a telemetry reading and
// persists the event when one is detected. Insignificant readings return a
// null event, not an error.
func (s *Server) handleDetectCurtailment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var reading types.Reading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		writeJSONError(w, "invalid reading: "+err.Error(), http.StatusBadRequest)
		return
	}
	if reading.Area == "" {
		writeJSONError(w, "area is required", http.StatusBadRequest)
		return
	}

	event := s.classifier.Classify(ctx, reading)
	if event == nil {
		writeJSON(w, struct {
			Event *types.CurtailmentEvent `json:"event"`
		}{})
		return
	}

	id, err := s.storage.InsertCurtailmentEvent(ctx, *event)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to insert curtailment event",
			slog.String("area", event.Area), slog.Any("error", err))
		writeJSONError(w, "failed to store event", http.StatusInternalServerError)
		return
	}
	event.ID = id
	metrics.ObserveCurtailmentEvent(event.Area, string(event.Cause), event.TotalEnergyCurtailedMWH)

	writeJSON(w, struct {
		Event *types.CurtailmentEvent `json:"event"`
	}{Event: event})
}

type recommendRequest struct {
	Area      string          `json:"area"`
	EventID   string          `json:"eventID"`
	Resources types.Resources `json:"resources"`
}

// handleRecommend loads a stored event and generates mitigation
// recommendations against the supplied flexible resources. A nonexistent
// event is a caller error and returns 404.
func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Area == "" || req.EventID == "" {
		writeJSONError(w, "area and eventID are required", http.StatusBadRequest)
		return
	}

	event, err := s.storage.GetCurtailmentEvent(ctx, req.Area, req.EventID)
	if err != nil {
		if errors.Is(err, storage.ErrEventNotFound) {
			writeJSONError(w, "event not found", http.StatusNotFound)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to get curtailment event",
			slog.String("area", req.Area), slog.String("eventID", req.EventID), slog.Any("error", err))
		writeJSONError(w, "failed to get event", http.StatusInternalServerError)
		return
	}

	recs := s.recommender.Recommend(ctx, event, req.Resources)
	if len(recs) > 0 {
		if err := s.storage.InsertRecommendations(ctx, req.Area, recs); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to insert recommendations",
				slog.String("area", req.Area), slog.Any("error", err))
			writeJSONError(w, "failed to store recommendations", http.StatusInternalServerError)
			return
		}
		for _, rec := range recs {
			metrics.ObserveRecommendation(rec.Area, string(rec.ActionType))
		}
	}

	writeJSON(w, struct {
		Recommendations []types.Recommendation `json:"recommendations"`
	}{Recommendations: recs})
}

type closeEventRequest struct {
	Area    string     `json:"area"`
	EventID string     `json:"eventID"`
	EndedAt *time.Time `json:"endedAt,omitempty"`
}

// handleCloseEvent sets the end timestamp on an ongoing curtailment episode.
func (s *Server) handleCloseEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req closeEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Area == "" || req.EventID == "" {
		writeJSONError(w, "area and eventID are required", http.StatusBadRequest)
		return
	}
	endedAt := time.Now()
	if req.EndedAt != nil {
		endedAt = *req.EndedAt
	}

	if err := s.storage.CloseCurtailmentEvent(ctx, req.Area, req.EventID, endedAt); err != nil {
		if errors.Is(err, storage.ErrEventNotFound) {
			writeJSONError(w, "event not found", http.StatusNotFound)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to close curtailment event",
			slog.String("area", req.Area), slog.String("eventID", req.EventID), slog.Any("error", err))
		writeJSONError(w, "failed to close event", http.StatusInternalServerError)
		return
	}

	writeJSON(w, struct {
		OK bool `json:"ok"`
	}{OK: true})
}

type outcomeRequest struct {
	Area             string                      `json:"area"`
	RecommendationID string                      `json:"recommendationID"`
	Outcome          types.RecommendationOutcome `json:"outcome"`
}

// handleRecommendationOutcome records the post-hoc result of executing (or
// skipping) a recommendation.
func (s *Server) handleRecommendationOutcome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Area == "" || req.RecommendationID == "" {
		writeJSONError(w, "area and recommendationID are required", http.StatusBadRequest)
		return
	}

	if err := s.storage.UpdateRecommendationOutcome(ctx, req.Area, req.RecommendationID, req.Outcome); err != nil {
		if errors.Is(err, storage.ErrRecommendationNotFound) {
			writeJSONError(w, "recommendation not found", http.StatusNotFound)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to update recommendation outcome",
			slog.String("area", req.Area), slog.String("recommendationID", req.RecommendationID), slog.Any("error", err))
		writeJSONError(w, "failed to update outcome", http.StatusInternalServerError)
		return
	}

	writeJSON(w, struct {
		OK bool `json:"ok"`
	}{OK: true})
}

// handleStatistics aggregates events, recommendations, and dispatch logs over
// a time window into a KPI snapshot.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	area := r.URL.Query().Get("area")
	if area == "" {
		writeJSONError(w, "area is required", http.StatusBadRequest)
		return
	}
	start, end, err := s.parseTimeRange(r)
	if err != nil {
		writeJSONError(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	}

	events, err := s.storage.GetCurtailmentEvents(ctx, area, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get events", slog.String("area", area), slog.Any("error", err))
		writeJSONError(w, "failed to get events", http.StatusInternalServerError)
		return
	}
	recs, err := s.storage.GetRecommendations(ctx, area, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get recommendations", slog.String("area", area), slog.Any("error", err))
		writeJSONError(w, "failed to get recommendations", http.StatusInternalServerError)
		return
	}
	logs, err := s.storage.GetDispatchLogsRange(ctx, area, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get dispatch logs", slog.String("area", area), slog.Any("error", err))
		writeJSONError(w, "failed to get dispatch logs", http.StatusInternalServerError)
		return
	}

	writeJSON(w, stats.Aggregate(area, events, recs, logs, start, end))
}
