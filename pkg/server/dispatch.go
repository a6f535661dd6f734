package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gridslack/gridslack/pkg/dispatch"
	"github.com/gridslack/gridslack/pkg/log"
	"github.com/gridslack/gridslack/pkg/metrics"
	"github.com/gridslack/gridslack/pkg/types"
)

type dispatchRequest struct {
	Area                  string  `json:"area"`
	PriceCADPerMWH        float64 `json:"priceCADPerMWH"`
	CurtailmentRisk       bool    `json:"curtailmentRisk"`
	RenewableGenerationMW float64 `json:"renewableGenerationMW"`
	DemandMW              float64 `json:"demandMW"`
}

type dispatchResponse struct {
	Decision      dispatch.Decision  `json:"decision"`
	BatteryBefore types.BatteryState `json:"batteryBefore"`
	BatteryAfter  types.BatteryState `json:"batteryAfter"`
}

// handleDispatch runs one dispatch decision for an area. Dispatches for the
// same area serialize inside the controller.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Area == "" {
		writeJSONError(w, "area is required", http.StatusBadRequest)
		return
	}

	d, before, after, err := s.dispatcher.Dispatch(ctx, req.Area, dispatch.Signal{
		PriceCADPerMWH:        req.PriceCADPerMWH,
		CurtailmentRisk:       req.CurtailmentRisk,
		RenewableGenerationMW: req.RenewableGenerationMW,
		DemandMW:              req.DemandMW,
	})
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "dispatch failed", slog.String("area", req.Area), slog.Any("error", err))
		writeJSONError(w, "dispatch failed", http.StatusInternalServerError)
		return
	}
	metrics.ObserveDispatch(req.Area, string(d.Action), after.SOCPercent)

	writeJSON(w, dispatchResponse{Decision: d, BatteryBefore: before, BatteryAfter: after})
}

type batteryStatusResponse struct {
	Battery                   types.BatteryState `json:"battery"`
	SOCWithinBounds           bool               `json:"socWithinBounds"`
	RenewableAlignmentPercent float64            `json:"renewableAlignmentPercent"`
	Dispatches24H             int                `json:"dispatches24h"`
	ExpectedRevenue24HCAD     float64            `json:"expectedRevenue24hCAD"`
	ExpectedRevenue7DCAD      float64            `json:"expectedRevenue7dCAD"`
}

// handleBatteryStatus returns the battery state for an area plus derived
// metrics over the trailing day and week of dispatch logs.
func (s *Server) handleBatteryStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	area := r.URL.Query().Get("area")
	if area == "" {
		writeJSONError(w, "area is required", http.StatusBadRequest)
		return
	}

	state, err := s.dispatcher.State(ctx, area)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get battery state", slog.String("area", area), slog.Any("error", err))
		writeJSONError(w, "failed to get battery state", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	week, err := s.storage.GetDispatchLogsRange(ctx, area, now.Add(-7*24*time.Hour), now)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get dispatch logs", slog.String("area", area), slog.Any("error", err))
		writeJSONError(w, "failed to get dispatch logs", http.StatusInternalServerError)
		return
	}

	resp := batteryStatusResponse{
		Battery:         state,
		SOCWithinBounds: state.SOCPercent >= 5 && state.SOCPercent <= 95,
	}
	dayCutoff := now.Add(-24 * time.Hour)
	var absorbing int
	for _, entry := range week {
		resp.ExpectedRevenue7DCAD += entry.Revenue()
		if entry.RenewableAbsorption {
			absorbing++
		}
		if entry.DispatchedAt.After(dayCutoff) {
			resp.Dispatches24H++
			resp.ExpectedRevenue24HCAD += entry.Revenue()
		}
	}
	if len(week) > 0 {
		resp.RenewableAlignmentPercent = float64(absorbing) / float64(len(week)) * 100
	}

	writeJSON(w, resp)
}

type dispatchLogSummary struct {
	TotalCycles               int     `json:"totalCycles"`
	ChargeEvents              int     `json:"chargeEvents"`
	DischargeEvents           int     `json:"dischargeEvents"`
	RenewableAbsorptionEvents int     `json:"renewableAbsorptionEvents"`
	TotalRevenueCAD           float64 `json:"totalRevenueCAD"`
}

type dispatchLogsResponse struct {
	Entries []types.DispatchLogEntry `json:"entries"`
	Summary dispatchLogSummary       `json:"summary"`
}

const defaultLogLimit = 50

// handleDispatchLogs returns the most recent dispatch log entries for an area
// with a summary over the returned entries.
func (s *Server) handleDispatchLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	area := r.URL.Query().Get("area")
	if area == "" {
		writeJSONError(w, "area is required", http.StatusBadRequest)
		return
	}
	limit := defaultLogLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v <= 0 {
			writeJSONError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = v
	}

	entries, err := s.storage.GetDispatchLogs(ctx, area, limit)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get dispatch logs", slog.String("area", area), slog.Any("error", err))
		writeJSONError(w, "failed to get dispatch logs", http.StatusInternalServerError)
		return
	}

	var summary dispatchLogSummary
	for _, entry := range entries {
		summary.TotalRevenueCAD += entry.Revenue()
		switch entry.Action {
		case types.DispatchCharge:
			summary.ChargeEvents++
		case types.DispatchDischarge:
			summary.DischargeEvents++
		}
		if entry.RenewableAbsorption {
			summary.RenewableAbsorptionEvents++
		}
	}
	summary.TotalCycles = summary.ChargeEvents + summary.DischargeEvents

	writeJSON(w, dispatchLogsResponse{Entries: entries, Summary: summary})
}
