package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gridslack/gridslack/pkg/classifier"
	"github.com/gridslack/gridslack/pkg/dispatch"
	"github.com/gridslack/gridslack/pkg/evidence"
	"github.com/gridslack/gridslack/pkg/recommender"
	"github.com/gridslack/gridslack/pkg/storage"
	"github.com/gridslack/gridslack/pkg/storage/storagemock"
	"github.com/gridslack/gridslack/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testServer(db storage.Database) *Server {
	return &Server{
		storage:     db,
		dispatcher:  dispatch.New(dispatch.DefaultConfig(), db),
		classifier:  classifier.New(classifier.DefaultConfig()),
		recommender: recommender.New(recommender.DefaultConfig()),
		validator:   evidence.NewValidator(),
		listenAddr:  ":8080",

		maxStatsWindow: 366 * 24 * time.Hour,
		defaultWindow:  30 * 24 * time.Hour,
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHandleDetectCurtailment(t *testing.T) {
	t.Run("significant reading persists event", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		db.On("InsertCurtailmentEvent", mock.Anything, mock.MatchedBy(func(ev types.CurtailmentEvent) bool {
			return ev.Area == "ON" && ev.CurtailedMW > 0
		})).Return("2026-03-15T12:00:00Z", nil)
		handler := testServer(db).setupHandler()

		w := doJSON(t, handler, "POST", "/api/curtailment/detect", `{
			"area": "ON",
			"sourceType": "wind",
			"currentGenerationMW": 150,
			"forecastGenerationMW": 100,
			"gridDemandMW": 90,
			"marketPriceCADPerMWH": 35
		}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Event *types.CurtailmentEvent `json:"event"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Event)
		assert.Equal(t, "2026-03-15T12:00:00Z", resp.Event.ID)
		assert.InDelta(t, 50, resp.Event.CurtailedMW, 0.001)
		db.AssertExpectations(t)
	})

	t.Run("insignificant reading returns null event", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		handler := testServer(db).setupHandler()

		w := doJSON(t, handler, "POST", "/api/curtailment/detect", `{
			"area": "ON",
			"sourceType": "solar",
			"currentGenerationMW": 103,
			"forecastGenerationMW": 100,
			"gridDemandMW": 90
		}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"event":null}`, w.Body.String())
		db.AssertNotCalled(t, "InsertCurtailmentEvent", mock.Anything, mock.Anything)
	})

	t.Run("missing area rejected", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		handler := testServer(db).setupHandler()
		w := doJSON(t, handler, "POST", "/api/curtailment/detect", `{"currentGenerationMW": 100}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid body rejected", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		handler := testServer(db).setupHandler()
		w := doJSON(t, handler, "POST", "/api/curtailment/detect", `{not json`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleRecommend(t *testing.T) {
	event := types.CurtailmentEvent{
		ID:          "2026-03-15T12:00:00Z",
		Area:        "ON",
		CurtailedMW: 100,
		OccurredAt:  time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}

	t.Run("generates and persists recommendations", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		db.On("GetCurtailmentEvent", mock.Anything, "ON", event.ID).Return(event, nil)
		db.On("InsertRecommendations", mock.Anything, "ON", mock.MatchedBy(func(recs []types.Recommendation) bool {
			return len(recs) > 0
		})).Return(nil)
		handler := testServer(db).setupHandler()

		w := doJSON(t, handler, "POST", "/api/curtailment/recommend", `{
			"area": "ON",
			"eventID": "2026-03-15T12:00:00Z",
			"resources": {"storageHeadroomMW": 80}
		}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Recommendations []types.Recommendation `json:"recommendations"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Recommendations, 1)
		assert.Equal(t, types.ActionStorageCharge, resp.Recommendations[0].ActionType)
		db.AssertExpectations(t)
	})

	t.Run("unknown event returns 404", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		db.On("GetCurtailmentEvent", mock.Anything, "ON", "missing").Return(types.CurtailmentEvent{}, storage.ErrEventNotFound)
		handler := testServer(db).setupHandler()

		w := doJSON(t, handler, "POST", "/api/curtailment/recommend", `{"area":"ON","eventID":"missing"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "event not found")
	})

	t.Run("no resources yields empty batch without insert", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		db.On("GetCurtailmentEvent", mock.Anything, "ON", event.ID).Return(event, nil)
		handler := testServer(db).setupHandler()

		w := doJSON(t, handler, "POST", "/api/curtailment/recommend", `{"area":"ON","eventID":"2026-03-15T12:00:00Z"}`)
		require.Equal(t, http.StatusOK, w.Code)
		db.AssertNotCalled(t, "InsertRecommendations", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandleStatistics(t *testing.T) {
	t.Run("aggregates window", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		events := []types.CurtailmentEvent{{
			Area:                    "ON",
			TotalEnergyCurtailedMWH: 200,
			Cause:                   types.CauseOversupply,
			Provenance:              types.ProvenanceHistorical,
		}}
		recs := []types.Recommendation{{Implemented: true, ExpectedMWHSaved: 50, EstimatedRevenueCAD: 1000}}
		db.On("GetCurtailmentEvents", mock.Anything, "ON", mock.Anything, mock.Anything).Return(events, nil)
		db.On("GetRecommendations", mock.Anything, "ON", mock.Anything, mock.Anything).Return(recs, nil)
		db.On("GetDispatchLogsRange", mock.Anything, "ON", mock.Anything, mock.Anything).Return([]types.DispatchLogEntry(nil), nil)
		handler := testServer(db).setupHandler()

		q := make(url.Values)
		q.Set("area", "ON")
		q.Set("start", "2026-03-01T00:00:00Z")
		q.Set("end", "2026-03-31T00:00:00Z")
		w := doJSON(t, handler, "GET", "/api/curtailment/statistics?"+q.Encode(), "")
		require.Equal(t, http.StatusOK, w.Code)

		var snap types.KPISnapshot
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
		assert.Equal(t, 1, snap.TotalEvents)
		assert.InDelta(t, 25, snap.CurtailmentReductionPercent, 0.001)
		assert.Equal(t, types.ProvenanceHistorical, snap.Provenance)
	})

	t.Run("rejects bad ranges", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		handler := testServer(db).setupHandler()

		tests := []struct {
			name   string
			start  string
			end    string
			errMsg string
		}{
			{"invalid start", "invalid", "2026-03-31T00:00:00Z", "invalid start time"},
			{"invalid end", "2026-03-01T00:00:00Z", "invalid", "invalid end time"},
			{"end before start", "2026-03-31T00:00:00Z", "2026-03-01T00:00:00Z", "start time must be before end time"},
			{"window too wide", "2024-01-01T00:00:00Z", "2026-03-01T00:00:00Z", "time range cannot exceed"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				q := make(url.Values)
				q.Set("area", "ON")
				q.Set("start", tt.start)
				q.Set("end", tt.end)
				w := doJSON(t, handler, "GET", "/api/curtailment/statistics?"+q.Encode(), "")
				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Contains(t, w.Body.String(), tt.errMsg)
			})
		}
	})

	t.Run("missing area rejected", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		handler := testServer(db).setupHandler()
		w := doJSON(t, handler, "GET", "/api/curtailment/statistics", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleDispatchEndpoints(t *testing.T) {
	battery := types.BatteryState{
		Area: "ON", SOCPercent: 50, SOCMWH: 125,
		CapacityMWH: 250, PowerRatingMW: 100,
	}

	t.Run("dispatch returns before and after", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		db.On("GetBatteryState", mock.Anything, "ON").Return(battery, nil)
		db.On("SetBatteryState", mock.Anything, mock.Anything).Return(nil)
		db.On("InsertDispatchLog", mock.Anything, mock.Anything).Return(nil)
		handler := testServer(db).setupHandler()

		w := doJSON(t, handler, "POST", "/api/storage/dispatch", `{
			"area": "ON",
			"priceCADPerMWH": 12,
			"curtailmentRisk": true
		}`)
		require.Equal(t, http.StatusOK, w.Code)

		var resp dispatchResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, types.DispatchCharge, resp.Decision.Action)
		assert.InDelta(t, 50, resp.BatteryBefore.SOCPercent, 0.001)
		assert.Greater(t, resp.BatteryAfter.SOCMWH, resp.BatteryBefore.SOCMWH)
	})

	t.Run("status returns derived metrics", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		now := time.Now()
		logs := []types.DispatchLogEntry{
			{Action: types.DispatchCharge, RenewableAbsorption: true, ExpectedRevenueCAD: 100, DispatchedAt: now.Add(-time.Hour)},
			{Action: types.DispatchDischarge, ExpectedRevenueCAD: 400, DispatchedAt: now.Add(-3 * 24 * time.Hour)},
		}
		db.On("GetBatteryState", mock.Anything, "ON").Return(battery, nil)
		db.On("GetDispatchLogsRange", mock.Anything, "ON", mock.Anything, mock.Anything).Return(logs, nil)
		handler := testServer(db).setupHandler()

		w := doJSON(t, handler, "GET", "/api/storage/status?area=ON", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp batteryStatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.SOCWithinBounds)
		assert.InDelta(t, 50, resp.RenewableAlignmentPercent, 0.001)
		assert.Equal(t, 1, resp.Dispatches24H)
		assert.InDelta(t, 100, resp.ExpectedRevenue24HCAD, 0.001)
		assert.InDelta(t, 500, resp.ExpectedRevenue7DCAD, 0.001)
	})

	t.Run("logs summary", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		actual := 450.0
		logs := []types.DispatchLogEntry{
			{Action: types.DispatchCharge, RenewableAbsorption: true, ExpectedRevenueCAD: 100},
			{Action: types.DispatchDischarge, ExpectedRevenueCAD: 500, ActualRevenueCAD: &actual},
			{Action: types.DispatchHold},
		}
		db.On("GetDispatchLogs", mock.Anything, "ON", 2).Return(logs, nil)
		handler := testServer(db).setupHandler()

		w := doJSON(t, handler, "GET", "/api/storage/logs?area=ON&limit=2", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp dispatchLogsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Summary.TotalCycles)
		assert.Equal(t, 1, resp.Summary.ChargeEvents)
		assert.Equal(t, 1, resp.Summary.DischargeEvents)
		assert.Equal(t, 1, resp.Summary.RenewableAbsorptionEvents)
		assert.InDelta(t, 550, resp.Summary.TotalRevenueCAD, 0.001)
	})

	t.Run("invalid limit rejected", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		handler := testServer(db).setupHandler()
		w := doJSON(t, handler, "GET", "/api/storage/logs?area=ON&limit=zero", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleValidateEvidence(t *testing.T) {
	db := new(storagemock.MockDatabase)
	handler := testServer(db).setupHandler()

	t.Run("within tolerance passes", func(t *testing.T) {
		w := doJSON(t, handler, "POST", "/api/evidence/validate", `{
			"live": {"monthly_curtailment_avoided_mwh": 679},
			"export": {"monthly_curtailment_avoided_mwh": 679.5}
		}`)
		require.Equal(t, http.StatusOK, w.Code)

		var res evidence.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.True(t, res.OK)
	})

	t.Run("divergence reports field names", func(t *testing.T) {
		w := doJSON(t, handler, "POST", "/api/evidence/validate", `{
			"live": {"monthly_curtailment_avoided_mwh": 679},
			"export": {"monthly_curtailment_avoided_mwh": 700}
		}`)
		require.Equal(t, http.StatusOK, w.Code)

		var res evidence.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.False(t, res.OK)
		assert.Contains(t, res.Mismatches, "monthly_curtailment_avoided_mwh")
	})

	t.Run("missing maps rejected", func(t *testing.T) {
		w := doJSON(t, handler, "POST", "/api/evidence/validate", `{"live": {"a": 1}}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleCloseAndOutcome(t *testing.T) {
	t.Run("close event", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		db.On("CloseCurtailmentEvent", mock.Anything, "ON", "2026-03-15T12:00:00Z", mock.Anything).Return(nil)
		handler := testServer(db).setupHandler()

		w := doJSON(t, handler, "POST", "/api/curtailment/close", `{"area":"ON","eventID":"2026-03-15T12:00:00Z"}`)
		require.Equal(t, http.StatusOK, w.Code)
		db.AssertExpectations(t)
	})

	t.Run("close unknown event", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		db.On("CloseCurtailmentEvent", mock.Anything, "ON", "missing", mock.Anything).Return(storage.ErrEventNotFound)
		handler := testServer(db).setupHandler()

		w := doJSON(t, handler, "POST", "/api/curtailment/close", `{"area":"ON","eventID":"missing"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("record outcome", func(t *testing.T) {
		db := new(storagemock.MockDatabase)
		db.On("UpdateRecommendationOutcome", mock.Anything, "ON", "rec1", mock.MatchedBy(func(o types.RecommendationOutcome) bool {
			return o.Implemented && o.ActualMWHSaved != nil && *o.ActualMWHSaved == 42
		})).Return(nil)
		handler := testServer(db).setupHandler()

		w := doJSON(t, handler, "POST", "/api/curtailment/outcome", `{
			"area": "ON",
			"recommendationID": "rec1",
			"outcome": {"implemented": true, "actualMWHSaved": 42}
		}`)
		require.Equal(t, http.StatusOK, w.Code)
		db.AssertExpectations(t)
	})
}

func TestHealthzAndHeaders(t *testing.T) {
	db := new(storagemock.MockDatabase)
	handler := testServer(db).setupHandler()

	w := doJSON(t, handler, "GET", "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=")
}
