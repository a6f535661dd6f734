package server

import (
	"encoding/json"
	"net/http"

	"github.com/gridslack/gridslack/pkg/metrics"
)

type validateEvidenceRequest struct {
	Live   map[string]float64 `json:"live"`
	Export map[string]float64 `json:"export"`
}

// handleValidateEvidence compares two parallel KPI computations and reports
// which fields diverge beyond tolerance. A mismatch is a structured result,
// not an error status.
func (s *Server) handleValidateEvidence(w http.ResponseWriter, r *http.Request) {
	var req validateEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Live == nil || req.Export == nil {
		writeJSONError(w, "live and export value maps are required", http.StatusBadRequest)
		return
	}

	result := s.validator.Validate(req.Live, req.Export)
	metrics.ObserveEvidenceValidation(result.OK)
	writeJSON(w, result)
}
