package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/basinwatch/watertrend/internal/analysis"
	"github.com/gorilla/mux"
)

// Handlers contains the HTTP handlers for the result server
type Handlers struct {
	controller *Controller
}

// NewHandlers creates a new handlers instance
func NewHandlers(controller *Controller) *Handlers {
	return &Handlers{controller: controller}
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetSummary returns the latest summary. An optional ?alpha= query parameter
// reclassifies the rows at a different threshold without refitting.
func (h *Handlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary := h.controller.Summary()
	if summary == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no summary available yet"})
		return
	}

	if alphaParam := r.URL.Query().Get("alpha"); alphaParam != "" {
		alpha, err := strconv.ParseFloat(alphaParam, 64)
		if err != nil || alpha <= 0 || alpha >= 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "alpha must be a number in (0, 1)"})
			return
		}
		summary = reclassify(summary, alpha)
	}

	writeJSON(w, http.StatusOK, summary)
}

// GetBasinSummary returns the latest summary restricted to one basin. Only
// meaningful when the first grouping column is basin.
func (h *Handlers) GetBasinSummary(w http.ResponseWriter, r *http.Request) {
	summary := h.controller.Summary()
	if summary == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no summary available yet"})
		return
	}

	if len(summary.Columns) == 0 || summary.Columns[0] != "basin" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "summary is not grouped by basin"})
		return
	}

	basin := mux.Vars(r)["basin"]
	filtered := &analysis.Summary{
		Columns:   summary.Columns,
		Alpha:     summary.Alpha,
		Estimator: summary.Estimator,
	}
	for _, row := range summary.Rows {
		if len(row.Key) > 0 && row.Key[0] == basin {
			filtered.Rows = append(filtered.Rows, row)
		}
	}

	if len(filtered.Rows) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no results for basin " + basin})
		return
	}

	writeJSON(w, http.StatusOK, filtered)
}

// reclassify copies the summary with the trend flag recomputed at alpha.
func reclassify(summary *analysis.Summary, alpha float64) *analysis.Summary {
	out := &analysis.Summary{
		Columns:   summary.Columns,
		Alpha:     alpha,
		Estimator: summary.Estimator,
		Rows:      make([]analysis.SummaryRow, len(summary.Rows)),
	}
	copy(out.Rows, summary.Rows)
	for i := range out.Rows {
		out.Rows[i].Trend = analysis.TrendPresent(out.Rows[i], alpha)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
