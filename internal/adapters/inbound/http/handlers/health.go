package handlers

import (
	"net/http"

	"github.com/architeacher/nocoflo/internal/usecases/queries"
)

// Health reports every probed dependency and answers 503 when one is down.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report, err := h.app.Queries.FetchHealthReport.Execute(r.Context(), queries.FetchHealthReportQuery{})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	status := http.StatusOK
	if report.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, status, report)
}

func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	result, err := h.app.Queries.FetchLiveness.Execute(r.Context(), queries.FetchLivenessQuery{})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeJSONResponse(w, http.StatusOK, result)
}
