package handlers

import "net/http"

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	report := h.health.Report()

	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, report)
}
