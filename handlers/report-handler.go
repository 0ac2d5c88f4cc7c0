package handlers

import (
	"net/http"

	"task-manager/services"
)

type ReportHandler struct {
	service *services.ReportService
}

func NewReportHandler(service *services.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// ExportTasks streams the full task report as a CSV attachment. Admin only.
func (h *ReportHandler) ExportTasks(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFromRequest(r)
	if !ok {
		http.Error(w, "Authorization required", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="tasks_report.csv"`)

	if err := h.service.ExportTasks(r.Context(), caller.ID, w); err != nil {
		writeError(w, err)
		return
	}
}

// ExportUsers streams the member report as a CSV attachment. Admin only.
func (h *ReportHandler) ExportUsers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="users_report.csv"`)

	if err := h.service.ExportUsers(r.Context(), w); err != nil {
		writeError(w, err)
		return
	}
}
