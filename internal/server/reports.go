package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tracefold/gateaudit/internal/db"
)

// ReportHandlers expose the two read contracts to downstream reporting.
type ReportHandlers struct {
	reader *db.Reader
	logger *slog.Logger
}

func NewReportHandlers(reader *db.Reader, logger *slog.Logger) *ReportHandlers {
	return &ReportHandlers{reader: reader, logger: logger}
}

func (h *ReportHandlers) GetPrompts(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reader.GetPromptsWithOutput(r.Context())
	if err != nil {
		h.logger.Error("prompts query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, struct {
		Prompts []db.PromptWithOutputRow `json:"prompts"`
	}{Prompts: rows})
}

func (h *ReportHandlers) GetAlerts(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reader.GetAlertsWithPromptAndOutput(r.Context())
	if err != nil {
		h.logger.Error("alerts query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, struct {
		Alerts []db.AlertWithPromptAndOutputRow `json:"alerts"`
	}{Alerts: rows})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
