package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tracefold/gateaudit/internal/db"
)

type HealthResponse struct {
	Status        string   `json:"status"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Version       string   `json:"version"`
	DBStatus      string   `json:"db_status"`
	DBSizeBytes   int64    `json:"db_size_bytes"`
	WALSizeBytes  int64    `json:"wal_size_bytes"`
	PromptCount   int64    `json:"prompt_count"`
	OutputCount   int64    `json:"output_count"`
	AlertCount    int64    `json:"alert_count"`
	GeneratedAt   string   `json:"generated_at"`
	Warnings      []string `json:"warnings,omitempty"`
}

type HealthHandler struct {
	dbm       *db.Manager
	startTime time.Time
	version   string
}

func NewHealthHandler(dbm *db.Manager, start time.Time, version string) *HealthHandler {
	return &HealthHandler{
		dbm:       dbm,
		startTime: start,
		version:   version,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	dbStats := h.dbm.Stats()
	prompts, outputs, alerts, err := h.dbm.RowCounts(context.Background())

	resp := HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Version:       h.version,
		DBStatus:      dbStats.DBStatus,
		DBSizeBytes:   dbStats.DBSizeBytes,
		WALSizeBytes:  dbStats.WALSize,
		PromptCount:   prompts,
		OutputCount:   outputs,
		AlertCount:    alerts,
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	if err != nil {
		resp.Status = "degraded"
		resp.Warnings = append(resp.Warnings, "row_counts_unavailable")
		resp.PromptCount, resp.OutputCount, resp.AlertCount = 0, 0, 0
	}
	if resp.DBStatus != "ok" {
		resp.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
