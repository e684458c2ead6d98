package server

import (
	"net/http"
	"time"
)

func New(addr string, healthHandler http.HandlerFunc, reports *ReportHandlers) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	if reports != nil {
		mux.HandleFunc("GET /v1/prompts", reports.GetPrompts)
		mux.HandleFunc("GET /v1/alerts", reports.GetAlerts)
	}

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
