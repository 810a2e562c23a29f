// Copyright 2025 James Ross
package collector

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/gorilla/mux"

	"github.com/content-forge/pipeline/internal/models"
)

func writeStatsJSON(w http.ResponseWriter, stats models.Stats) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

// Router builds the gorilla/mux router for the Collector's HTTP surface,
// with per-IP rate limiting layered underneath via go-chi/httprate so a
// misbehaving manual-trigger caller can't starve the streaming pipeline.
func (c *Collector) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(httprate.Limit(
		10,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	))
	r.HandleFunc("/collect", c.handleCollect).Methods(http.MethodPost)
	return r
}

func (c *Collector) handleCollect(w http.ResponseWriter, r *http.Request) {
	if c.cfg.Collector.APIKey != "" && r.Header.Get("X-API-Key") != c.cfg.Collector.APIKey {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	stats, _ := c.Run(r.Context(), c.cfg.Collector.Sources, true)
	writeStatsJSON(w, stats)
}
