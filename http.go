package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/aquamon/aquamon/monitor"
)

type snapshotter interface {
	Snapshot() monitor.Snapshot
}

func newRouter(mon snapshotter, gatherer prometheus.Gatherer) http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		// Opt into OpenMetrics to support exemplars.
		EnableOpenMetrics: true,
	})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthHandler(mon)).Methods(http.MethodGet)
	r.HandleFunc("/api/status", statusHandler(mon)).Methods(http.MethodGet)

	return handlers.LoggingHandler(log.StandardLogger().WriterLevel(log.DebugLevel), r)
}

func healthHandler(mon snapshotter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if mon.Snapshot().State == monitor.StateStopped {
			http.Error(w, "stopped", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	}
}

func statusHandler(mon snapshotter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(mon.Snapshot()); err != nil {
			log.Warnf("failed to encode status: %s", err)
		}
	}
}
