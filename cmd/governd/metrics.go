package main

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	buildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "agc",
		Name:      "build_info",
		Help:      "Build information for the governance daemon",
	}, []string{"version", "go_version"})

	uptimeSeconds = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "agc",
		Name:      "uptime_seconds",
		Help:      "Seconds since the daemon started",
	}, func() float64 {
		return time.Since(startTime).Seconds()
	})

	startTime = time.Now()
)

// observabilityMux serves the Prometheus scrape endpoint and the
// health probe on the telemetry port.
func observabilityMux(version string) http.Handler {
	buildInfo.WithLabelValues(version, runtime.Version()).Set(1)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"version": version,
		})
	})
	return mux
}
