package main

import (
	"go.uber.org/zap"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/metrics"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/metrics/datadog"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/metrics/prompush"
)

const (
	defaultPushgatewayURL = "http://localhost:9091"
	defaultDatadogAddr    = "127.0.0.1:8125"
)

// Environment fallbacks for the metrics flags.
const (
	envMetricsBackend = "METRICS_BACKEND"
	envPushgatewayURL = "PUSHGATEWAY_URL"
	envDatadogAddr    = "DD_DOGSTATSD_URL"
)

// applyMetricsEnv fills metrics settings the config file left unset.
func applyMetricsEnv(m *config.Metrics, getenv func(string) string) {
	if v := getenv(envMetricsBackend); v != "" && (m.Backend == "" || m.Backend == "none") {
		m.Backend = v
	}
	if v := getenv(envPushgatewayURL); v != "" && m.PushgatewayURL == "" {
		m.PushgatewayURL = v
	}
	if v := getenv(envDatadogAddr); v != "" && m.DatadogAddr == "" {
		m.DatadogAddr = v
	}
}

// setupMetrics installs the configured backend and returns the function
// that flushes it. A backend that fails to start leaves the nop backend in
// place; metrics never fail a run.
func setupMetrics(m config.Metrics, job string, log *zap.Logger) (flush func()) {
	flush = func() {}

	backend := m.Backend
	var (
		b   metrics.Backend
		err error
	)
	switch backend {
	case "pushgateway":
		url := m.PushgatewayURL
		if url == "" {
			url = defaultPushgatewayURL
		}
		b, err = prompush.NewBackend(job, url)
		log = log.With(zap.String("url", url))

	case "datadog":
		addr := m.DatadogAddr
		if addr == "" {
			addr = defaultDatadogAddr
		}
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       addr,
			Namespace:  m.Namespace,
			GlobalTags: []string{"job:" + job},
		})
		log = log.With(zap.String("addr", addr))

	case "", "none":
		log.Debug("metrics disabled")
		return flush

	default:
		log.Warn("unknown metrics backend; metrics disabled", zap.String("backend", backend))
		return flush
	}

	if err != nil {
		log.Warn("metrics backend failed to start; using nop", zap.String("backend", backend), zap.Error(err))
		return flush
	}
	log.Info("metrics enabled", zap.String("backend", backend))
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics flush failed", zap.Error(err))
		}
	}
}
