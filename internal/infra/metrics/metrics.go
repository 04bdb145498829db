package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fbosync_http_requests_total",
		Help: "Запросы к внешним API по коду ответа (0 — сетевая ошибка).",
	}, []string{"api", "code"})

	HTTPRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fbosync_http_retries_total",
		Help: "Повторные попытки запросов к внешним API.",
	}, []string{"api"})

	Outcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fbosync_outcomes_total",
		Help: "Решения синхронизации по заявкам.",
	}, []string{"cabinet", "stage", "action"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fbosync_run_duration_seconds",
		Help:    "Длительность прогона по кабинету.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"cabinet"})

	LastRunSuccess = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fbosync_last_run_success_timestamp_seconds",
		Help: "Время последнего прогона без фатальных ошибок.",
	}, []string{"cabinet"})
)
