package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trustpilot", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trustpilot", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	FetchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trustpilot", Name: "fetch_requests_total", Help: "Outbound page fetches."},
		[]string{"status"},
	)
	FetchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "trustpilot", Name: "fetch_duration_seconds",
			Help:    "Outbound page fetch duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	ScrapeOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trustpilot", Name: "scrape_outcomes_total", Help: "Scrape results by outcome."},
		[]string{"outcome"}, // outcome: ok|failed|skipped
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trustpilot", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
	QueueEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "trustpilot", Name: "queue_events_total", Help: "Task queue events."},
		[]string{"task", "event"}, // event: enqueued|done|retried|dead
	)
)

// Serve exposes the metric registry on its own listener. Empty addr
// disables it; the api binary additionally mounts /metrics on its main
// router.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(InitRegistry()))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, FetchRequests, FetchLatency, ScrapeOutcomes, CacheEvents, QueueEvents)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

// ObserveFetch records an outbound page fetch; status 0 means the request
// never completed.
func ObserveFetch(status int, dur time.Duration) {
	FetchRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	FetchLatency.Observe(dur.Seconds())
}

func ObserveScrape(outcome string) { // outcome: ok|failed|skipped
	ScrapeOutcomes.WithLabelValues(outcome).Inc()
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveQueue(task, event string) { // event: enqueued|done|retried|dead
	QueueEvents.WithLabelValues(task, event).Inc()
}
