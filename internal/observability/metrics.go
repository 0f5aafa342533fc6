package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	collectionMutationsTotal      *prometheus.CounterVec
	collectionDecodeFailuresTotal *prometheus.CounterVec
	notifierDeliveredTotal        *prometheus.CounterVec
	notifierDroppedTotal          *prometheus.CounterVec
	activeBindings                *prometheus.GaugeVec
	uploadRejectedTotal           *prometheus.CounterVec
	uploadLatencySeconds          prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors used by the portal.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		collectionMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collection_mutations_total",
			Help: "Mutation sequences by collection and outcome.",
		}, []string{"collection", "outcome"})

		collectionDecodeFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collection_decode_failures_total",
			Help: "Stored collection values discarded as undecodable.",
		}, []string{"collection"})

		notifierDeliveredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_events_delivered_total",
			Help: "Change announcements queued for a subscriber.",
		}, []string{"collection"})

		notifierDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifier_events_dropped_total",
			Help: "Change announcements dropped because a subscriber queue was full.",
		}, []string{"collection"})

		activeBindings = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "view_bindings_active",
			Help: "Views currently bound to a collection.",
		}, []string{"collection"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_rejected_total",
			Help: "Uploads rejected before being stored, by reason.",
		}, []string{"reason"})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "upload_encode_seconds",
			Help:    "Time spent reading and encoding uploaded files.",
			Buckets: prometheus.DefBuckets,
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			collectionMutationsTotal, collectionDecodeFailuresTotal,
			notifierDeliveredTotal, notifierDroppedTotal, activeBindings,
			uploadRejectedTotal, uploadLatencySeconds,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// CollectionMutations exposes the mutation outcome counter.
func CollectionMutations() *prometheus.CounterVec {
	RegisterMetrics()
	return collectionMutationsTotal
}

// CollectionDecodeFailures exposes the counter of discarded stored values.
func CollectionDecodeFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return collectionDecodeFailuresTotal
}

// NotifierDelivered exposes the counter of queued change events.
func NotifierDelivered() *prometheus.CounterVec {
	RegisterMetrics()
	return notifierDeliveredTotal
}

// NotifierDropped exposes the counter of dropped change events.
func NotifierDropped() *prometheus.CounterVec {
	RegisterMetrics()
	return notifierDroppedTotal
}

// ActiveBindings exposes the gauge of bound views.
func ActiveBindings() *prometheus.GaugeVec {
	RegisterMetrics()
	return activeBindings
}

// UploadRejected exposes the counter of rejected uploads.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency exposes the upload encode histogram.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}

// MetricsHandler serves the default registry, OpenMetrics format when the scraper asks for it.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}
