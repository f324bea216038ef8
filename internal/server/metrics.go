package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "upload_gateway"

// Upload outcomes used as the result label.
const (
	resultOK             = "ok"
	resultMissingFile    = "missing_file"
	resultTooLarge       = "too_large"
	resultBucketNotFound = "bucket_not_found"
	resultAccessDenied   = "access_denied"
	resultError          = "error"
)

// metrics holds the collectors of one server. Each server owns its registry
// so tests can build many servers in one process.
type metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	uploads     *prometheus.CounterVec
	uploadBytes prometheus.Counter
	lists       *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by response code.",
		}, []string{"code"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "uploads_total",
			Help:      "Upload requests by outcome.",
		}, []string{"result"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes written to object storage by successful uploads.",
		}),
		lists: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "list_requests_total",
			Help:      "File listing requests by outcome.",
		}, []string{"result"}),
	}

	for _, result := range []string{resultOK, resultMissingFile, resultTooLarge, resultBucketNotFound, resultAccessDenied, resultError} {
		m.uploads.WithLabelValues(result)
	}
	m.lists.WithLabelValues(resultOK)
	m.lists.WithLabelValues(resultError)

	m.registry.MustRegister(
		m.requests,
		m.uploads,
		m.uploadBytes,
		m.lists,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
