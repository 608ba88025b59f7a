package devserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vsdocs_devserver_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vsdocs_devserver_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vsdocs_devserver_jobs_total",
			Help: "Apply jobs by final status",
		},
		[]string{"status"},
	)

	jobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vsdocs_devserver_jobs_active",
			Help: "Apply jobs not yet finished",
		},
	)

	documentsChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vsdocs_devserver_documents_changed_total",
			Help: "Collection documents added or removed by completed jobs",
		},
		[]string{"op"},
	)

	libraryListings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vsdocs_devserver_library_listings_total",
			Help: "Library folder listings",
		},
		[]string{"status"},
	)
)

func recordJob(status string) {
	jobsTotal.WithLabelValues(status).Inc()
}

func recordListing(ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	libraryListings.WithLabelValues(status).Inc()
}

// metricsMiddleware records request counts by route pattern so that ids in the
// URL do not explode label cardinality.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
