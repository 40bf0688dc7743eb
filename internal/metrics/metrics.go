// Package metrics exposes Prometheus collectors for HTTP traffic and
// domain events.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login results.
const (
	LoginSuccess = "success"
	LoginFailure = "failure"
)

// Collector holds the application's Prometheus metrics.
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	logins          *prometheus.CounterVec
	tokensRevoked   prometheus.Counter
	usersRegistered prometheus.Counter
	recipesCreated  prometheus.Counter
}

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foodgram_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "foodgram_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foodgram_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		tokensRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodgram_tokens_revoked_total",
			Help: "Access tokens added to the denylist.",
		}),
		usersRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodgram_users_registered_total",
			Help: "Users registered.",
		}),
		recipesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodgram_recipes_created_total",
			Help: "Recipes created.",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.logins,
		c.tokensRevoked,
		c.usersRegistered,
		c.recipesCreated,
	)
	return c
}

func (c *Collector) RecordLogin(success bool) {
	result := LoginFailure
	if success {
		result = LoginSuccess
	}
	c.logins.WithLabelValues(result).Inc()
}

func (c *Collector) RecordTokenRevoked() {
	c.tokensRevoked.Inc()
}

func (c *Collector) RecordUserRegistered() {
	c.usersRegistered.Inc()
}

func (c *Collector) RecordRecipeCreated() {
	c.recipesCreated.Inc()
}

// Middleware records request count and latency labelled by the matched chi
// route pattern, so path parameters do not explode label cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{r.Method, route, strconv.Itoa(status)}
		c.httpRequests.WithLabelValues(labels...).Inc()
		c.httpDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
