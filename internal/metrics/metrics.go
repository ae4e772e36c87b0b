package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thumbdesk",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "thumbdesk",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thumbdesk",
			Subsystem: "requests",
			Name:      "submissions_total",
			Help:      "Thumbnail request submissions by outcome.",
		},
		[]string{"outcome"},
	)

	creditsDeducted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "thumbdesk",
			Subsystem: "credits",
			Name:      "deducted_total",
			Help:      "Total credits deducted for accepted requests.",
		},
	)

	adminActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thumbdesk",
			Subsystem: "admin",
			Name:      "actions_total",
			Help:      "Admin fulfilment actions by kind and outcome.",
		},
		[]string{"action", "success"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thumbdesk",
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification deliveries by event type and outcome.",
		},
		[]string{"type", "success"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		submissions,
		creditsDeducted,
		adminActions,
		notifications,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per matched route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		route := c.Route().Path
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// Submission outcomes.
const (
	OutcomeAccepted     = "accepted"
	OutcomeReplayed     = "replayed"
	OutcomeInsufficient = "insufficient_credits"
	OutcomeInvalid      = "invalid"
	OutcomeFailed       = "failed"
)

// RecordSubmission counts a submission attempt by outcome.
func RecordSubmission(outcome string) {
	submissions.WithLabelValues(outcome).Inc()
}

// RecordDeduction adds amount to the deducted credits total.
func RecordDeduction(amount int) {
	if amount > 0 {
		creditsDeducted.Add(float64(amount))
	}
}

// RecordAdminAction counts an admin operation.
func RecordAdminAction(action string, success bool) {
	adminActions.WithLabelValues(action, strconv.FormatBool(success)).Inc()
}

// RecordNotification counts a delivered (or failed) notification.
func RecordNotification(eventType string, success bool) {
	notifications.WithLabelValues(eventType, strconv.FormatBool(success)).Inc()
}
