package monitoring

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	webhookNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_notifications_total",
			Help: "Payment webhook notifications by outcome",
		},
		[]string{"outcome"},
	)

	ticketStatusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_status_changes_total",
			Help: "Ticket payment status transitions",
		},
		[]string{"origin", "from", "to"},
	)

	ticketValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_validations_total",
			Help: "Ticket redemption attempts by result",
		},
		[]string{"result"},
	)

	checkouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkouts_total",
			Help: "Checkout requests by result",
		},
		[]string{"result"},
	)

	gatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Duration of payment gateway calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"operation", "outcome"},
	)

	rateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)
)

// TrackWebhook records the outcome of a webhook delivery
// (processed, ignored, unmapped, not_found, unauthorized, invalid, error).
func TrackWebhook(outcome string) {
	webhookNotifications.WithLabelValues(outcome).Inc()
}

func TrackStatusChange(origin, from, to string) {
	ticketStatusChanges.WithLabelValues(origin, from, to).Inc()
}

// TrackValidation records a redemption result (validated, already_used, not_paid, not_found, error).
func TrackValidation(result string) {
	ticketValidations.WithLabelValues(result).Inc()
}

func TrackCheckout(result string) {
	checkouts.WithLabelValues(result).Inc()
}

func ObserveGatewayCall(operation, outcome string, d time.Duration) {
	gatewayLatency.WithLabelValues(operation, outcome).Observe(d.Seconds())
}

func TrackRateLimited(scope string) {
	rateLimited.WithLabelValues(scope).Inc()
}

// Server exposes /metrics on its own port.
type Server struct {
	srv *http.Server
}

func NewServer(port string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		srv: &http.Server{
			Addr:              ":" + port,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *Server) Start() {
	go func() {
		log.Printf("Metrics server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server error: %v", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
