package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/socky-bot/socky/internal/logging"
)

// Metrics exposes Prometheus collectors that report bot activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	events    *prometheus.CounterVec
	responses *prometheus.CounterVec
	commands  *prometheus.CounterVec
	sendFails prometheus.Counter
}

// New constructs collectors on reg. A nil reg uses a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "socky",
				Name:      "events_total",
				Help:      "Inbound chat events by kind.",
			},
			[]string{"kind"},
		),
		responses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "socky",
				Name:      "responses_total",
				Help:      "Autonomous response attempts by outcome.",
			},
			[]string{"outcome"},
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "socky",
				Name:      "commands_total",
				Help:      "Admin commands by action and result.",
			},
			[]string{"action", "result"},
		),
		sendFails: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "socky",
				Name:      "send_failures_total",
				Help:      "Outbound messages the transport rejected.",
			},
		),
	}
	reg.MustRegister(m.events, m.responses, m.commands, m.sendFails)
	return m
}

// Event counts one inbound event
func (m *Metrics) Event(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

// Response counts one autonomous response decision
func (m *Metrics) Response(outcome string) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(outcome).Inc()
}

// Command counts one dispatched admin command
func (m *Metrics) Command(action, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(action, result).Inc()
}

// SendFailure counts one failed outbound message
func (m *Metrics) SendFailure() {
	if m == nil {
		return
	}
	m.sendFails.Inc()
}

// Serve exposes gatherer on addr at /metrics until ctx ends
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	log := logging.Get("metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
