package engine

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics agrupa os contadores Prometheus do motor de escrow.
type Metrics struct {
	Operations     *prometheus.CounterVec
	PayoutCents    *prometheus.CounterVec
	NotifyFailures *prometheus.CounterVec
}

// NewMetrics cria e registra os contadores no registerer informado.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_operations_total",
			Help: "operações do motor por resultado",
		}, []string{"op", "result"}),
		PayoutCents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_payout_cents_total",
			Help: "centavos liberados do escrow por tipo (winnings, refund, draw)",
		}, []string{"kind"}),
		NotifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escrow_notify_failures_total",
			Help: "falhas ao notificar eventos após commit",
		}, []string{"topic"}),
	}
	reg.MustRegister(m.Operations, m.PayoutCents, m.NotifyFailures)
	return m
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, resultLabel(err)).Inc()
}

func (m *Metrics) payout(kind string, cents int64) {
	if m == nil || cents <= 0 {
		return
	}
	m.PayoutCents.WithLabelValues(kind).Add(float64(cents))
}

func (m *Metrics) notifyFailed(topic string) {
	if m == nil {
		return
	}
	m.NotifyFailures.WithLabelValues(topic).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidWinner):
		return "invalid_winner"
	case errors.Is(err, ErrAlreadySubmitted):
		return "already_submitted"
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return "error"
	}
}
