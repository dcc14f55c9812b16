package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	documentsRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "documents_total",
			Help:      "Invitation documents rendered, by render mode.",
		},
		[]string{"mode"},
	)

	confirmationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rsvp",
			Name:      "confirmations_total",
			Help:      "Guest confirmations by outcome (submitted, fallback_only, failed).",
		},
		[]string{"outcome"},
	)
)

// ObserveRender 记录一次文档渲染。
func ObserveRender(mode string) {
	documentsRendered.WithLabelValues(mode).Inc()
}

// ObserveConfirmation 记录一次确认尝试。
func ObserveConfirmation(outcome string) {
	confirmationsTotal.WithLabelValues(outcome).Inc()
}
