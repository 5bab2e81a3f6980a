// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acb_events_total",
		Help: "Lifecycle events handled by the orchestrator, by kind",
	}, []string{"kind"})

	eventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acb_events_dropped_total",
		Help: "Events that could not be queued, by kind and reason",
	}, []string{"kind", "reason"}) // reason=timeout|canceled|closed

	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acb_decisions_total",
		Help: "Orchestrator decisions by decision and outcome",
	}, []string{"decision", "outcome"})

	retriesScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acb_connect_retries_scheduled_total",
		Help: "Back-to-back connect retries scheduled",
	})

	countdownsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acb_countdowns_started_total",
		Help: "Countdown tick chains started (each replaces any previous chain)",
	})

	countdownActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "acb_countdown_active",
		Help: "Whether a countdown tick chain is live (1) or idle (0)",
	})

	handlerPanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acb_handler_panics_total",
		Help: "Handler panics recovered by the dispatch loop, by event kind",
	}, []string{"kind"})

	eventHandleSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "acb_event_handle_seconds",
		Help:    "Time spent handling one event, including remote lookups",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"kind"})
)

// IncEvent counts one handled event.
func IncEvent(kind string) {
	eventsTotal.WithLabelValues(kind).Inc()
}

// IncEventDropped counts one event that never reached the loop.
func IncEventDropped(kind, reason string) {
	eventsDropped.WithLabelValues(kind, reason).Inc()
}

// IncDecision counts one orchestrator decision outcome.
func IncDecision(decision, outcome string) {
	decisionsTotal.WithLabelValues(decision, outcome).Inc()
}

// IncRetryScheduled counts one scheduled back-to-back retry.
func IncRetryScheduled() {
	retriesScheduled.Inc()
}

// SetCountdownActive records whether a countdown chain is live.
func SetCountdownActive(active bool) {
	if active {
		countdownsStarted.Inc()
		countdownActive.Set(1)
		return
	}
	countdownActive.Set(0)
}

// IncHandlerPanic counts one recovered handler panic.
func IncHandlerPanic(kind string) {
	handlerPanics.WithLabelValues(kind).Inc()
}

// ObserveEventHandle records how long one event took.
func ObserveEventHandle(kind string, seconds float64) {
	eventHandleSeconds.WithLabelValues(kind).Observe(seconds)
}
