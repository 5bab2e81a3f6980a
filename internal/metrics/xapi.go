// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	xapiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acb_xapi_requests_total",
		Help: "Requests sent to the endpoint command API by command and outcome",
	}, []string{"command", "outcome"}) // outcome=success|rejected|unavailable|timeout|bad_response|circuit_open|error

	xapiRequestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "acb_xapi_request_seconds",
		Help:    "Latency of endpoint command API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"command"})

	feedbackDocuments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acb_feedback_documents_total",
		Help: "Feedback documents received from the endpoint by result",
	}, []string{"result"}) // result=accepted|ignored|malformed|rejected
)

// ObserveXAPIRequest records one endpoint request.
func ObserveXAPIRequest(command, outcome string, seconds float64) {
	xapiRequestsTotal.WithLabelValues(command, outcome).Inc()
	xapiRequestSeconds.WithLabelValues(command).Observe(seconds)
}

// IncFeedbackDocument counts one pushed feedback document.
func IncFeedbackDocument(result string) {
	feedbackDocuments.WithLabelValues(result).Inc()
}
