// Package metrics records gateway flow outcomes and HTTP traffic as Prometheus series.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/cmpt474/mm-login-gateway/internal/errors"
	obserrors "github.com/cmpt474/mm-login-gateway/internal/observability/errors"
)

// Result constants for metric labels.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Flow names.
const (
	FlowTicketLogin     = "ticket_login"
	FlowCredentialLogin = "credential_login"
	FlowSignup          = "signup"
	FlowIntrospect      = "introspect"
	FlowElevation       = "elevation"
)

// FlowMetric captures the outcome of one gateway flow invocation.
type FlowMetric struct {
	Flow     string
	Duration time.Duration
	Err      error
}

// Recorder is implemented by metric sinks used by the service and HTTP layers.
type Recorder interface {
	RecordFlow(in FlowMetric)
	RecordHTTP(route string, status int, d time.Duration)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordFlow(FlowMetric)                 {}
func (Nop) RecordHTTP(string, int, time.Duration) {}

// Collector implements Recorder on Prometheus.
type Collector struct {
	flows        *prometheus.CounterVec
	flowDuration *prometheus.HistogramVec
	requests     *prometheus.CounterVec
	reqDuration  *prometheus.HistogramVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its series with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		flows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_flow_total",
			Help: "Gateway flow outcomes by flow, result and error class.",
		}, []string{"flow", "result", "error_class"}),
		flowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_flow_duration_seconds",
			Help:    "Gateway flow latency including external calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"flow"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "HTTP responses by route and status code.",
		}, []string{"route", "status_code"}),
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(c.flows, c.flowDuration, c.requests, c.reqDuration)
	return c
}

// RecordFlow counts a flow outcome. Client-side rejections are kept apart from server errors.
func (c *Collector) RecordFlow(in FlowMetric) {
	result, class := Outcome(in.Err)
	c.flows.WithLabelValues(in.Flow, result, class).Inc()
	if in.Duration > 0 {
		c.flowDuration.WithLabelValues(in.Flow).Observe(in.Duration.Seconds())
	}
}

// RecordHTTP counts one HTTP response.
func (c *Collector) RecordHTTP(route string, status int, d time.Duration) {
	c.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	c.reqDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Outcome maps an error to result and error_class label values.
// Server-side failures are labelled by their cause when one is recognised.
func Outcome(err error) (result, class string) {
	if err == nil {
		return ResultSuccess, ""
	}
	code := apperrors.GetCode(err)
	switch code {
	case "":
		return ResultError, obserrors.Classify(err)
	case apperrors.ErrCodeInternal, apperrors.ErrCodeTimeout, apperrors.ErrCodeCanceled:
		if cause := obserrors.Classify(err); cause != obserrors.ClassOther {
			return ResultError, cause
		}
		return ResultError, string(code)
	default:
		return ResultRejected, string(code)
	}
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
