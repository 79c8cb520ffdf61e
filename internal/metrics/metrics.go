package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActivationQueue metrics

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "eventsched",
		Name:      "queue_depth",
		Help:      "Number of events currently held in the activation queue, whatever their status.",
	})

	QueueDispatchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "eventsched",
		Name:      "queue_dispatch_latency_seconds",
		Help:      "Delay between an entry's execute_at and the moment the driver task dequeues it.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	})

	// WorkerPool metrics

	ExecutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventsched",
		Name:      "executions_total",
		Help:      "Total event executions, by outcome.",
	}, []string{"outcome"})

	ExecutionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eventsched",
		Name:      "execution_duration_seconds",
		Help:      "Duration of a single event body invocation.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})

	WorkersInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "eventsched",
		Name:      "workers_in_flight",
		Help:      "Number of worker goroutines currently executing an event body.",
	})

	// SchedulerLoop metrics

	SchedulerStateTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventsched",
		Name:      "scheduler_state_transitions_total",
		Help:      "Transitions of the scheduler driver state machine, by target state.",
	}, []string{"state"})

	SchedulerUpTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "eventsched",
		Name:      "scheduler_up",
		Help:      "1 if the scheduler loop is RUNNING, 0 otherwise.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eventsched",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventsched",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		QueueDepth,
		QueueDispatchLatency,
		ExecutionsTotal,
		ExecutionDuration,
		WorkersInFlight,
		SchedulerStateTransitionsTotal,
		SchedulerUpTime,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
