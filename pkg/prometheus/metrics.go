// Package prometheus builds the go-kit metrics the service middleware reports
// to.
package prometheus

import (
	"errors"

	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus"
)

// MakeMetrics returns a request counter and a latency summary, both labelled
// by method. Calling it again with the same names reuses the collectors
// already registered.
func MakeMetrics(namespace, subsystem string) (*kitprometheus.Counter, *kitprometheus.Summary) {
	counter := register(prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_count",
		Help:      "Number of requests received.",
	}, []string{"method"})).(*prometheus.CounterVec)

	latency := register(prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_latency_microseconds",
		Help:      "Total duration of requests in microseconds.",
	}, []string{"method"})).(*prometheus.SummaryVec)

	return kitprometheus.NewCounter(counter), kitprometheus.NewSummary(latency)
}

func register(c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}

	return c
}
