// Package metric provides RED (rate, errors, duration) instrumentation for
// service middleware.
package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// REDClient records calls, errors and latency for one service.
type REDClient struct {
	count    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New registers and returns a RED client namespaced by service name.
func New(reg prometheus.Registerer, service string) *REDClient {
	count := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: service,
		Name:      "call_total",
		Help:      "Number of calls",
	}, []string{"method", "error"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "registry",
		Subsystem: service,
		Name:      "duration_seconds",
		Help:      "Duration of calls",
	}, []string{"method", "error"})

	reg.MustRegister(count, duration)

	return &REDClient{
		count:    count,
		duration: duration,
	}
}

// Record starts the clock for one call; invoke the returned func with the
// call's error to finish recording. It returns the error untouched so it can
// wrap a return statement.
func (c *REDClient) Record(method string) func(error) error {
	start := time.Now()
	return func(err error) error {
		labels := prometheus.Labels{
			"method": method,
			"error":  strconv.FormatBool(err != nil),
		}
		c.count.With(labels).Inc()
		c.duration.With(labels).Observe(time.Since(start).Seconds())
		return err
	}
}
