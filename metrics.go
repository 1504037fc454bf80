package instream

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the stream counters. One Metrics value may be shared by
// any number of streams; Prometheus counters are safe for concurrent use.
type Metrics struct {
	BytesRead prometheus.Counter
	Pauses    prometheus.Counter
	Resumes   prometheus.Counter
	Seeks     prometheus.Counter
	Errors    prometheus.Counter
}

// NewMetrics creates the stream counters and registers them with reg.
// A nil registerer leaves the counters unregistered, which is handy in
// tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "instream",
			Name:      "bytes_read_total",
			Help:      "Bytes handed to consumers by Read.",
		}),
		Pauses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "instream",
			Name:      "pauses_total",
			Help:      "Times a backend was paused on a full buffer.",
		}),
		Resumes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "instream",
			Name:      "resumes_total",
			Help:      "Times a paused backend was resumed.",
		}),
		Seeks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "instream",
			Name:      "seeks_total",
			Help:      "Seek requests issued by consumers.",
		}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "instream",
			Name:      "errors_total",
			Help:      "Backend errors postponed for consumer delivery.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.BytesRead, m.Pauses, m.Resumes, m.Seeks, m.Errors)
	}
	return m
}
