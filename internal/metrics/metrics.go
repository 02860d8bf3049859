package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	EventsReceived  prometheus.Counter
	FramesDropped   prometheus.Counter
	Reconnects      prometheus.Counter
	Failovers       prometheus.Counter
	PollCycles      prometheus.Counter
	StreamConnected prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	events := prometheus.NewCounter(prometheus.CounterOpts{Name: "feed_events_received_total"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "feed_frames_dropped_total"})
	reconnects := prometheus.NewCounter(prometheus.CounterOpts{Name: "feed_stream_reconnects_total"})
	failovers := prometheus.NewCounter(prometheus.CounterOpts{Name: "feed_failovers_total"})
	pollCycles := prometheus.NewCounter(prometheus.CounterOpts{Name: "feed_poll_cycles_total"})
	connected := prometheus.NewGauge(prometheus.GaugeOpts{Name: "feed_stream_connected"})

	r.MustRegister(events, dropped, reconnects, failovers, pollCycles, connected)
	return &Registry{
		reg:             r,
		EventsReceived:  events,
		FramesDropped:   dropped,
		Reconnects:      reconnects,
		Failovers:       failovers,
		PollCycles:      pollCycles,
		StreamConnected: connected,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
