// Package metrics exports world runtime signals in the Prometheus text format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"factorysim.ai/internal/persistence/indexdb"
	"factorysim.ai/internal/sim/factory"
	"factorysim.ai/internal/sim/world"
)

const namespace = "factorysim"

// Collector implements world.MetricsSink on a private registry.
type Collector struct {
	reg *prometheus.Registry

	tick       prometheus.Gauge
	credits    prometheus.Gauge
	items      prometheus.Gauge
	wasteQueue prometheus.Gauge
	observers  prometheus.Gauge
	queueDepth *prometheus.GaugeVec

	events       *prometheus.CounterVec
	earned       prometheus.Counter
	stepDuration prometheus.Histogram
}

var _ world.MetricsSink = (*Collector)(nil)

func New(worldID string) *Collector {
	labels := prometheus.Labels{"world": worldID}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help, ConstLabels: labels})
	}
	c := &Collector{
		reg:        prometheus.NewRegistry(),
		tick:       gauge("tick", "Next tick to be simulated."),
		credits:    gauge("credits", "Current credit balance."),
		items:      gauge("items", "Items held anywhere in the grid."),
		wasteQueue: gauge("waste_queue_crates", "Crates waiting to be loaded into spawners."),
		observers:  gauge("observers", "Connected observer sessions."),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "loop_queue_depth", Help: "Pending requests per world loop channel.", ConstLabels: labels,
		}, []string{"queue"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_total", Help: "Machine events by type.", ConstLabels: labels,
		}, []string{"type"}),
		earned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "credits_earned_total", Help: "Credits earned from sales.", ConstLabels: labels,
		}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "tick_step_seconds", Help: "Wall time spent stepping one tick.", ConstLabels: labels,
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		}),
	}
	c.reg.MustRegister(c.tick, c.credits, c.items, c.wasteQueue, c.observers, c.queueDepth, c.events, c.earned, c.stepDuration)
	return c
}

// ObserveTick is called from the world loop goroutine after every step.
func (c *Collector) ObserveTick(m world.WorldMetrics, events []factory.Event, step time.Duration) {
	c.tick.Set(float64(m.Tick))
	c.credits.Set(float64(m.Credits))
	c.items.Set(float64(m.Items))
	c.wasteQueue.Set(float64(m.WasteQueue))
	c.observers.Set(float64(m.Observers))
	c.queueDepth.WithLabelValues("reconfigure").Set(float64(m.QueueDepths.Reconfigure))
	c.queueDepth.WithLabelValues("admin").Set(float64(m.QueueDepths.Admin))
	c.queueDepth.WithLabelValues("observer").Set(float64(m.QueueDepths.Observer))
	for _, ev := range events {
		c.events.WithLabelValues(ev.Type).Inc()
		if ev.Type == factory.EventSold && ev.Value > 0 {
			c.earned.Add(float64(ev.Value))
		}
	}
	c.stepDuration.Observe(step.Seconds())
}

// WatchIndex exports the index writer queue health. stats is polled at scrape time.
func (c *Collector) WatchIndex(stats func() indexdb.Stats) {
	if stats == nil {
		return
	}
	c.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Name: "index_queue_depth", Help: "Rows waiting for the index writer.",
		}, func() float64 { return float64(stats().QueueDepth) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Name: "index_dropped_total", Help: "Rows dropped because the index queue was full.",
		}, func() float64 {
			s := stats()
			return float64(s.DropTickTotal + s.DropAuditTotal + s.DropSnapshotTotal)
		}),
	)
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}
