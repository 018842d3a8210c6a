// Package metrics exports ring buffer activity to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vmlog"

// Collector implements the ring buffer observer on a dedicated registry.
type Collector struct {
	registry         *prometheus.Registry
	appended         prometheus.Counter
	evicted          prometheus.Counter
	subscribers      prometheus.Gauge
	deliveryFailures prometheus.Counter
}

// NewCollector registers the buffer metrics on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		appended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_appended_total",
			Help:      "Events accepted into the ring buffer.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_evicted_total",
			Help:      "Events dropped from the ring buffer to make room.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Live tail subscribers.",
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Events a subscriber could not take.",
		}),
	}
	c.registry.MustRegister(c.appended, c.evicted, c.subscribers, c.deliveryFailures)
	return c
}

// Appended counts one accepted event.
func (c *Collector) Appended() { c.appended.Inc() }

// Evicted counts one evicted event.
func (c *Collector) Evicted() { c.evicted.Inc() }

// Subscribers records the current subscriber count.
func (c *Collector) Subscribers(n int) { c.subscribers.Set(float64(n)) }

// DeliveryFailed counts one failed delivery.
func (c *Collector) DeliveryFailed() { c.deliveryFailures.Inc() }

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler exposes the registry over HTTP.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
