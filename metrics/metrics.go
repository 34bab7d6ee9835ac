// Package metrics exposes the counters of a firmata engine to Prometheus.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/go-firmata/firmata"
)

// Config configures Register.
type Config struct {
	// Namespace is the metrics namespace.
	// Default: "firmata"
	Namespace string

	// Subsystem is the metrics subsystem.
	// Default: "engine"
	Subsystem string

	// ConstLabels are added to every metric, e.g. the serial port name when
	// several boards are attached.
	ConstLabels prometheus.Labels

	// Registry is where metrics are registered.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures Register.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "firmata",
		Subsystem: "engine",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collectors are the metrics registered for one engine.
type Collectors struct {
	reg        prometheus.Registerer
	collectors []prometheus.Collector
}

// Register exposes m as Prometheus metrics read at scrape time. Nothing is
// registered if any metric fails to register.
func Register(m *firmata.EngineMetrics, opts ...Option) (*Collectors, error) {
	if m == nil {
		return nil, errors.New("metrics: engine metrics is nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	counter := func(name, help string, fn func() float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.ConstLabels,
		}, fn)
	}

	c := &Collectors{
		reg: cfg.Registry,
		collectors: []prometheus.Collector{
			counter("frames_sent_total", "Frames written to the transport.",
				func() float64 { return float64(m.FramesSent.Load()) }),
			counter("frames_received_total", "Complete frames read from the transport.",
				func() float64 { return float64(m.FramesRecv.Load()) }),
			counter("notifications_total", "Digital bank and analog channel value reports.",
				func() float64 { return float64(m.Notifications.Load()) }),
			counter("listener_events_total", "Events delivered to the event listener.",
				func() float64 { return float64(m.ListenerEvents.Load()) }),
			counter("diagnostics_total", "String diagnostics received from the device.",
				func() float64 { return float64(m.Diagnostics.Load()) }),
			counter("discarded_responses_total", "Responses dropped because no request expected them.",
				func() float64 { return float64(m.DiscardedResponses.Load()) }),
			counter("decode_errors_total", "Malformed inbound frames.",
				func() float64 { return float64(m.DecodeErrors.Load()) }),
			counter("unknown_sysex_total", "Sysex frames with an unknown command id.",
				func() float64 { return float64(m.UnknownSysex.Load()) }),
			counter("forced_shutdowns_total", "Closes that did not get the device's shutdown acknowledgement.",
				func() float64 { return float64(m.ForcedShutdowns.Load()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace:   cfg.Namespace,
				Subsystem:   cfg.Subsystem,
				Name:        "requests_inflight",
				Help:        "Synchronous requests in progress.",
				ConstLabels: cfg.ConstLabels,
			}, func() float64 { return float64(m.RequestsInflight.Load()) }),
		},
	}

	for i, col := range c.collectors {
		if err := c.reg.Register(col); err != nil {
			for _, done := range c.collectors[:i] {
				c.reg.Unregister(done)
			}

			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}

	return c, nil
}

// Unregister removes the metrics from the registry.
func (c *Collectors) Unregister() {
	for _, col := range c.collectors {
		c.reg.Unregister(col)
	}
}
