// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics exports collector progress as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/relabs-tech/envlogger/internal/collector"
)

// PromObs is a collector.Observer backed by Prometheus collectors.
type PromObs struct {
	ticks       prometheus.Counter
	points      prometheus.Counter
	failures    *prometheus.CounterVec
	holdoff     prometheus.Gauge
	state       prometheus.Gauge
	measurement *prometheus.GaugeVec
	latency     prometheus.Histogram
}

// NewPromObs creates the collectors and registers them with reg.
func NewPromObs(reg prometheus.Registerer) (*PromObs, error) {
	p := &PromObs{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "envlogger_ticks_total",
			Help: "Successful sample-transform-write cycles.",
		}),
		points: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "envlogger_points_written_total",
			Help: "Points accepted by the store.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "envlogger_failures_total",
			Help: "Failed cycles by error kind.",
		}, []string{"kind"}),
		holdoff: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "envlogger_holdoff_seconds",
			Help: "Current reconnect holdoff.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "envlogger_state",
			Help: "Recovery loop state (0 idle, 1 connecting, 2 publishing, 3 backoff, 4 stopped).",
		}),
		measurement: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "envlogger_measurement",
			Help: "Last written value per measurement.",
		}, []string{"name"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "envlogger_tick_duration_seconds",
			Help:    "Time from sample start to write completion.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}

	for _, c := range []prometheus.Collector{p.ticks, p.points, p.failures, p.holdoff, p.state, p.measurement, p.latency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *PromObs) StateChanged(s collector.State) {
	p.state.Set(float64(s))
}

func (p *PromObs) Published(t collector.Tick) {
	p.ticks.Inc()
	p.points.Add(float64(len(t.Points)))
	p.holdoff.Set(t.Holdoff.Seconds())
	p.latency.Observe(t.Elapsed.Seconds())
	for _, pt := range t.Points {
		p.measurement.WithLabelValues(pt.Name).Set(pt.Value)
	}
}

func (p *PromObs) Failed(f collector.Failure) {
	p.failures.WithLabelValues(string(f.Kind)).Inc()
	p.holdoff.Set(f.Holdoff.Seconds())
}
