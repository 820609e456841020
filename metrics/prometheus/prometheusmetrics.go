// Copyright 2018 The voteledger Authors
// This file is part of the voteledger library.
//
// The voteledger library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The voteledger library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the voteledger library. If not, see <http://www.gnu.org/licenses/>.

// Package prometheusmetrics publishes the go-metrics registry as prometheus
// gauges, refreshed on a fixed interval.
package prometheusmetrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rcrowley/go-metrics"
)

// PrometheusConfig ties a go-metrics registry to a prometheus registerer.
type PrometheusConfig struct {
	namespace     string
	subsystem     string
	registry      metrics.Registry
	promRegistry  prometheus.Registerer
	flushInterval time.Duration
	gauges        map[string]prometheus.Gauge
}

// NewPrometheusProvider returns a provider that mirrors every metric in
// registry into promRegistry.
func NewPrometheusProvider(registry metrics.Registry, namespace, subsystem string,
	promRegistry prometheus.Registerer, flushInterval time.Duration) *PrometheusConfig {
	return &PrometheusConfig{
		namespace:     namespace,
		subsystem:     subsystem,
		registry:      registry,
		promRegistry:  promRegistry,
		flushInterval: flushInterval,
		gauges:        make(map[string]prometheus.Gauge),
	}
}

func (c *PrometheusConfig) flattenKey(key string) string {
	key = strings.Replace(key, " ", "_", -1)
	key = strings.Replace(key, ".", "_", -1)
	key = strings.Replace(key, "-", "_", -1)
	key = strings.Replace(key, "=", "_", -1)
	key = strings.Replace(key, "/", "_", -1)
	return key
}

func (c *PrometheusConfig) gaugeFromNameAndValue(name string, val float64) {
	key := c.flattenKey(name)
	g, ok := c.gauges[key]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: c.flattenKey(c.namespace),
			Subsystem: c.flattenKey(c.subsystem),
			Name:      key,
			Help:      name,
		})
		c.promRegistry.MustRegister(g)
		c.gauges[key] = g
	}
	g.Set(val)
}

// UpdatePrometheusMetricsOnce walks the registry and refreshes the gauges.
func (c *PrometheusConfig) UpdatePrometheusMetricsOnce() {
	c.registry.Each(func(name string, i interface{}) {
		switch metric := i.(type) {
		case metrics.Counter:
			c.gaugeFromNameAndValue(name, float64(metric.Count()))
		case metrics.Gauge:
			c.gaugeFromNameAndValue(name, float64(metric.Value()))
		case metrics.GaugeFloat64:
			c.gaugeFromNameAndValue(name, metric.Value())
		case metrics.Meter:
			c.gaugeFromNameAndValue(name, metric.Rate1())
		case metrics.Histogram:
			c.gaugeFromNameAndValue(name, metric.Percentile(0.95))
		case metrics.Timer:
			c.gaugeFromNameAndValue(name, metric.Rate1())
		}
	})
}

// UpdatePrometheusMetrics refreshes the gauges on the flush interval, forever.
func (c *PrometheusConfig) UpdatePrometheusMetrics() {
	for range time.Tick(c.flushInterval) {
		c.UpdatePrometheusMetricsOnce()
	}
}
