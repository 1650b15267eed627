// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package metrics exports compressmap metrics to Prometheus.
package metrics

import (
	"github.com/cockroachdb/compressmap"
	"github.com/prometheus/client_golang/prometheus"
)

type metricDesc struct {
	desc  *prometheus.Desc
	typ   prometheus.ValueType
	value func(m *compressmap.Metrics) float64
}

// Collector is a prometheus.Collector that reads compressmap metrics from a
// callback on every scrape.
type Collector struct {
	metrics func() compressmap.Metrics
	descs   []metricDesc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector for the metrics returned by fn, which is
// typically a Storage's Metrics method. Metric names are prefixed with
// namespace and labelled with constLabels. fn must be safe to call
// concurrently with the owner's use of the storage, for example by taking the
// owner's lock.
func NewCollector(
	namespace string, constLabels prometheus.Labels, fn func() compressmap.Metrics,
) *Collector {
	c := &Collector{metrics: fn}
	add := func(
		name, help string, typ prometheus.ValueType, value func(m *compressmap.Metrics) float64,
	) {
		c.descs = append(c.descs, metricDesc{
			desc: prometheus.NewDesc(
				prometheus.BuildFQName(namespace, "compressmap", name), help, nil, constLabels),
			typ:   typ,
			value: value,
		})
	}
	gauge, counter := prometheus.GaugeValue, prometheus.CounterValue

	add("blocks_writable", "Number of blocks accepting records.", gauge,
		func(m *compressmap.Metrics) float64 { return float64(m.Blocks.Writable) })
	add("blocks_frozen", "Number of compressed blocks.", gauge,
		func(m *compressmap.Metrics) float64 { return float64(m.Blocks.Frozen) })
	add("blocks_allocated_total", "Cumulative number of blocks allocated.", counter,
		func(m *compressmap.Metrics) float64 { return float64(m.Blocks.Allocated) })
	add("records", "Number of live records.", gauge,
		func(m *compressmap.Metrics) float64 { return float64(m.Records) })
	add("raw_bytes", "Uncompressed bytes held by all blocks.", gauge,
		func(m *compressmap.Metrics) float64 { return float64(m.RawBytes) })
	add("compressed_bytes", "Compressed bytes held by frozen blocks.", gauge,
		func(m *compressmap.Metrics) float64 { return float64(m.CompressedBytes) })
	add("live_bytes", "Total length of live records.", gauge,
		func(m *compressmap.Metrics) float64 { return float64(m.LiveBytes) })
	add("compression_ratio", "Uncompressed to compressed size of frozen blocks.", gauge,
		func(m *compressmap.Metrics) float64 { return m.CompressionRatio() })
	add("cache_bytes", "Bytes of hydrated blocks in the cache.", gauge,
		func(m *compressmap.Metrics) float64 { return float64(m.Cache.Size) })
	add("cache_hits_total", "Hydration cache hits.", counter,
		func(m *compressmap.Metrics) float64 { return float64(m.Cache.Hits) })
	add("cache_misses_total", "Hydration cache misses.", counter,
		func(m *compressmap.Metrics) float64 { return float64(m.Cache.Misses) })
	add("cache_evictions_total", "Hydration cache evictions.", counter,
		func(m *compressmap.Metrics) float64 { return float64(m.Cache.Evictions) })
	add("compactions_total", "Number of compactions.", counter,
		func(m *compressmap.Metrics) float64 { return float64(m.Compact.Count) })
	add("compaction_reclaimed_bytes_total", "Uncompressed bytes reclaimed by compactions.", counter,
		func(m *compressmap.Metrics) float64 { return float64(m.Compact.BytesReclaimed) })
	add("corruptions_total", "Blocks that failed to decompress or verify.", counter,
		func(m *compressmap.Metrics) float64 { return float64(m.Corruptions) })
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.metrics()
	for _, d := range c.descs {
		ch <- prometheus.MustNewConstMetric(d.desc, d.typ, d.value(&m))
	}
}
