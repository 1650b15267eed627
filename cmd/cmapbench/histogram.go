// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minLatency = 10 * time.Nanosecond
	maxLatency = 10 * time.Second
)

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), 3)
}

// record adds the time elapsed since start to h, clamped to the histogram's
// range.
func record(h *hdrhistogram.Histogram, start time.Time) {
	elapsed := min(max(time.Since(start), minLatency), maxLatency)
	if err := h.RecordValue(elapsed.Nanoseconds()); err != nil {
		panic(err)
	}
}

// latencyRow formats a latency table row for h.
func latencyRow(op string, h *hdrhistogram.Histogram, elapsed time.Duration) []string {
	ns := func(v int64) string {
		return time.Duration(v).String()
	}
	var opsSec float64
	if elapsed > 0 {
		opsSec = float64(h.TotalCount()) / elapsed.Seconds()
	}
	return []string{
		op,
		fmt.Sprint(h.TotalCount()),
		fmt.Sprintf("%.0f", opsSec),
		ns(int64(h.Mean())),
		ns(h.ValueAtQuantile(50)),
		ns(h.ValueAtQuantile(95)),
		ns(h.ValueAtQuantile(99)),
		ns(h.Max()),
	}
}
