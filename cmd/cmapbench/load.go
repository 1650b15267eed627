// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cockroachdb/compressmap"
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tokenbucket"
	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var loadConfig struct {
	concurrency   int
	records       int
	dupRate       float64
	reads         int
	maxOpsPerSec  float64
	compactOnSort bool
	plot          bool
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "fill lazy maps with generated values, then read them back",
	Long: `
Each worker builds its own LazyMap, sets --records values, sorts the map
(which freezes the storage) and performs --reads random lookups. A fraction
--dup-rate of the sets target a key that was already set, so that sorting has
superseded values to drop. Set and get latencies and the final memory
footprint are reported.
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLoad(context.Background(), cmd.OutOrStdout())
	},
}

// workerResult holds the measurements of one worker.
type workerResult struct {
	set, get *hdrhistogram.Histogram
	sort     time.Duration
	metrics  compressmap.Metrics
	blocks   []compressmap.BlockInfo
}

func storageOptions(logger compressmap.Logger) (*compressmap.Options, error) {
	setting, err := compressmap.ParseCompression(compressionName)
	if err != nil {
		return nil, err
	}
	opts := &compressmap.Options{
		BlockSize:     blockSize,
		CacheSize:     cacheSize,
		Compression:   func() compressmap.CompressionSetting { return setting },
		CompactOnSort: loadConfig.compactOnSort,
		Logger:        logger,
		Verbose:       verbose,
	}
	opts.EnsureDefaults()
	return opts, opts.Validate()
}

func runLoad(ctx context.Context, w io.Writer) error {
	if loadConfig.concurrency < 1 {
		return errors.Errorf("invalid --concurrency %d", loadConfig.concurrency)
	}
	if loadConfig.dupRate < 0 || loadConfig.dupRate > 1 {
		return errors.Errorf("invalid --dup-rate %.2f", loadConfig.dupRate)
	}
	spec, err := parseValueSpec(values)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, verbose)
	if _, err := storageOptions(logger); err != nil {
		return err
	}

	start := time.Now()
	results := make([]workerResult, loadConfig.concurrency)
	g, ctx := errgroup.WithContext(ctx)
	for i := range results {
		g.Go(func() error {
			var err error
			results[i], err = runLoadWorker(ctx, i, spec, logger.worker(i))
			return errors.Wrapf(err, "worker %d", i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	set, get := newHistogram(), newHistogram()
	var sortTime time.Duration
	for _, r := range results {
		set.Merge(r.set)
		get.Merge(r.get)
		sortTime = max(sortTime, r.sort)
	}
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"op", "count", "ops/sec", "mean", "p50", "p95", "p99", "max"})
	tbl.Append(latencyRow("set", set, elapsed))
	tbl.Append(latencyRow("get", get, elapsed))
	tbl.Render()
	fmt.Fprintf(w, "sort: %s (slowest worker)\n\n", sortTime)

	writeMemoryTable(w, results)

	if loadConfig.plot {
		if p := plotBlockRatios(results[0].blocks); p != "" {
			fmt.Fprintf(w, "\n%s\n", p)
		}
	}
	return nil
}

func runLoadWorker(
	ctx context.Context, i int, spec valueSpec, logger compressmap.Logger,
) (workerResult, error) {
	res := workerResult{set: newHistogram(), get: newHistogram()}
	opts, err := storageOptions(logger)
	if err != nil {
		return res, err
	}
	m, err := compressmap.NewLazyMap[uint64](compressmap.BytesCodec{}, compressmap.LazyMapOptions[[]byte]{
		Storage: opts,
	})
	if err != nil {
		return res, err
	}
	defer m.Close()

	var limiter *tokenbucket.TokenBucket
	if r := loadConfig.maxOpsPerSec; r > 0 {
		r /= float64(loadConfig.concurrency)
		limiter = &tokenbucket.TokenBucket{}
		limiter.Init(tokenbucket.TokensPerSecond(r), tokenbucket.Tokens(max(r/10, 1)))
	}
	wait := func() error {
		if limiter == nil {
			return ctx.Err()
		}
		for {
			ok, d := limiter.TryToFulfill(1)
			if ok {
				return ctx.Err()
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
			}
		}
	}

	rng := rand.New(rand.NewPCG(seed, uint64(i)))
	var distinct uint64
	for n := 0; n < loadConfig.records; n++ {
		if err := wait(); err != nil {
			return res, err
		}
		k := distinct
		if distinct > 0 && rng.Float64() < loadConfig.dupRate {
			k = rng.Uint64N(distinct)
		} else {
			distinct++
		}
		v := spec.value(rng)
		start := time.Now()
		if err := m.Set(k, v); err != nil {
			return res, err
		}
		record(res.set, start)
	}

	start := time.Now()
	if err := m.Sort(); err != nil {
		return res, err
	}
	res.sort = time.Since(start)

	for n := 0; n < loadConfig.reads && distinct > 0; n++ {
		if err := wait(); err != nil {
			return res, err
		}
		k := rng.Uint64N(distinct)
		start := time.Now()
		_, ok, err := m.Get(k)
		if err != nil {
			return res, err
		}
		record(res.get, start)
		if !ok {
			return res, errors.AssertionFailedf("key %d not found", k)
		}
	}
	res.metrics = m.Storage().Metrics()
	res.blocks = m.Storage().Blocks()
	return res, nil
}

func writeMemoryTable(w io.Writer, results []workerResult) {
	humanBytes := func(n int64) string {
		return string(crhumanize.Bytes(n, crhumanize.Compact, crhumanize.OmitI))
	}
	var total compressmap.Metrics
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"worker", "records", "blocks", "raw", "compressed", "live", "ratio", "cache hit %"})
	tbl.SetAlignment(tablewriter.ALIGN_RIGHT)
	row := func(name string, m *compressmap.Metrics) []string {
		return []string{
			name,
			string(crhumanize.Count(m.Records, crhumanize.Compact)),
			fmt.Sprint(m.Blocks.Frozen + m.Blocks.Writable),
			humanBytes(m.RawBytes),
			humanBytes(m.CompressedBytes),
			humanBytes(m.LiveBytes),
			fmt.Sprintf("%.2f", m.CompressionRatio()),
			fmt.Sprintf("%.1f", m.CacheHitRate()),
		}
	}
	for i := range results {
		m := &results[i].metrics
		tbl.Append(row(fmt.Sprint(i), m))
		total.Records += m.Records
		total.Blocks.Frozen += m.Blocks.Frozen
		total.Blocks.Writable += m.Blocks.Writable
		total.RawBytes += m.RawBytes
		total.FrozenRawBytes += m.FrozenRawBytes
		total.CompressedBytes += m.CompressedBytes
		total.LiveBytes += m.LiveBytes
		total.Cache.Hits += m.Cache.Hits
		total.Cache.Misses += m.Cache.Misses
	}
	if len(results) > 1 {
		tbl.SetFooter(row("total", &total))
	}
	tbl.Render()
}

// plotBlockRatios plots the compression ratio of every frozen block.
func plotBlockRatios(blocks []compressmap.BlockInfo) string {
	var ratios []float64
	for _, b := range blocks {
		if b.Frozen && b.CompressedBytes > 0 {
			ratios = append(ratios, float64(b.RawBytes)/float64(b.CompressedBytes))
		}
	}
	if len(ratios) == 0 {
		return ""
	}
	return asciigraph.Plot(ratios,
		asciigraph.Height(10),
		asciigraph.Width(min(len(ratios), 100)),
		asciigraph.Caption("compression ratio by block"))
}
