// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// cmapbench measures the memory footprint and access latency of compressmap
// under synthetic workloads.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	blockSize       int
	cacheSize       int64
	compressionName string
	values          string
	seed            uint64
	verbose         bool
)

var rootCmd = &cobra.Command{
	Use:   "cmapbench [command] (flags)",
	Short: "compressmap benchmarking tool",
	Long:  ``,
}

func main() {
	log.SetFlags(0)

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(loadCmd, codecsCmd)

	for _, cmd := range []*cobra.Command{loadCmd, codecsCmd} {
		cmd.Flags().IntVar(
			&blockSize, "block-size", 16<<10, "target size of storage blocks")
		cmd.Flags().StringVar(
			&values, "values", "uniform:64-512/2",
			"value size distribution [uniform:]min[-max][/<target-compression>]")
		cmd.Flags().Uint64Var(
			&seed, "seed", 1, "random seed")
	}
	loadCmd.Flags().Int64Var(
		&cacheSize, "cache-size", 4<<20, "size of the hydration cache")
	loadCmd.Flags().StringVar(
		&compressionName, "compression", "Snappy", "compression setting (e.g. NoCompression, Snappy, ZSTD3, MinLZ1)")
	loadCmd.Flags().BoolVarP(
		&verbose, "verbose", "v", false, "enable verbose event logging")
	loadCmd.Flags().IntVarP(
		&loadConfig.concurrency, "concurrency", "c", 1, "number of independent maps, one per worker")
	loadCmd.Flags().IntVarP(
		&loadConfig.records, "records", "n", 100000, "number of values set by each worker")
	loadCmd.Flags().Float64Var(
		&loadConfig.dupRate, "dup-rate", 0.1, "fraction (0-1) of sets that overwrite an earlier key")
	loadCmd.Flags().IntVar(
		&loadConfig.reads, "reads", 100000, "number of random reads by each worker after sorting")
	loadCmd.Flags().Float64Var(
		&loadConfig.maxOpsPerSec, "max-ops-per-sec", 0, "limit on total operations per second (0 means unlimited)")
	loadCmd.Flags().BoolVar(
		&loadConfig.compactOnSort, "compact-on-sort", false, "compact the storage when sorting")
	loadCmd.Flags().BoolVar(
		&loadConfig.plot, "plot", false, "plot per-block compression ratios of the first worker")

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}
