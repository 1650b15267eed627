// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/cockroachdb/compressmap/internal/compression"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var codecsCmd = &cobra.Command{
	Use:   "codecs",
	Short: "compare compression settings on a generated block",
	Long: `
Generates one block of --block-size bytes from values drawn from --values and
compresses and decompresses it with every compression preset.
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := parseValueSpec(values)
		if err != nil {
			return err
		}
		return runCodecs(cmd.OutOrStdout(), generateBlock(spec))
	},
}

func generateBlock(spec valueSpec) []byte {
	rng := rand.New(rand.NewPCG(seed, 0))
	block := make([]byte, 0, blockSize)
	for len(block) < blockSize {
		v := spec.value(rng)
		block = append(block, v[:min(len(v), blockSize-len(block))]...)
	}
	return block
}

func runCodecs(w io.Writer, block []byte) error {
	const rounds = 10
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"setting", "size", "ratio", "compress", "decompress"})
	tbl.SetAlignment(tablewriter.ALIGN_RIGHT)
	out := make([]byte, len(block))
	for _, s := range compression.Presets() {
		c := compression.GetCompressor(s)
		var compressed []byte
		var used compression.Setting
		start := time.Now()
		for range rounds {
			compressed, used = c.Compress(compressed[:0], block)
		}
		compressTime := time.Since(start) / rounds
		c.Close()

		start = time.Now()
		for range rounds {
			if err := compression.DecompressExact(used.Algorithm, out, compressed); err != nil {
				return err
			}
		}
		decompressTime := time.Since(start) / rounds

		tbl.Append([]string{
			s.String(),
			fmt.Sprint(len(compressed)),
			fmt.Sprintf("%.2f", float64(len(block))/float64(len(compressed))),
			compressTime.String(),
			decompressTime.String(),
		})
	}
	tbl.Render()
	return nil
}
