// Copyright 2024 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"io"
	"time"

	"github.com/cockroachdb/compressmap"
	"github.com/rs/zerolog"
)

// zerologLogger adapts a zerolog.Logger to compressmap.Logger.
type zerologLogger struct {
	l zerolog.Logger
}

var _ compressmap.Logger = zerologLogger{}

func newLogger(w io.Writer, verbose bool) zerologLogger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerologLogger{l: zerolog.New(out).Level(level).With().Timestamp().Logger()}
}

func (z zerologLogger) Infof(format string, args ...interface{}) {
	z.l.Info().Msgf(format, args...)
}

func (z zerologLogger) Errorf(format string, args ...interface{}) {
	z.l.Error().Msgf(format, args...)
}

func (z zerologLogger) Fatalf(format string, args ...interface{}) {
	z.l.Fatal().Msgf(format, args...)
}

// worker returns a logger that tags every message with the worker index.
func (z zerologLogger) worker(i int) zerologLogger {
	return zerologLogger{l: z.l.With().Int("worker", i).Logger()}
}
