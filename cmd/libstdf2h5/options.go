package main

import (
	"io"
	"log/slog"
	"strconv"

	"github.com/stdf2h5/stdf2h5/pkg/converter"
)

// Environment variables read when the library is loaded
const (
	envOutputDir = "STDF2H5_OUTPUT_DIR"
	envAnalysis  = "STDF2H5_ANALYSIS"
	envLogLevel  = "STDF2H5_LOG_LEVEL"
)

// optionsFromEnv builds converter options for library callers, who have no
// config file. Logging goes to w; it is off unless a level is set.
func optionsFromEnv(getenv func(string) string, w io.Writer) converter.Options {
	opts := converter.Options{OutputDir: getenv(envOutputDir)}
	opts.Analysis, _ = strconv.ParseBool(getenv(envAnalysis))

	var level slog.Level
	if err := level.UnmarshalText([]byte(getenv(envLogLevel))); err == nil {
		opts.Logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	} else {
		opts.Logger = converter.DefaultSLogger()
	}
	return opts
}
