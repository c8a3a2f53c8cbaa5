// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package repack

import (
	"context"
	"io"
	"log/slog"
	"runtime"
)

// ConfigOption is a function pointer to implement the option pattern
type ConfigOption func(*Config)

// Config provides a configuration struct and options to adjust the configuration.
//
// The configuration struct holds all configuration options for a repack run.
// The configuration options can be adjusted using the option pattern style.
type Config struct {
	// compressionLevel is the zstandard level (1-22) requested for the output
	compressionLevel int

	// createDestination creates the directory of the output file if it does not exist
	createDestination bool

	// encoderConcurrency is the number of goroutines the zstandard encoder may use
	encoderConcurrency int

	// logger stream for the run
	logger logger

	// progress receives one increment per copied member
	progress Progress

	// ruleset decides which members are selected and where they are placed
	ruleset Ruleset

	// telemetryHook is a function to consume telemetry data after a finished run
	// Important: do not adjust this value after the run started
	telemetryHook TelemetryHook

	// tempDir is the directory for the transient tar container, empty means [os.TempDir]
	tempDir string
}

// CompressionLevel returns the effective zstandard level. Levels outside
// of [MinCompressionLevel] and [MaxCompressionLevel] are replaced with
// [DefaultCompressionLevel].
func (c *Config) CompressionLevel() int {
	if !ValidCompressionLevel(c.compressionLevel) {
		return DefaultCompressionLevel
	}
	return c.compressionLevel
}

// RequestedCompressionLevel returns the level as it was configured, without clamping.
func (c *Config) RequestedCompressionLevel() int {
	return c.compressionLevel
}

// CreateDestination returns true if the directory of the output file
// should be created if it does not exist.
func (c *Config) CreateDestination() bool {
	return c.createDestination
}

// EncoderConcurrency returns the number of goroutines used by the zstandard encoder.
func (c *Config) EncoderConcurrency() int {
	return c.encoderConcurrency
}

// Logger returns the logger.
func (c *Config) Logger() logger {
	return c.logger
}

// Progress returns the progress reporter.
func (c *Config) Progress() Progress {
	return c.progress
}

// Ruleset returns the ruleset used for member selection.
func (c *Config) Ruleset() Ruleset {
	return c.ruleset
}

// TelemetryHook returns the telemetry hook.
func (c *Config) TelemetryHook() TelemetryHook {
	if c.telemetryHook == nil {
		return defaultTelemetryHook
	}
	return c.telemetryHook
}

// TempDir returns the directory for the transient tar container.
func (c *Config) TempDir() string {
	return c.tempDir
}

const (
	// MinCompressionLevel is the lowest accepted zstandard level.
	MinCompressionLevel = 1

	// MaxCompressionLevel is the highest accepted zstandard level.
	MaxCompressionLevel = 22

	// DefaultCompressionLevel replaces out of range levels.
	DefaultCompressionLevel = 3
)

// ValidCompressionLevel reports whether level is within the zstandard range.
func ValidCompressionLevel(level int) bool {
	return level >= MinCompressionLevel && level <= MaxCompressionLevel
}

const (
	defaultCreateDestination = false // don't create the output directory
	defaultTempDir           = ""    // os.TempDir
)

var (
	// slog to discard
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	// no operation telemetry hook
	defaultTelemetryHook = func(ctx context.Context, d *TelemetryData) {
		// noop
	}
)

// NewConfig is a generator option that takes opts as adjustments of the
// default configuration in an option pattern style.
func NewConfig(opts ...ConfigOption) *Config {

	// setup default values
	config := &Config{
		compressionLevel:   DefaultCompressionLevel,
		createDestination:  defaultCreateDestination,
		encoderConcurrency: runtime.GOMAXPROCS(0),
		logger:             defaultLogger,
		progress:           noopProgress{},
		ruleset:            DefaultRuleset(),
		telemetryHook:      defaultTelemetryHook,
		tempDir:            defaultTempDir,
	}

	// Loop through each option
	for _, opt := range opts {
		opt(config)
	}

	return config
}

// WithCompressionLevel options pattern function to set the zstandard level.
// Out of range values are accepted here and replaced at run time.
func WithCompressionLevel(level int) ConfigOption {
	return func(c *Config) {
		c.compressionLevel = level
	}
}

// WithCreateDestination options pattern function to create the
// directory of the output file if it does not exist.
func WithCreateDestination(create bool) ConfigOption {
	return func(c *Config) {
		c.createDestination = create
	}
}

// WithEncoderConcurrency options pattern function to set the number of
// goroutines the zstandard encoder uses. Values below 1 are ignored.
func WithEncoderConcurrency(n int) ConfigOption {
	return func(c *Config) {
		if n > 0 {
			c.encoderConcurrency = n
		}
	}
}

// WithLogger options pattern function to set a custom logger.
func WithLogger(logger logger) ConfigOption {
	return func(c *Config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProgress options pattern function to set a [Progress] reporter.
func WithProgress(p Progress) ConfigOption {
	return func(c *Config) {
		if p != nil {
			c.progress = p
		}
	}
}

// WithRuleset options pattern function to replace the [DefaultRuleset].
func WithRuleset(rs Ruleset) ConfigOption {
	return func(c *Config) {
		c.ruleset = rs
	}
}

// WithTelemetryHook options pattern function to set a [TelemetryHook], which is called after a run.
func WithTelemetryHook(hook TelemetryHook) ConfigOption {
	return func(c *Config) {
		c.telemetryHook = hook
	}
}

// WithTempDir options pattern function to set the directory of the transient tar container.
func WithTempDir(dir string) ConfigOption {
	return func(c *Config) {
		c.tempDir = dir
	}
}
