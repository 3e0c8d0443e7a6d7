// Copyright 2025-2026 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package peerip

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
)

// Option configures an Instrumentor.
type Option func(*config)

type config struct {
	logger          *slog.Logger
	failureLevel    slog.Level
	meterProvider   metric.MeterProvider
	legacyAttribute bool
}

// defaultConfig returns the baseline configuration for an Instrumentor.
func defaultConfig() *config {
	return &config{
		logger:       slog.Default(),
		failureLevel: slog.LevelWarn,
	}
}

// applyOptions applies the provided options on top of defaultConfig.
func applyOptions(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// WithLogger sets the logger used for capture diagnostics. When nil,
// slog.Default() is used. A logger stored on the request context with
// ContextWithLogger takes precedence.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.logger = slog.Default()
			return
		}
		cfg.logger = logger
	}
}

// WithFailureLevel sets the severity used by captures that run after the
// transport must have connected: after connect and after send. The default is
// slog.LevelWarn. Speculative captures that run before send always log at
// slog.LevelDebug.
func WithFailureLevel(level slog.Level) Option {
	return func(cfg *config) {
		cfg.failureLevel = level
	}
}

// WithMeterProvider sets the MeterProvider used for capture counters. When
// unset, otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *config) {
		cfg.meterProvider = mp
	}
}

// WithLegacyAttribute also writes the deprecated net.peer.ip attribute next
// to network.peer.address, for backends still keyed on the old convention.
// Older peer-IP instrumentations wrote only net.peer.ip; enable this to keep
// dashboards and queries built on that key working. Disabled by default, in
// which case only the current semantic convention key is written.
func WithLegacyAttribute(enabled bool) Option {
	return func(cfg *config) {
		cfg.legacyAttribute = enabled
	}
}
