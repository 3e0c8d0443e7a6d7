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

package peeripgrpc

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/pjscruggs/peerip"
)

// Option configures the gRPC stats handler and dial options.
type Option func(*config)

type config struct {
	instrumentor    *peerip.Instrumentor
	spanFromContext bool
	enableOTel      bool
	tracerProvider  trace.TracerProvider
	propagators     propagation.TextMapPropagator
}

// defaultConfig returns the baseline configuration for the gRPC helpers.
func defaultConfig() *config {
	return &config{
		spanFromContext: true,
		enableOTel:      true,
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
	if cfg.instrumentor == nil {
		cfg.instrumentor = peerip.Default()
	}
	return cfg
}

// WithInstrumentor selects the Instrumentor whose logger, meters and
// failure level are used. peerip.Default() is used when unset.
func WithInstrumentor(inst *peerip.Instrumentor) Option {
	return func(cfg *config) {
		cfg.instrumentor = inst
	}
}

// WithSpanFromContext toggles registering the span active when the RPC is
// tagged. Enabled by default.
func WithSpanFromContext(enabled bool) Option {
	return func(cfg *config) {
		cfg.spanFromContext = enabled
	}
}

// WithOTel toggles the otelgrpc client handler installed by DialOptions.
// Enabled by default.
func WithOTel(enabled bool) Option {
	return func(cfg *config) {
		cfg.enableOTel = enabled
	}
}

// WithTracerProvider sets the tracer provider handed to otelgrpc.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.tracerProvider = tp
	}
}

// WithPropagators sets the propagators handed to otelgrpc.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(cfg *config) {
		cfg.propagators = p
	}
}

// statsHandlerOptions configures otelgrpc instrumentation based on the provided configuration.
func statsHandlerOptions(cfg *config) []otelgrpc.Option {
	var opts []otelgrpc.Option
	if cfg.tracerProvider != nil {
		opts = append(opts, otelgrpc.WithTracerProvider(cfg.tracerProvider))
	}
	if cfg.propagators != nil {
		opts = append(opts, otelgrpc.WithPropagators(cfg.propagators))
	}
	return opts
}
