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

package peeriphttp

import (
	"net/http"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/pjscruggs/peerip"
)

// Option configures the HTTP transport, dialer and client helpers.
type Option func(*config)

type config struct {
	instrumentor    *peerip.Instrumentor
	spanFromContext bool
	skip            func(*http.Request) bool
	base            http.RoundTripper
	enableOTel      bool
	tracerProvider  trace.TracerProvider
	propagators     propagation.TextMapPropagator
}

// defaultConfig returns the baseline configuration for the HTTP helpers.
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

// WithSpanFromContext toggles registering the span found on the request
// context for the duration of the round trip. Enabled by default, which is
// what makes the transport work underneath otelhttp.NewTransport. When
// disabled, only spans registered by the caller with
// peerip.WithPeerIPCapture are stamped.
func WithSpanFromContext(enabled bool) Option {
	return func(cfg *config) {
		cfg.spanFromContext = enabled
	}
}

// WithSkip sets a predicate to bypass capture for specific requests. If the
// function returns true, the request is forwarded untouched.
func WithSkip(f func(*http.Request) bool) Option {
	return func(cfg *config) {
		cfg.skip = f
	}
}

// WithBaseTransport sets the RoundTripper NewClient builds on. When nil,
// a clone of http.DefaultTransport is used.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(cfg *config) {
		cfg.base = rt
	}
}

// WithOTel toggles wrapping the NewClient transport with otelhttp so client
// spans are created. Enabled by default.
func WithOTel(enabled bool) Option {
	return func(cfg *config) {
		cfg.enableOTel = enabled
	}
}

// WithTracerProvider sets the tracer provider handed to otelhttp by
// NewClient.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.tracerProvider = tp
	}
}

// WithPropagators sets the propagators handed to otelhttp by NewClient.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(cfg *config) {
		cfg.propagators = p
	}
}
