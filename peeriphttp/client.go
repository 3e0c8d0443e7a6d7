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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewClient returns an http.Client whose transport creates client spans
// with otelhttp and stamps them with the peer IP through Transport.
func NewClient(opts ...Option) *http.Client {
	cfg := applyOptions(opts)

	base := cfg.base
	if base == nil {
		base = cloneTransport(http.DefaultTransport)
	}

	rt := Transport(base, opts...)
	if cfg.enableOTel {
		rt = otelhttp.NewTransport(rt, otelOptions(cfg)...)
	}
	return &http.Client{Transport: rt}
}

// cloneTransport returns a private copy of rt when it is an *http.Transport,
// and rt itself otherwise.
func cloneTransport(rt http.RoundTripper) http.RoundTripper {
	if t, ok := rt.(*http.Transport); ok && t != nil {
		return t.Clone()
	}
	return rt
}

// otelOptions maps the configuration onto otelhttp options.
func otelOptions(cfg *config) []otelhttp.Option {
	var otelOpts []otelhttp.Option
	if cfg.tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(cfg.tracerProvider))
	}
	if cfg.propagators != nil {
		otelOpts = append(otelOpts, otelhttp.WithPropagators(cfg.propagators))
	}
	return otelOpts
}
