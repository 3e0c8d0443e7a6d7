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
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/pjscruggs/peerip"
)

// Transport returns an http.RoundTripper that stamps the peer IP of the
// connection used for each request onto the spans waiting on the request
// context. base defaults to http.DefaultTransport.
//
// Before delegating, the transport tries a capture; it has no connection in
// hand yet, so unless nothing is waiting the attempt reports the socket as
// missing. The transport then hooks httptrace's GotConn and captures again,
// at the instrumentor's failure level, once the connection is known. New
// and reused connections are both covered.
//
// Each round trip works on a fork of the waiting list on the request
// context, so one scope may fan out concurrent requests through the
// transport.
//
// The transport does not create spans. Place it underneath
// otelhttp.NewTransport, or register spans yourself with
// peerip.WithPeerIPCapture.
func Transport(base http.RoundTripper, opts ...Option) http.RoundTripper {
	cfg := applyOptions(opts)
	if base == nil {
		base = http.DefaultTransport
	}
	return roundTripper{base: base, cfg: cfg}
}

type roundTripper struct {
	base http.RoundTripper
	cfg  *config
}

// RoundTrip registers the request span, arranges the capture and forwards
// to the base transport.
func (t roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil || (t.cfg.skip != nil && t.cfg.skip(req)) {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, fmt.Errorf("round trip request: %w", err)
		}
		return resp, nil
	}

	ctx := peerip.Fork(req.Context())
	if t.cfg.spanFromContext {
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			var release func()
			ctx, release = peerip.WithPeerIPCapture(ctx, span)
			defer release()
		}
	}

	ctx = t.traceCapture(ctx)
	if ctx != req.Context() {
		req = req.WithContext(ctx)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, fmt.Errorf("round trip request: %w", err)
	}
	return resp, nil
}

// traceCapture runs the pre-send capture and, when it reports no socket,
// returns a context whose client trace captures on GotConn.
func (t roundTripper) traceCapture(ctx context.Context) context.Context {
	inst := t.cfg.instrumentor
	handle := &connHandle{}
	if inst.TryCapturePeerIP(ctx, handle, slog.LevelDebug) {
		return ctx
	}

	captureCtx := ctx
	return httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			handle.set(info.Conn)
			inst.TryCapturePeerIP(captureCtx, handle, inst.FailureLevel())
		},
	})
}

// connHandle is the peerip.Handle of a request whose connection is handed
// over by httptrace.
type connHandle struct {
	mu   sync.Mutex
	conn net.Conn
}

func (h *connHandle) set(conn net.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conn = conn
}

// Socket implements peerip.Handle.
func (h *connHandle) Socket() peerip.Socket {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return nil
	}
	return h.conn
}
