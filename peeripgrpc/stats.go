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
	"context"
	"log/slog"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/stats"

	"github.com/pjscruggs/peerip"
)

// StatsHandler returns a client stats.Handler that stamps the address of the
// connection carrying each RPC onto the spans waiting on the RPC context.
// Install it after a span-creating handler such as otelgrpc so the RPC span
// is active when the RPC is tagged.
func StatsHandler(opts ...Option) stats.Handler {
	return &statsHandler{cfg: applyOptions(opts)}
}

// DialOptions returns grpc.DialOptions that install the otelgrpc client
// handler followed by the peer IP stats handler.
func DialOptions(opts ...Option) []grpc.DialOption {
	cfg := applyOptions(opts)
	var dialOpts []grpc.DialOption

	if cfg.enableOTel {
		dialOpts = append(dialOpts, grpc.WithStatsHandler(otelgrpc.NewClientHandler(statsHandlerOptions(cfg)...)))
	}
	return append(dialOpts, grpc.WithStatsHandler(&statsHandler{cfg: cfg}))
}

type rpcStateKey struct{}

// rpcState tracks the capture of one RPC.
type rpcState struct {
	release func()
	done    bool
}

type statsHandler struct {
	cfg *config
}

// TagRPC registers the active span for the RPC.
func (h *statsHandler) TagRPC(ctx context.Context, _ *stats.RPCTagInfo) context.Context {
	st := &rpcState{release: func() {}}
	ctx = peerip.Fork(ctx)
	if h.cfg.spanFromContext {
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			ctx, st.release = peerip.WithPeerIPCapture(ctx, span)
		}
	}
	return context.WithValue(ctx, rpcStateKey{}, st)
}

// HandleRPC captures on the outgoing header, which is sent once a transport
// has been picked, retries on the incoming header when the address was
// missing, and releases the registration when the RPC ends.
func (h *statsHandler) HandleRPC(ctx context.Context, s stats.RPCStats) {
	st, _ := ctx.Value(rpcStateKey{}).(*rpcState)
	if st == nil || !s.IsClient() {
		return
	}

	inst := h.cfg.instrumentor
	switch ev := s.(type) {
	case *stats.OutHeader:
		if !st.done {
			st.done = inst.TryCapturePeerIP(ctx, addrHandle(ctx, ev.RemoteAddr), slog.LevelDebug)
		}
	case *stats.InHeader:
		if !st.done {
			st.done = inst.TryCapturePeerIP(ctx, addrHandle(ctx, nil), inst.FailureLevel())
		}
	case *stats.End:
		st.release()
	}
}

// TagConn implements stats.Handler.
func (h *statsHandler) TagConn(ctx context.Context, _ *stats.ConnTagInfo) context.Context {
	return ctx
}

// HandleConn implements stats.Handler.
func (h *statsHandler) HandleConn(context.Context, stats.ConnStats) {}

// addrHandle returns a handle for addr, falling back to the peer recorded on
// ctx. The handle has no socket when neither is known.
func addrHandle(ctx context.Context, addr net.Addr) peerip.Handle {
	if addr == nil {
		if pr, ok := peer.FromContext(ctx); ok && pr != nil {
			addr = pr.Addr
		}
	}
	if addr == nil {
		return peerip.SocketHandle{}
	}
	return peerip.SocketHandle{Sock: peerip.AddrSocket{Addr: addr}}
}
