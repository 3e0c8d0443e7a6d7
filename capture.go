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
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// LegacyPeerIPKey is the deprecated attribute key written when
// WithLegacyAttribute is enabled. It is the key older peer-IP
// instrumentations used in place of PeerAddressKey.
const LegacyPeerIPKey = attribute.Key("net.peer.ip")

// PeerAddressKey is the attribute key stamped on waiting spans.
const PeerAddressKey = semconv.NetworkPeerAddressKey

// TryCapturePeerIP stamps the peer IP of h onto every recording span waiting
// on ctx's call path, using the default Instrumentor's logger and meters.
//
// It returns false only when h has no socket yet, meaning the caller should
// try again after the next lifecycle event (for example after send). In every
// other case, including a failed address lookup that is logged at level, it
// returns true and no further attempt is needed.
func TryCapturePeerIP(ctx context.Context, h Handle, level slog.Level) bool {
	return Default().TryCapturePeerIP(ctx, h, level)
}

// TryCapturePeerIP is the configured form of the package-level
// TryCapturePeerIP.
func (i *Instrumentor) TryCapturePeerIP(ctx context.Context, h Handle, level slog.Level) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	st := stateFromContext(ctx)
	if st.empty() {
		i.metrics.record(ctx, OutcomeSkipped)
		return true
	}

	logger := loggerFromContext(ctx, i.cfg.logger)
	if !st.sweep(ctx, logger) {
		i.metrics.record(ctx, OutcomeSkipped)
		return true
	}

	var sock Socket
	if h != nil {
		sock = h.Socket()
	}
	if sock == nil {
		i.metrics.record(ctx, OutcomePending)
		return false
	}

	ip, err := PeerAddr(sock)
	if err != nil {
		logger.Log(ctx, level, "failed to get peer address",
			slog.Any("error", err),
			slog.String("socket.type", fmt.Sprintf("%T", sock)),
			slog.String("socket.remote", remoteString(sock)),
		)
		i.metrics.record(ctx, OutcomeFailed)
		return true
	}

	attrs := i.peerAttributes(ip.String())
	for _, w := range st.needIP {
		w.span.SetAttributes(attrs...)
	}
	i.metrics.record(ctx, OutcomeCaptured)
	return true
}

// peerAttributes returns the attributes describing peer.
func (i *Instrumentor) peerAttributes(peer string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.NetworkPeerAddress(peer)}
	if i.cfg.legacyAttribute {
		attrs = append(attrs, LegacyPeerIPKey.String(peer))
	}
	return attrs
}

// remoteString renders the remote address of sock for diagnostics.
func remoteString(sock Socket) string {
	addr := sock.RemoteAddr()
	if addr == nil {
		return "<nil>"
	}
	return addr.String()
}
