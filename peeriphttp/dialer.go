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
	"net"

	"github.com/pjscruggs/peerip"
)

// WrapDialContext returns a dial function that captures the peer IP of
// every connection it opens, at the instrumentor's failure level, onto the
// spans waiting on the dial context. A nil dial uses a zero net.Dialer.
//
// Use it for clients that dial through a custom function without going
// through Transport, such as WebSocket dialers. Transports only carry the
// request context values into dials on recent Go releases, and the dial of
// a reused connection never happens, so prefer Transport for net/http.
func WrapDialContext(dial peerip.DialFunc, opts ...Option) peerip.DialFunc {
	cfg := applyOptions(opts)
	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}
	inst := cfg.instrumentor
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		conn, err := dial(ctx, network, address)
		if err != nil {
			return nil, err
		}
		inst.TryCapturePeerIP(ctx, peerip.SocketHandle{Sock: conn}, inst.FailureLevel())
		return conn, nil
	}
}
