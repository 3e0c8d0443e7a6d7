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

// Package peerip enriches client spans with the IP address of the remote
// peer. The address is only known once the transport has connected, which
// usually happens after the span was started and deep inside the transport,
// so the package tracks "spans that want the peer IP" on the request context
// and stamps them when the connection reports its socket.
//
// peerip never creates spans. It sets the network.peer.address attribute on
// spans that are already active and still recording.
//
// # Registering spans
//
// [WithPeerIPCapture] marks a span as waiting for the peer IP of the next
// connection made with the returned context:
//
//	ctx, release := peerip.WithPeerIPCapture(ctx, span)
//	defer release()
//	resp, err := client.Do(req.WithContext(ctx))
//
// Nested scopes on the same call path share one list, so an outer request
// span and an inner retry span both receive the address.
//
// # Capturing
//
// Transport integrations call [TryCapturePeerIP] with a [Handle] after their
// connect and send steps. A false result means the handle has no socket yet
// and the capture should be retried after the next lifecycle event. Lookup
// failures are logged through log/slog and never fail the request.
//
// # Interceptors
//
// [Instrumentor] holds the interceptor registry. [Instrumentor.Wrap]
// decorates a [Conn] at construction time; [Instrumentor.Install] and
// [Instrumentor.Uninstall] switch the interceptors on and off for every
// wrapped connection, and [Instrumentor.RegisterConnectHook] extends
// coverage to connection kinds with their own connect implementation.
//
// # Subpackages
//
//   - [github.com/pjscruggs/peerip/peeriphttp] wraps net/http transports and
//     dialers.
//   - [github.com/pjscruggs/peerip/peeripgrpc] provides a gRPC client stats
//     handler.
//
// # Limitations
//
// The waiting list of one call path is not locked. Goroutines that share a
// context derived from the same scope must not register or capture
// concurrently; independent requests started from a context without a scope
// get independent lists. Code that fans out from one scope should hand each
// goroutine a context from [Fork].
package peerip
