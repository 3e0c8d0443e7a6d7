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

// Package peeriphttp stamps the peer IP address onto spans of outbound
// net/http requests.
//
// [Transport] wraps an http.RoundTripper and captures the address of the
// connection each request is sent on, whether freshly dialed or reused from
// the pool. [WrapDialContext] does the same for a bare dial function, and
// [NewClient] assembles an http.Client with otelhttp spans on top:
//
//	client := peeriphttp.NewClient(
//	    peeriphttp.WithTracerProvider(tp),
//	)
//	resp, err := client.Get("https://example.com/")
//
// Spans receive the network.peer.address attribute. Capture failures are
// logged by the configured peerip.Instrumentor and never fail the request.
//
// The helpers are active as soon as they are constructed. The
// Instrumentor's Install and Uninstall govern only connections wrapped with
// peerip.Wrap; here the Instrumentor supplies the logger, meters, failure
// level and attribute options.
//
// Each round trip forks the waiting list of its request context (see
// peerip.Fork), so requests may run concurrently under one caller scope.
// WrapDialContext captures straight into the list of the dial context and
// must not be called concurrently on contexts sharing one scope unless each
// dial gets its own fork.
package peeriphttp
