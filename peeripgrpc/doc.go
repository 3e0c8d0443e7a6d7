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

// Package peeripgrpc stamps the peer IP address onto gRPC client spans.
//
// gRPC hides its sockets, so capture runs from a client [stats.Handler]:
// the outgoing header event carries the remote address of the connection
// picked for the RPC. [DialOptions] installs otelgrpc's client handler
// followed by [StatsHandler]:
//
//	conn, err := grpc.NewClient(
//	    target,
//	    append(
//	        []grpc.DialOption{grpc.WithTransportCredentials(creds)},
//	        peeripgrpc.DialOptions()...,
//	    )...,
//	)
package peeripgrpc
