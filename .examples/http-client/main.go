// Copyright 2025 Patrick J. Scruggs
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

// Command http-client sends a traced request through a peerip-enabled HTTP
// client and prints the peer address recorded on the client span.
//
// This example is both documentation, and a test for `peerip`.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/pjscruggs/peerip"
	"github.com/pjscruggs/peerip/peeriphttp"
)

func main() {
	peer, err := run(context.Background())
	if err != nil {
		log.Fatalf("http-client: %v", err)
	}
	fmt.Printf("client span peer address: %s\n", peer)
}

// run serves one request locally and returns the peer address stamped on the
// otelhttp client span.
func run(ctx context.Context) (string, error) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	client := peeriphttp.NewClient(peeriphttp.WithTracerProvider(tp))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("client request: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	if err := resp.Body.Close(); err != nil {
		return "", fmt.Errorf("close body: %w", err)
	}

	for _, span := range recorder.Ended() {
		for _, kv := range span.Attributes() {
			if kv.Key == peerip.PeerAddressKey {
				return kv.Value.AsString(), nil
			}
		}
	}
	return "", fmt.Errorf("no span carried %s", peerip.PeerAddressKey)
}
