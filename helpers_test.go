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

package peerip_test

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/pjscruggs/peerip"
)

// newTracer returns a tracer backed by a span recorder.
func newTracer(t *testing.T) (trace.Tracer, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp.Tracer("peerip-test"), recorder
}

// startSpan starts a recording span.
func startSpan(t *testing.T, tracer trace.Tracer, name string) trace.Span {
	t.Helper()

	_, span := tracer.Start(context.Background(), name)
	return span
}

// spanAttr returns the string value of key on span.
func spanAttr(t *testing.T, span trace.Span, key attribute.Key) (string, bool) {
	t.Helper()

	ro, ok := span.(sdktrace.ReadOnlySpan)
	if !ok {
		t.Fatalf("span %T does not implement ReadOnlySpan", span)
	}
	for _, kv := range ro.Attributes() {
		if kv.Key == key {
			return kv.Value.AsString(), true
		}
	}
	return "", false
}

// wantPeer fails the test unless span carries the peer address want.
func wantPeer(t *testing.T, span trace.Span, want string) {
	t.Helper()

	got, ok := spanAttr(t, span, peerip.PeerAddressKey)
	if !ok {
		t.Fatalf("span missing %s, want %q", peerip.PeerAddressKey, want)
	}
	if got != want {
		t.Fatalf("%s = %q, want %q", peerip.PeerAddressKey, got, want)
	}
}

// wantNoPeer fails the test if span carries a peer address.
func wantNoPeer(t *testing.T, span trace.Span) {
	t.Helper()

	if got, ok := spanAttr(t, span, peerip.PeerAddressKey); ok {
		t.Fatalf("%s = %q, want unset", peerip.PeerAddressKey, got)
	}
}

// fakeSocket reports a fixed remote address.
type fakeSocket struct {
	addr net.Addr
}

func (s fakeSocket) RemoteAddr() net.Addr { return s.addr }

// fakeHandle is a Handle whose socket can be swapped by tests.
type fakeHandle struct {
	mu    sync.Mutex
	sock  peerip.Socket
	calls int
}

func (h *fakeHandle) Socket() peerip.Socket {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	return h.sock
}

func (h *fakeHandle) connect(addr net.Addr) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sock = fakeSocket{addr: addr}
}

func (h *fakeHandle) socketCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func tcpAddr(ip string, port int) *net.TCPAddr {
	return &net.TCPAddr{IP: net.ParseIP(ip), Port: port}
}

// newLogger returns a debug-level JSON logger writing into a buffer.
func newLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// newMeterReader returns a MeterProvider and the reader collecting from it.
func newMeterReader(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

// outcomeCounts collects the capture counter grouped by outcome.
func outcomeCounts(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect returned %v", err)
	}

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != peerip.CaptureAttemptsMetric {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s data = %T, want Sum[int64]", m.Name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				outcome, _ := dp.Attributes.Value("outcome")
				counts[outcome.AsString()] += dp.Value
			}
		}
	}
	return counts
}
