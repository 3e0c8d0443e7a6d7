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
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pjscruggs/peerip"
)

// startEchoServer accepts connections on loopback and echoes what it reads.
func startEchoServer(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen returned %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_, _ = io.Copy(conn, conn)
			}()
		}
	}()
	return ln.Addr().String()
}

// TestStreamConnSendConnectsLazily captures the peer of a socket opened by Send.
func TestStreamConnSendConnectsLazily(t *testing.T) {
	t.Parallel()

	addr := startEchoServer(t)
	inst := peerip.New()
	if err := inst.Install(); err != nil {
		t.Fatalf("Install returned %v", err)
	}

	raw := peerip.NewStreamConn("tcp", addr, nil)
	conn := inst.Wrap(raw)
	t.Cleanup(func() { _ = conn.Close() })

	if raw.Socket() != nil {
		t.Fatalf("Socket() before Send = %v, want nil", raw.Socket())
	}

	tracer, _ := newTracer(t)
	span := startSpan(t, tracer, "client")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx, release := peerip.WithPeerIPCapture(ctx, span)
	defer release()

	if err := conn.Send(ctx, []byte("ping")); err != nil {
		t.Fatalf("Send returned %v", err)
	}
	wantPeer(t, span, "127.0.0.1")

	buf := make([]byte, 4)
	if _, err := io.ReadFull(raw, buf); err != nil {
		t.Fatalf("read echo: %v", err)
	}
	if string(buf) != "ping" {
		t.Fatalf("echo = %q, want ping", buf)
	}
}

// TestStreamConnConnectCaptures captures the peer right after Connect.
func TestStreamConnConnectCaptures(t *testing.T) {
	t.Parallel()

	addr := startEchoServer(t)
	inst := peerip.New()
	if err := inst.Install(); err != nil {
		t.Fatalf("Install returned %v", err)
	}

	conn := inst.Wrap(peerip.NewStreamConn("tcp", addr, nil))
	t.Cleanup(func() { _ = conn.Close() })

	tracer, _ := newTracer(t)
	span := startSpan(t, tracer, "client")
	ctx, release := peerip.WithPeerIPCapture(context.Background(), span)
	defer release()

	if err := conn.Connect(ctx); err != nil {
		t.Fatalf("Connect returned %v", err)
	}
	wantPeer(t, span, "127.0.0.1")
	if err := conn.Connect(ctx); err != nil {
		t.Fatalf("second Connect returned %v", err)
	}
}

// TestStreamConnClose ensures a closed connection refuses to send.
func TestStreamConnClose(t *testing.T) {
	t.Parallel()

	addr := startEchoServer(t)
	conn := peerip.NewStreamConn("tcp", addr, nil)
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("Connect returned %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close returned %v", err)
	}
	if conn.Socket() != nil {
		t.Fatalf("Socket() after Close is not nil")
	}
	if err := conn.Send(context.Background(), []byte("x")); !errors.Is(err, peerip.ErrClosed) {
		t.Fatalf("Send after Close = %v, want ErrClosed", err)
	}
	if _, err := conn.Read(make([]byte, 1)); !errors.Is(err, peerip.ErrClosed) {
		t.Fatalf("Read after Close = %v, want ErrClosed", err)
	}
}

// TestStreamConnDialFailure ensures dial errors surface wrapped and skip capture.
func TestStreamConnDialFailure(t *testing.T) {
	t.Parallel()

	refused := errors.New("refused")
	dial := func(context.Context, string, string) (net.Conn, error) { return nil, refused }

	inst := peerip.New()
	if err := inst.Install(); err != nil {
		t.Fatalf("Install returned %v", err)
	}
	conn := inst.Wrap(peerip.NewStreamConn("tcp", "192.0.2.1:9", dial))

	tracer, _ := newTracer(t)
	span := startSpan(t, tracer, "client")
	ctx, release := peerip.WithPeerIPCapture(context.Background(), span)
	defer release()

	if err := conn.Connect(ctx); !errors.Is(err, refused) {
		t.Fatalf("Connect error = %v, want refused", err)
	}
	if err := conn.Send(ctx, nil); !errors.Is(err, refused) {
		t.Fatalf("Send error = %v, want refused", err)
	}
	wantNoPeer(t, span)
}

// TestTLSConnCapturesPeer performs a TLS request through a wrapped TLSConn.
func TestTLSConnCapturesPeer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	t.Cleanup(srv.Close)

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())

	addr := srv.Listener.Addr().String()
	inst := peerip.New()
	if err := inst.Install(); err != nil {
		t.Fatalf("Install returned %v", err)
	}

	raw := peerip.NewTLSConn("tcp", addr, nil, &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12})
	if raw.Kind() != peerip.KindTLS {
		t.Fatalf("Kind() = %q, want %q", raw.Kind(), peerip.KindTLS)
	}
	conn := inst.Wrap(raw)
	t.Cleanup(func() { _ = conn.Close() })

	tracer, _ := newTracer(t)
	span := startSpan(t, tracer, "https")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx, release := peerip.WithPeerIPCapture(ctx, span)
	defer release()

	req := "GET / HTTP/1.1\r\nHost: " + addr + "\r\nConnection: close\r\n\r\n"
	if err := conn.Send(ctx, []byte(req)); err != nil {
		t.Fatalf("Send returned %v", err)
	}
	if _, ok := raw.Socket().(*tls.Conn); !ok {
		t.Fatalf("Socket() = %T, want *tls.Conn", raw.Socket())
	}
	wantPeer(t, span, "127.0.0.1")

	status, err := bufio.NewReader(raw).ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if !strings.HasPrefix(status, "HTTP/1.1 200") {
		t.Fatalf("status line = %q, want 200", status)
	}
}

// TestNilConnHandles ensures typed nil connections report no socket.
func TestNilConnHandles(t *testing.T) {
	t.Parallel()

	tracer, _ := newTracer(t)
	span := startSpan(t, tracer, "client")
	ctx, release := peerip.WithPeerIPCapture(context.Background(), span)
	defer release()

	inst := peerip.New()
	tests := []struct {
		name string
		h    peerip.Handle
	}{
		{name: "stream", h: (*peerip.StreamConn)(nil)},
		{name: "tls", h: (*peerip.TLSConn)(nil)},
		{name: "tls without stream", h: &peerip.TLSConn{}},
	}
	for _, tt := range tests {
		if inst.TryCapturePeerIP(ctx, tt.h, slog.LevelWarn) {
			t.Fatalf("%s: TryCapturePeerIP = true, want false", tt.name)
		}
	}
	wantNoPeer(t, span)
}
