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
	"errors"
	"net"
	"net/url"
	"testing"

	"github.com/pjscruggs/peerip"
)

// TestWrapDialContextCapturesNewConnections verifies the dial wrapper stamps waiting spans.
func TestWrapDialContextCapturesNewConnections(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("url.Parse returned %v", err)
	}

	tp, _ := newTracerProvider(t)
	_, span := tp.Tracer("test").Start(context.Background(), "dial")
	defer span.End()
	ctx, release := peerip.WithPeerIPCapture(context.Background(), span)
	defer release()

	dial := WrapDialContext(nil)
	conn, err := dial(ctx, "tcp", u.Host)
	if err != nil {
		t.Fatalf("dial returned %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	if got, ok := peerOf(t, span); !ok || got != "127.0.0.1" {
		t.Fatalf("peer = %q (set=%v), want 127.0.0.1", got, ok)
	}
}

// TestWrapDialContextPassesErrors ensures dial failures are returned untouched.
func TestWrapDialContextPassesErrors(t *testing.T) {
	t.Parallel()

	refused := errors.New("connection refused")
	dial := WrapDialContext(func(context.Context, string, string) (net.Conn, error) {
		return nil, refused
	})

	tp, _ := newTracerProvider(t)
	_, span := tp.Tracer("test").Start(context.Background(), "dial")
	defer span.End()
	ctx, release := peerip.WithPeerIPCapture(context.Background(), span)
	defer release()

	conn, err := dial(ctx, "tcp", "192.0.2.1:80")
	if !errors.Is(err, refused) || conn != nil {
		t.Fatalf("dial = (%v, %v), want (nil, refused)", conn, err)
	}
	if _, ok := peerOf(t, span); ok {
		t.Fatalf("span stamped after failed dial")
	}
	if got := peerip.Pending(ctx); got != 1 {
		t.Fatalf("Pending = %d, want 1", got)
	}
}
