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
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// Built-in connection kinds.
const (
	KindStream = "stream"
	KindTLS    = "tls"
)

// ErrClosed is returned by Send on a connection closed with Close.
var ErrClosed = errors.New("peerip: connection closed")

// DialFunc opens a network connection. net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// StreamConn is a lazily dialed client connection. Connect opens the socket;
// Send opens it on demand when Connect was never called.
type StreamConn struct {
	network string
	address string
	dial    DialFunc

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// NewStreamConn returns an unconnected StreamConn for address. A nil dial
// uses a zero net.Dialer.
func NewStreamConn(network, address string, dial DialFunc) *StreamConn {
	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}
	return &StreamConn{network: network, address: address, dial: dial}
}

// Kind implements Conn.
func (c *StreamConn) Kind() string { return KindStream }

// Address returns the dial target.
func (c *StreamConn) Address() string { return c.address }

// Socket returns the live socket, or nil when not connected or when c is
// nil.
func (c *StreamConn) Socket() Socket {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn
}

// Connect dials the target unless a socket is already open.
func (c *StreamConn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *StreamConn) connectLocked(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	if c.conn != nil {
		return nil
	}
	conn, err := c.dial(ctx, c.network, c.address)
	if err != nil {
		return fmt.Errorf("dial %s %s: %w", c.network, c.address, err)
	}
	c.conn = conn
	return nil
}

// Send writes p, connecting first when no socket is open. The context
// deadline, if any, bounds the write.
func (c *StreamConn) Send(ctx context.Context, p []byte) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.write(ctx, p)
}

func (c *StreamConn) write(ctx context.Context, p []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrClosed
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := conn.Write(p); err != nil {
		return fmt.Errorf("write to %s: %w", c.address, err)
	}
	return nil
}

// Read reads from the open socket.
func (c *StreamConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return 0, ErrClosed
	}
	return conn.Read(p)
}

// Close closes the socket. Later calls to Connect and Send fail with
// ErrClosed.
func (c *StreamConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("close %s: %w", c.address, err)
	}
	return nil
}

// TLSConn is a StreamConn that performs a TLS handshake after dialing.
// Install enables its connect hook along with the stream one.
type TLSConn struct {
	*StreamConn
	config *tls.Config
}

// NewTLSConn returns an unconnected TLSConn. When config has no ServerName,
// the host part of address is used.
func NewTLSConn(network, address string, dial DialFunc, config *tls.Config) *TLSConn {
	if config == nil {
		config = &tls.Config{MinVersion: tls.VersionTLS12}
	} else {
		config = config.Clone()
	}
	if config.ServerName == "" {
		if host, _, err := net.SplitHostPort(address); err == nil {
			config.ServerName = host
		} else {
			config.ServerName = address
		}
	}
	return &TLSConn{StreamConn: NewStreamConn(network, address, dial), config: config}
}

// Kind implements Conn.
func (c *TLSConn) Kind() string { return KindTLS }

// Socket returns the live TLS socket, or nil when not connected or when c
// is nil.
func (c *TLSConn) Socket() Socket {
	if c == nil {
		return nil
	}
	return c.StreamConn.Socket()
}

// Connect dials the target and completes the TLS handshake.
func (c *TLSConn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return err
	}
	if _, ok := c.conn.(*tls.Conn); ok {
		return nil
	}

	tlsConn := tls.Client(c.conn, c.config)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = c.conn.Close()
		c.conn = nil
		return fmt.Errorf("tls handshake with %s: %w", c.address, err)
	}
	c.conn = tlsConn
	return nil
}

// Send writes p over TLS, connecting first when no socket is open.
func (c *TLSConn) Send(ctx context.Context, p []byte) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.write(ctx, p)
}
