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

import "context"

// Conn is a client transport connection with an explicit connect step and
// a send step that connects on demand.
type Conn interface {
	Handle
	// Kind names the connection implementation in the hook registry.
	Kind() string
	Connect(ctx context.Context) error
	Send(ctx context.Context, p []byte) error
	Close() error
}

// Wrap decorates c with the default Instrumentor's interceptors.
func Wrap(c Conn) Conn { return Default().Wrap(c) }

// Wrap decorates c so that connect and send run the peer-IP interceptors
// enabled on i. Wrapping is meant to happen where the connection is
// constructed; a Conn wrapped by i is returned unchanged.
func (i *Instrumentor) Wrap(c Conn) Conn {
	if c == nil {
		return nil
	}
	if w, ok := c.(*instrumentedConn); ok && w.inst == i {
		return c
	}
	return &instrumentedConn{
		Conn:    c,
		inst:    i,
		connect: i.WrapConnect(c.Kind(), MethodConnect, c, c.Connect),
		send:    i.WrapSend(c, c.Send),
	}
}

// Unwrap returns the connection wrapped by Wrap, or c itself.
func Unwrap(c Conn) Conn {
	if w, ok := c.(*instrumentedConn); ok {
		return w.Conn
	}
	return c
}

type instrumentedConn struct {
	Conn
	inst    *Instrumentor
	connect ConnectFunc
	send    SendFunc
}

func (c *instrumentedConn) Connect(ctx context.Context) error {
	return c.connect(ctx)
}

func (c *instrumentedConn) Send(ctx context.Context, p []byte) error {
	return c.send(ctx, p)
}
