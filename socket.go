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
	"errors"
	"fmt"
	"net"
	"net/netip"
)

var (
	// ErrNoSocket reports a peer address lookup on a connection without a live socket.
	ErrNoSocket = errors.New("peerip: no socket")
	// ErrNoRemoteAddr reports a socket that does not know its remote address.
	ErrNoRemoteAddr = errors.New("peerip: socket has no remote address")
	// ErrUnsupportedAddr reports a remote address that does not carry an IP.
	ErrUnsupportedAddr = errors.New("peerip: unsupported remote address")
)

// Socket is the part of a connected socket needed to learn its peer. Every
// net.Conn satisfies it.
type Socket interface {
	RemoteAddr() net.Addr
}

// Handle is a transport connection whose socket may not exist yet. Socket
// returns nil until the connection is established and again after it is
// closed. The socket is looked up on every capture attempt and never cached.
// Socket must tolerate a nil receiver when the implementation is a pointer,
// since a typed nil Handle is indistinguishable from a live one.
type Handle interface {
	Socket() Socket
}

// SocketHandle adapts an already connected socket, such as the net.Conn
// returned by a dialer, to Handle.
type SocketHandle struct {
	Sock Socket
}

// Socket returns the wrapped socket.
func (h SocketHandle) Socket() Socket { return h.Sock }

// AddrSocket is a Socket that reports a fixed remote address. It suits
// transports that expose the peer address but not the connection itself.
type AddrSocket struct {
	Addr net.Addr
}

// RemoteAddr returns the fixed address.
func (s AddrSocket) RemoteAddr() net.Addr { return s.Addr }

// PeerAddr returns the IP address of sock's remote endpoint. IPv4-mapped IPv6
// addresses are unmapped and zones are dropped so the result is suitable as
// an attribute value.
func PeerAddr(sock Socket) (netip.Addr, error) {
	if sock == nil {
		return netip.Addr{}, ErrNoSocket
	}
	addr := sock.RemoteAddr()
	if addr == nil {
		return netip.Addr{}, ErrNoRemoteAddr
	}

	var ip netip.Addr
	switch a := addr.(type) {
	case *net.TCPAddr:
		if a != nil {
			ip = a.AddrPort().Addr()
		}
	case *net.UDPAddr:
		if a != nil {
			ip = a.AddrPort().Addr()
		}
	case *net.IPAddr:
		if a != nil {
			ip, _ = netip.AddrFromSlice(a.IP)
		}
	default:
		ip = parseAddrString(addr.String())
	}

	if !ip.IsValid() {
		return netip.Addr{}, fmt.Errorf("%w: %s %q", ErrUnsupportedAddr, addr.Network(), addr.String())
	}
	return ip.Unmap().WithZone(""), nil
}

// parseAddrString accepts "ip:port" and bare "ip" forms.
func parseAddrString(s string) netip.Addr {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.Addr()
	}
	if ip, err := netip.ParseAddr(s); err == nil {
		return ip
	}
	return netip.Addr{}
}
