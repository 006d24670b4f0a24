// Package transport opens client connections to DNS servers. It knows how to
// reach a server over each supported protocol and hands back a plain
// net.Conn for the exchange driver to own.
package transport

import (
	"context"
	"net"
)

// TransportType represents the different types of DNS transport protocols supported.
type TransportType string

const (
	// TransportUDP represents standard DNS over UDP (RFC 1035)
	TransportUDP TransportType = "udp"

	// TransportTCP represents DNS over TCP with two-byte length framing (RFC 7766)
	TransportTCP TransportType = "tcp"

	// TransportDoT represents DNS over TLS (RFC 7858)
	TransportDoT TransportType = "dot"

	// TransportDoH represents DNS over HTTPS (RFC 8484) - future implementation
	TransportDoH TransportType = "doh"

	// TransportDoQ represents DNS over QUIC (RFC 9250) - future implementation
	TransportDoQ TransportType = "doq"
)

// DialFunc defines a function type for establishing a network connection.
// It takes a context for cancellation, the network type (e.g., "tcp", "udp"),
// and the address to connect to, returning a net.Conn and an error if any occurs.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Network returns the socket network a transport runs over.
func (t TransportType) Network() string {
	if t == TransportUDP {
		return "udp"
	}
	return "tcp"
}

// DefaultPort is the well-known port for the transport.
func (t TransportType) DefaultPort() string {
	switch t {
	case TransportDoT, TransportDoQ:
		return "853"
	case TransportDoH:
		return "443"
	default:
		return "53"
	}
}
