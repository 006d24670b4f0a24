package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"

	"golang.org/x/net/proxy"

	"github.com/haukened/dnsxfer/internal/dns/common/log"
)

// Error message constants for consistent error handling
const (
	errAddressRequired = "server address is required"
	errNotImplemented  = "%s transport not yet implemented"
	errUnsupported     = "unsupported transport type: %s"
	errProxyURL        = "invalid proxy url: %w"
	errProxyUDP        = "proxies are not supported for udp"
	errProxyDialer     = "proxy dialer does not support contexts"
	errDial            = "dial %s %s: %w"
	errHandshake       = "tls handshake with %s: %w"
)

// Options describes how to reach a server.
type Options struct {
	Type    TransportType
	Address string
	// TLS is used by DoT. When nil a config verifying the server against
	// the host part of Address is used. MinVersion is raised to TLS 1.2.
	TLS *tls.Config
	// Proxy is an optional socks5:// URL for stream transports.
	Proxy string

	// options to inject for testing purposes
	Dial   DialFunc
	Logger log.Logger
}

// Dial connects to the server described by opts. For DoT the TLS handshake
// has completed when Dial returns.
func Dial(ctx context.Context, opts Options) (net.Conn, error) {
	if !IsTransportSupported(opts.Type) {
		switch opts.Type {
		case TransportDoH:
			return nil, fmt.Errorf(errNotImplemented, "DNS over HTTPS")
		case TransportDoQ:
			return nil, fmt.Errorf(errNotImplemented, "DNS over QUIC")
		default:
			return nil, fmt.Errorf(errUnsupported, opts.Type)
		}
	}
	if opts.Address == "" {
		return nil, errors.New(errAddressRequired)
	}
	address := withDefaultPort(opts.Address, opts.Type.DefaultPort())
	logger := log.OrNoop(opts.Logger)

	dial, err := dialer(opts)
	if err != nil {
		return nil, err
	}

	conn, err := dial(ctx, opts.Type.Network(), address)
	if err != nil {
		return nil, fmt.Errorf(errDial, opts.Type, address, err)
	}
	if opts.Type != TransportDoT {
		logger.Debug(map[string]any{"transport": string(opts.Type), "address": address}, "connected")
		return conn, nil
	}

	tlsConn := tls.Client(conn, ClientTLSConfig(opts.TLS, address))
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf(errHandshake, address, err)
	}
	state := tlsConn.ConnectionState()
	logger.Debug(map[string]any{
		"transport": string(opts.Type),
		"address":   address,
		"version":   tls.VersionName(state.Version),
	}, "connected")
	return tlsConn, nil
}

// ClientTLSConfig returns a copy of base fit for DoT to address: TLS 1.2 or
// newer and a server name taken from address when base does not set one.
func ClientTLSConfig(base *tls.Config, address string) *tls.Config {
	var cfg *tls.Config
	if base != nil {
		cfg = base.Clone()
	} else {
		cfg = &tls.Config{}
	}
	if cfg.MinVersion < tls.VersionTLS12 {
		cfg.MinVersion = tls.VersionTLS12
	}
	if cfg.ServerName == "" {
		if host, _, err := net.SplitHostPort(address); err == nil {
			cfg.ServerName = host
		}
	}
	return cfg
}

func dialer(opts Options) (DialFunc, error) {
	if opts.Proxy == "" {
		if opts.Dial != nil {
			return opts.Dial, nil
		}
		return (&net.Dialer{}).DialContext, nil
	}
	if opts.Type == TransportUDP {
		return nil, errors.New(errProxyUDP)
	}
	u, err := url.Parse(opts.Proxy)
	if err != nil {
		return nil, fmt.Errorf(errProxyURL, err)
	}
	var forward proxy.Dialer = proxy.Direct
	if opts.Dial != nil {
		forward = contextDialer(opts.Dial)
	}
	d, err := proxy.FromURL(u, forward)
	if err != nil {
		return nil, fmt.Errorf(errProxyURL, err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, errors.New(errProxyDialer)
	}
	return cd.DialContext, nil
}

// contextDialer lets an injected DialFunc sit underneath a proxy.
type contextDialer DialFunc

func (f contextDialer) Dial(network, address string) (net.Conn, error) {
	return f(context.Background(), network, address)
}

func (f contextDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

func withDefaultPort(address, port string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, port)
}

// GetSupportedTransports returns a list of currently supported transport types.
func GetSupportedTransports() []TransportType {
	return []TransportType{
		TransportUDP,
		TransportTCP,
		TransportDoT,
		// Future implementations will be added here:
		// TransportDoH,
		// TransportDoQ,
	}
}

// IsTransportSupported checks if a given transport type is currently supported.
func IsTransportSupported(transportType TransportType) bool {
	supported := GetSupportedTransports()
	for _, t := range supported {
		if t == transportType {
			return true
		}
	}
	return false
}
