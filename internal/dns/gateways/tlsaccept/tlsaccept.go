// Package tlsaccept loads a server identity from a PKCS#12 bundle and builds
// the TLS acceptor used to terminate DNS-over-TLS connections.
package tlsaccept

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/haukened/dnsxfer/internal/dns/domain"
)

// Error message constants for consistent error handling
const (
	opOpen   = "failed to open"
	opRead   = "failed to read"
	opDecode = "failed to decode"

	errNoCredentials = "credentials are required"
	errNoKey         = "credential key does not implement crypto.Signer"
)

// Credentials is a decoded server identity: the leaf certificate, its private
// key and any intermediates to present with it.
type Credentials struct {
	Key   crypto.PrivateKey
	Leaf  *x509.Certificate
	Chain []*x509.Certificate
	// Path is the bundle the credentials came from.
	Path string
}

// openFile is overridable for tests.
var openFile = func(path string) (io.ReadCloser, error) { return os.Open(path) }

// ReadCredentials loads and decrypts the PKCS#12 bundle at path. Every
// failure is a KindCredential error naming path.
func ReadCredentials(path, password string) (*Credentials, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, domain.CredentialError(opOpen, path, err)
	}
	defer f.Close()

	pfx, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.CredentialError(opRead, path, err)
	}
	return DecodeCredentials(pfx, password, path)
}

// DecodeCredentials decodes an in-memory bundle. path only labels errors.
func DecodeCredentials(pfx []byte, password, path string) (*Credentials, error) {
	key, leaf, chain, err := pkcs12.DecodeChain(pfx, password)
	if err != nil {
		return nil, domain.CredentialError(opDecode, path, err)
	}
	if _, ok := key.(crypto.Signer); !ok {
		return nil, domain.CredentialError(opDecode, path, errors.New(errNoKey))
	}
	return &Credentials{Key: key, Leaf: leaf, Chain: chain, Path: path}, nil
}

// Certificate returns the credentials as a crypto/tls certificate, leaf
// first and intermediates after it.
func (c *Credentials) Certificate() tls.Certificate {
	cert := tls.Certificate{
		Certificate: [][]byte{c.Leaf.Raw},
		PrivateKey:  c.Key,
		Leaf:        c.Leaf,
	}
	for _, ca := range c.Chain {
		cert.Certificate = append(cert.Certificate, ca.Raw)
	}
	return cert
}

// Acceptor terminates TLS for incoming connections. SSLv3, TLS 1.0 and
// TLS 1.1 are refused.
type Acceptor struct {
	config *tls.Config
}

// NewAcceptor builds an acceptor presenting creds.
func NewAcceptor(creds *Credentials) (*Acceptor, error) {
	if creds == nil || creds.Leaf == nil || creds.Key == nil {
		return nil, domain.CredentialError("invalid", credsPath(creds), errors.New(errNoCredentials))
	}
	cert := creds.Certificate()
	return &Acceptor{config: &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}}, nil
}

func credsPath(c *Credentials) string {
	if c == nil {
		return ""
	}
	return c.Path
}

// Config returns a copy of the server configuration.
func (a *Acceptor) Config() *tls.Config {
	return a.config.Clone()
}

// Allows reports whether a handshake at version could succeed.
func (a *Acceptor) Allows(version uint16) bool {
	if version < a.config.MinVersion {
		return false
	}
	return a.config.MaxVersion == 0 || version <= a.config.MaxVersion
}

// Listen opens a TLS listener on addr.
func (a *Acceptor) Listen(network, addr string) (net.Listener, error) {
	l, err := tls.Listen(network, addr, a.Config())
	if err != nil {
		return nil, fmt.Errorf("tls listen on %s: %w", addr, err)
	}
	return l, nil
}

// Wrap terminates TLS on connections accepted from inner.
func (a *Acceptor) Wrap(inner net.Listener) net.Listener {
	return tls.NewListener(inner, a.Config())
}
