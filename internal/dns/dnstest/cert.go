package dnstest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"time"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// Certificate is a throwaway self-signed server identity.
type Certificate struct {
	Leaf *x509.Certificate
	Key  *ecdsa.PrivateKey
	// Pool trusts Leaf, for client configs.
	Pool *x509.CertPool
}

// NewCertificate issues a self-signed certificate valid for hosts, which may
// be DNS names or IP literals.
func NewCertificate(hosts ...string) (*Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "dnstest"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	return &Certificate{Leaf: leaf, Key: key, Pool: pool}, nil
}

// TLSCertificate returns c in the form crypto/tls serves.
func (c *Certificate) TLSCertificate() tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{c.Leaf.Raw},
		PrivateKey:  c.Key,
		Leaf:        c.Leaf,
	}
}

// ServerConfig is a TLS 1.2+ server config presenting c.
func (c *Certificate) ServerConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{c.TLSCertificate()},
		MinVersion:   tls.VersionTLS12,
	}
}

// ClientConfig trusts c and expects serverName.
func (c *Certificate) ClientConfig(serverName string) *tls.Config {
	return &tls.Config{RootCAs: c.Pool, ServerName: serverName, MinVersion: tls.VersionTLS12}
}

// PKCS12 encodes c as a password protected PKCS#12 bundle.
func (c *Certificate) PKCS12(password string) ([]byte, error) {
	return pkcs12.Modern.Encode(c.Key, c.Leaf, nil, password)
}
