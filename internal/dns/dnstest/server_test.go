package dnstest

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer(t *testing.T) {
	rr, err := dns.NewRR("example.org. 60 IN A 127.0.0.1")
	require.NoError(t, err)

	srv, err := NewServer("127.0.0.1:0", map[string]*Response{
		Key("example.org.", dns.TypeA):      {Msg: &dns.Msg{Answer: []dns.RR{rr}}},
		Key("servfail.example.", dns.TypeA): {Rcode: dns.RcodeServerFailure},
	})
	require.NoError(t, err)
	defer srv.Close()
	assert.Empty(t, srv.TLSAddr)

	req := new(dns.Msg)
	req.SetQuestion("example.org.", dns.TypeA)
	for _, network := range []string{"udp", "tcp"} {
		c := dns.Client{Net: network}
		in, _, err := c.Exchange(req, srv.Addr)
		require.NoError(t, err, network)
		assert.Len(t, in.Answer, 1, network)
		assert.Equal(t, req.Id, in.Id, network)
	}

	c := dns.Client{Net: "udp"}
	req.SetQuestion("servfail.example.", dns.TypeA)
	in, _, err := c.Exchange(req, srv.Addr)
	require.NoError(t, err)
	assert.Equal(t, dns.RcodeServerFailure, in.Rcode)

	req.SetQuestion("missing.example.", dns.TypeA)
	in, _, err = c.Exchange(req, srv.Addr)
	require.NoError(t, err)
	assert.Equal(t, dns.RcodeNameError, in.Rcode)

	assert.Len(t, srv.Questions(), 4)
}

func TestServer_SetKeepsFlags(t *testing.T) {
	srv, err := NewServer("127.0.0.1:0", nil)
	require.NoError(t, err)
	defer srv.Close()

	msg := new(dns.Msg)
	msg.AuthenticatedData = true
	srv.Set("Secure.Example.", dns.TypeA, &Response{Msg: msg})

	req := new(dns.Msg)
	req.SetQuestion("secure.example.", dns.TypeA)
	in, _, err := (&dns.Client{Net: "udp"}).Exchange(req, srv.Addr)
	require.NoError(t, err)
	assert.True(t, in.AuthenticatedData)
	assert.Equal(t, dns.RcodeSuccess, in.Rcode)
}

func TestServer_TLS(t *testing.T) {
	cert, err := NewCertificate("127.0.0.1", "dns.test")
	require.NoError(t, err)

	srv, err := NewTLSServer("127.0.0.1:0", nil, cert.ServerConfig())
	require.NoError(t, err)
	defer srv.Close()
	require.NotEmpty(t, srv.TLSAddr)

	c := dns.Client{Net: "tcp-tls", TLSConfig: cert.ClientConfig("dns.test")}
	req := new(dns.Msg)
	req.SetQuestion("missing.example.", dns.TypeA)
	in, _, err := c.Exchange(req, srv.TLSAddr)
	require.NoError(t, err)
	assert.Equal(t, dns.RcodeNameError, in.Rcode)
}

func TestCertificate_PKCS12(t *testing.T) {
	cert, err := NewCertificate("dns.test")
	require.NoError(t, err)
	assert.Equal(t, []string{"dns.test"}, cert.Leaf.DNSNames)

	pfx, err := cert.PKCS12("secret")
	require.NoError(t, err)
	assert.NotEmpty(t, pfx)
}
