// Package dnstest runs scripted DNS servers for tests. A single Server
// answers over UDP and TCP on the same port and, when given a TLS
// configuration, over DNS-over-TLS on a second port.
package dnstest

import (
	"crypto/tls"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// Response defines how the server answers one question.
type Response struct {
	// Msg is sent if non-nil. Id and Question are taken from the request;
	// header flags such as AuthenticatedData are kept.
	Msg *dns.Msg
	// Rcode applies to the generated reply. Defaults to RcodeSuccess.
	Rcode int
	// Raw is written verbatim instead of a packed message.
	Raw []byte
	// Drop ignores the request, simulating a timeout.
	Drop bool
	// Delay is applied before answering.
	Delay time.Duration
}

// Server is a scripted DNS server.
type Server struct {
	// Addr is the UDP and TCP address.
	Addr string
	// TLSAddr is the DNS-over-TLS address, empty unless started with TLS.
	TLSAddr string

	mu        sync.Mutex
	responses map[string]*Response
	seen      []dns.Question
	servers   []*dns.Server
}

// NewServer listens on addr for UDP and TCP. A port of "0" picks a free one.
func NewServer(addr string, responses map[string]*Response) (*Server, error) {
	return NewTLSServer(addr, responses, nil)
}

// NewTLSServer is NewServer plus a DNS-over-TLS listener on an ephemeral
// port of the same host when config is non-nil.
func NewTLSServer(addr string, responses map[string]*Response, config *tls.Config) (*Server, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	tcpListener, err := net.Listen("tcp", udpConn.LocalAddr().String())
	if err != nil {
		_ = udpConn.Close()
		return nil, err
	}

	if responses == nil {
		responses = map[string]*Response{}
	}
	s := &Server{
		Addr:      udpConn.LocalAddr().String(),
		responses: responses,
	}
	handler := dns.HandlerFunc(s.handle)
	s.servers = append(s.servers,
		&dns.Server{PacketConn: udpConn, Handler: handler},
		&dns.Server{Listener: tcpListener, Handler: handler},
	)

	if config != nil {
		host, _, _ := net.SplitHostPort(s.Addr)
		tlsListener, err := tls.Listen("tcp", net.JoinHostPort(host, "0"), config)
		if err != nil {
			_ = udpConn.Close()
			_ = tcpListener.Close()
			return nil, err
		}
		s.TLSAddr = tlsListener.Addr().String()
		s.servers = append(s.servers, &dns.Server{Listener: tlsListener, Net: "tcp-tls", Handler: handler})
	}

	for _, srv := range s.servers {
		started := make(chan struct{})
		srv.NotifyStartedFunc = func() { close(started) }
		go func(srv *dns.Server) { _ = srv.ActivateAndServe() }(srv)
		<-started
	}
	return s, nil
}

// Set installs or replaces the scripted answer for name and qtype.
func (s *Server) Set(name string, qtype uint16, resp *Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[Key(name, qtype)] = resp
}

// Questions returns every question received so far.
func (s *Server) Questions() []dns.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dns.Question(nil), s.seen...)
}

// Close shuts down every listener.
func (s *Server) Close() {
	for _, srv := range s.servers {
		_ = srv.Shutdown()
	}
}

func (s *Server) handle(w dns.ResponseWriter, req *dns.Msg) {
	if len(req.Question) == 0 {
		_ = w.Close()
		return
	}
	q := req.Question[0]

	s.mu.Lock()
	s.seen = append(s.seen, q)
	resp, ok := s.responses[Key(q.Name, q.Qtype)]
	s.mu.Unlock()

	if !ok {
		m := new(dns.Msg)
		m.SetRcode(req, dns.RcodeNameError)
		_ = w.WriteMsg(m)
		return
	}

	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	if resp.Drop {
		return
	}
	if resp.Raw != nil {
		_, _ = w.Write(resp.Raw)
		return
	}
	var m *dns.Msg
	if resp.Msg != nil {
		m = resp.Msg.Copy()
		ans, ns, extra := m.Answer, m.Ns, m.Extra
		m.SetReply(req)
		m.Answer, m.Ns, m.Extra = ans, ns, extra
	} else {
		m = new(dns.Msg)
		m.SetReply(req)
	}
	if resp.Rcode != 0 {
		m.Rcode = resp.Rcode
	}
	_ = w.WriteMsg(m)
}

// Key returns the lookup key for a question name and type.
func Key(name string, qtype uint16) string {
	return strings.ToLower(name) + "/" + strconv.FormatUint(uint64(qtype), 10)
}
