package xfer

import (
	"sync/atomic"

	"github.com/miekg/dns"

	"github.com/haukened/dnsxfer/internal/dns/common/log"
	"github.com/haukened/dnsxfer/internal/dns/domain"
)

// MaxPayloadLen is the EDNS payload size advertised by Lookup: the Ethernet
// MTU less an IPv6 header and a UDP header, so answers avoid fragmentation.
// It is a fixed default, not derived from path MTU discovery.
const MaxPayloadLen uint16 = 1500 - 40 - 8

// Handle is the dispatch capability implemented by every client variant.
type Handle interface {
	// Send dispatches req and returns a slot that settles exactly once.
	// Implementations must treat the message id as advisory.
	Send(req Request) *Pending

	// IsVerifyingDNSSEC reports whether responses are DNSSEC validated
	// before being delivered. Wrappers that add no validation must return
	// the wrapped handle's answer.
	IsVerifyingDNSSEC() bool
}

// IDSource produces message identifiers.
type IDSource interface {
	NextID() uint16
}

// IDFunc adapts a function to IDSource.
type IDFunc func() uint16

// NextID calls f.
func (f IDFunc) NextID() uint16 { return f() }

// RandomIDs draws identifiers uniformly from the 16-bit space using a
// cryptographic source.
var RandomIDs IDSource = IDFunc(dns.Id)

// SequentialIDs hands out consecutive identifiers starting at Start. It is
// deterministic and meant for tests.
type SequentialIDs struct {
	Start uint16
	n     atomic.Uint32
}

// NextID returns the next id, wrapping after 65535.
func (s *SequentialIDs) NextID() uint16 {
	return s.Start + uint16(s.n.Add(1)-1)
}

// NewQueryMessage builds a standard recursive query for q with an EDNS
// record advertising MaxPayloadLen, version 0. The DO bit follows
// opts.RequestDNSSEC.
func NewQueryMessage(q domain.Query, ids IDSource, opts domain.Options) *dns.Msg {
	m := new(dns.Msg)
	m.Id = ids.NextID()
	m.Response = false
	m.Opcode = dns.OpcodeQuery
	m.RecursionDesired = true
	m.Question = []dns.Question{{
		Name:   q.Name,
		Qtype:  uint16(q.Type),
		Qclass: uint16(q.Class),
	}}

	m.SetEdns0(MaxPayloadLen, opts.RequestDNSSEC)
	m.IsEdns0().SetVersion(0)
	return m
}

// Lookup performs a classic query for q through h using random identifiers.
func Lookup(h Handle, q domain.Query, opts domain.Options) *Pending {
	return LookupWithIDs(h, RandomIDs, q, opts)
}

// LookupWithIDs is Lookup with an explicit identifier source.
func LookupWithIDs(h Handle, ids IDSource, q domain.Query, opts domain.Options) *Pending {
	if err := q.Validate(); err != nil {
		return Resolved(nil, domain.Messagef("invalid query %q: %w", q.Name, err))
	}

	log.Debug(map[string]any{
		"name": q.Name,
		"type": q.Type.String(),
	}, "querying")

	return h.Send(NewRequest(NewQueryMessage(q, ids, opts), opts))
}
