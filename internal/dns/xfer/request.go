package xfer

import (
	"github.com/miekg/dns"

	"github.com/haukened/dnsxfer/internal/dns/domain"
)

// Request is a fully formed outbound message plus the options that travel
// with it. The message id is advisory; drivers may rewrite it.
type Request struct {
	Message *dns.Msg
	Options domain.Options
}

// NewRequest pairs msg with opts.
func NewRequest(msg *dns.Msg, opts domain.Options) Request {
	return Request{Message: msg, Options: opts}
}

// Question returns the first question of the request, if any.
func (r Request) Question() (dns.Question, bool) {
	if r.Message == nil || len(r.Message.Question) == 0 {
		return dns.Question{}, false
	}
	return r.Message.Question[0], true
}

// Response is a decoded inbound message matched to the request that elicited it.
type Response struct {
	Message *dns.Msg
}

// RCode returns the response code, extended bits included.
func (r *Response) RCode() domain.RCode {
	return domain.RCode(r.Message.Rcode)
}

// Answers returns the answer section.
func (r *Response) Answers() []dns.RR {
	return r.Message.Answer
}

// Envelope is the unit handed to a transport driver: a request and the
// producer half of the slot its outcome must be written into.
type Envelope struct {
	Request   Request
	Responder *Responder
}
