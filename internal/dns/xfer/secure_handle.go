package xfer

import (
	"github.com/haukened/dnsxfer/internal/dns/domain"
)

// Verifier decides whether a response to req may be delivered.
type Verifier interface {
	Verify(req Request, resp *Response) error
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(req Request, resp *Response) error

// Verify calls f(req, resp).
func (f VerifierFunc) Verify(req Request, resp *Response) error { return f(req, resp) }

// AuthenticatedDataVerifier accepts only responses carrying the AD flag,
// delegating chain validation to a trusted validating upstream.
type AuthenticatedDataVerifier struct{}

// Verify accepts resp only when the upstream set the AD flag.
func (AuthenticatedDataVerifier) Verify(req Request, resp *Response) error {
	if resp.Message.AuthenticatedData {
		return nil
	}
	name := "<none>"
	if q, ok := req.Question(); ok {
		name = q.Name
	}
	return domain.Messagef("response for %s is not DNSSEC authenticated (rcode %s)", name, resp.RCode())
}

// SecureHandle is a validating wrapper. Every request is sent with the DO
// bit set and each response passes through the Verifier before the caller
// sees it.
type SecureHandle struct {
	next     Handle
	verifier Verifier
}

// NewSecureHandle wraps next. A nil verifier selects AuthenticatedDataVerifier.
func NewSecureHandle(next Handle, verifier Verifier) *SecureHandle {
	if verifier == nil {
		verifier = AuthenticatedDataVerifier{}
	}
	return &SecureHandle{next: next, verifier: verifier}
}

// Send forwards req with the DO bit set and verifies the response before
// the caller sees it.
func (h *SecureHandle) Send(req Request) *Pending {
	if req.Message == nil {
		return Resolved(nil, domain.Messagef("cannot send a request without a message"))
	}

	msg := req.Message.Copy()
	if opt := msg.IsEdns0(); opt != nil {
		opt.SetDo()
	} else {
		msg.SetEdns0(MaxPayloadLen, true)
	}
	opts := req.Options
	opts.RequestDNSSEC = true
	secured := NewRequest(msg, opts)

	return Then(h.next.Send(secured), func(resp *Response) (*Response, error) {
		if err := h.verifier.Verify(secured, resp); err != nil {
			return nil, err
		}
		return resp, nil
	})
}

// IsVerifyingDNSSEC is true: this handle validates what it delivers.
func (h *SecureHandle) IsVerifyingDNSSEC() bool {
	return true
}

var _ Handle = (*SecureHandle)(nil)
