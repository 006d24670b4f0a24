package xfer

import (
	"github.com/haukened/dnsxfer/internal/dns/domain"
)

const errSendToChannel = "error sending to channel"

// BasicHandle is the default, non-validating Handle. It enqueues every
// request for a single transport driver. Copies are cheap and share the
// queue, modeling many callers over one connection.
type BasicHandle struct {
	messages *Queue[Envelope]
}

// NewBasicHandle returns a handle feeding messages.
func NewBasicHandle(messages *Queue[Envelope]) BasicHandle {
	return BasicHandle{messages: messages}
}

// Send enqueues req with a fresh completion slot. When the driver side is
// gone it returns a second, already-failed slot so the caller still sees
// exactly one outcome.
func (h BasicHandle) Send(req Request) *Pending {
	responder, pending := NewCompletion()
	if err := h.messages.Push(Envelope{Request: req, Responder: responder}); err != nil {
		responder.Cancel(domain.CancelQueueClosed)
		return Resolved(nil, domain.ChannelSendError(errSendToChannel, err))
	}
	return pending
}

// IsVerifyingDNSSEC is always false for the basic handle.
func (h BasicHandle) IsVerifyingDNSSEC() bool {
	return false
}

var _ Handle = BasicHandle{}
