package xfer

import (
	"github.com/haukened/dnsxfer/internal/dns/common/clock"
	"github.com/haukened/dnsxfer/internal/dns/common/log"
	"github.com/haukened/dnsxfer/internal/dns/domain"
)

// LoggingHandle forwards to another Handle and logs each request and its
// outcome. It adds no validation of its own.
type LoggingHandle struct {
	next   Handle
	logger log.Logger
	clock  clock.Clock
}

// NewLoggingHandle wraps next. A nil logger discards everything.
func NewLoggingHandle(next Handle, logger log.Logger) *LoggingHandle {
	return &LoggingHandle{next: next, logger: log.OrNoop(logger), clock: clock.RealClock{}}
}

// WithClock sets the clock used to measure elapsed time and returns h.
func (h *LoggingHandle) WithClock(c clock.Clock) *LoggingHandle {
	if c != nil {
		h.clock = c
	}
	return h
}

// Send logs the request, forwards it unchanged and logs the outcome once the
// returned Pending settles.
func (h *LoggingHandle) Send(req Request) *Pending {
	fields := requestFields(req)
	h.logger.Debug(fields, "dispatching request")

	start := h.clock.Now()
	p := h.next.Send(req)
	go func() {
		resp, err := p.Result()
		out := make(map[string]any, len(fields)+3)
		for k, v := range fields {
			out[k] = v
		}
		out["elapsed"] = clock.Since(h.clock, start)
		if err != nil {
			out["error"] = err
			out["kind"] = domain.KindOf(err).String()
			h.logger.Warn(out, "request failed")
			return
		}
		out["rcode"] = resp.RCode().String()
		out["answers"] = len(resp.Answers())
		h.logger.Debug(out, "request resolved")
	}()
	return p
}

// IsVerifyingDNSSEC reports the wrapped handle's answer unchanged.
func (h *LoggingHandle) IsVerifyingDNSSEC() bool {
	return h.next.IsVerifyingDNSSEC()
}

func requestFields(req Request) map[string]any {
	fields := map[string]any{
		"dnssec": req.Options.RequestDNSSEC,
	}
	if req.Message != nil {
		fields["query_id"] = req.Message.Id
	}
	if q, ok := req.Question(); ok {
		fields["name"] = q.Name
		fields["type"] = domain.RRType(q.Qtype).String()
	}
	return fields
}

var _ Handle = (*LoggingHandle)(nil)
