package xfer

import (
	"context"
	"runtime"
	"sync"

	"github.com/haukened/dnsxfer/internal/dns/domain"
)

// completion is the shared state of a one-shot slot. The first settle wins;
// every later attempt is ignored.
type completion struct {
	once sync.Once
	done chan struct{}
	resp *Response
	err  error
}

func (c *completion) settle(resp *Response, err error) bool {
	won := false
	c.once.Do(func() {
		c.resp, c.err = resp, err
		close(c.done)
		won = true
	})
	return won
}

// Responder is the producer half of a completion slot, owned by whoever
// performs the exchange. If it becomes unreachable without having been
// settled, the consumer observes a KindCanceled failure.
type Responder struct {
	c *completion
}

// Pending is the consumer half of a completion slot, returned to callers.
type Pending struct {
	c *completion
}

// NewCompletion allocates a fresh slot and returns both halves.
func NewCompletion() (*Responder, *Pending) {
	c := &completion{done: make(chan struct{})}
	r := &Responder{c: c}
	runtime.AddCleanup(r, func(c *completion) {
		c.settle(nil, domain.CanceledError(domain.CancelDropped))
	}, c)
	return r, &Pending{c: c}
}

// Resolved returns a slot that is already settled with resp or err.
func Resolved(resp *Response, err error) *Pending {
	c := &completion{done: make(chan struct{})}
	c.settle(resp, err)
	return &Pending{c: c}
}

// Resolve settles the slot with a response. A nil response is a failure.
// It reports whether this call settled the slot.
func (r *Responder) Resolve(resp *Response) bool {
	if resp == nil || resp.Message == nil {
		return r.c.settle(nil, domain.Messagef("driver resolved request with an empty response"))
	}
	return r.c.settle(resp, nil)
}

// Fail settles the slot with err. It reports whether this call settled the slot.
func (r *Responder) Fail(err error) bool {
	if err == nil {
		err = domain.Messagef("driver failed request without an error")
	}
	return r.c.settle(nil, err)
}

// Cancel settles the slot with a KindCanceled failure carrying token.
func (r *Responder) Cancel(token domain.CancelToken) bool {
	return r.c.settle(nil, domain.CanceledError(token))
}

// Settled reports whether an outcome has been written, by this responder or
// because the caller abandoned the request.
func (r *Responder) Settled() bool {
	select {
	case <-r.c.done:
		return true
	default:
		return false
	}
}

// Done is closed once the slot is settled.
func (p *Pending) Done() <-chan struct{} {
	return p.c.done
}

// Result blocks until the slot is settled and returns its outcome. Unlike
// Wait it never abandons the request.
func (p *Pending) Result() (*Response, error) {
	<-p.c.done
	return p.c.resp, p.c.err
}

// Wait blocks until the slot is settled or ctx is done. When ctx ends first
// the request is abandoned: the slot is settled with a KindCanceled failure
// wrapping ctx.Err(), unless the producer won the race, in which case its
// outcome is returned. Either way the outcome is final.
func (p *Pending) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-p.c.done:
	case <-ctx.Done():
		p.c.settle(nil, &domain.Error{
			Kind:  domain.KindCanceled,
			Token: domain.CancelAbandoned,
			Err:   ctx.Err(),
		})
	}
	return p.c.resp, p.c.err
}

// Abandon gives up interest in the outcome. The producer's later attempt to
// settle is ignored and drivers may skip the exchange entirely.
func (p *Pending) Abandon() bool {
	return p.c.settle(nil, domain.CanceledError(domain.CancelAbandoned))
}

// Then returns a slot settled with fn applied to p's response. Failures of p
// pass through untouched, and abandoning the returned slot abandons p.
func Then(p *Pending, fn func(*Response) (*Response, error)) *Pending {
	r, out := NewCompletion()
	go func() {
		select {
		case <-p.Done():
		case <-out.Done():
			p.Abandon()
			return
		}
		resp, err := p.Result()
		if err == nil {
			resp, err = fn(resp)
		}
		if err != nil {
			r.Fail(err)
			return
		}
		r.Resolve(resp)
	}()
	return out
}
