// Package exchange drives a single DNS connection on behalf of any number of
// xfer handles. It owns the socket, rewrites message ids so concurrent
// callers never collide, and settles every request exactly once.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/miekg/dns"

	"github.com/haukened/dnsxfer/internal/dns/common/clock"
	"github.com/haukened/dnsxfer/internal/dns/common/log"
	"github.com/haukened/dnsxfer/internal/dns/domain"
	"github.com/haukened/dnsxfer/internal/dns/xfer"
)

// Error message constants for consistent error handling
const (
	errConnRequired    = "a connection is required"
	errRetiredIDs      = "retired id window must be between 0 and %d, got %d"
	errAlreadyRunning  = "driver is already running"
	errNoMessage       = "request has no message"
	errNoQuestion      = "request has no question"
	errNoFreeID        = "no free message id after %d attempts"
	errWriteFailed     = "write failed: %w"
	errQueryTimeout    = "query %s timed out after %v: %w"
	errConnectionReset = "connection reset: %w"
)

const (
	// DefaultTimeout bounds how long a request may stay in flight.
	DefaultTimeout = 5 * time.Second
	// DefaultRetiredIDs is the number of recently completed ids kept out of
	// circulation so late answers cannot match a newer request.
	DefaultRetiredIDs = 1024
	// MaxRetiredIDs keeps at least three quarters of the id space free.
	MaxRetiredIDs = 16384

	idAttempts = 64
)

// Options configures a Driver.
type Options struct {
	// required parameters
	Conn net.Conn

	Timeout    time.Duration
	RetiredIDs int
	// SweepInterval is how often expired requests are looked for.
	// Defaults to a quarter of Timeout.
	SweepInterval time.Duration

	// options to inject for testing purposes
	Logger log.Logger
	Clock  clock.Clock
	IDs    xfer.IDSource
}

// exchange is one request on the wire.
type exchange struct {
	responder  *xfer.Responder
	originalID uint16
	question   dns.Question
	sent       time.Time
}

// Driver is the transport end of the dispatch queues.
type Driver struct {
	conn    *dns.Conn
	logger  log.Logger
	clock   clock.Clock
	ids     xfer.IDSource
	timeout time.Duration
	sweep   time.Duration

	messages *xfer.Queue[xfer.Envelope]
	streams  *xfer.Queue[[]byte]

	mu       sync.Mutex
	inflight map[uint16]*exchange
	retired  *lru.Cache[uint16, struct{}]
	closed   bool

	running  atomic.Bool
	stopOnce sync.Once
	stopped  chan struct{}
}

// New builds a Driver around opts.Conn. The driver does nothing until Run.
func New(opts Options) (*Driver, error) {
	if opts.Conn == nil {
		return nil, errors.New(errConnRequired)
	}
	if opts.RetiredIDs < 0 || opts.RetiredIDs > MaxRetiredIDs {
		return nil, fmt.Errorf(errRetiredIDs, MaxRetiredIDs, opts.RetiredIDs)
	}
	if opts.RetiredIDs == 0 {
		opts.RetiredIDs = DefaultRetiredIDs
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = opts.Timeout / 4
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.IDs == nil {
		opts.IDs = xfer.RandomIDs
	}

	retired, err := lru.New[uint16, struct{}](opts.RetiredIDs)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{"component": "exchange"}
	if addr := opts.Conn.RemoteAddr(); addr != nil {
		fields["remote"] = addr.String()
	}

	return &Driver{
		conn:     &dns.Conn{Conn: opts.Conn, UDPSize: dns.DefaultMsgSize},
		logger:   log.With(log.OrNoop(opts.Logger), fields),
		clock:    opts.Clock,
		ids:      opts.IDs,
		timeout:  opts.Timeout,
		sweep:    opts.SweepInterval,
		messages: xfer.NewQueue[xfer.Envelope](),
		streams:  xfer.NewQueue[[]byte](),
		inflight: make(map[uint16]*exchange),
		retired:  retired,
		stopped:  make(chan struct{}),
	}, nil
}

// Handle returns a dispatcher feeding this driver.
func (d *Driver) Handle() xfer.BasicHandle {
	return xfer.NewBasicHandle(d.messages)
}

// StreamHandle returns a sink for pre-serialized messages. They are written
// as-is and answers to them are not tracked.
func (d *Driver) StreamHandle() xfer.StreamHandle {
	return xfer.NewStreamHandle(d.streams)
}

// InFlight reports the number of requests awaiting an answer.
func (d *Driver) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}

// Run services the connection until ctx is done, the connection fails or
// Close is called. Every request still queued or in flight is canceled
// before Run returns. A driver runs at most once.
func (d *Driver) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New(errAlreadyRunning)
	}

	readErr := make(chan error, 1)
	go func() { readErr <- d.readLoop() }()

	ticker := time.NewTicker(d.sweep)
	defer ticker.Stop()

	d.logger.Debug(map[string]any{"timeout": d.timeout}, "driver started")
	for {
		select {
		case <-ctx.Done():
			d.shutdown(domain.CancelDriverShutdown)
			return ctx.Err()
		case <-d.stopped:
			return nil
		case err := <-readErr:
			select {
			case <-d.stopped:
				return nil
			default:
			}
			d.logger.Warn(map[string]any{"error": err}, "connection lost")
			d.shutdown(domain.CancelConnectionReset)
			return fmt.Errorf(errConnectionReset, err)
		case <-d.messages.Ready():
			for env, ok := d.messages.TryPop(); ok; env, ok = d.messages.TryPop() {
				d.dispatch(env)
			}
		case <-d.streams.Ready():
			for buf, ok := d.streams.TryPop(); ok; buf, ok = d.streams.TryPop() {
				d.writeRaw(buf)
			}
		case <-ticker.C:
			d.expire()
		}
	}
}

// Close stops the driver and releases the connection. Safe to call more
// than once and without Run.
func (d *Driver) Close() error {
	d.shutdown(domain.CancelDriverShutdown)
	return nil
}

func (d *Driver) dispatch(env xfer.Envelope) {
	if env.Responder == nil || env.Responder.Settled() {
		return
	}
	req := env.Request
	if req.Message == nil {
		env.Responder.Fail(domain.Messagef(errNoMessage))
		return
	}
	q, ok := req.Question()
	if !ok {
		env.Responder.Fail(domain.Messagef(errNoQuestion))
		return
	}

	msg := req.Message.Copy()
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		env.Responder.Cancel(domain.CancelDriverShutdown)
		return
	}
	id, err := d.allocateID()
	if err != nil {
		d.mu.Unlock()
		env.Responder.Fail(err)
		return
	}
	msg.Id = id
	d.inflight[id] = &exchange{
		responder:  env.Responder,
		originalID: req.Message.Id,
		question:   q,
		sent:       d.clock.Now(),
	}
	d.mu.Unlock()

	if err := d.conn.WriteMsg(msg); err != nil {
		d.release(id)
		env.Responder.Fail(domain.Messagef(errWriteFailed, err))
		return
	}
	d.logger.Debug(map[string]any{"id": id, "original_id": req.Message.Id, "name": q.Name}, "request written")
}

// allocateID picks an id that is neither in flight nor recently retired.
// d.mu must be held.
func (d *Driver) allocateID() (uint16, error) {
	for i := 0; i < idAttempts; i++ {
		id := d.ids.NextID()
		if _, busy := d.inflight[id]; busy {
			continue
		}
		if d.retired.Contains(id) {
			continue
		}
		return id, nil
	}
	return 0, domain.Messagef(errNoFreeID, idAttempts)
}

// release forgets id and keeps it out of circulation for a while.
func (d *Driver) release(id uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.retireLocked(id)
}

func (d *Driver) retireLocked(id uint16) {
	delete(d.inflight, id)
	d.retired.Add(id, struct{}{})
}

func (d *Driver) writeRaw(buf []byte) {
	if _, err := d.conn.Write(buf); err != nil {
		d.logger.Warn(map[string]any{"error": err, "bytes": len(buf)}, "raw write failed")
	}
}

func (d *Driver) readLoop() error {
	for {
		buf, err := d.conn.ReadMsgHeader(nil)
		if err != nil {
			return err
		}
		msg := new(dns.Msg)
		if err := msg.Unpack(buf); err != nil {
			d.logger.Warn(map[string]any{"error": err, "bytes": len(buf)}, "dropping malformed response")
			continue
		}
		d.deliver(msg)
	}
}

func (d *Driver) deliver(msg *dns.Msg) {
	d.mu.Lock()
	ex, ok := d.inflight[msg.Id]
	if !ok {
		d.mu.Unlock()
		d.logger.Debug(map[string]any{"id": msg.Id}, "dropping unsolicited response")
		return
	}
	// Error replies such as FORMERR may omit the question; the id alone matches those.
	if len(msg.Question) > 0 && !sameQuestion(msg.Question[0], ex.question) {
		d.mu.Unlock()
		d.logger.Warn(map[string]any{"id": msg.Id, "expected": ex.question.String()}, "dropping response with mismatched question")
		return
	}
	d.retireLocked(msg.Id)
	d.mu.Unlock()

	d.logger.Debug(map[string]any{
		"id":    msg.Id,
		"rcode": dns.RcodeToString[msg.Rcode],
		"rtt":   clock.Since(d.clock, ex.sent),
	}, "response received")
	msg.Id = ex.originalID
	ex.responder.Resolve(&xfer.Response{Message: msg})
}

func sameQuestion(a, b dns.Question) bool {
	return a.Qtype == b.Qtype && a.Qclass == b.Qclass && strings.EqualFold(a.Name, b.Name)
}

// expire fails requests that outlived the timeout and forgets abandoned ones.
func (d *Driver) expire() {
	now := d.clock.Now()
	var expired []*exchange

	d.mu.Lock()
	for id, ex := range d.inflight {
		switch {
		case ex.responder.Settled():
			d.retireLocked(id)
		case now.Sub(ex.sent) >= d.timeout:
			d.retireLocked(id)
			expired = append(expired, ex)
		}
	}
	d.mu.Unlock()

	for _, ex := range expired {
		ex.responder.Fail(domain.Messagef(errQueryTimeout, ex.question.Name, d.timeout, context.DeadlineExceeded))
	}
}

// shutdown tears the driver down once. Queued envelopes were never sent and
// are canceled as driver shutdown; in-flight ones carry token.
func (d *Driver) shutdown(token domain.CancelToken) {
	d.stopOnce.Do(func() {
		close(d.stopped)
		undelivered := d.messages.Close()
		d.streams.Close()
		_ = d.conn.Close()

		d.mu.Lock()
		d.closed = true
		inflight := d.inflight
		d.inflight = make(map[uint16]*exchange)
		d.mu.Unlock()

		for _, env := range undelivered {
			if env.Responder != nil {
				env.Responder.Cancel(domain.CancelDriverShutdown)
			}
		}
		for _, ex := range inflight {
			ex.responder.Cancel(token)
		}
		d.logger.Debug(map[string]any{
			"queued":    len(undelivered),
			"in_flight": len(inflight),
			"token":     string(token),
		}, "driver stopped")
	})
}
