package xfer

import (
	"github.com/haukened/dnsxfer/internal/dns/domain"
)

const errStreamSend = "stream send failed"

// StreamSink accepts already-serialized messages for delivery.
type StreamSink interface {
	// Send enqueues buf without blocking. It fails only when the consumer
	// of the underlying queue has gone away.
	Send(buf []byte) error
}

// StreamHandle is a StreamSink over an unbounded byte queue drained by a
// transport driver. Copies share the queue.
type StreamHandle struct {
	sender *Queue[[]byte]
}

// NewStreamHandle wraps sender.
func NewStreamHandle(sender *Queue[[]byte]) StreamHandle {
	return StreamHandle{sender: sender}
}

// Send queues buf for the driver to write verbatim to the stream.
func (h StreamHandle) Send(buf []byte) error {
	if err := h.sender.Push(buf); err != nil {
		return domain.ChannelSendError(errStreamSend, err)
	}
	return nil
}

var _ StreamSink = StreamHandle{}
