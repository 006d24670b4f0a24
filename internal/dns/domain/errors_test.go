package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_KindSentinels(t *testing.T) {
	cases := []struct {
		name string
		err  error
		is   error
		kind ErrorKind
	}{
		{"message", Messagef("boom"), ErrMessage, KindMessage},
		{"channel send", ChannelSendError("error sending to channel", io.ErrClosedPipe), ErrChannelSend, KindChannelSend},
		{"canceled", CanceledError(CancelDriverShutdown), ErrCanceled, KindCanceled},
		{"credential", CredentialError("open credential bundle", "/tmp/x.p12", io.EOF), ErrCredential, KindCredential},
	}
	all := []error{ErrMessage, ErrChannelSend, ErrCanceled, ErrCredential}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.err, tc.is)
			assert.Equal(t, tc.kind, KindOf(tc.err))
			for _, other := range all {
				if other != tc.is {
					assert.NotErrorIs(t, tc.err, other)
				}
			}
		})
	}
}

func TestError_Text(t *testing.T) {
	assert.Equal(t, "request canceled: driver-shutdown", CanceledError(CancelDriverShutdown).Error())
	assert.Equal(t,
		"error sending to channel: io: read/write on closed pipe",
		ChannelSendError("error sending to channel", io.ErrClosedPipe).Error())

	cred := CredentialError("failed to open credential bundle", "/etc/dnsxfer/server.p12", io.ErrUnexpectedEOF)
	assert.Contains(t, cred.Error(), "/etc/dnsxfer/server.p12")
	assert.Contains(t, cred.Error(), "unexpected EOF")
	assert.Equal(t, "/etc/dnsxfer/server.p12", cred.Path)
}

func TestMessagef_WrapsCause(t *testing.T) {
	err := Messagef("request timed out after %v: %w", "5s", context.DeadlineExceeded)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "request timed out after 5s: context deadline exceeded", err.Error())
}

func TestKindOf_ForeignAndWrapped(t *testing.T) {
	assert.Equal(t, KindMessage, KindOf(errors.New("plain")))
	wrapped := fmt.Errorf("outer: %w", CanceledError(CancelAbandoned))
	assert.Equal(t, KindCanceled, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, ErrCanceled)
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "message", KindMessage.String())
	assert.Equal(t, "channel-send", KindChannelSend.String())
	assert.Equal(t, "canceled", KindCanceled.String())
	assert.Equal(t, "credential", KindCredential.String())
	assert.Equal(t, "kind(42)", ErrorKind(42).String())
}
