package domain

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates the closed set of failures surfaced by the dispatch layer.
type ErrorKind int

const (
	// KindMessage is a human readable failure not otherwise categorized.
	KindMessage ErrorKind = iota
	// KindChannelSend means the receiving side of an outbound queue is gone.
	KindChannelSend
	// KindCanceled means a completion was abandoned by its producer before resolution.
	KindCanceled
	// KindCredential is a failure loading a credential bundle.
	KindCredential
)

func (k ErrorKind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindChannelSend:
		return "channel-send"
	case KindCanceled:
		return "canceled"
	case KindCredential:
		return "credential"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// CancelToken is an opaque marker describing why a completion was canceled.
// It is meant for diagnostics only.
type CancelToken string

const (
	CancelDriverShutdown  CancelToken = "driver-shutdown"
	CancelConnectionReset CancelToken = "connection-reset"
	CancelQueueClosed     CancelToken = "queue-closed"
	CancelAbandoned       CancelToken = "abandoned"
	CancelDropped         CancelToken = "producer-dropped"
)

// Sentinels for errors.Is. Any *Error of the matching kind compares equal.
var (
	ErrMessage     = errors.New("dns message error")
	ErrChannelSend = errors.New("dns channel send failure")
	ErrCanceled    = errors.New("dns request canceled")
	ErrCredential  = errors.New("dns credential error")
)

// Error is the typed failure delivered to callers.
type Error struct {
	Kind ErrorKind
	// Msg is the human readable description. For KindMessage it is the
	// complete text, cause included.
	Msg string
	// Token is set for KindCanceled.
	Token CancelToken
	// Path is set for KindCredential and names the bundle that failed.
	Path string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindCanceled && e.Msg == "":
		return fmt.Sprintf("request canceled: %s", e.Token)
	case e.Kind == KindMessage || e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	default:
		return e.Msg + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels so callers never need to type-assert.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrMessage:
		return e.Kind == KindMessage
	case ErrChannelSend:
		return e.Kind == KindChannelSend
	case ErrCanceled:
		return e.Kind == KindCanceled
	case ErrCredential:
		return e.Kind == KindCredential
	}
	return false
}

// Messagef builds a KindMessage error. A trailing %w verb is honored.
func Messagef(format string, args ...any) *Error {
	wrapped := fmt.Errorf(format, args...)
	return &Error{Kind: KindMessage, Msg: wrapped.Error(), Err: errors.Unwrap(wrapped)}
}

// ChannelSendError wraps the failure to enqueue onto an outbound queue.
func ChannelSendError(msg string, cause error) *Error {
	return &Error{Kind: KindChannelSend, Msg: msg, Err: cause}
}

// CanceledError reports a completion whose producer went away without resolving it.
func CanceledError(token CancelToken) *Error {
	return &Error{Kind: KindCanceled, Token: token}
}

// CredentialError reports a failure to load the credential bundle at path.
func CredentialError(op, path string, cause error) *Error {
	return &Error{
		Kind: KindCredential,
		Msg:  fmt.Sprintf("%s %q", op, path),
		Path: path,
		Err:  cause,
	}
}

// KindOf returns the kind of err, or KindMessage for foreign errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindMessage
}
