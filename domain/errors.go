package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// NormalizationKind enumerates why audio could not be normalized.
type NormalizationKind string

const (
	TooSmall          NormalizationKind = "too_small"
	TooShort          NormalizationKind = "too_short"
	UnsupportedFormat NormalizationKind = "unsupported_format"
	DecodeError       NormalizationKind = "decode_error"
)

// NormalizationFailure is returned by the audio normalizer.
type NormalizationFailure struct {
	Kind   NormalizationKind
	Format AudioFormat
	Err    error
}

func (e *NormalizationFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("normalize audio (%s): %s: %v", e.Format, e.Kind, e.Err)
	}
	return fmt.Sprintf("normalize audio (%s): %s", e.Format, e.Kind)
}

func (e *NormalizationFailure) Unwrap() error { return e.Err }

// UserMessage is the text shown to the client for this failure.
func (e *NormalizationFailure) UserMessage() string {
	switch e.Kind {
	case TooSmall:
		return "Audio data is too small, please record a longer message"
	case TooShort:
		return "Audio too short or silent"
	case UnsupportedFormat:
		return "Unsupported audio format"
	default:
		return "Audio could not be decoded, please try again"
	}
}

// RemoteKind enumerates failures of remote collaborators.
type RemoteKind string

const (
	RemoteTimeout         RemoteKind = "timeout"
	RemoteConnectionError RemoteKind = "connection_error"
	RemoteServerError     RemoteKind = "server_error"
	RemoteEmptyResult     RemoteKind = "empty_result"
)

// RemoteFailure is returned by transcriber, responder and synthesizer adapters.
type RemoteFailure struct {
	Kind    RemoteKind
	Service string
	Err     error
}

func NewRemoteFailure(service string, kind RemoteKind, err error) *RemoteFailure {
	return &RemoteFailure{Kind: kind, Service: service, Err: err}
}

func (e *RemoteFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Service, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Kind)
}

func (e *RemoteFailure) Unwrap() error { return e.Err }

// LowConfidenceError reports a transcript whose confidence is below the floor.
type LowConfidenceError struct {
	Transcript string
	Confidence float64
}

func (e *LowConfidenceError) Error() string {
	return fmt.Sprintf("transcript confidence %.2f below floor", e.Confidence)
}

func (e *LowConfidenceError) UserMessage() string {
	return "Poor audio quality, please try again"
}

// ProtocolError reports a frame that does not match the wire protocol.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "protocol error: " + e.Reason }

func (e *ProtocolError) UserMessage() string { return e.Reason }

// ClassifyRemoteError wraps err into a RemoteFailure. Errors that already
// carry a RemoteFailure are returned unchanged.
func ClassifyRemoteError(service string, err error) *RemoteFailure {
	if err == nil {
		return nil
	}
	var rf *RemoteFailure
	if errors.As(err, &rf) {
		return rf
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewRemoteFailure(service, RemoteTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewRemoteFailure(service, RemoteTimeout, err)
	}

	var urlErr *url.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.As(err, &urlErr) {
		return NewRemoteFailure(service, RemoteConnectionError, err)
	}
	return NewRemoteFailure(service, RemoteServerError, err)
}

// UserMessage returns a client-facing text for any pipeline error.
func UserMessage(err error) string {
	var msg interface{ UserMessage() string }
	if errors.As(err, &msg) {
		return msg.UserMessage()
	}
	var rf *RemoteFailure
	if errors.As(err, &rf) {
		return rf.userMessage()
	}
	return "An unexpected error occurred, please try again"
}

func (e *RemoteFailure) userMessage() string {
	switch e.Kind {
	case RemoteTimeout:
		return fmt.Sprintf("The %s service is temporarily unavailable (timed out), please try again later", e.Service)
	case RemoteConnectionError:
		return fmt.Sprintf("Could not reach the %s service, please try again later", e.Service)
	case RemoteEmptyResult:
		return fmt.Sprintf("The %s service returned no result, please try again", e.Service)
	default:
		return fmt.Sprintf("The %s service is currently unavailable, please try again later", e.Service)
	}
}

// softFailure is a recoverable outcome the user can fix by trying again.
type softFailure string

func (e softFailure) Error() string       { return string(e) }
func (e softFailure) UserMessage() string { return string(e) }

// ErrNoSpeech reports a transcript with no words in it.
var ErrNoSpeech error = softFailure("No speech detected, please try again")
