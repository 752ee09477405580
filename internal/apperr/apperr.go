package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a flow failure.
type Kind string

const (
	KindConfiguration      Kind = "configuration"
	KindNetwork            Kind = "network"
	KindValidation         Kind = "validation"
	KindChain              Kind = "chain"
	KindStaleAuthorization Kind = "stale_authorization"
	kindUnknown            Kind = ""
)

// ErrSuperseded is returned when a newer request of the same kind replaced an
// in-flight one. Its result must not be applied.
var ErrSuperseded = errors.New("superseded by a newer request")

// Error is a classified flow failure carrying a user-facing message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	if e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind so errors.Is(err, &Error{Kind: KindChain}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Configuration reports a missing or invalid setting required by a flow.
func Configuration(format string, args ...interface{}) error {
	return newf(KindConfiguration, format, args...)
}

// MissingConfig names the unset keys a flow depends on.
func MissingConfig(keys ...string) error {
	return newf(KindConfiguration, "%s not configured", strings.Join(keys, ", "))
}

// Validation reports malformed user input caught before any network call.
func Validation(format string, args ...interface{}) error {
	return newf(KindValidation, format, args...)
}

// Stale reports a quote or claim signature past its deadline.
func Stale(format string, args ...interface{}) error {
	return newf(KindStaleAuthorization, format, args...)
}

// Network wraps an API transport failure or non-2xx response.
func Network(msg string, err error) error {
	return &Error{Kind: KindNetwork, Msg: msg, Err: err}
}

// Chain wraps a wallet rejection, revert, or wrong-network failure. The
// message is shortened to the first line of the underlying error.
func Chain(msg string, err error) error {
	if err == nil {
		return &Error{Kind: KindChain, Msg: msg}
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Kind == KindChain {
		return err
	}
	return &Error{Kind: KindChain, Msg: msg, Err: errors.New(shortMessage(err))}
}

// ChainMsg builds a chain error with no underlying cause.
func ChainMsg(format string, args ...interface{}) error {
	return newf(KindChain, format, args...)
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return kindUnknown
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the display string for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrSuperseded) {
		return ErrSuperseded.Error()
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Error()
	}
	return shortMessage(err)
}

func shortMessage(err error) string {
	msg := strings.TrimSpace(err.Error())
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		msg = strings.TrimSpace(msg[:idx])
	}
	if msg == "" {
		return "unexpected error"
	}
	return msg
}
