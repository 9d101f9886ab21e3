package speedtest

import (
	"context"
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// Kind classifies why a measurement failed.
type Kind int

const (
	// KindTransport is a connection, send or receive failure, or a non-success
	// status where one is required.
	KindTransport Kind = iota
	// KindTimeout is an exceeded request deadline.
	KindTimeout
	// KindInvalidResponse is a response that arrived but cannot be used.
	KindInvalidResponse
	// KindCancelled is a run aborted by the caller.
	KindCancelled
	// KindOther covers everything else.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport failure"
	case KindTimeout:
		return "timeout"
	case KindInvalidResponse:
		return "invalid response"
	case KindCancelled:
		return "cancelled"
	default:
		return "error"
	}
}

type Error struct {
	Kind Kind
	// Op names the phase step that failed, e.g. "download warmup".
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether any error in err's chain is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// requestError classifies a failed HTTP exchange. ctx is the context the
// caller controls; its cancellation takes precedence over everything else.
func requestError(ctx context.Context, op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return newError(KindCancelled, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(KindTimeout, op, err)
	}
	return newError(KindTransport, op, err)
}

func statusError(op string, status int) *Error {
	return newError(KindTransport, op, errors.Errorf("unexpected status %d", status))
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
