package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/remerge-dev/remerge/internal/protocol"
)

// httpStatusError is a non-2xx response.
type httpStatusError struct {
	code int
	body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

// encodeError marks a request that could not be materialized; terminal,
// nothing the server could change.
type encodeError struct {
	err error
}

func (e *encodeError) Error() string { return "encode request: " + e.err.Error() }

func (e *encodeError) Unwrap() error { return e.err }

// classify buckets an attempt error and decides whether the endpoint's
// retry policy applies. Decode errors are never retried: the server
// answered, the content is unusable. HTTP-level trouble follows status
// semantics; everything reachable over the network (connection errors,
// timeouts, 5xx, 429) is retryable.
func classify(err error) (FailureKind, bool) {
	switch {
	case err == nil:
		return "", false

	case protocol.IsDecodeError(err):
		return FailDecode, false

	case errors.Is(err, context.Canceled):
		return FailCanceled, false

	case errors.Is(err, context.DeadlineExceeded):
		return FailTimeout, true
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.code == http.StatusTooManyRequests:
			return FailNetwork, true
		case statusErr.code == http.StatusUnauthorized || statusErr.code == http.StatusForbidden:
			return FailAuth, false
		case statusErr.code >= 500:
			return FailNetwork, true
		default:
			return FailClient, false
		}
	}

	var encErr *encodeError
	if errors.As(err, &encErr) {
		return FailClient, false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailTimeout, true
	}
	return FailNetwork, true
}
