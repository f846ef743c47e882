package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/FranksOps/quill/pkg/httpclient"
)

// Kind classifies why a fetch failed.
type Kind string

const (
	KindStatus    Kind = "status"    // non-2xx response
	KindChallenge Kind = "challenge" // bot-protection wall (a non-2xx subtype)
	KindTimeout   Kind = "timeout"
	KindRedirect  Kind = "redirect" // redirect budget exhausted
	KindNetwork   Kind = "network"  // DNS, connect, TLS, read failures
	KindParse     Kind = "parse"
)

// Error is returned by every failed Fetcher call.
type Error struct {
	URL        string
	Kind       Kind
	StatusCode int
	// Source names the protection vendor when Kind is KindChallenge.
	Source string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	case KindChallenge:
		return fmt.Sprintf("fetch %s: blocked by %s (status %d)", e.URL, e.Source, e.StatusCode)
	default:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// classify wraps a transport-level error from the HTTP client.
func classify(rawURL string, err error) *Error {
	kind := KindNetwork
	var netErr net.Error
	switch {
	case errors.Is(err, httpclient.ErrTooManyRedirects):
		kind = KindRedirect
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &Error{URL: rawURL, Kind: kind, Err: err}
}
