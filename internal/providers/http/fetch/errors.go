package fetch

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/GriffinCanCode/cookiefetch/internal/domain/session"
)

// Kind classifies fetch failures.
type Kind int

const (
	KindInvalidURL Kind = iota + 1
	KindNotAllowed
	KindInvalidCookieDomain
	KindInvalidCookie
	KindInvalidHeader
	KindInvalidMethod
	KindTransport
	KindSessionUnestablished
	KindSessionConsumed
	KindInvalidSessionID
)

var kindNames = map[Kind]string{
	KindInvalidURL:           "InvalidUrl",
	KindNotAllowed:           "NotAllowed",
	KindInvalidCookieDomain:  "InvalidCookieDomain",
	KindInvalidCookie:        "InvalidCookie",
	KindInvalidHeader:        "InvalidHeader",
	KindInvalidMethod:        "InvalidMethod",
	KindTransport:            "Transport",
	KindSessionUnestablished: "SessionUnestablished",
	KindSessionConsumed:      "SessionConsumed",
	KindInvalidSessionID:     "InvalidSessionId",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrInvalidURL           = &Error{Kind: KindInvalidURL}
	ErrNotAllowed           = &Error{Kind: KindNotAllowed}
	ErrInvalidCookieDomain  = &Error{Kind: KindInvalidCookieDomain}
	ErrInvalidCookie        = &Error{Kind: KindInvalidCookie}
	ErrInvalidHeader        = &Error{Kind: KindInvalidHeader}
	ErrInvalidMethod        = &Error{Kind: KindInvalidMethod}
	ErrTransport            = &Error{Kind: KindTransport}
	ErrSessionUnestablished = &Error{Kind: KindSessionUnestablished}
	ErrSessionConsumed      = &Error{Kind: KindSessionConsumed}
	ErrInvalidSessionID     = &Error{Kind: KindInvalidSessionID}
)

// Error is the single error type returned by Fetch.
type Error struct {
	Kind Kind
	// URL is set for NotAllowed and, when known, Transport.
	URL string
	// Domain is set for cookie errors.
	Domain string
	// Name is set for InvalidCookie and InvalidHeader.
	Name string
	Err  error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindInvalidURL:
		msg = "invalid url"
	case KindNotAllowed:
		msg = "url not allowed on the configured scope"
	case KindInvalidCookieDomain:
		msg = fmt.Sprintf("invalid cookie domain `%s`", e.Domain)
	case KindInvalidCookie:
		msg = fmt.Sprintf("invalid cookie `%s` of domain `%s`", e.Name, e.Domain)
	case KindInvalidHeader:
		msg = fmt.Sprintf("invalid header `%s`", e.Name)
	case KindInvalidMethod:
		msg = "invalid method"
	case KindTransport:
		if e.Err != nil {
			return e.Err.Error()
		}
		msg = "transport error"
	default:
		msg = e.Kind.String()
	}
	if e.Err != nil && e.Kind != KindTransport {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// ErrorBody is the JSON shape of an Error.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
	Domain  string `json:"domain,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Body returns the JSON shape of e.
func (e *Error) Body() ErrorBody {
	return ErrorBody{
		Kind:    e.Kind.String(),
		Message: e.Error(),
		URL:     e.URL,
		Domain:  e.Domain,
		Name:    e.Name,
	}
}

// transportError wraps a failed exchange, keeping the URL the transport was
// talking to when it failed.
func transportError(err error, fallbackURL string) *Error {
	e := &Error{Kind: KindTransport, URL: fallbackURL, Err: err}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		e.URL = uerr.URL
	}
	return e
}

func sessionError(err error) *Error {
	kind := KindSessionUnestablished
	switch {
	case errors.Is(err, session.ErrConsumed):
		kind = KindSessionConsumed
	case errors.Is(err, session.ErrInvalidSessionID):
		kind = KindInvalidSessionID
	}
	return &Error{Kind: kind, Err: err}
}
