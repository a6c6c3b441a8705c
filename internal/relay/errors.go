package relay

import "errors"

// Kind classifies relay failures. The string value is the error type
// reported to API clients.
type Kind string

const (
	KindValidation Kind = "validation_error"
	KindNotFound   Kind = "not_found_error"
	KindUpstream   Kind = "upstream_error"
	KindInternal   Kind = "internal_error"
)

// Error is returned by every Service operation.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the Kind of err. Errors that did not originate in the relay
// are internal.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindInternal
}

const (
	msgMissingFields = "User ID and message are required"
	msgUnknownUser   = "User ID not found"
	msgNoRecent      = "No recent interactions found"
	msgUpstream      = "Upstream API error"
	msgInternal      = "Unexpected error"
)

func validationError(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func notFoundError(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func upstreamError(err error) error {
	return &Error{Kind: KindUpstream, Message: msgUpstream, Err: err}
}

func internalError(err error) error {
	return &Error{Kind: KindInternal, Message: msgInternal, Err: err}
}
