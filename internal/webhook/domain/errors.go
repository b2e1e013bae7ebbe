package domain

import "errors"

var (
	// ErrInvalidSignature rejects the delivery before anything is written.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrInvalidEnvelope rejects payloads that are not parseable events.
	ErrInvalidEnvelope = errors.New("invalid webhook envelope")

	// ErrMissingMetadata marks an event whose payload lacks the fields
	// needed to route it to a tenant. Retrying cannot fix it.
	ErrMissingMetadata = errors.New("event metadata missing required fields")

	// ErrInvalidPayload marks an event object that fails to decode.
	ErrInvalidPayload = errors.New("event payload is malformed")
)

// PermanentError wraps a handler failure that no amount of retrying will
// resolve. Events failing permanently are marked processed so the retry
// sweep skips them; the failure stays visible in the ledger.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}
