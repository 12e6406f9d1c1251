package loader

import (
	"errors"
	"fmt"
)

// TransportError reports that a metadata statement could not be executed.
type TransportError struct {
	Statement string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("loader: execute %q: %v", e.Statement, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports that a response could not be decoded into the rows a
// metadata statement is expected to return.
type ParseError struct {
	Statement string
	Reason    string
	Err       error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("loader: parse %q: %s: %v", e.Statement, e.Reason, e.Err)
	}
	return fmt.Sprintf("loader: parse %q: %s", e.Statement, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsTransport reports whether err wraps a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsParse reports whether err wraps a *ParseError.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
