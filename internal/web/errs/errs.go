// Package errs provides the Trusted error type the RPC-facing layer uses
// to attach an HTTP status to an otherwise plain internal error, kept from
// the teacher's business/web/errs unchanged in shape.
package errs

import "errors"

// Response is the JSON body returned for a failed API request.
type Response struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Trusted carries an error the handler expected (bad input, not found,
// insufficient funds) alongside the HTTP status it should produce.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps err with an HTTP status code. Handlers should only use
// this for errors whose cause and message are safe to show a caller.
func NewTrusted(err error, status int) error {
	return &Trusted{Err: err, Status: status}
}

// Error implements the error interface using the wrapped error's message.
func (t *Trusted) Error() string {
	return t.Err.Error()
}

// IsTrusted reports whether err (or something it wraps) is a *Trusted.
func IsTrusted(err error) bool {
	var t *Trusted
	return errors.As(err, &t)
}

// GetTrusted unwraps err into a *Trusted, or returns nil if it isn't one.
func GetTrusted(err error) *Trusted {
	var t *Trusted
	if !errors.As(err, &t) {
		return nil
	}
	return t
}
