package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned by Begin while another fetch is in flight.
	ErrBusy = errors.New("fetch already in flight")
	// ErrNoProvider means the table holds inline data only.
	ErrNoProvider = errors.New("no remote data provider configured")
	// ErrStaleResult is returned when a result does not belong to the
	// in-flight request.
	ErrStaleResult = errors.New("fetch result does not match the in-flight request")
)

// CodeError is a well-formed response carrying a non-success code.
//
// Whether a non-zero code means "no more data" or a real server-side error
// is provider specific, so it is kept distinct from transport failures and
// the table's RejectPolicy decides how it is surfaced.
type CodeError struct {
	Code    int
	Message string
}

func (e *CodeError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider rejected request: code %d", e.Code)
	}
	return fmt.Sprintf("provider rejected request: code %d: %s", e.Code, e.Message)
}

// TransportError wraps failures to obtain or decode a response.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch failed: %v", e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// AsTransport wraps err unless it already is a TransportError.
func AsTransport(err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Cause: err}
}
