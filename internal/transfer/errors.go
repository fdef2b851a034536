package transfer

import (
	"errors"
	"fmt"
)

// ErrStalled is wrapped by a stream TransportError when the body delivers no
// data within the connect timeout.
var ErrStalled = errors.New("read timed out")

// Kind classifies a failed transfer attempt. Every kind is terminal for the
// attempt; the engine never retries.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindHTTPStatus   Kind = "http_status"
	KindSizeUnknown  Kind = "size_unknown"
	KindTransport    Kind = "transport"
	KindStorage      Kind = "storage"
	KindUnknown      Kind = "unknown"
)

// InvalidInputError is returned before any I/O when the request URL is not a
// well-formed http(s) URL.
type InvalidInputError struct {
	URL    string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid input %q: %s", e.URL, e.Reason)
	}

	return fmt.Sprintf("invalid URL %q", e.URL)
}

// HTTPStatusError represents a non-2xx response.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Status     string // e.g. "404 Not Found"
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %s for url: %s", e.Status, e.URL)
}

// SizeUnknownError is returned when the server omits Content-Length or
// declares it as zero.
type SizeUnknownError struct {
	URL string
}

func (e *SizeUnknownError) Error() string {
	return fmt.Sprintf("unable to determine the file size of %s", e.URL)
}

// TransportError represents a network-layer failure while requesting or
// streaming the body.
type TransportError struct {
	Operation string // "request" or "stream"
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StorageError represents a failure to open or write the destination file.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error for '%s': %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, looking through wrapped errors.
func KindOf(err error) Kind {
	var (
		invalidErr   *InvalidInputError
		statusErr    *HTTPStatusError
		sizeErr      *SizeUnknownError
		transportErr *TransportError
		storageErr   *StorageError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &invalidErr):
		return KindInvalidInput
	case errors.As(err, &statusErr):
		return KindHTTPStatus
	case errors.As(err, &sizeErr):
		return KindSizeUnknown
	case errors.As(err, &transportErr):
		return KindTransport
	case errors.As(err, &storageErr):
		return KindStorage
	default:
		return KindUnknown
	}
}
