package marketplace

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
)

// ErrEmptyResponse is returned when the service answers with an empty body
var ErrEmptyResponse = errors.New("empty response received")

// AuthError reports a login rejected by the marketplace
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("login failed with status code %d", e.StatusCode)
}

// RequestError reports a transport failure or an unexpected status code
type RequestError struct {
	Op         string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s request failed (URL: %s): %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("%s request failed: status %d (URL: %s, Body: %s)", e.Op, e.StatusCode, e.URL, e.Body)
}

func (e *RequestError) Unwrap() error { return e.Err }

// DecodeError reports a body that could not be decompressed or parsed
type DecodeError struct {
	StatusCode int
	Header     http.Header
	Raw        []byte
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response (status %d): %v", e.StatusCode, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RawPrefix returns the hex encoding of the first n raw bytes
func (e *DecodeError) RawPrefix(n int) string {
	if len(e.Raw) < n {
		n = len(e.Raw)
	}
	return hex.EncodeToString(e.Raw[:n])
}
