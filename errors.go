package miktos

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Operation names, used in errors, logs and metric labels.
const (
	opAuthenticate       = "authenticate"
	opListProjects       = "list_projects"
	opCreateProject      = "create_project"
	opGenerateText       = "generate_text"
	opGenerateTextStream = "generate_text_stream"
)

// maxErrorBody bounds how much of a failed response body is kept.
const maxErrorBody = 4 << 10

var (
	// ErrAuthentication is matched by errors.Is for any failed
	// authentication request.
	ErrAuthentication = errors.New("authentication failed")

	// ErrMissingAccessToken is returned when a successful authentication
	// response carries no access token.
	ErrMissingAccessToken = errors.New("response has no access token")

	// ErrStreamConsumed is yielded when a TextStream is iterated twice.
	ErrStreamConsumed = errors.New("text stream already consumed")
)

// RequestError is returned when the API responds with a non-2xx status.
type RequestError struct {
	// StatusCode is the HTTP status code of the response.
	StatusCode int

	// Operation names the client call that failed, e.g. "create_project".
	Operation string

	// Body is the beginning of the response body, for debugging.
	Body string
}

func newRequestError(op string, resp *http.Response) *RequestError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &RequestError{
		StatusCode: resp.StatusCode,
		Operation:  op,
		Body:       strings.TrimSpace(string(body)),
	}
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s: unexpected status code: %d: %s", e.Operation, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap returns ErrAuthentication for failed authentication requests.
func (e *RequestError) Unwrap() error {
	if e.Operation == opAuthenticate {
		return ErrAuthentication
	}
	return nil
}

// StatusCode returns the HTTP status code carried by err, if any.
func StatusCode(err error) (int, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode, true
	}
	return 0, false
}
