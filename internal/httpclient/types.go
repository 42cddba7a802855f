package httpclient

import (
	"fmt"
	"net/http"
	"strings"
)

// maxErrorBody caps how much of a failed response is kept for the error
const maxErrorBody = 512

// StatusError is returned when the catalog endpoint answers with anything
// other than 200.
type StatusError struct {
	StatusCode int
	URL        string
	// Body is the start of the response body, trimmed of surrounding space
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s answered %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s answered %d %s: %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Retryable reports whether a later attempt may succeed: the server failed
// or asked the host to slow down.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

func newStatusError(statusCode int, url string, body []byte) *StatusError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{
		StatusCode: statusCode,
		URL:        url,
		Body:       strings.TrimSpace(string(body)),
	}
}
