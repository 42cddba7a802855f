package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"
)

// MaxPathParamLength bounds slugs, button types and function names taken from a path
const MaxPathParamLength = 128

// PathParam returns the decoded chi URL parameter name. When the value is
// unusable it writes a 400 response and returns false.
func PathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value, err := decodePathParam(chi.URLParam(r, name))
	if err != nil {
		WriteErrorResponse(w, fmt.Sprintf("invalid %s: %v", name, err), http.StatusBadRequest)
		return "", false
	}
	return value, true
}

func decodePathParam(raw string) (string, error) {
	value, err := url.PathUnescape(raw)
	switch {
	case err != nil:
		return "", errors.New("bad URL encoding")
	case strings.TrimSpace(value) == "":
		return "", errors.New("empty")
	case len(value) > MaxPathParamLength:
		return "", fmt.Errorf("longer than %d bytes", MaxPathParamLength)
	case strings.IndexFunc(value, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0:
		return "", errors.New("contains whitespace or control characters")
	}
	return value, nil
}
