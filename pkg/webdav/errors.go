package webdav

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ErrEmptyPropfind is returned when a PROPFIND response has no body.
var ErrEmptyPropfind = errors.New("Empty response on PROPFIND")

// StatusError is returned for any response with a status code >= 400.
type StatusError struct {
	StatusCode    int
	StatusMessage string
}

func (e *StatusError) Error() string {
	return "WebDAV request error"
}

func newStatusError(resp *http.Response) *StatusError {
	message := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &StatusError{
		StatusCode:    resp.StatusCode,
		StatusMessage: message,
	}
}

// UnsupportedMethodsError is returned by Connect when the server does not
// allow every required method.
type UnsupportedMethodsError struct {
	Methods []string
}

func (e *UnsupportedMethodsError) Error() string {
	return fmt.Sprintf("Unsupported HTTP methods: %s", strings.Join(e.Methods, ", "))
}
