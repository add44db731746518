package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrManifestNotFound marks references the registry does not have. A 404
// from the manifest endpoint unwraps to it.
var ErrManifestNotFound = errors.New("manifest not found")

// Error is an error response from the distribution API.
type Error struct {
	StatusCode int
	Reference  string
	Message    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("registry: %s: %d: %s", e.Reference, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("registry: %s: %s", e.Reference, http.StatusText(e.StatusCode))
}

// Unwrap maps 404 responses to ErrManifestNotFound.
func (e *Error) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrManifestNotFound
	}
	return nil
}

// ociErrorBody is the error envelope of the distribution API.
type ociErrorBody struct {
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// newError builds an Error from a non-OK response, consuming its body.
func newError(resp *http.Response, reference string) *Error {
	e := &Error{StatusCode: resp.StatusCode, Reference: reference}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return e
	}

	var envelope ociErrorBody
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Errors) > 0 {
		parts := make([]string, 0, len(envelope.Errors))
		for _, oe := range envelope.Errors {
			if oe.Message != "" {
				parts = append(parts, oe.Message)
			} else if oe.Code != "" {
				parts = append(parts, oe.Code)
			}
		}
		e.Message = strings.Join(parts, "; ")
		return e
	}

	e.Message = strings.TrimSpace(string(body))
	return e
}
