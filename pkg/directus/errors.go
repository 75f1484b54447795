package directus

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx answer from the CMS.
type APIError struct {
	Status  int
	Code    string
	Message string
	Method  string
	Path    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Status, e.Code, msg)
	}
	return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.Status, msg)
}

type errorBody struct {
	Errors []struct {
		Message    string `json:"message"`
		Extensions struct {
			Code string `json:"code"`
		} `json:"extensions"`
	} `json:"errors"`
}

func parseError(status int, method, path string, raw []byte) error {
	e := &APIError{Status: status, Method: method, Path: path}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Errors) > 0 {
		e.Code = body.Errors[0].Extensions.Code
		msgs := make([]string, 0, len(body.Errors))
		for _, item := range body.Errors {
			msgs = append(msgs, item.Message)
		}
		e.Message = strings.Join(msgs, "; ")
	} else {
		e.Message = strings.TrimSpace(string(raw))
		if len(e.Message) > 200 {
			e.Message = e.Message[:200]
		}
	}
	return e
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func IsNotFound(err error) bool { return statusOf(err) == http.StatusNotFound }

// IsForbidden is also true for the CMS habit of answering 403 for records
// that do not exist.
func IsForbidden(err error) bool { return statusOf(err) == http.StatusForbidden }

func IsUnauthorized(err error) bool { return statusOf(err) == http.StatusUnauthorized }

// IsMissing treats both 404 and 403 as "not there"; the CMS hides
// unknown collections and fields behind 403.
func IsMissing(err error) bool { return IsNotFound(err) || IsForbidden(err) }
