package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/jobswipe/jobswipe/internal/utils"
)

// Error kinds. Use errors.Is against these to classify an *Error.
var (
	ErrNetwork    = errors.New("network error")
	ErrAuth       = errors.New("authentication error")
	ErrValidation = errors.New("validation error")
	ErrUnknown    = errors.New("unknown error")
)

const maxBodyInMessage = 300

// Error is returned for every failed call. Status is zero when the request
// never produced a response.
type Error struct {
	Method string
	Path   string
	Status int
	Data   any
	Err    error
}

func newTransportError(method, path string, err error) *Error {
	return &Error{Method: method, Path: path, Err: err}
}

func newStatusError(method, path string, status int, data any) *Error {
	return &Error{Method: method, Path: path, Status: status, Data: data}
}

// Kind returns one of ErrNetwork, ErrAuth, ErrValidation or ErrUnknown.
func (e *Error) Kind() error {
	switch {
	case e.Status == 0:
		return ErrNetwork
	case e.Status == http.StatusUnauthorized:
		return ErrAuth
	case e.Status >= 400 && e.Status < 500:
		if _, ok := e.Data.(map[string]any); ok {
			return ErrValidation
		}
		return ErrUnknown
	default:
		return ErrUnknown
	}
}

func (e *Error) Is(target error) bool {
	return target == e.Kind()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	prefix := fmt.Sprintf("%s %s", e.Method, e.Path)

	switch e.Kind() {
	case ErrNetwork:
		return fmt.Sprintf("%s: %s: %v", prefix, ErrNetwork, e.Err)
	case ErrValidation, ErrAuth:
		if fields := e.Fields(); len(fields) > 0 {
			return fmt.Sprintf("%s failed (%d): %s", prefix, e.Status, formatFields(fields))
		}
	}

	return fmt.Sprintf("%s failed (%d): %s", prefix, e.Status, utils.TruncateForLog(e.raw(), maxBodyInMessage))
}

// Fields returns backend messages keyed by field name. Non-field messages
// such as "detail" are kept under their own key.
func (e *Error) Fields() map[string][]string {
	data, ok := e.Data.(map[string]any)
	if !ok {
		return nil
	}

	fields := make(map[string][]string, len(data))
	for key, value := range data {
		if msgs := messages(value); len(msgs) > 0 {
			fields[key] = msgs
		}
	}

	return fields
}

// Detail returns the backend's "detail" message when present.
func (e *Error) Detail() string {
	if msgs := e.Fields()["detail"]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

func (e *Error) raw() string {
	switch v := e.Data.(type) {
	case nil:
		return http.StatusText(e.Status)
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

func messages(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, messages(item)...)
		}
		return out
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return []string{fmt.Sprintf("%v", val)}
		}
		return []string{string(data)}
	}
}

func formatFields(fields map[string][]string) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", key, strings.Join(fields[key], " ")))
	}

	return strings.Join(parts, "; ")
}

// AsError unwraps err into *Error when possible.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
