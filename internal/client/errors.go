package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Kind classifies a failed request for display.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindValidation
	KindNotFound
	KindBusinessRule
	KindConflict
	KindUnauthorized
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not found"
	case KindBusinessRule:
		return "business rule"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	}
	return "unknown"
}

// Error is a failed request. Status is 0 when no response arrived and for
// validation failures caught before sending.
type Error struct {
	Status  int
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Kind classifies the error.
func (e *Error) Kind() Kind {
	switch {
	case e.Status == 0 && e.Err != nil:
		return KindNetwork
	case len(e.Fields) > 0:
		return KindValidation
	}
	switch e.Status {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusBadRequest:
		return KindBusinessRule
	case http.StatusConflict:
		return KindConflict
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	}
	return KindUnknown
}

// KindOf returns the kind of err, KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return KindUnknown
}

func decodeError(resp *http.Response) *Error {
	var body struct {
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		body.Message = http.StatusText(resp.StatusCode)
	}
	return &Error{Status: resp.StatusCode, Message: body.Message, Fields: body.Fields}
}
