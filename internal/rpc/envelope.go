package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	// ErrUnknownOperation is returned when the host does not expose an
	// operation. It signals a programming error, not a runtime condition.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrClosed is returned by transports after Close.
	ErrClosed = errors.New("transport closed")
)

// Request is the envelope sent to the host.
type Request struct {
	Body   json.RawMessage `json:"body"`
	Header Header          `json:"header"`
}

// Header carries correlation and logging metadata for a request.
type Header struct {
	OpKey   string   `json:"op_key"`
	Logging *Logging `json:"logging,omitempty"`
}

// Logging groups host-side logs of a request.
type Logging struct {
	Group string `json:"group"`
}

// Response is the envelope returned by the host.
type Response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Errors []ErrorDetail   `json:"errors,omitempty"`
	OpKey  string          `json:"op_key,omitempty"`
}

// ErrorDetail is a single application error reported by the host.
type ErrorDetail struct {
	Message     string   `json:"message"`
	Description string   `json:"description,omitempty"`
	Code        string   `json:"code,omitempty"`
	Location    []string `json:"location,omitempty"`
}

// APIError is returned when the host answers with status "error".
type APIError struct {
	Op      Operation
	TaskID  string
	Details []ErrorDetail
}

func (e *APIError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s failed", e.Op)
	}
	first := e.Details[0]
	msg := fmt.Sprintf("%s: %s", e.Op, first.Message)
	if d := strings.TrimSpace(first.Description); d != "" {
		msg += " (" + d + ")"
	}
	if n := len(e.Details) - 1; n > 0 {
		msg += fmt.Sprintf(" and %d more", n)
	}
	return msg
}

// Message returns the first error message, or a generic one.
func (e *APIError) Message() string {
	if len(e.Details) == 0 || e.Details[0].Message == "" {
		return "operation failed"
	}
	return e.Details[0].Message
}

// Description returns the first error description, if any.
func (e *APIError) Description() string {
	if len(e.Details) == 0 {
		return ""
	}
	return e.Details[0].Description
}

// Success builds a success response carrying data.
func Success(data any) Response {
	raw, err := json.Marshal(data)
	if err != nil {
		return Failure("encode response", err.Error())
	}
	return Response{Status: StatusSuccess, Data: raw}
}

// Failure builds an error response with a single detail.
func Failure(message, description string) Response {
	return Response{
		Status: StatusError,
		Errors: []ErrorDetail{{Message: message, Description: description}},
	}
}

// Event is a message pushed by the host while an operation runs.
type Event struct {
	Op    Operation       `json:"op"`
	OpKey string          `json:"op_key"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
}
