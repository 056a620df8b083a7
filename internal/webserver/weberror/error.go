package weberror

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type (
	// HTTPCoder interface is implemented by application errors.
	HTTPCoder interface {
		// HTTPCode return the HTTP status code for the given error.
		HTTPCode() int
	}

	// Error is the payload rendered in case of error.
	Error struct {
		Code    int                    `json:"-"`
		Message string                 `json:"message"`
		Reason  string                 `json:"reason,omitempty"`
		Details map[string]interface{} `json:"-"`
	}
)

// StatusCode the know HHTP status for the given err. If unknown, it returns 500.
func StatusCode(err error) int {
	if hc, ok := err.(HTTPCoder); ok {
		return hc.HTTPCode()
	}
	return http.StatusInternalServerError
}

// New returns a new Error.
func New(code int, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewDetailed returns a new Error with a machine-checkable reason and details rendered alongside the message.
func NewDetailed(code int, message, reason string, details map[string]interface{}) error {
	return &Error{
		Code:    code,
		Message: message,
		Reason:  reason,
		Details: details,
	}
}

// Error stringifies the error.
func (e *Error) Error() string {
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// HTTPCode returns the HTTP status code.
func (e *Error) HTTPCode() int {
	return e.Code
}

// MarshalJSON flattens the details in the rendered payload.
func (e *Error) MarshalJSON() ([]byte, error) {
	payload := make(map[string]interface{}, len(e.Details)+2)
	for k, v := range e.Details {
		payload[k] = v
	}
	payload["success"] = false
	payload["message"] = e.Message
	if e.Reason != "" {
		payload["reason"] = e.Reason
	}
	return json.Marshal(payload)
}
