package transport

import (
	"encoding/json"
	"errors"

	"github.com/fastygo/sanctuary/domain"
)

// Envelope is the standard API response wrapper used for both success and error payloads.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  interface{} `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

// ErrorBody is the error payload. Details carry machine-readable context
// such as the offending field or the guard's denial reason.
type ErrorBody struct {
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Warning is a non-fatal problem reported next to a successful result.
type Warning struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Meta accompanies list and write responses.
type Meta struct {
	Count    *int      `json:"count,omitempty"`
	Limit    int       `json:"limit,omitempty"`
	Offset   int       `json:"offset,omitempty"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// NewSuccess returns a success envelope.
func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "success",
		Data:   data,
		Meta:   meta,
	}
}

// NewError returns an error envelope with optional metadata.
func NewError(code string, err interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "error",
		Code:   code,
		Error:  err,
		Meta:   meta,
	}
}

// ErrorBodyOf extracts message and details from a domain error chain.
func ErrorBodyOf(err error) ErrorBody {
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		return ErrorBody{Message: dErr.Message, Details: dErr.Details}
	}
	return ErrorBody{Message: err.Error()}
}

// WarningsOf converts non-nil warnings into their wire form.
func WarningsOf(errs ...error) []Warning {
	var out []Warning
	for _, err := range errs {
		if err == nil {
			continue
		}
		w := Warning{Code: string(domain.ErrCodeInternal), Message: err.Error()}
		var dErr *domain.Error
		if errors.As(err, &dErr) {
			w.Code = string(dErr.Code)
			w.Message = dErr.Message
			w.Details = dErr.Details
		}
		out = append(out, w)
	}
	return out
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}
