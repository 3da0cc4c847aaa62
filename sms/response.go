package sms

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies a Failure.
type ErrorCode string

const (
	// CodeInvalidArguments reports a malformed or incomplete request. No
	// transport or store call is made.
	CodeInvalidArguments ErrorCode = "INVALID_ARGUMENTS"
	// CodeSendError reports a transport rejection or failure.
	CodeSendError ErrorCode = "SMS_SEND_ERROR"
	// CodeReadError reports a store failure.
	CodeReadError ErrorCode = "SMS_READ_ERROR"
)

// Error is the typed failure carried by a Response.
type Error struct {
	Code    ErrorCode
	Message string
	Detail  any
}

// Error returns the formatted error message.
func (e *Error) Error() string {
	if e == nil {
		return "sms: <nil>"
	}
	if e.Message == "" {
		return fmt.Sprintf("sms: %s", e.Code)
	}
	return fmt.Sprintf("sms: %s: %s", e.Code, e.Message)
}

// Outcome tells which variant a Response holds.
type Outcome int

const (
	OutcomeSuccess Outcome = iota + 1
	OutcomeFailure
	// OutcomeNotImplemented marks a request for an unknown method. It is
	// neither a success nor a failure.
	OutcomeNotImplemented
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeNotImplemented:
		return "not_implemented"
	default:
		return "invalid"
	}
}

// Response is the single result of one dispatched request.
type Response struct {
	outcome Outcome
	value   any
	err     *Error
}

// Success returns a successful Response carrying value.
func Success(value any) Response {
	return Response{outcome: OutcomeSuccess, value: value}
}

// Failure returns a failed Response. detail may be nil.
func Failure(code ErrorCode, message string, detail any) Response {
	return Response{outcome: OutcomeFailure, err: &Error{Code: code, Message: message, Detail: detail}}
}

// NotImplemented returns the Response for an unsupported method.
func NotImplemented() Response {
	return Response{outcome: OutcomeNotImplemented}
}

// Outcome returns the variant held by r.
func (r Response) Outcome() Outcome {
	return r.outcome
}

// Value returns the success value, or nil for other outcomes.
func (r Response) Value() any {
	return r.value
}

// Err returns the failure, or nil for other outcomes.
func (r Response) Err() *Error {
	return r.err
}

type wireResponse struct {
	ErrorCode      ErrorCode `json:"errorCode,omitempty"`
	ErrorMessage   *string   `json:"errorMessage,omitempty"`
	ErrorDetail    any       `json:"errorDetail,omitempty"`
	NotImplemented bool      `json:"notImplemented,omitempty"`
}

// MarshalJSON encodes r as {"success": v}, {"errorCode", "errorMessage",
// "errorDetail"?} or {"notImplemented": true}.
func (r Response) MarshalJSON() ([]byte, error) {
	switch r.outcome {
	case OutcomeSuccess:
		// success may legitimately be false or an empty list; keep the key
		return json.Marshal(map[string]any{"success": r.value})
	case OutcomeFailure:
		msg := r.err.Message
		return json.Marshal(wireResponse{ErrorCode: r.err.Code, ErrorMessage: &msg, ErrorDetail: r.err.Detail})
	case OutcomeNotImplemented:
		return json.Marshal(wireResponse{NotImplemented: true})
	default:
		return nil, fmt.Errorf("sms: cannot encode response with outcome %s", r.outcome)
	}
}
