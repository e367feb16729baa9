package types

import (
	"github.com/pkg/errors"
)

// ReasonCode classifies a failed broker operation.
// Numeric values follow AMQP 0-9-1 reply codes so clients can map them directly.
type ReasonCode uint16

// nolint: golint
const (
	CodeSuccess            ReasonCode = 200
	CodeNoRoute            ReasonCode = 312
	CodeConnectionForced   ReasonCode = 320
	CodeNotFound           ReasonCode = 404
	CodeResourceLocked     ReasonCode = 405
	CodePreconditionFailed ReasonCode = 406
	CodeInternalError      ReasonCode = 500
	CodeFrameError         ReasonCode = 501
	CodeSyntaxError        ReasonCode = 502
	CodeCommandInvalid     ReasonCode = 503
	CodeChannelError       ReasonCode = 504
	CodeNotAllowed         ReasonCode = 530
)

var codeDesc = map[ReasonCode]string{
	CodeSuccess:            "success",
	CodeNoRoute:            "no route",
	CodeConnectionForced:   "connection forced",
	CodeNotFound:           "not found",
	CodeResourceLocked:     "resource locked",
	CodePreconditionFailed: "precondition failed",
	CodeInternalError:      "internal error",
	CodeFrameError:         "frame error",
	CodeSyntaxError:        "syntax error",
	CodeCommandInvalid:     "command invalid",
	CodeChannelError:       "channel error",
	CodeNotAllowed:         "not allowed",
}

// Error returns the corresponding error string for the ReasonCode
func (c ReasonCode) Error() string {
	if s, ok := codeDesc[c]; ok {
		return s
	}

	return "unknown error"
}

// Value ...
func (c ReasonCode) Value() uint16 {
	return uint16(c)
}

// CodeOf extracts reason code from error chain
// nil maps to CodeSuccess and errors not carrying a code to CodeInternalError
func CodeOf(err error) ReasonCode {
	if err == nil {
		return CodeSuccess
	}

	if code, ok := errors.Cause(err).(ReasonCode); ok {
		return code
	}

	return CodeInternalError
}

// Persistence wraps storage failure into internal error keeping original message
func Persistence(err error) error {
	if err == nil {
		return nil
	}

	return errors.Wrap(CodeInternalError, err.Error())
}
