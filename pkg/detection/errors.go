package detection

import (
	"errors"
	"fmt"
)

// Reason classifies why detection failed
type Reason string

const (
	ReasonTimeout           Reason = "timeout"
	ReasonUpstreamFailure   Reason = "upstream_failure"
	ReasonMalformedResponse Reason = "malformed_response"
)

// DetectionError is returned whenever a detector could not produce a result.
// Callers recover from it with the fallback strategy.
type DetectionError struct {
	Reason Reason
	Cause  string // provider supplied failure reason, if any
	Err    error
}

func (e *DetectionError) Error() string {
	msg := "detection " + string(e.Reason)
	if e.Cause != "" {
		msg += ": " + e.Cause
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}

// AsDetectionError extracts a DetectionError from an error chain
func AsDetectionError(err error) (*DetectionError, bool) {
	var de *DetectionError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

func timeoutError(err error) *DetectionError {
	return &DetectionError{Reason: ReasonTimeout, Err: err}
}

func upstreamError(cause string, err error) *DetectionError {
	return &DetectionError{Reason: ReasonUpstreamFailure, Cause: cause, Err: err}
}

func malformedError(format string, args ...any) *DetectionError {
	return &DetectionError{Reason: ReasonMalformedResponse, Err: fmt.Errorf(format, args...)}
}
