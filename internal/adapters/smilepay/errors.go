package smilepay

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed instruction request
type ErrorKind string

const (
	KindNetwork           ErrorKind = "network"
	KindTimeout           ErrorKind = "timeout"
	KindHTTPStatus        ErrorKind = "http_status"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindRejected          ErrorKind = "rejected"
	KindCircuitOpen       ErrorKind = "circuit_open"
)

// GatewayError is the single error type returned by the gateway client
type GatewayError struct {
	Err        error
	Kind       ErrorKind
	Message    string
	StatusCode int
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("smilepay %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("smilepay %s: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// countsAsFailure reports whether the error should trip the circuit breaker.
// Rejections and malformed bodies mean the gateway is up and answering.
func (e *GatewayError) countsAsFailure() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout, KindHTTPStatus:
		return true
	}
	return false
}

// IsGatewayError reports whether err is a GatewayError of the given kind
func IsGatewayError(err error, kind ErrorKind) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Kind == kind
	}
	return false
}

func newGatewayError(kind ErrorKind, message string, err error) *GatewayError {
	return &GatewayError{Kind: kind, Message: message, Err: err}
}
