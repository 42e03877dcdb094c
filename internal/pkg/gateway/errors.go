package gateway

import (
	"errors"
	"fmt"
)

// Code classifies gateway failures into the closed set of variants the rest
// of the application distinguishes.
type Code string

const (
	// CodeCardDeclined is a normal decline of the customer's card.
	CodeCardDeclined Code = "card_declined"
	// CodeInvalidRequest covers malformed or unknown-object requests,
	// including event lookups for events the provider never issued.
	CodeInvalidRequest Code = "invalid_request"
	// CodeAuthentication means our API credentials were rejected.
	CodeAuthentication Code = "authentication"
	// CodeConnection covers timeouts and transport failures reaching the
	// provider.
	CodeConnection Code = "connection"
	// CodeGateway is any other provider-side failure.
	CodeGateway Code = "gateway"
)

// Error is a classified gateway failure.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("gateway: %s", e.Code)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf returns the classification of err, or "" if err is not a gateway
// error.
func CodeOf(err error) Code {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

// IsCardDeclined reports whether err is a card decline.
func IsCardDeclined(err error) bool { return CodeOf(err) == CodeCardDeclined }

// IsInvalidRequest reports whether err is an invalid-request failure.
func IsInvalidRequest(err error) bool { return CodeOf(err) == CodeInvalidRequest }

// IsAuthentication reports whether err is a credential failure.
func IsAuthentication(err error) bool { return CodeOf(err) == CodeAuthentication }

// IsConnection reports whether err is a transport failure or timeout.
func IsConnection(err error) bool { return CodeOf(err) == CodeConnection }
