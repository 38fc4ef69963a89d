package ataix

import "strings"

// ErrorKind is the closed classification of exchange rejections. The
// transport layer assigns the kind; callers dispatch on it instead of
// inspecting message text.
type ErrorKind int

const (
	// KindOther covers every rejection that carries no retry hint, and
	// responses that cannot be interpreted at all.
	KindOther ErrorKind = iota
	// KindUnexpectedParameter means the request body used a parameter name
	// this deployment does not recognize.
	KindUnexpectedParameter
	// KindInvalidSymbol means the symbol spelling was not accepted.
	KindInvalidSymbol
)

// APIError is returned whenever ATAIX rejects a request or its response
// cannot be interpreted.
type APIError struct {
	Kind    ErrorKind
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// classifyError builds the APIError for a rejection message. Substring
// matching on exchange wording is confined to this one spot.
func classifyError(message string) *APIError {
	return &APIError{
		Kind:    classifyMessage(message),
		Message: "ataix rejected the request: " + message,
	}
}

func classifyMessage(message string) ErrorKind {
	switch {
	case strings.Contains(message, "Unexpected parameter"):
		return KindUnexpectedParameter
	case strings.Contains(message, "Invalid symbol"):
		return KindInvalidSymbol
	default:
		return KindOther
	}
}
