package checkout

import "fmt"

type Kind string

const (
	CartValidationFailed    Kind = "CART_VALIDATION_FAILED"
	PaymentValidationFailed Kind = "PAYMENT_VALIDATION_FAILED"
	InsufficientStock       Kind = "INSUFFICIENT_STOCK"
	UnexpectedError         Kind = "UNEXPECTED_ERROR"
)

const (
	msgOrderPlaced = "Order placed successfully"
	msgUnexpected  = "An unexpected error occurred"
)

type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Error is the only error type ProcessCheckout returns. Message is safe to
// show to the shopper; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Errors  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func unexpected(err error) *Error {
	return &Error{Kind: UnexpectedError, Message: msgUnexpected, Err: err}
}
