package checkout

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidTransition is returned when an action is not allowed in the current state
	ErrInvalidTransition = errors.New("invalid checkout transition")
	// ErrPaymentInFlight is returned when a payment is submitted while another is pending
	ErrPaymentInFlight = errors.New("payment already in progress")
	// ErrSessionClosed is returned when a payment result arrives after the wizard was closed
	ErrSessionClosed = errors.New("checkout session closed")
	// ErrIncompleteBusinessInfo matches any MissingFieldsError
	ErrIncompleteBusinessInfo = errors.New("business info incomplete")
)

// MissingFieldsError lists the required business info fields left empty
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Is(target error) bool {
	return target == ErrIncompleteBusinessInfo
}

// NetworkError is a transport failure talking to the issuer or processor. The user may retry.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IssuerError is a non-2xx answer from the payment intent endpoint
type IssuerError struct {
	Status  int
	Message string
}

func (e *IssuerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("payment intent request failed with status %d", e.Status)
	}
	return fmt.Sprintf("payment intent request failed with status %d: %s", e.Status, e.Message)
}

// ConfirmationError is a decline or incomplete confirmation reported by the processor
type ConfirmationError struct {
	Code    string
	Message string
}

func (e *ConfirmationError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// UserMessage returns the text shown inline in the payment step for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		missing *MissingFieldsError
		issuer  *IssuerError
		confirm *ConfirmationError
		network *NetworkError
	)
	switch {
	case errors.As(err, &missing):
		return "Please fill in: " + strings.Join(missing.Fields, ", ")
	case errors.As(err, &issuer):
		return "Failed to create payment intent"
	case errors.As(err, &confirm):
		if confirm.Message == "" {
			return "Payment failed"
		}
		return confirm.Message
	case errors.As(err, &network):
		return "Network error, please check your connection and try again"
	case errors.Is(err, ErrPaymentInFlight):
		return "Payment is already being processed"
	default:
		return "An unexpected error occurred"
	}
}
