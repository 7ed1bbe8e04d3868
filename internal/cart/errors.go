package cart

import "errors"

// ErrCheckoutInProgress is returned when a checkout is already being submitted
var ErrCheckoutInProgress = errors.New("checkout already in progress")

// ValidationError is a checkout precondition failure. No request was sent.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// CheckoutFailedError reports a rejected or failed order submission. The
// cart is left untouched.
type CheckoutFailedError struct {
	Message string
	Err     error
}

func (e *CheckoutFailedError) Error() string {
	return "checkout failed: " + e.Message
}

func (e *CheckoutFailedError) Unwrap() error {
	return e.Err
}
