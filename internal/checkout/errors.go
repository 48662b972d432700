package checkout

import "errors"

var (
	ErrValidation         = errors.New("checkout form is invalid")
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrSubmissionInFlight = errors.New("a checkout for this cart is already being processed")
)

// FailureAlert is the only message shown when a required step fails; details stay in the logs.
const FailureAlert = "There was an error processing your order. Please try again."

const ConfirmationMessage = "Thank you for your order! A confirmation email is on its way."

// CatalogPath is where a customer with an empty cart is sent.
const CatalogPath = "/products"
