package billing

import "fmt"

// AuthenticationError means the webhook signature was malformed or did not
// match the signing secret. Terminal for the delivery; the caller rejects
// without side effects.
type AuthenticationError struct {
	cause error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("webhook authentication failed: %v", e.cause)
}

func (e *AuthenticationError) Unwrap() error { return e.cause }

// PayloadError means the event body could not be parsed into a structured
// event. Terminal for the delivery.
type PayloadError struct {
	cause error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("invalid webhook payload: %v", e.cause)
}

func (e *PayloadError) Unwrap() error { return e.cause }

// UnresolvedIdentityError means the event references a customer id with no
// linked account. The engine logs and drops such events; redelivery will not
// resolve them.
type UnresolvedIdentityError struct {
	CustomerID string
}

func (e *UnresolvedIdentityError) Error() string {
	return fmt.Sprintf("no linked account for customer %s", e.CustomerID)
}

// UpstreamProviderError wraps a failed outbound call to the billing provider.
type UpstreamProviderError struct {
	Op    string
	cause error
}

func NewUpstreamProviderError(op string, cause error) *UpstreamProviderError {
	return &UpstreamProviderError{Op: op, cause: cause}
}

func (e *UpstreamProviderError) Error() string {
	return fmt.Sprintf("provider call %s failed: %v", e.Op, e.cause)
}

func (e *UpstreamProviderError) Unwrap() error { return e.cause }

// PersistenceError wraps a failed store operation. The caller must not
// acknowledge the delivery so the provider redelivers later.
type PersistenceError struct {
	Op    string
	cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store operation %s failed: %v", e.Op, e.cause)
}

func (e *PersistenceError) Unwrap() error { return e.cause }
