// Package errs holds the error taxonomy shared by all components. Store and
// network failures are converted to one of these types at component boundaries,
// so nothing surfaces as a generic fault.
package errs

import "fmt"

// Validation reports bad input shape or a client/server arithmetic mismatch.
// Surfaced to the caller, never retried.
type Validation struct {
	Msg string
}

func (e *Validation) Error() string { return e.Msg }

func Validationf(format string, args ...any) *Validation {
	return &Validation{Msg: fmt.Sprintf(format, args...)}
}

// NotFound reports an unknown barcode or order id. No mutation was performed.
type NotFound struct {
	Kind string // "product", "order"
	Key  string
}

func (e *NotFound) Error() string { return fmt.Sprintf("%s not found: %s", e.Kind, e.Key) }

// InsufficientStock reports a failed stock pre-check or commit.
type InsufficientStock struct {
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStock) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d",
		e.Name, e.Available, e.Requested)
}

// UpstreamUnavailable reports a payment-provider timeout or non-2xx response.
// Retryable; any already-persisted pending order stays intact.
type UpstreamUnavailable struct {
	Service string
	Err     error
}

func (e *UpstreamUnavailable) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamUnavailable) Unwrap() error { return e.Err }

// Authorization reports a caller role outside the allowed set.
type Authorization struct {
	Role     string
	Required []string
}

func (e *Authorization) Error() string {
	return fmt.Sprintf("access forbidden: role %q not in required roles %v", e.Role, e.Required)
}

// ConsistencyGuard reports a rejected state transition, e.g. confirming an
// already-terminal order. Callers treat it as a logged no-op, not a hard failure.
type ConsistencyGuard struct {
	OrderID string
	Detail  string
}

func (e *ConsistencyGuard) Error() string {
	return fmt.Sprintf("state guard rejected transition for order %s: %s", e.OrderID, e.Detail)
}
