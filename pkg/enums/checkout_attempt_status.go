package enums

import "fmt"

// CheckoutAttemptStatus tracks an idempotent checkout commit.
type CheckoutAttemptStatus string

// Submitted means the commit was sent upstream and its outcome is not yet
// recorded; such an attempt is never handed out again.
const (
	CheckoutAttemptPending   CheckoutAttemptStatus = "pending"
	CheckoutAttemptSubmitted CheckoutAttemptStatus = "submitted"
	CheckoutAttemptCommitted CheckoutAttemptStatus = "committed"
	CheckoutAttemptFailed    CheckoutAttemptStatus = "failed"
)

var validCheckoutAttemptStatuses = []CheckoutAttemptStatus{
	CheckoutAttemptPending,
	CheckoutAttemptSubmitted,
	CheckoutAttemptCommitted,
	CheckoutAttemptFailed,
}

// String implements fmt.Stringer.
func (c CheckoutAttemptStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CheckoutAttemptStatus.
func (c CheckoutAttemptStatus) IsValid() bool {
	for _, candidate := range validCheckoutAttemptStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCheckoutAttemptStatus converts raw input into a CheckoutAttemptStatus.
func ParseCheckoutAttemptStatus(value string) (CheckoutAttemptStatus, error) {
	for _, candidate := range validCheckoutAttemptStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout attempt status %q", value)
}
