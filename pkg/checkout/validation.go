package checkout

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
)

// Selection is the address and payment choice a customer submits for review
// and commit.
type Selection struct {
	ShippingAddressID string
	BillingAddressID  string
	SameAsShipping    bool
	PaymentMethod     string
}

// Violation is returned to callers when a selection fails validation.
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidateSelection checks the preconditions shared by review and commit.
// Billing may be omitted only when it is the shipping address.
func ValidateSelection(sel Selection) error {
	var violations []Violation
	if strings.TrimSpace(sel.ShippingAddressID) == "" {
		violations = append(violations, Violation{Field: "shipping_address_id", Reason: "required"})
	}
	if !sel.SameAsShipping && strings.TrimSpace(sel.BillingAddressID) == "" {
		violations = append(violations, Violation{Field: "billing_address_id", Reason: "required unless same_as_shipping"})
	}
	if _, err := enums.ParsePaymentMethod(sel.PaymentMethod); err != nil {
		violations = append(violations, Violation{Field: "payment_method", Reason: "must be cod or online"})
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("checkout request invalid: %d field(s)", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}

// Fingerprint hashes the JSON form of v. Struct fields encode in declaration
// order and map keys sorted, so equal requests hash equally.
func Fingerprint(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint request: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
