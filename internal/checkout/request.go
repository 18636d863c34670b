package checkout

import (
	"strings"

	pkgcheckout "github.com/angelmondragon/storefront-core/pkg/checkout"
	"github.com/angelmondragon/storefront-core/pkg/enums"
	"github.com/angelmondragon/storefront-core/pkg/types"
)

// Request is the customer's checkout submission, shared by review and commit.
type Request struct {
	ShippingAddressID types.ID            `json:"shipping_address_id"`
	BillingAddressID  types.ID            `json:"billing_address_id"`
	SameAsShipping    bool                `json:"same_as_shipping"`
	PaymentMethod     enums.PaymentMethod `json:"payment_method"`
	Notes             string              `json:"notes,omitempty"`
	OfferCode         string              `json:"offer_code,omitempty"`
}

func (r Request) normalized() Request {
	r.ShippingAddressID = types.ID(strings.TrimSpace(r.ShippingAddressID.String()))
	r.BillingAddressID = types.ID(strings.TrimSpace(r.BillingAddressID.String()))
	if r.SameAsShipping {
		r.BillingAddressID = r.ShippingAddressID
	}
	r.PaymentMethod = enums.PaymentMethod(strings.ToLower(strings.TrimSpace(string(r.PaymentMethod))))
	r.Notes = strings.TrimSpace(r.Notes)
	r.OfferCode = strings.ToUpper(strings.TrimSpace(r.OfferCode))
	return r
}

func (r Request) validate() error {
	return pkgcheckout.ValidateSelection(pkgcheckout.Selection{
		ShippingAddressID: r.ShippingAddressID.String(),
		BillingAddressID:  r.BillingAddressID.String(),
		SameAsShipping:    r.SameAsShipping,
		PaymentMethod:     string(r.PaymentMethod),
	})
}

// payload is the upstream body. These keys are the identity fields that win
// over anything the review echoed back.
func (r Request) payload() map[string]any {
	body := map[string]any{
		"shipping_address_id": r.ShippingAddressID,
		"billing_address_id":  r.BillingAddressID,
		"payment_method":      r.PaymentMethod,
	}
	if r.Notes != "" {
		body["notes"] = r.Notes
	}
	if r.OfferCode != "" {
		body["offer_code"] = r.OfferCode
	}
	return body
}

func merge(review, request map[string]any) map[string]any {
	out := make(map[string]any, len(review)+len(request))
	for k, v := range review {
		out[k] = v
	}
	for k, v := range request {
		out[k] = v
	}
	return out
}
