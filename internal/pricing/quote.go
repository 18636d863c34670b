package pricing

import (
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/storefront-core/pkg/money"
)

// Quote is the backend's authoritative pricing from the review phase. It is
// the only value presented as the amount to be charged.
type Quote struct {
	Kind      Kind            `json:"kind"`
	Subtotal  money.Amount    `json:"subtotal"`
	Tax       money.Amount    `json:"tax"`
	Shipping  money.Amount    `json:"shipping"`
	Discount  money.Amount    `json:"discount"`
	Total     money.Amount    `json:"total"`
	OfferCode string          `json:"offer_code,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type quoteFields struct {
	Subtotal       *money.Amount `json:"subtotal"`
	SubTotal       *money.Amount `json:"sub_total"`
	TaxAmount      *money.Amount `json:"tax_amount"`
	Tax            *money.Amount `json:"tax"`
	ShippingAmount *money.Amount `json:"shipping_amount"`
	ShippingFee    *money.Amount `json:"shipping_fee"`
	Shipping       *money.Amount `json:"shipping"`
	DiscountAmount *money.Amount `json:"discount_amount"`
	Discount       *money.Amount `json:"discount"`
	TotalAmount    *money.Amount `json:"total_amount"`
	GrandTotal     *money.Amount `json:"grand_total"`
	Total          *money.Amount `json:"total"`
	OfferCode      string        `json:"offer_code"`
}

// ParseQuote reads a review payload. The backend has used several spellings
// for the same totals; the first present one wins. A payload without any
// total is rejected.
func ParseQuote(payload json.RawMessage) (Quote, error) {
	var f quoteFields
	if err := json.Unmarshal(payload, &f); err != nil {
		return Quote{}, fmt.Errorf("decode review payload: %w", err)
	}
	total := first(f.TotalAmount, f.GrandTotal, f.Total)
	if total == nil {
		return Quote{}, fmt.Errorf("review payload has no total")
	}
	q := Quote{
		Kind:      KindQuote,
		Total:     total.Round(),
		OfferCode: f.OfferCode,
		Payload:   payload,
	}
	if v := first(f.Subtotal, f.SubTotal); v != nil {
		q.Subtotal = v.Round()
	}
	if v := first(f.TaxAmount, f.Tax); v != nil {
		q.Tax = v.Round()
	}
	if v := first(f.ShippingAmount, f.ShippingFee, f.Shipping); v != nil {
		q.Shipping = v.Round()
	}
	if v := first(f.DiscountAmount, f.Discount); v != nil {
		q.Discount = v.Round()
	}
	return q, nil
}

func first(values ...*money.Amount) *money.Amount {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
