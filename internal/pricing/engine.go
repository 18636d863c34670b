package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-core/pkg/money"
)

// Kind distinguishes advisory estimates from backend quotes.
type Kind string

const (
	KindEstimate Kind = "estimate"
	KindQuote    Kind = "quote"
)

// Rules are the pricing constants. One flat fee applies everywhere.
type Rules struct {
	FreeShippingThreshold money.Amount
	FlatShippingFee       money.Amount
	VariantPolicy         VariantPolicy
}

// LineEstimate is the per-item breakdown of an estimate.
type LineEstimate struct {
	ItemID     string         `json:"item_id"`
	ProductID  string         `json:"product_id"`
	VariantID  string         `json:"variant_id"`
	Qty        money.Quantity `json:"qty"`
	UnitPrice  money.Amount   `json:"unit_price"`
	LineTotal  money.Amount   `json:"line_total"`
	Savings    money.Amount   `json:"savings"`
	Tax        money.Amount   `json:"tax"`
	Resolution string         `json:"variant_resolution"`
}

// Estimate is the locally computed, advisory price of a cart. It is never the
// amount charged.
type Estimate struct {
	Kind                  Kind           `json:"kind"`
	Lines                 []LineEstimate `json:"lines"`
	Subtotal              money.Amount   `json:"subtotal"`
	Savings               money.Amount   `json:"savings"`
	Tax                   money.Amount   `json:"tax"`
	Shipping              money.Amount   `json:"shipping"`
	Discount              money.Amount   `json:"discount"`
	Total                 money.Amount   `json:"total"`
	FreeShippingRemaining money.Amount   `json:"free_shipping_remaining"`
	Coupon                *Coupon        `json:"coupon,omitempty"`
	Approximate           bool           `json:"approximate"`
}

// Engine computes estimates under a fixed rule set.
type Engine struct {
	rules Rules
}

func NewEngine(rules Rules) (*Engine, error) {
	if rules.FreeShippingThreshold.IsNegative() {
		return nil, fmt.Errorf("free shipping threshold must not be negative")
	}
	if rules.FlatShippingFee.IsNegative() {
		return nil, fmt.Errorf("flat shipping fee must not be negative")
	}
	if rules.VariantPolicy == "" {
		rules.VariantPolicy = VariantPolicyPriceThenFirst
	}
	if _, err := ParseVariantPolicy(string(rules.VariantPolicy)); err != nil {
		return nil, err
	}
	return &Engine{rules: rules}, nil
}

func (e *Engine) Rules() Rules {
	return e.rules
}

// Shipping is zero at or above the free-shipping threshold, else the flat fee.
func (e *Engine) Shipping(subtotal money.Amount) money.Amount {
	if subtotal.GreaterThanOrEqual(e.rules.FreeShippingThreshold) {
		return money.Zero()
	}
	return e.rules.FlatShippingFee
}

// Estimate prices items with an optional coupon.
func (e *Engine) Estimate(items []CartItem, coupon *Coupon) Estimate {
	est := Estimate{Kind: KindEstimate, Lines: make([]LineEstimate, 0, len(items)), Coupon: coupon}

	subtotal, savings, tax := money.Zero(), money.Zero(), money.Zero()
	for _, item := range items {
		lineTotal := item.LineTotal()
		lineSavings := item.Variant.UnitSavings().Mul(item.Qty)
		lineTax := item.Variant.TaxRate.Of(item.Variant.Price).Mul(item.Qty)

		subtotal = subtotal.Add(lineTotal)
		savings = savings.Add(lineSavings)
		tax = tax.Add(lineTax)
		if item.Resolution.IsApproximate() {
			est.Approximate = true
		}

		est.Lines = append(est.Lines, LineEstimate{
			ItemID:     item.ID.String(),
			ProductID:  item.Product.ID.String(),
			VariantID:  item.Variant.ID.String(),
			Qty:        item.Qty,
			UnitPrice:  item.Variant.Price.Round(),
			LineTotal:  lineTotal.Round(),
			Savings:    lineSavings.Round(),
			Tax:        lineTax.Round(),
			Resolution: item.Resolution.String(),
		})
	}

	// nothing ships from an empty cart
	shipping := money.Zero()
	if len(items) > 0 {
		shipping = e.Shipping(subtotal)
	}
	discount := Discount(subtotal, coupon)

	est.Subtotal = subtotal.Round()
	est.Savings = savings.Round()
	est.Tax = tax.Round()
	est.Shipping = shipping.Round()
	est.Discount = discount.Round()
	est.Total = money.Sum(subtotal.Sub(discount), tax, shipping).ClampNonNegative().Round()
	est.FreeShippingRemaining = e.rules.FreeShippingThreshold.Sub(subtotal).ClampNonNegative().Round()
	return est
}

// Discount derives the coupon discount for subtotal, clamped to [0, subtotal].
// A server-computed final amount wins over the coupon's own type and value.
func Discount(subtotal money.Amount, coupon *Coupon) money.Amount {
	if coupon == nil {
		return money.Zero()
	}
	var raw money.Amount
	switch {
	case coupon.FinalAmount != nil:
		raw = subtotal.Sub(*coupon.FinalAmount)
	case coupon.Type.IsPercent():
		raw = money.FromDecimal(subtotal.Decimal().Mul(coupon.Discount.Decimal()).Div(decimal.NewFromInt(100)))
	default:
		raw = coupon.Discount
	}
	return raw.Clamp(money.Zero(), subtotal.ClampNonNegative())
}
