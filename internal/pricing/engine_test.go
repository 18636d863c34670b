package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-core/pkg/enums"
	"github.com/angelmondragon/storefront-core/pkg/money"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(Rules{
		FreeShippingThreshold: money.FromInt(10000),
		FlatShippingFee:       money.FromInt(500),
	})
	require.NoError(t, err)
	return engine
}

func item(price string, qty int, taxRate int64) CartItem {
	return CartItem{
		ID:         "ci-1",
		Product:    Product{ID: "p-1"},
		Variant:    Variant{ID: "v-1", Price: money.MustParse(price), TaxRate: money.PercentFromInt(taxRate)},
		Qty:        money.Quantity(qty),
		Resolution: enums.VariantResolvedByID,
	}
}

func TestEstimateWithoutCoupon(t *testing.T) {
	est := newTestEngine(t).Estimate([]CartItem{item("1000", 2, 5)}, nil)

	assert.Equal(t, KindEstimate, est.Kind)
	assert.Equal(t, "2000.00", est.Subtotal.String())
	assert.Equal(t, "100.00", est.Tax.String())
	assert.Equal(t, "500.00", est.Shipping.String())
	assert.Equal(t, "0.00", est.Discount.String())
	assert.Equal(t, "2600.00", est.Total.String())
	assert.Equal(t, "8000.00", est.FreeShippingRemaining.String())
	assert.False(t, est.Approximate)
}

func TestEstimateWithPercentCoupon(t *testing.T) {
	coupon := &Coupon{Code: "SAVE10", Type: enums.CouponTypePercent, Discount: money.FromInt(10)}
	est := newTestEngine(t).Estimate([]CartItem{item("1000", 2, 5)}, coupon)

	assert.Equal(t, "200.00", est.Discount.String())
	// (2000 - 200) + 100 + 500
	assert.Equal(t, "2400.00", est.Total.String())
	assert.Equal(t, "SAVE10", est.Coupon.Code)
}

func TestEstimateServerFinalAmountWins(t *testing.T) {
	final := money.FromInt(1750)
	coupon := &Coupon{Code: "FLAT", Type: enums.CouponTypePercent, Discount: money.FromInt(50), FinalAmount: &final}
	est := newTestEngine(t).Estimate([]CartItem{item("1000", 2, 5)}, coupon)

	assert.Equal(t, "250.00", est.Discount.String())
	assert.Equal(t, "2350.00", est.Total.String(), "final_amount + tax + shipping")
}

func TestShippingThresholdBoundary(t *testing.T) {
	engine := newTestEngine(t)
	assert.Equal(t, "500.00", engine.Shipping(money.FromInt(9999)).String())
	assert.Equal(t, "0.00", engine.Shipping(money.FromInt(10000)).String())
	assert.Equal(t, "0.00", engine.Shipping(money.FromInt(25000)).String())

	est := engine.Estimate([]CartItem{item("10000", 1, 0)}, nil)
	assert.Equal(t, "0.00", est.Shipping.String())
	assert.Equal(t, "0.00", est.FreeShippingRemaining.String())
}

func TestDiscountIsClampedToSubtotal(t *testing.T) {
	subtotal := money.FromInt(1000)

	assert.Equal(t, "100.00", Discount(subtotal, &Coupon{Type: enums.CouponTypePercent, Discount: money.FromInt(10)}).String())
	assert.Equal(t, "1000.00", Discount(subtotal, &Coupon{Type: enums.CouponTypeFixed, Discount: money.FromInt(5000)}).String())
	assert.Equal(t, "0.00", Discount(subtotal, &Coupon{Discount: money.FromInt(-20)}).String())

	overshoot := money.FromInt(1200)
	assert.Equal(t, "0.00", Discount(subtotal, &Coupon{FinalAmount: &overshoot}).String())
	assert.True(t, Discount(subtotal, nil).IsZero())
}

func TestTotalNeverNegativeAndMatchesFormula(t *testing.T) {
	engine := newTestEngine(t)
	carts := [][]CartItem{
		nil,
		{item("0", 1, 0)},
		{item("19.99", 3, 18), item("250.50", 1, 12)},
		{item("5000", 2, 28)},
	}
	coupons := []*Coupon{
		nil,
		{Type: enums.CouponTypeFixed, Discount: money.FromInt(100000)},
		{Type: enums.CouponTypePercent, Discount: money.FromInt(100)},
		{Type: enums.CouponTypeNone, Discount: money.MustParse("10.5")},
	}

	for _, cart := range carts {
		for _, coupon := range coupons {
			est := engine.Estimate(cart, coupon)
			assert.False(t, est.Total.IsNegative())
			assert.False(t, est.Subtotal.LessThan(est.Discount))
			if coupon == nil || coupon.FinalAmount == nil {
				want := est.Subtotal.Sub(est.Discount).Add(est.Tax).Add(est.Shipping).ClampNonNegative()
				assert.True(t, want.Equal(est.Total), "total %s want %s", est.Total, want)
			}
		}
	}
}

func TestSavingsOnlyCountsMarkdowns(t *testing.T) {
	original := money.FromInt(1200)
	lower := money.FromInt(800)
	marked := item("1000", 3, 0)
	marked.Variant.OriginalPrice = &original
	inverted := item("1000", 1, 0)
	inverted.Variant.OriginalPrice = &lower

	est := newTestEngine(t).Estimate([]CartItem{marked, inverted}, nil)
	assert.Equal(t, "600.00", est.Savings.String())
}

func TestEstimateFlagsApproximateVariants(t *testing.T) {
	approx := item("100", 1, 0)
	approx.Resolution = enums.VariantResolvedFallback
	est := newTestEngine(t).Estimate([]CartItem{approx}, nil)
	assert.True(t, est.Approximate)
	assert.Equal(t, "fallback_first", est.Lines[0].Resolution)
}

func TestNewEngineValidatesRules(t *testing.T) {
	_, err := NewEngine(Rules{FlatShippingFee: money.FromInt(-1)})
	require.Error(t, err)
	_, err = NewEngine(Rules{VariantPolicy: "closest"})
	require.Error(t, err)

	engine, err := NewEngine(Rules{})
	require.NoError(t, err)
	assert.Equal(t, VariantPolicyPriceThenFirst, engine.Rules().VariantPolicy)
}

func TestEmptyCartEstimateIsZero(t *testing.T) {
	est := newTestEngine(t).Estimate(nil, nil)

	assert.True(t, est.Shipping.IsZero())
	assert.True(t, est.Total.IsZero())
	assert.Equal(t, "10000.00", est.FreeShippingRemaining.String())
	assert.NotNil(t, est.Lines)
}
