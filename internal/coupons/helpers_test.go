package coupons

import (
	"github.com/angelmondragon/storefront-core/internal/pricing"
	"github.com/angelmondragon/storefront-core/pkg/enums"
	"github.com/angelmondragon/storefront-core/pkg/money"
)

func couponFixture(final *money.Amount) pricing.Coupon {
	return pricing.Coupon{Code: "SAVE10", Discount: money.FromInt(10), Type: enums.CouponTypePercent, FinalAmount: final}
}
