package enums

import "fmt"

// CouponType describes how a coupon's discount value is interpreted.
// An empty type is treated as a flat amount.
type CouponType string

const (
	CouponTypePercent CouponType = "%"
	CouponTypeFixed   CouponType = "fixed"
	CouponTypeNone    CouponType = ""
)

var validCouponTypes = []CouponType{
	CouponTypePercent,
	CouponTypeFixed,
	CouponTypeNone,
}

// String implements fmt.Stringer.
func (c CouponType) String() string {
	return string(c)
}

// IsPercent reports whether the discount is a percentage of the subtotal.
func (c CouponType) IsPercent() bool {
	return c == CouponTypePercent
}

// IsValid reports whether the value is a known CouponType.
func (c CouponType) IsValid() bool {
	for _, candidate := range validCouponTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCouponType converts raw input into a CouponType. The backend also
// spells percentage coupons as "percent" or "percentage".
func ParseCouponType(value string) (CouponType, error) {
	switch value {
	case "percent", "percentage":
		return CouponTypePercent, nil
	case "flat", "amount":
		return CouponTypeFixed, nil
	}
	for _, candidate := range validCouponTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coupon type %q", value)
}
