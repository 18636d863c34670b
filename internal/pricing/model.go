package pricing

import (
	"github.com/angelmondragon/storefront-core/pkg/enums"
	"github.com/angelmondragon/storefront-core/pkg/money"
	"github.com/angelmondragon/storefront-core/pkg/types"
)

// Variant is a purchasable SKU of a product.
type Variant struct {
	ID                 types.ID       `json:"id"`
	Name               string         `json:"name,omitempty"`
	Price              money.Amount   `json:"price"`
	OriginalPrice      *money.Amount  `json:"original_price,omitempty"`
	StockQuantity      int            `json:"stock_quantity"`
	TaxRate            money.Percent  `json:"tax_rate"`
	DiscountPercentage *money.Percent `json:"discount_percentage,omitempty"`
}

// UnitSavings is max(0, original_price - price).
func (v Variant) UnitSavings() money.Amount {
	if v.OriginalPrice == nil {
		return money.Zero()
	}
	return v.OriginalPrice.Sub(v.Price).ClampNonNegative()
}

type Product struct {
	ID       types.ID  `json:"id"`
	Name     string    `json:"name"`
	Slug     string    `json:"slug,omitempty"`
	Image    string    `json:"image,omitempty"`
	Variants []Variant `json:"variants"`
}

// CartLine is a cart item as the backend returns it, before variant resolution.
type CartLine struct {
	ID         types.ID       `json:"id"`
	Product    Product        `json:"product"`
	VariantID  types.ID       `json:"variant_id,omitempty"`
	Variant    *Variant       `json:"variant,omitempty"`
	Qty        money.Quantity `json:"qty"`
	TotalPrice money.Amount   `json:"total_price"`
}

// CartItem is a cart line with its variant resolved.
type CartItem struct {
	ID         types.ID                `json:"id"`
	Product    Product                 `json:"product"`
	Variant    Variant                 `json:"variant"`
	Qty        money.Quantity          `json:"qty"`
	Resolution enums.VariantResolution `json:"variant_resolution"`
}

// LineTotal is variant.price * qty.
func (c CartItem) LineTotal() money.Amount {
	return c.Variant.Price.Mul(c.Qty)
}

// Coupon is the last server response to a successful apply. It is advisory;
// the review quote is what gets charged.
type Coupon struct {
	Code        string           `json:"code"`
	Discount    money.Amount     `json:"discount"`
	Type        enums.CouponType `json:"type,omitempty"`
	Message     string           `json:"message,omitempty"`
	FinalAmount *money.Amount    `json:"final_amount,omitempty"`
}
