package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-core/pkg/errors"
)

// VariantPolicy governs what happens when a cart line carries no usable variant id.
type VariantPolicy string

const (
	// VariantPolicyStrict rejects lines whose variant is not referenced by id.
	VariantPolicyStrict VariantPolicy = "strict"
	// VariantPolicyPriceThenFirst matches on unit price, then takes the first variant.
	VariantPolicyPriceThenFirst VariantPolicy = "price_then_first"
)

func ParseVariantPolicy(value string) (VariantPolicy, error) {
	switch VariantPolicy(value) {
	case VariantPolicyStrict, VariantPolicyPriceThenFirst:
		return VariantPolicy(value), nil
	case "":
		return VariantPolicyPriceThenFirst, nil
	}
	return "", fmt.Errorf("invalid variant policy %q", value)
}

// ResolveLine picks the variant for a cart line: explicit id first, then the
// first variant priced at total_price/qty, then the first variant. Every result
// reports which step produced it.
func ResolveLine(line CartLine, policy VariantPolicy) (CartItem, error) {
	if err := line.Qty.Validate(); err != nil {
		return CartItem{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("cart item %s has invalid qty", line.ID))
	}

	item := CartItem{ID: line.ID, Product: line.Product, Qty: line.Qty}

	if v, ok := findByID(line); ok {
		item.Variant = v
		item.Resolution = enums.VariantResolvedByID
		return item, nil
	}

	if policy == VariantPolicyStrict {
		return CartItem{}, unresolved(line, "no variant id on cart item")
	}
	if len(line.Product.Variants) == 0 {
		return CartItem{}, unresolved(line, "product has no variants")
	}

	if !line.TotalPrice.IsZero() {
		unit := line.TotalPrice.Decimal().Div(decimalQty(line))
		for _, v := range line.Product.Variants {
			if v.Price.Round().Decimal().Equal(unit.Round(2)) {
				item.Variant = v
				item.Resolution = enums.VariantResolvedByPrice
				return item, nil
			}
		}
	}

	item.Variant = line.Product.Variants[0]
	item.Resolution = enums.VariantResolvedFallback
	return item, nil
}

// ResolveLines resolves every line, failing on the first unresolvable one.
func ResolveLines(lines []CartLine, policy VariantPolicy) ([]CartItem, error) {
	items := make([]CartItem, 0, len(lines))
	for _, line := range lines {
		item, err := ResolveLine(line, policy)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func findByID(line CartLine) (Variant, bool) {
	id := line.VariantID
	if id.IsZero() && line.Variant != nil {
		id = line.Variant.ID
	}
	if id.IsZero() {
		return Variant{}, false
	}
	for _, v := range line.Product.Variants {
		if v.ID == id {
			return v, true
		}
	}
	if line.Variant != nil && line.Variant.ID == id {
		return *line.Variant, true
	}
	return Variant{}, false
}

func unresolved(line CartLine, reason string) error {
	return pkgerrors.New(pkgerrors.CodeDependency, "cart item variant could not be resolved").
		WithDetails(map[string]any{"cart_item_id": line.ID.String(), "product_id": line.Product.ID.String(), "reason": reason})
}

func decimalQty(line CartLine) decimal.Decimal {
	return decimal.NewFromInt(int64(line.Qty))
}
