package enums

// VariantResolution records how a cart line's variant was chosen.
type VariantResolution string

const (
	VariantResolvedByID     VariantResolution = "variant_id"
	VariantResolvedByPrice  VariantResolution = "price_match"
	VariantResolvedFallback VariantResolution = "fallback_first"
)

// String implements fmt.Stringer.
func (v VariantResolution) String() string {
	return string(v)
}

// IsApproximate reports whether the variant was inferred rather than referenced.
func (v VariantResolution) IsApproximate() bool {
	return v != VariantResolvedByID
}
