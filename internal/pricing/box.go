package pricing

// MaxQuantity caps the units accepted on a single line or quote.
const MaxQuantity = 1_000_000

// NormalizeQuantity rounds requested up to a whole number of boxes. A box size
// of zero or less means the product is sold by the unit. A non-positive
// request yields one box.
func NormalizeQuantity(boxSize, requested int) int {
	if boxSize <= 0 {
		return requested
	}
	if requested <= 0 {
		return boxSize
	}
	boxes := requested / boxSize
	if requested%boxSize != 0 {
		boxes++
	}
	return boxes * boxSize
}
