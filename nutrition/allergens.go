package nutrition

import "errors"

var ErrUnknownAllergen = errors.New("unknown allergen")

// CommonAllergens is the fixed list offered by the entry form, in display order.
var CommonAllergens = []string{
	"Milk",
	"Eggs",
	"Fish",
	"Shellfish",
	"Tree nuts",
	"Peanuts",
	"Wheat",
	"Soy",
}

func IsKnownAllergen(name string) bool {
	for _, a := range CommonAllergens {
		if a == name {
			return true
		}
	}
	return false
}
