package nutrition

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const DefaultPlaceholderImageURL = "https://images.unsplash.com/photo-1546069901-ba9599a7e63c"

type nutrientField struct {
	name  string
	unit  string
	value func(ManualEntryFields) string
}

// fixed output order
var nutrientFields = []nutrientField{
	{"Calories", "kcal", func(f ManualEntryFields) string { return f.Calories }},
	{"Protein", "g", func(f ManualEntryFields) string { return f.Protein }},
	{"Carbohydrates", "g", func(f ManualEntryFields) string { return f.Carbohydrates }},
	{"Fat", "g", func(f ManualEntryFields) string { return f.Fat }},
	{"Potassium", "mg", func(f ManualEntryFields) string { return f.Potassium }},
	{"Sodium", "mg", func(f ManualEntryFields) string { return f.Sodium }},
}

func unitFor(nutrient string) (string, bool) {
	for _, nf := range nutrientFields {
		if strings.EqualFold(nf.name, nutrient) {
			return nf.unit, true
		}
	}
	return "", false
}

// Evaluator turns manual entry fields into a Product. It holds no state
// besides its configuration, so Evaluate is deterministic.
type Evaluator struct {
	Policy              Policy
	PlaceholderImageURL string
}

func NewEvaluator(policy Policy, placeholderURL string) *Evaluator {
	if placeholderURL == "" {
		placeholderURL = DefaultPlaceholderImageURL
	}
	return &Evaluator{Policy: policy, PlaceholderImageURL: placeholderURL}
}

// Evaluate uses the default policy and placeholder.
func Evaluate(fields ManualEntryFields) Product {
	return NewEvaluator(DefaultPolicy(), "").Evaluate(fields)
}

// Evaluate never fails: amounts that do not parse count as zero.
func (e *Evaluator) Evaluate(fields ManualEntryFields) Product {
	values := make([]NutritionalValue, 0, len(nutrientFields))
	safe := true
	for _, nf := range nutrientFields {
		amount := ParseAmount(nf.value(fields))
		nv := NutritionalValue{
			Name:   nf.name,
			Amount: amount.String(),
			Unit:   nf.unit,
		}
		if rule, restricted := e.Policy.Check(nf.name, amount); restricted {
			nv.IsRestricted = true
			nv.WarningMessage = rule.Message
			safe = false
		}
		values = append(values, nv)
	}

	imageURL := e.PlaceholderImageURL
	if len(fields.Images) > 0 && fields.Images[0] != "" {
		imageURL = fields.Images[0]
	}

	allergens := make([]string, len(fields.Allergens))
	copy(allergens, fields.Allergens)

	return Product{
		Name:              fields.ProductName,
		ImageURL:          imageURL,
		IsSafe:            safe,
		NutritionalValues: values,
		Allergens:         allergens,
		Source:            SourceManual,
	}
}

// maxAmountLen bounds the digits an amount may carry. Exponent notation is
// not accepted, so the canonical text never outgrows the input.
const maxAmountLen = 24

var amountPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// IsAmount reports whether raw is a plain decimal such as "12", "-3.5" or ".5".
func IsAmount(raw string) bool {
	return len(raw) <= maxAmountLen && amountPattern.MatchString(raw)
}

// ParseAmount reads a decimal amount, treating empty or malformed input as zero.
func ParseAmount(raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if !IsAmount(raw) {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}
