package nutrition

// Product sources
const (
	SourceManual      = "manual"
	SourceRecognition = "recognition"
)

// NutritionalValue is one derived row of the nutrition facts; never edited once computed.
type NutritionalValue struct {
	Name           string `json:"name"`
	Amount         string `json:"amount"`
	Unit           string `json:"unit"`
	IsRestricted   bool   `json:"is_restricted,omitempty"`
	WarningMessage string `json:"warning_message,omitempty"`
}

// Product is a finalized catalog entry. IsSafe is computed by the evaluator.
type Product struct {
	ID                uint               `json:"id,omitempty"`
	Name              string             `json:"name"`
	ImageURL          string             `json:"image_url"`
	IsSafe            bool               `json:"is_safe"`
	NutritionalValues []NutritionalValue `json:"nutritional_values"`
	Allergens         []string           `json:"allergens"`
	Source            string             `json:"source,omitempty"`
	CreatedAt         int64              `json:"created_at,omitempty"`
}

// Nutrient returns the entry with the given name.
func (p Product) Nutrient(name string) (NutritionalValue, bool) {
	for _, nv := range p.NutritionalValues {
		if nv.Name == name {
			return nv, true
		}
	}
	return NutritionalValue{}, false
}

// ManualEntryFields is the raw manual entry form. Nutrient amounts are
// numeric strings; Images holds the staged preview URLs in order.
type ManualEntryFields struct {
	ProductName   string   `json:"product_name" validate:"required"`
	Description   string   `json:"description"`
	Calories      string   `json:"calories" validate:"omitempty,amount"`
	Protein       string   `json:"protein" validate:"omitempty,amount"`
	Carbohydrates string   `json:"carbohydrates" validate:"omitempty,amount"`
	Fat           string   `json:"fat" validate:"omitempty,amount"`
	Potassium     string   `json:"potassium" validate:"omitempty,amount"`
	Sodium        string   `json:"sodium" validate:"omitempty,amount"`
	Allergens     []string `json:"allergens" validate:"dive,allergen"`
	Images        []string `json:"images,omitempty"`
}

// DefaultManualEntryFields returns a blank form with every amount set to "0".
func DefaultManualEntryFields() ManualEntryFields {
	return ManualEntryFields{
		Calories:      "0",
		Protein:       "0",
		Carbohydrates: "0",
		Fat:           "0",
		Potassium:     "0",
		Sodium:        "0",
	}
}
