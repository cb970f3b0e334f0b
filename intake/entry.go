package intake

import (
	"fmt"

	"github.com/camden-git/foodlens/nutrition"
)

// Entry is the manual entry form. Amounts stay text until evaluation.
type Entry struct {
	fields nutrition.ManualEntryFields
	// checked allergens; Fields reports them in CommonAllergens order
	allergens map[string]bool
}

func NewEntry() *Entry {
	return &Entry{
		fields:    nutrition.DefaultManualEntryFields(),
		allergens: make(map[string]bool),
	}
}

func (e *Entry) SetProductName(v string)   { e.fields.ProductName = v }
func (e *Entry) SetDescription(v string)   { e.fields.Description = v }
func (e *Entry) SetCalories(v string)      { e.fields.Calories = v }
func (e *Entry) SetProtein(v string)       { e.fields.Protein = v }
func (e *Entry) SetCarbohydrates(v string) { e.fields.Carbohydrates = v }
func (e *Entry) SetFat(v string)           { e.fields.Fat = v }
func (e *Entry) SetPotassium(v string)     { e.fields.Potassium = v }
func (e *Entry) SetSodium(v string)        { e.fields.Sodium = v }

// ToggleAllergen checks or unchecks one of nutrition.CommonAllergens.
func (e *Entry) ToggleAllergen(name string, checked bool) error {
	if !nutrition.IsKnownAllergen(name) {
		return fmt.Errorf("%w: '%s'", nutrition.ErrUnknownAllergen, name)
	}
	if checked {
		e.allergens[name] = true
	} else {
		delete(e.allergens, name)
	}
	return nil
}

// Fields snapshots the form; images are the staged preview URLs to attach.
func (e *Entry) Fields(images []string) nutrition.ManualEntryFields {
	f := e.fields
	f.Allergens = make([]string, 0, len(e.allergens))
	for _, a := range nutrition.CommonAllergens {
		if e.allergens[a] {
			f.Allergens = append(f.Allergens, a)
		}
	}
	f.Images = images
	return f
}

func (e *Entry) Reset() {
	e.fields = nutrition.DefaultManualEntryFields()
	e.allergens = make(map[string]bool)
}
