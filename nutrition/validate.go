package nutrition

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldIssue describes one rejected form field.
type FieldIssue struct {
	Field   string `json:"field"`
	Problem string `json:"problem"`
}

// ValidationError is returned by Validate. Evaluate itself stays permissive;
// callers decide whether the issues block a submission.
type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, is.Field+": "+is.Problem)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("allergen", func(fl validator.FieldLevel) bool {
		return IsKnownAllergen(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("nutrition: failed to register allergen validation: %v", err))
	}
	if err := v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		return IsAmount(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("nutrition: failed to register amount validation: %v", err))
	}
	return v
}

// Validate reports empty product names, non-numeric or negative amounts and
// allergens outside CommonAllergens. It returns nil or a *ValidationError.
func Validate(fields ManualEntryFields) error {
	var issues []FieldIssue

	trimmed := fields
	trimmed.ProductName = strings.TrimSpace(fields.ProductName)
	trimmed.Calories = strings.TrimSpace(fields.Calories)
	trimmed.Protein = strings.TrimSpace(fields.Protein)
	trimmed.Carbohydrates = strings.TrimSpace(fields.Carbohydrates)
	trimmed.Fat = strings.TrimSpace(fields.Fat)
	trimmed.Potassium = strings.TrimSpace(fields.Potassium)
	trimmed.Sodium = strings.TrimSpace(fields.Sodium)

	if err := validate.Struct(trimmed); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("failed to validate manual entry: %w", err)
		}
		for _, fe := range verrs {
			issues = append(issues, FieldIssue{Field: fieldName(fe), Problem: problemFor(fe)})
		}
	}

	for _, nf := range nutrientFields {
		raw := strings.TrimSpace(nf.value(trimmed))
		if raw == "" {
			continue
		}
		if ParseAmount(raw).IsNegative() {
			issues = append(issues, FieldIssue{Field: strings.ToLower(nf.name), Problem: "must not be negative"})
		}
	}

	if len(issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: issues}
}

func fieldName(fe validator.FieldError) string {
	// allergens[2] keeps the index so clients can point at the checkbox
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func problemFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "amount":
		return fmt.Sprintf("'%v' is not a number", fe.Value())
	case "allergen":
		return fmt.Sprintf("'%v' is not a known allergen", fe.Value())
	default:
		return "failed " + fe.Tag()
	}
}
