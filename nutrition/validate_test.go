package nutrition

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsDefaults(t *testing.T) {
	fields := DefaultManualEntryFields()
	fields.ProductName = "Oat milk"
	fields.Allergens = []string{"Tree nuts"}
	fields.Protein = "3.5"

	assert.NoError(t, Validate(fields))
}

func TestValidateReportsIssues(t *testing.T) {
	fields := DefaultManualEntryFields()
	fields.ProductName = "   "
	fields.Calories = "a lot"
	fields.Sodium = "-5"
	fields.Allergens = []string{"Milk", "Gluten"}

	err := Validate(fields)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	byField := map[string]string{}
	for _, is := range verr.Issues {
		byField[is.Field] = is.Problem
	}
	assert.Equal(t, "is required", byField["product_name"])
	assert.Contains(t, byField["calories"], "not a number")
	assert.Equal(t, "must not be negative", byField["sodium"])
	assert.Contains(t, byField["allergens[1]"], "Gluten")
	assert.NotContains(t, byField, "allergens[0]")
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidateAgreesWithEvaluator(t *testing.T) {
	fields := DefaultManualEntryFields()
	fields.ProductName = "Crackers"
	fields.Fat = ".5"
	assert.NoError(t, Validate(fields), "what Evaluate reads as a number must validate")

	fields.Fat = "1e2"
	err := Validate(fields)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Issues, 1)
	assert.Equal(t, "fat", verr.Issues[0].Field)

	fat, _ := Evaluate(fields).Nutrient("Fat")
	assert.Equal(t, "0", fat.Amount, "what fails validation is coerced to zero")
}

func TestValidateAllowsEmptyAmounts(t *testing.T) {
	fields := ManualEntryFields{ProductName: "Water"}
	assert.NoError(t, Validate(fields))
}

func TestParsePolicy(t *testing.T) {
	raw := []byte(`
rules:
  - nutrient: Potassium
    limit: 350
    message: Too much potassium
  - nutrient: sodium
    limit: 700
`)
	policy, err := ParsePolicy(raw)
	require.NoError(t, err)
	require.Len(t, policy.Rules, 2)

	rule, restricted := policy.Check("Potassium", decimal.NewFromInt(350))
	assert.True(t, restricted)
	assert.Equal(t, "Too much potassium", rule.Message)

	rule, restricted = policy.Check("Sodium", decimal.NewFromInt(701))
	assert.True(t, restricted)
	assert.Equal(t, "High sodium content", rule.Message)

	_, restricted = policy.Check("Fat", decimal.NewFromInt(10000))
	assert.False(t, restricted)
}

func TestParsePolicyRejectsUnknownNutrient(t *testing.T) {
	_, err := ParsePolicy([]byte("rules:\n  - nutrient: Caffeine\n    limit: 1\n"))
	assert.Error(t, err)

	_, err = ParsePolicy([]byte("rules: []\n"))
	assert.Error(t, err)
}

func TestLoadPolicyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - nutrient: Fat\n    limit: 20\n"), 0o644))

	policy, err := LoadPolicy(path)
	require.NoError(t, err)
	_, restricted := policy.Check("Fat", decimal.NewFromInt(20))
	assert.True(t, restricted)

	_, err = LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
