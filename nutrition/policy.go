package nutrition

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const PotassiumWarning = "High potassium content - Restricted for kidney transplant patients"

// Rule restricts a nutrient once its amount reaches Limit.
type Rule struct {
	Nutrient string
	Limit    decimal.Decimal
	Message  string
}

// Policy is an ordered rule list; the first rule matching a nutrient wins.
type Policy struct {
	Rules []Rule
}

// DefaultPolicy restricts potassium at 400 mg.
func DefaultPolicy() Policy {
	return Policy{Rules: []Rule{
		{Nutrient: "Potassium", Limit: decimal.NewFromInt(400), Message: PotassiumWarning},
	}}
}

// Check reports the rule that restricts amount of the named nutrient, if any.
func (p Policy) Check(nutrient string, amount decimal.Decimal) (Rule, bool) {
	for _, r := range p.Rules {
		if !strings.EqualFold(r.Nutrient, nutrient) {
			continue
		}
		if amount.GreaterThanOrEqual(r.Limit) {
			return r, true
		}
		return Rule{}, false
	}
	return Rule{}, false
}

type policyFile struct {
	Rules []struct {
		Nutrient string  `yaml:"nutrient"`
		Limit    float64 `yaml:"limit"`
		Message  string  `yaml:"message"`
	} `yaml:"rules"`
}

// LoadPolicy reads a restriction policy from a YAML file of the form
//
//	rules:
//	  - nutrient: Potassium
//	    limit: 400
//	    message: High potassium content
func LoadPolicy(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read restriction policy '%s': %w", path, err)
	}
	return ParsePolicy(raw)
}

func ParsePolicy(raw []byte) (Policy, error) {
	var pf policyFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return Policy{}, fmt.Errorf("failed to parse restriction policy: %w", err)
	}
	if len(pf.Rules) == 0 {
		return Policy{}, fmt.Errorf("restriction policy has no rules")
	}

	policy := Policy{Rules: make([]Rule, 0, len(pf.Rules))}
	for i, r := range pf.Rules {
		name := strings.TrimSpace(r.Nutrient)
		if _, ok := unitFor(name); !ok {
			return Policy{}, fmt.Errorf("rule %d: unknown nutrient '%s'", i, r.Nutrient)
		}
		msg := r.Message
		if msg == "" {
			msg = fmt.Sprintf("High %s content", strings.ToLower(name))
		}
		policy.Rules = append(policy.Rules, Rule{
			Nutrient: name,
			Limit:    decimal.NewFromFloat(r.Limit),
			Message:  msg,
		})
	}
	return policy, nil
}
