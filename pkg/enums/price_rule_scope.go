package enums

import "fmt"

// PriceRuleScope is the specificity level at which a price rule applies.
type PriceRuleScope string

const (
	PriceRuleScopeGlobal   PriceRuleScope = "global"
	PriceRuleScopeTenant   PriceRuleScope = "tenant"
	PriceRuleScopeLocation PriceRuleScope = "location"
	PriceRuleScopeStorage  PriceRuleScope = "storage"
)

var validPriceRuleScopes = []PriceRuleScope{
	PriceRuleScopeGlobal,
	PriceRuleScopeTenant,
	PriceRuleScopeLocation,
	PriceRuleScopeStorage,
}

// String implements fmt.Stringer.
func (p PriceRuleScope) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PriceRuleScope.
func (p PriceRuleScope) IsValid() bool {
	for _, candidate := range validPriceRuleScopes {
		if candidate == p {
			return true
		}
	}
	return false
}

// Specificity orders scopes from least (0) to most specific. Resolution walks
// from the highest specificity downward.
func (p PriceRuleScope) Specificity() int {
	switch p {
	case PriceRuleScopeStorage:
		return 3
	case PriceRuleScopeLocation:
		return 2
	case PriceRuleScopeTenant:
		return 1
	default:
		return 0
	}
}

// ParsePriceRuleScope converts raw input into a PriceRuleScope.
func ParsePriceRuleScope(value string) (PriceRuleScope, error) {
	for _, candidate := range validPriceRuleScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid price rule scope %q", value)
}
