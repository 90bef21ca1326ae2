package sanitize

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CanonicalEntities is the entity set every analysis is restricted to.
var CanonicalEntities = []string{
	"CRYPTO", "US_PASSPORT", "DATE_TIME", "EMAIL_ADDRESS", "URL",
	"US_BANK_NUMBER", "US_DRIVER_LICENSE", "IBAN_CODE", "UK_NHS", "US_ITIN",
	"CREDIT_CARD", "IP_ADDRESS", "PERSON", "PHONE_NUMBER", "MEDICAL_LICENSE",
	"US_SSN", "LOCATION", "NRP",
}

// defaultReplacements are the deterministic substitutes used by /replace.
var defaultReplacements = map[string]string{
	"PERSON":            "ABC",
	"PHONE_NUMBER":      "0000000",
	"EMAIL_ADDRESS":     "example@gmail.com",
	"US_SSN":            "000-00-0000",
	"CREDIT_CARD":       "0000-0000-0000-0000",
	"IP_ADDRESS":        "192.168.1.1",
	"LOCATION":          "Anytown",
	"URL":               "https://example.com",
	"DATE_TIME":         "2023-01-01",
	"CRYPTO":            "abc123",
	"US_PASSPORT":       "000000000",
	"US_BANK_NUMBER":    "000000000",
	"US_DRIVER_LICENSE": "D000000000",
	"IBAN_CODE":         "GB00 0000 0000 0000 0000 00",
	"UK_NHS":            "000 000 0000",
	"US_ITIN":           "000-00-0000",
	"MEDICAL_LICENSE":   "ML000000",
	"NRP":               "000000000",
}

// Mode selects how detected spans are rewritten.
type Mode int

const (
	// ModeGeneric replaces every span with <ENTITY_TYPE>.
	ModeGeneric Mode = iota
	// ModeFixed replaces spans with the policy's fixed literal for their type.
	ModeFixed
)

func (m Mode) String() string {
	if m == ModeFixed {
		return "fixed"
	}
	return "generic"
}

// RuleKind distinguishes generic tags from fixed literals.
type RuleKind int

const (
	RuleGeneric RuleKind = iota
	RuleFixed
)

// Rule is the substitution rule for one entity type.
type Rule struct {
	Kind  RuleKind
	Value string // only meaningful for RuleFixed
}

// Replacement returns the text a span of entityType is rewritten to.
func (r Rule) Replacement(entityType string) string {
	if r.Kind == RuleFixed {
		return r.Value
	}
	return GenericTag(entityType)
}

// GenericTag formats the default placeholder, e.g. "<PERSON>".
func GenericTag(entityType string) string {
	return "<" + entityType + ">"
}

// Policy maps entity types to substitution rules. It is immutable after
// construction and safe for concurrent use.
type Policy struct {
	rules map[string]Rule
}

// DefaultPolicy returns the policy with a fixed literal for every canonical type.
func DefaultPolicy() *Policy {
	p := &Policy{rules: make(map[string]Rule, len(defaultReplacements))}
	for t, v := range defaultReplacements {
		p.rules[t] = Rule{Kind: RuleFixed, Value: v}
	}
	return p
}

// NewPolicy creates a policy from an explicit rule table.
func NewPolicy(rules map[string]Rule) *Policy {
	p := &Policy{rules: make(map[string]Rule, len(rules))}
	for t, r := range rules {
		p.rules[t] = r
	}
	return p
}

// Rule looks up the rule for entityType. ok is false for types the policy
// does not mention; those are tagged in ModeGeneric and left alone in
// ModeFixed.
func (p *Policy) Rule(entityType string) (r Rule, ok bool) {
	r, ok = p.rules[entityType]
	return r, ok
}

// Operators maps entity types to the literal that replaces their spans.
// Spans whose type is absent are left as they are.
type Operators map[string]string

// Operators builds the per-call substitution table for the detected entities.
//
// In ModeFixed a detected type is rewritten by its rule: a fixed literal,
// or the generic tag for an explicit RuleGeneric entry. A type without any
// rule passes through unmasked.
func (p *Policy) Operators(mode Mode, entities []Entity) Operators {
	ops := make(Operators, len(entities))
	for _, e := range entities {
		if _, seen := ops[e.Type]; seen {
			continue
		}
		switch mode {
		case ModeFixed:
			if r, ok := p.Rule(e.Type); ok {
				ops[e.Type] = r.Replacement(e.Type)
			}
		default:
			ops[e.Type] = GenericTag(e.Type)
		}
	}
	return ops
}

// policyFile is the YAML layout accepted by LoadPolicy:
//
//	replacements:
//	  PERSON: "Jane Roe"
//	generic:
//	  - URL
type policyFile struct {
	Replacements map[string]string `yaml:"replacements"`
	Generic      []string          `yaml:"generic"`
}

// LoadPolicy returns DefaultPolicy with the overrides from the YAML file at
// path applied. Types under generic are tagged <TYPE> by /replace too; a
// type in both lists ends up generic. An empty path returns the default policy.
func LoadPolicy(path string) (*Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("policy: parse %s: %w", path, err)
	}
	for t, v := range f.Replacements {
		p.rules[strings.ToUpper(strings.TrimSpace(t))] = Rule{Kind: RuleFixed, Value: v}
	}
	for _, t := range f.Generic {
		p.rules[strings.ToUpper(strings.TrimSpace(t))] = Rule{Kind: RuleGeneric}
	}
	return p, nil
}
