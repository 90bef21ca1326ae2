package sanitize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedValue returns the literal of a RuleFixed entry.
func fixedValue(p *Policy, typ string) (string, bool) {
	r, ok := p.Rule(typ)
	if !ok || r.Kind != RuleFixed {
		return "", false
	}
	return r.Value, true
}

func TestDefaultPolicy_EveryCanonicalTypeIsFixed(t *testing.T) {
	p := DefaultPolicy()
	require.Len(t, CanonicalEntities, 18)
	for _, e := range CanonicalEntities {
		r, ok := p.Rule(e)
		require.True(t, ok, e)
		assert.Equal(t, RuleFixed, r.Kind, e)
		assert.NotEmpty(t, r.Value, e)
	}
}

func TestDefaultPolicy_KnownValues(t *testing.T) {
	p := DefaultPolicy()
	for typ, want := range map[string]string{
		"EMAIL_ADDRESS":   "example@gmail.com",
		"PERSON":          "ABC",
		"IBAN_CODE":       "GB00 0000 0000 0000 0000 00",
		"MEDICAL_LICENSE": "ML000000",
	} {
		got, ok := fixedValue(p, typ)
		require.True(t, ok, typ)
		assert.Equal(t, want, got)
	}
}

func TestPolicy_UnknownTypeHasNoRule(t *testing.T) {
	p := DefaultPolicy()
	_, ok := p.Rule("ORGANIZATION")
	assert.False(t, ok)
	assert.Equal(t, "<ORGANIZATION>", Rule{Kind: RuleGeneric}.Replacement("ORGANIZATION"))

	_, ok = fixedValue(p, "ORGANIZATION")
	assert.False(t, ok)
}

func TestPolicy_Operators(t *testing.T) {
	p := DefaultPolicy()
	found := []Entity{
		{Type: "PERSON", Start: 0, End: 4},
		{Type: "ORGANIZATION", Start: 10, End: 14},
		{Type: "PERSON", Start: 20, End: 24},
	}

	generic := p.Operators(ModeGeneric, found)
	assert.Equal(t, Operators{"PERSON": "<PERSON>", "ORGANIZATION": "<ORGANIZATION>"}, generic)

	fixed := p.Operators(ModeFixed, found)
	assert.Equal(t, Operators{"PERSON": "ABC"}, fixed, "types without a rule are left out")

	explicit := NewPolicy(map[string]Rule{"PERSON": {Kind: RuleGeneric}})
	assert.Equal(t, Operators{"PERSON": "<PERSON>"}, explicit.Operators(ModeFixed, found))
}

func TestLoadPolicy_EmptyPath(t *testing.T) {
	p, err := LoadPolicy("")
	require.NoError(t, err)
	v, _ := fixedValue(p, "PERSON")
	assert.Equal(t, "ABC", v)
}

func TestLoadPolicy_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
replacements:
  person: "Jane Roe"
  ORGANIZATION: "ACME"
generic:
  - URL
`), 0o600))

	p, err := LoadPolicy(path)
	require.NoError(t, err)

	v, ok := fixedValue(p, "PERSON")
	require.True(t, ok)
	assert.Equal(t, "Jane Roe", v)

	v, ok = fixedValue(p, "ORGANIZATION")
	require.True(t, ok)
	assert.Equal(t, "ACME", v)

	_, ok = fixedValue(p, "URL")
	assert.False(t, ok)
	r, ok := p.Rule("URL")
	require.True(t, ok)
	assert.Equal(t, RuleGeneric, r.Kind)

	v, _ = fixedValue(p, "EMAIL_ADDRESS")
	assert.Equal(t, "example@gmail.com", v, "untouched defaults survive")
}

func TestLoadPolicy_GenericTypesAreTaggedByReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generic:\n  - email_address\n"), 0o600))
	p, err := LoadPolicy(path)
	require.NoError(t, err)

	a := NewAnalyzer([]Classifier{literalClassifier(contactValues, 0.9)}, nil)
	m := NewMasker(a, p)
	out, err := m.Mask(context.Background(), []byte(`{"messages":[{"role":"u","content":"John Smith <john@example.com>"}]}`), ModeFixed)
	require.NoError(t, err)
	assert.Equal(t, `{"messages":[{"role":"u","content":"ABC <<EMAIL_ADDRESS>>"}]}`, string(out))
}

func TestLoadPolicy_Errors(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("replacements: [unclosed"), 0o600))
	_, err = LoadPolicy(path)
	assert.Error(t, err)
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "generic", ModeGeneric.String())
	assert.Equal(t, "fixed", ModeFixed.String())
}
