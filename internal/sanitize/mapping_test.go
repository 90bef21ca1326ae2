package sanitize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelMapping_Resolve(t *testing.T) {
	m := DefaultLabelMapping()

	cases := []struct {
		label string
		want  string
		ok    bool
	}{
		{"PER", "PERSON", true},
		{"B-PER", "PERSON", true},
		{"I-LOC", "LOCATION", true},
		{"PATIENT", "PERSON", true},
		{"STAFF", "PERSON", true},
		{"HOSP", "LOCATION", true},
		{"NORP", "NRP", true},
		{"TIME", "DATE_TIME", true},
		{"ORG", "ORGANIZATION", true},
		{"EMAIL_ADDRESS", "EMAIL_ADDRESS", true},
		{"us_ssn", "US_SSN", true},
		{"O", "", false},
		{"MISC", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := m.Resolve(tc.label)
		assert.Equal(t, tc.ok, ok, tc.label)
		assert.Equal(t, tc.want, got, tc.label)
	}
}

func TestLoadLabelMapping_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model_to_entity_mapping:
  DOCTOR: PERSON
  PER: LOCATION
labels_to_ignore: [O, MISC]
`), 0o600))

	m, err := LoadLabelMapping(path)
	require.NoError(t, err)

	got, ok := m.Resolve("DOCTOR")
	require.True(t, ok)
	assert.Equal(t, "PERSON", got)

	got, _ = m.Resolve("PER")
	assert.Equal(t, "LOCATION", got, "file entries override defaults")

	got, _ = m.Resolve("PATIENT")
	assert.Equal(t, "PERSON", got, "defaults not named in the file survive")

	_, ok = m.Resolve("MISC")
	assert.False(t, ok)
}

func TestLoadLabelMapping_MissingFile(t *testing.T) {
	_, err := LoadLabelMapping(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
