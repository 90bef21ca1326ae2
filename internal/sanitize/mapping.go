package sanitize

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultModelMapping translates labels emitted by token-classification
// models (CoNLL, i2b2-style de-identification) into canonical entity types.
// ORGANIZATION, AGE, ID and EMAIL are mapped but not part of the canonical
// set, so they are dropped by the entity filter.
var defaultModelMapping = map[string]string{
	"PER":          "PERSON",
	"LOC":          "LOCATION",
	"ORG":          "ORGANIZATION",
	"AGE":          "AGE",
	"ID":           "ID",
	"EMAIL":        "EMAIL",
	"DATE":         "DATE_TIME",
	"PHONE":        "PHONE_NUMBER",
	"PERSON":       "PERSON",
	"LOCATION":     "LOCATION",
	"GPE":          "LOCATION",
	"ORGANIZATION": "ORGANIZATION",
	"NORP":         "NRP",
	"PATIENT":      "PERSON",
	"STAFF":        "PERSON",
	"HOSP":         "LOCATION",
	"PATORG":       "ORGANIZATION",
	"TIME":         "DATE_TIME",
	"HCW":          "PERSON",
	"HOSPITAL":     "LOCATION",
	"FACILITY":     "LOCATION",
	"VENDOR":       "ORGANIZATION",
}

var defaultIgnoredLabels = []string{"O"}

// LabelMapping resolves engine-native labels to canonical entity types.
type LabelMapping struct {
	labels map[string]string
	ignore map[string]bool
	known  map[string]bool // canonical types accepted verbatim
}

// DefaultLabelMapping returns the built-in mapping table.
func DefaultLabelMapping() *LabelMapping {
	m := &LabelMapping{
		labels: make(map[string]string, len(defaultModelMapping)),
		ignore: make(map[string]bool, len(defaultIgnoredLabels)),
		known:  make(map[string]bool, len(CanonicalEntities)),
	}
	for k, v := range defaultModelMapping {
		m.labels[k] = v
	}
	for _, l := range defaultIgnoredLabels {
		m.ignore[l] = true
	}
	for _, e := range CanonicalEntities {
		m.known[e] = true
	}
	return m
}

// Resolve maps label to a canonical entity type. BIO/BILOU prefixes are
// stripped first. Ignored and unmapped labels report false.
func (m *LabelMapping) Resolve(label string) (string, bool) {
	l := strings.ToUpper(strings.TrimSpace(label))
	if m.ignore[l] {
		return "", false
	}
	if len(l) > 2 && l[1] == '-' && strings.ContainsRune("BIELSU", rune(l[0])) {
		l = l[2:]
	}
	if l == "" || m.ignore[l] {
		return "", false
	}
	if t, ok := m.labels[l]; ok {
		return t, true
	}
	if m.known[l] {
		return l, true
	}
	return "", false
}

// mappingFile is the YAML layout accepted by LoadLabelMapping:
//
//	model_to_entity_mapping:
//	  PER: PERSON
//	  DOCTOR: PERSON
//	labels_to_ignore: [O, MISC]
type mappingFile struct {
	Mapping map[string]string `yaml:"model_to_entity_mapping"`
	Ignore  []string          `yaml:"labels_to_ignore"`
}

// LoadLabelMapping returns the default mapping merged with the entries from
// the YAML file at path. An empty path returns the default mapping.
// When the file lists labels_to_ignore it replaces the default ignore list.
func LoadLabelMapping(path string) (*LabelMapping, error) {
	m := DefaultLabelMapping()
	if path == "" {
		return m, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mapping: read %s: %w", path, err)
	}
	var f mappingFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("mapping: parse %s: %w", path, err)
	}
	for k, v := range f.Mapping {
		m.labels[strings.ToUpper(strings.TrimSpace(k))] = strings.ToUpper(strings.TrimSpace(v))
	}
	if f.Ignore != nil {
		m.ignore = make(map[string]bool, len(f.Ignore))
		for _, l := range f.Ignore {
			m.ignore[strings.ToUpper(strings.TrimSpace(l))] = true
		}
	}
	return m, nil
}
