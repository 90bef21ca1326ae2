// Package pattern provides a Classifier built from regular expressions and
// checksum validators for structured identifiers: e-mail addresses, phone
// numbers, card numbers, IBANs and the like. It needs no external service
// and is the default detection engine.
//
// Scores follow the usual convention for rule-based recognizers: patterns
// backed by a checksum report high confidence, bare digit runs report very
// low confidence so any better-scoring overlap replaces them.
package pattern

import (
	"context"
	"regexp"
	"strings"

	"github.com/gonkalabs/pii-masker-go/internal/sanitize"
)

type recognizer struct {
	entity   string
	re       *regexp.Regexp
	score    float64
	validate func(string) bool
	trim     func(string) string
	// isolated rejects matches touching a letter or digit on either side,
	// for patterns that cannot anchor with \b.
	isolated bool
}

var recognizers = []recognizer{
	{
		entity: "EMAIL_ADDRESS",
		re:     regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
		score:  1.0,
	},
	{
		entity: "URL",
		re:     regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"'` + "`" + `]+`),
		score:  0.6,
		trim:   trimURL,
	},
	{
		entity: "PHONE_NUMBER",
		re:     regexp.MustCompile(`(?:\+?1[\-.\s]?)?(?:\(\d{3}\)|\b\d{3})[\-.\s]?\d{3}[\-.\s]?\d{4}\b`),
		score:  0.75,
	},
	{
		entity: "PHONE_NUMBER",
		re:     regexp.MustCompile(`\+\d{1,3}[\-.\s]?\(?\d{1,4}\)?(?:[\-.\s]?\d{2,4}){2,4}\b`),
		score:  0.75,
	},
	{
		entity:   "US_SSN",
		re:       regexp.MustCompile(`\b\d{3}[\- .]?\d{2}[\- .]?\d{4}\b`),
		score:    0.85,
		validate: validSSN,
	},
	{
		entity:   "US_ITIN",
		re:       regexp.MustCompile(`\b9\d{2}[\- ]?(?:5\d|6[0-5]|7\d|8[0-8]|9[0-24-9])[\- ]?\d{4}\b`),
		score:    0.5,
		validate: sameSeparators,
	},
	{
		entity:   "CREDIT_CARD",
		re:       regexp.MustCompile(`\b(?:\d[ \-]?){12,18}\d\b`),
		score:    1.0,
		validate: validCard,
	},
	{
		entity:   "IBAN_CODE",
		re:       regexp.MustCompile(`\b[A-Z]{2}\d{2}(?: ?[A-Z0-9]{4}){2,7}(?: ?[A-Z0-9]{1,3})?\b`),
		score:    1.0,
		validate: validIBAN,
	},
	{
		entity:   "IP_ADDRESS",
		re:       regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
		score:    0.6,
		validate: validIPv4,
	},
	{
		entity:   "IP_ADDRESS",
		re:       regexp.MustCompile(`(?i)[0-9a-f]{0,4}(?::[0-9a-f]{0,4}){2,7}`),
		score:    0.6,
		validate: validIPv6,
		isolated: true,
	},
	{
		entity:   "CRYPTO",
		re:       regexp.MustCompile(`\b(?:bc1[02-9ac-hj-np-z]{11,71}|[13][1-9A-HJ-NP-Za-km-z]{25,34})\b`),
		score:    1.0,
		validate: validBitcoin,
	},
	{
		entity:   "UK_NHS",
		re:       regexp.MustCompile(`\b\d{3}[\- ]?\d{3}[\- ]?\d{4}\b`),
		score:    0.5,
		validate: validNHS,
	},
	{
		entity:   "MEDICAL_LICENSE",
		re:       regexp.MustCompile(`\b[ABCDEFGHJKLMPRSTUX][A-Z9]\d{7}\b`),
		score:    0.4,
		validate: validDEA,
	},
	{
		entity: "US_PASSPORT",
		re:     regexp.MustCompile(`\b[A-Z]?\d{9}\b`),
		score:  0.05,
	},
	{
		entity: "US_DRIVER_LICENSE",
		re:     regexp.MustCompile(`\b[A-Z]\d{5,12}\b`),
		score:  0.01,
	},
	{
		entity: "US_BANK_NUMBER",
		re:     regexp.MustCompile(`\b\d{8,17}\b`),
		score:  0.05,
	},
	{
		entity:   "DATE_TIME",
		re:       regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2})?)?\b`),
		score:    0.6,
		validate: validISODate,
	},
	{
		entity:   "DATE_TIME",
		re:       regexp.MustCompile(`\b\d{1,2}[/.\-]\d{1,2}[/.\-](?:\d{4}|\d{2})\b`),
		score:    0.6,
		validate: validNumericDate,
	},
	{
		entity: "DATE_TIME",
		re:     regexp.MustCompile(`(?i)\b(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.? \d{1,2}(?:st|nd|rd|th)?,? \d{4}\b`),
		score:  0.6,
	},
}

// Classifier runs the built-in recognizers. It is stateless and safe for
// concurrent use.
type Classifier struct {
	recognizers []recognizer
}

// New returns a Classifier restricted to the given entity types. With no
// arguments every recognizer is enabled.
func New(entities ...string) *Classifier {
	if len(entities) == 0 {
		return &Classifier{recognizers: recognizers}
	}
	want := make(map[string]bool, len(entities))
	for _, e := range entities {
		want[strings.ToUpper(e)] = true
	}
	var rs []recognizer
	for _, r := range recognizers {
		if want[r.entity] {
			rs = append(rs, r)
		}
	}
	return &Classifier{recognizers: rs}
}

// Entities lists the entity types this classifier can report.
func (c *Classifier) Entities() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range c.recognizers {
		if !seen[r.entity] {
			seen[r.entity] = true
			out = append(out, r.entity)
		}
	}
	return out
}

// Classify returns a span for every validated match, labelled with the
// canonical entity type.
func (c *Classifier) Classify(ctx context.Context, text string) ([]sanitize.Span, error) {
	var spans []sanitize.Span
	for _, r := range c.recognizers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, loc := range r.re.FindAllStringIndex(text, -1) {
			start, end := loc[0], loc[1]
			if r.trim != nil {
				end = start + len(r.trim(text[start:end]))
			}
			if start >= end {
				continue
			}
			if r.isolated && !isolated(text, start, end) {
				continue
			}
			if r.validate != nil && !r.validate(text[start:end]) {
				continue
			}
			spans = append(spans, sanitize.Span{Start: start, End: end, Label: r.entity, Score: r.score})
		}
	}
	return spans, nil
}

func isolated(text string, start, end int) bool {
	if start > 0 && isAlnum(text[start-1]) {
		return false
	}
	return end >= len(text) || !isAlnum(text[end])
}

func isAlnum(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b == '_'
}

// trimURL drops sentence punctuation that the greedy URL pattern swallows.
func trimURL(s string) string {
	return strings.TrimRight(s, ".,;:!?)]}'\"")
}
