package sanitize

import "strings"

// Anonymize rewrites text by replacing every entity whose type has an entry
// in ops with that entry. Entities must be sorted by Start and must not
// overlap, which is what Analyzer returns; an entity starting inside an
// already replaced one is skipped.
func Anonymize(text string, entities []Entity, ops Operators) string {
	if len(entities) == 0 || len(ops) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, e := range entities {
		repl, ok := ops[e.Type]
		if !ok || e.Start < last || e.End > len(text) {
			continue
		}
		b.WriteString(text[last:e.Start])
		b.WriteString(repl)
		last = e.End
	}
	b.WriteString(text[last:])
	return b.String()
}
