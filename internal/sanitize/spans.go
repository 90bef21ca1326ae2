package sanitize

import (
	"sort"
	"unicode"
	"unicode/utf8"
)

// isWordRune reports whether r belongs to a word token.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_'
}

// expandToWords widens e so that neither edge cuts through a word. Token
// boundaries reported by sub-word models often land inside a word
// ("Jo|hnson"); the whole word is taken instead of truncating.
func expandToWords(text string, e Entity) Entity {
	for e.Start > 0 && e.Start < len(text) && !utf8.RuneStart(text[e.Start]) {
		e.Start--
	}
	for e.End < len(text) && !utf8.RuneStart(text[e.End]) {
		e.End++
	}
	if e.Start < len(text) {
		if r, _ := utf8.DecodeRuneInString(text[e.Start:]); isWordRune(r) {
			for e.Start > 0 {
				prev, size := utf8.DecodeLastRuneInString(text[:e.Start])
				if !isWordRune(prev) {
					break
				}
				e.Start -= size
			}
		}
	}
	if e.End > 0 {
		if r, _ := utf8.DecodeLastRuneInString(text[:e.End]); isWordRune(r) {
			for e.End < len(text) {
				next, size := utf8.DecodeRuneInString(text[e.End:])
				if !isWordRune(next) {
					break
				}
				e.End += size
			}
		}
	}
	return e
}

// validEntity rejects out-of-range and empty spans.
func validEntity(text string, e Entity) bool {
	return e.Start >= 0 && e.End <= len(text) && e.Start < e.End
}

func overlaps(a, b Entity) bool {
	return a.Start < b.End && b.Start < a.End
}

// aggregateMax resolves overlaps: among intersecting entities the highest
// score wins, ties go to the longer span, then to the earlier one. The
// result is sorted by Start and contains no overlapping entities.
func aggregateMax(entities []Entity) []Entity {
	if len(entities) < 2 {
		return entities
	}
	ranked := make([]Entity, len(entities))
	copy(ranked, entities)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if la, lb := a.End-a.Start, b.End-b.Start; la != lb {
			return la > lb
		}
		return a.Start < b.Start
	})

	kept := make([]Entity, 0, len(ranked))
	for _, e := range ranked {
		clash := false
		for _, k := range kept {
			if overlaps(e, k) {
				clash = true
				break
			}
		}
		if !clash {
			kept = append(kept, e)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}
