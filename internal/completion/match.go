package completion

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"
)

// prefixMatches returns the candidates that start with word, ignoring case,
// in lexicographic order.
func prefixMatches(word string, candidates []string, casing Casing) []string {
	lw := strings.ToLower(word)
	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(strings.ToLower(c), lw) {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return applyCasing(word, out, casing)
}

// fuzzyMatches returns the candidates containing the characters of word in
// order, ignoring case. Better matches come first; equal scores are
// ordered by name. An empty word matches everything.
func fuzzyMatches(word string, candidates []string, casing Casing) []string {
	if len(candidates) == 0 {
		return nil
	}
	if word == "" {
		out := slices.Clone(candidates)
		slices.Sort(out)
		return applyCasing(word, out, casing)
	}

	lower := make([]string, len(candidates))
	for i, c := range candidates {
		lower[i] = strings.ToLower(c)
	}
	matches := fuzzy.Find(strings.ToLower(word), lower)
	slices.SortStableFunc(matches, func(a, b fuzzy.Match) int {
		if a.Score != b.Score {
			return cmp.Compare(b.Score, a.Score)
		}
		return cmp.Compare(candidates[a.Index], candidates[b.Index])
	})

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, candidates[m.Index])
	}
	return applyCasing(word, out, casing)
}

// applyCasing recases texts per casing. An empty casing leaves them as is.
func applyCasing(word string, texts []string, casing Casing) []string {
	if casing == CasingAuto {
		casing = CasingUpper
		if r, _ := utf8.DecodeLastRuneInString(word); word != "" && unicode.IsLower(r) {
			casing = CasingLower
		}
	}
	switch casing {
	case CasingUpper:
		for i, t := range texts {
			texts[i] = strings.ToUpper(t)
		}
	case CasingLower:
		for i, t := range texts {
			texts[i] = strings.ToLower(t)
		}
	}
	return texts
}
