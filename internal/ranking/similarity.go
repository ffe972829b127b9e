package ranking

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/adrg/strutil/metrics"
)

// Similarity scores how alike two strings are, in [0,1].
type Similarity interface {
	Ratio(a, b string) (float64, error)
}

// TokenSortSimilarity lower-cases both strings, keeps alphanumeric tokens,
// sorts them and compares the rejoined strings, so word order does not matter.
// The comparison is the normalized InDel ratio: an edit distance where a
// substitution costs 2, divided by the combined length.
type TokenSortSimilarity struct {
	indel *metrics.Levenshtein
}

func NewTokenSortSimilarity() *TokenSortSimilarity {
	return &TokenSortSimilarity{indel: &metrics.Levenshtein{
		CaseSensitive: true,
		InsertCost:    1,
		DeleteCost:    1,
		ReplaceCost:   2,
	}}
}

func (s *TokenSortSimilarity) Ratio(a, b string) (ratio float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("similarity backend panicked: %v", r)
		}
	}()

	ta, tb := tokenSort(a), tokenSort(b)
	if ta == "" || tb == "" {
		return 0, nil
	}
	total := utf8.RuneCountInString(ta) + utf8.RuneCountInString(tb)
	return 1 - float64(s.indel.Distance(ta, tb))/float64(total), nil
}

func tokenSort(s string) string {
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// containment is the fallback when the similarity backend is unavailable:
// 1 if query occurs in text ignoring case, else 0.
func containment(query, text string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 0
	}
	if strings.Contains(strings.ToLower(text), q) {
		return 1
	}
	return 0
}
