package match

import (
	"math"
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Fuzzy similarity measures on the 0-100 scale. All three are tried on
// merchant names and the best one wins: plain edit-distance ratio for
// near-identical strings, partial ratio for one name embedded in a longer
// one (e.g. a store number suffix), and token-sort ratio for reordered
// words.

func ratio(a, b string) int {
	return ratioRunes([]rune(a), []rune(b))
}

func ratioRunes(a, b []rune) int {
	if len(a) == 0 && len(b) == 0 {
		return 100
	}
	r := levenshtein.RatioForStrings(a, b, levenshtein.DefaultOptions)
	return int(math.Round(r * 100))
}

func partialRatio(a, b string) int {
	shorter, longer := []rune(a), []rune(b)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		return 0
	}

	best := 0
	for i := 0; i+len(shorter) <= len(longer); i++ {
		if score := ratioRunes(shorter, longer[i:i+len(shorter)]); score > best {
			best = score
		}
	}
	return best
}

func tokenSortRatio(a, b string) int {
	return ratio(sortTokens(a), sortTokens(b))
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
