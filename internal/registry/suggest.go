package registry

// displayOrder lists the closed display set in a fixed order so
// SuggestDisplay's output is deterministic when distances tie.
var displayOrder = []string{
	"page", "section", "card", "list", "table",
	"checklist", "metric", "text", "image", "row",
}

// SuggestDisplay returns a closed-set display name for got, for use in an
// UNKNOWN_DISPLAY error's detail message ("did you mean 'table'?"). The
// first candidate in displayOrder that contains got's characters in order
// (a case-insensitive subsequence match) is returned outright, whatever its
// edit distance; otherwise the candidate closest by Levenshtein distance is
// returned. ok is false only when no candidate matches as a subsequence and
// every candidate is farther than maxSuggestDistance.
const maxSuggestDistance = 3

func SuggestDisplay(got string) (string, bool) {
	best := ""
	bestDist := maxSuggestDistance + 1
	for _, candidate := range displayOrder {
		if fuzzyMatch(got, candidate) {
			return candidate, true
		}
		d := levenshteinDistance(got, candidate)
		if d < bestDist {
			bestDist = d
			best = candidate
		}
	}
	if bestDist > maxSuggestDistance {
		return "", false
	}
	return best, true
}
