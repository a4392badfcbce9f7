package dispatch

import "github.com/agnivade/levenshtein"

// SimilarTextDistance is the largest edit distance at which two recognized
// texts are considered the same reading.
const SimilarTextDistance = 3

// SimilarText reports whether b is close enough to a that re-translating is
// not worthwhile. Distance is counted in runes.
func SimilarText(a, b string) bool {
	return levenshtein.ComputeDistance(a, b) <= SimilarTextDistance
}
