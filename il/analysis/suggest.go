package analysis

import (
	"github.com/hbollon/go-edlib"
)

// suggestionThreshold is the minimum Jaro-Winkler similarity for a
// "did you mean" hint
const suggestionThreshold float32 = 0.8

// closestName returns the candidate most similar to name, or "" when none
// reaches the threshold
func closestName(name string, candidates []string) string {
	var best string
	var bestScore float32
	for _, c := range candidates {
		if c == name {
			continue
		}
		score, err := edlib.StringsSimilarity(name, c, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if score >= suggestionThreshold && score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}
