package docerr

import "sort"

// Suggest returns the names from candidates within editDistance 2 of name,
// closest first, capped at maxSuggestions. Used for "did you mean" hints on
// unresolved placeholders (spec.md §7) and unknown selector keys.
func Suggest(name string, candidates []string, maxSuggestions int) []string {
	type scored struct {
		name string
		dist int
	}
	var scoredCandidates []scored
	for _, c := range candidates {
		d := levenshtein(name, c)
		if d <= 2 {
			scoredCandidates = append(scoredCandidates, scored{c, d})
		}
	}
	sort.SliceStable(scoredCandidates, func(i, j int) bool {
		return scoredCandidates[i].dist < scoredCandidates[j].dist
	})
	if len(scoredCandidates) > maxSuggestions {
		scoredCandidates = scoredCandidates[:maxSuggestions]
	}
	out := make([]string, len(scoredCandidates))
	for i, s := range scoredCandidates {
		out[i] = s.name
	}
	return out
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min(del, min(ins, sub))
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}
