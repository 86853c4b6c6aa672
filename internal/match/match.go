// Package match resolves loosely typed player input (species names, command
// words) against a fixed set of candidates.
//
// Ranking, best first: exact term, prefix of a term (2+ characters), then
// edit distance within a length-scaled limit. Input and terms are compared
// after Normalize, so "Sea-Star", "sea star" and "  SEA   STAR " are equal.
package match

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Candidate is one resolvable value and the terms that name it.
type Candidate struct {
	Key   string
	Terms []string
}

// Normalize lowercases s, treats hyphens and underscores as spaces and
// collapses runs of whitespace.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

type scored struct {
	key   string
	score float64
}

// Resolve picks the candidate that input most likely names.
// ok is false when nothing is close enough (alts empty) or when several
// candidates tie for best (alts lists them, at most four).
func Resolve(input string, cands []Candidate) (best string, alts []string, ok bool) {
	token := Normalize(input)
	if token == "" {
		return "", nil, false
	}

	results := make([]scored, 0, len(cands))
	for _, c := range cands {
		top := 0.0
		for _, term := range c.Terms {
			if s := termScore(token, Normalize(term)); s > top {
				top = s
			}
		}
		if top > 0 {
			results = append(results, scored{key: c.Key, score: top})
		}
	}
	if len(results) == 0 {
		return "", nil, false
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score == results[j].score {
			return results[i].key < results[j].key
		}
		return results[i].score > results[j].score
	})

	if len(results) == 1 || results[0].score > results[1].score {
		return results[0].key, nil, true
	}
	for _, r := range results {
		if r.score != results[0].score || len(alts) == 4 {
			break
		}
		alts = append(alts, r.key)
	}
	return "", alts, false
}

func termScore(token, term string) float64 {
	switch {
	case term == "":
		return 0
	case token == term:
		return 1.0
	case len(token) >= 2 && strings.HasPrefix(term, token):
		return 0.9
	}
	dist := levenshtein.ComputeDistance(token, term)
	if dist > distanceLimit(len(term)) {
		return 0
	}
	return 0.72 - 0.08*float64(dist)
}

func distanceLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
