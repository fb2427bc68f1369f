package menu

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// searchThreshold is the minimum similarity score for a fuzzy match.
// Calibrated so "coke" matches "Coca-Cola" via token scoring while "lobster
// roll" matches nothing on a burger menu.
const searchThreshold = 0.84

// scoredItem pairs an item with its match score for sorting.
type scoredItem struct {
	item  Item
	score float64
}

// fuzzySearch ranks items against query and returns those above the
// threshold, best match first. Ties break alphabetically so results are
// deterministic.
func fuzzySearch(items []Item, query string) []Item {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var matches []scoredItem
	for _, it := range items {
		if s := similarity(q, strings.ToLower(it.Name)); s >= searchThreshold {
			matches = append(matches, scoredItem{item: it, score: s})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].item.Name < matches[j].item.Name
	})

	out := make([]Item, len(matches))
	for i, m := range matches {
		out[i] = m.item
	}
	return out
}

// similarity scores query against a single item name in [0,1]. Exact and
// substring hits score highest; otherwise the best of whole-string
// JaroWinkler, phonetic equality, and per-token matching wins.
func similarity(query, name string) float64 {
	if query == name {
		return 1.0
	}
	if strings.Contains(name, query) || strings.Contains(query, name) {
		return 0.95
	}

	best := matchr.JaroWinkler(query, name, true)
	if phoneticMatch(query, name) {
		best = max(best, 0.9)
	}
	if s := tokenSimilarity(query, name); s > best {
		best = s
	}
	return best
}

// tokenSimilarity matches multi-word queries word by word: every query token
// must find a good counterpart among the name's tokens. "quarter pounder
// cheese" still matches "Quarter Pounder with Cheese".
func tokenSimilarity(query, name string) float64 {
	qTokens := strings.Fields(query)
	nTokens := strings.Fields(name)
	if len(qTokens) == 0 || len(nTokens) == 0 {
		return 0
	}

	var total float64
	for _, qt := range qTokens {
		best := 0.0
		for _, nt := range nTokens {
			s := matchr.JaroWinkler(qt, nt, true)
			if phoneticMatch(qt, nt) {
				s = max(s, 0.9)
			}
			if s > best {
				best = s
			}
		}
		if best < searchThreshold {
			return 0
		}
		total += best
	}
	return total / float64(len(qTokens))
}

// phoneticMatch reports whether two words sound alike under Double Metaphone.
func phoneticMatch(a, b string) bool {
	a1, a2 := matchr.DoubleMetaphone(a)
	b1, b2 := matchr.DoubleMetaphone(b)
	if a1 == "" || b1 == "" {
		return false
	}
	return a1 == b1 || (a2 != "" && a2 == b2)
}
