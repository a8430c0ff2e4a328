package cleanup

import "cleanarr/internal/match"

// yearBonus is added to the similarity score when the watched item and
// the catalog entry agree on a known release year.
const yearBonus = 0.1

// bestCatalogMatch finds the catalog entry whose title best matches the
// watched item. The acceptance score is the title similarity plus the
// year bonus; an entry wins only by strictly beating the previous best,
// so the first of equally scored entries is kept. The returned
// candidate's Score is the plain similarity without the bonus.
func bestCatalogMatch(item WatchedItem, entries []CatalogEntry, threshold float64) (MatchCandidate, bool) {
	var (
		best      MatchCandidate
		bestScore float64
		found     bool
	)
	for _, entry := range entries {
		similarity := match.Similarity(item.Name, entry.Title)
		score := similarity
		if item.Year != 0 && entry.Year != 0 && item.Year == entry.Year {
			score += yearBonus
		}
		if score > bestScore && score >= threshold {
			best = MatchCandidate{Item: item, Entry: entry, Score: similarity}
			bestScore = score
			found = true
		}
	}
	return best, found
}
