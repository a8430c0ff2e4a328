package match

// Ratio computes the Ratcliff/Obershelp similarity of two strings: twice
// the number of matching characters divided by the total length. The
// result is in [0, 1]; two empty strings are identical and score 1.
func Ratio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	matched := matchingRunes(ra, rb, 0, len(ra), 0, len(rb))
	return 2 * float64(matched) / float64(len(ra)+len(rb))
}

// Similarity is Ratio applied to normalized titles.
func Similarity(a, b string) float64 {
	return Ratio(NormalizeTitle(a), NormalizeTitle(b))
}

// matchingRunes counts the characters covered by recursively taking the
// longest common substring and recursing on the pieces to its left and
// right.
func matchingRunes(a, b []rune, aLo, aHi, bLo, bHi int) int {
	bestA, bestB, bestSize := longestMatch(a, b, aLo, aHi, bLo, bHi)
	if bestSize == 0 {
		return 0
	}
	total := bestSize
	total += matchingRunes(a, b, aLo, bestA, bLo, bestB)
	total += matchingRunes(a, b, bestA+bestSize, aHi, bestB+bestSize, bHi)
	return total
}

// longestMatch finds the longest common substring of a[aLo:aHi] and
// b[bLo:bHi], preferring the earliest occurrence in a, then in b.
func longestMatch(a, b []rune, aLo, aHi, bLo, bHi int) (int, int, int) {
	bestA, bestB, bestSize := aLo, bLo, 0
	j2len := make(map[int]int)
	for i := aLo; i < aHi; i++ {
		next := make(map[int]int)
		for j := bLo; j < bHi; j++ {
			if a[i] != b[j] {
				continue
			}
			size := j2len[j-1] + 1
			next[j] = size
			if size > bestSize {
				bestA, bestB, bestSize = i-size+1, j-size+1, size
			}
		}
		j2len = next
	}
	return bestA, bestB, bestSize
}
