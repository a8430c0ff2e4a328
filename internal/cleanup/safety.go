package cleanup

// FilterSafe removes candidates whose media still exists in the download
// client and returns the number skipped. Episodes are already gated at
// collection time and pass through unchanged.
func FilterSafe(plan *Plan) (*Plan, int) {
	safe := &Plan{Episodes: plan.Episodes}
	skipped := 0
	for _, movie := range plan.Movies {
		if movie.InTorrents {
			skipped++
			continue
		}
		safe.Movies = append(safe.Movies, movie)
	}
	for _, series := range plan.Series {
		if series.InTorrents {
			skipped++
			continue
		}
		safe.Series = append(safe.Series, series)
	}
	return safe, skipped
}

// FilterByScore drops candidates whose plain title similarity falls
// below the cutoff. The year bonus already influenced matching; this
// cutoff applies to the raw similarity alone.
func FilterByScore(plan *Plan, minScore float64) (*Plan, int) {
	if minScore <= 0 {
		return plan, 0
	}
	filtered := &Plan{Episodes: plan.Episodes}
	skipped := 0
	for _, movie := range plan.Movies {
		if movie.Score < minScore {
			skipped++
			continue
		}
		filtered.Movies = append(filtered.Movies, movie)
	}
	for _, series := range plan.Series {
		if series.Score < minScore {
			skipped++
			continue
		}
		filtered.Series = append(filtered.Series, series)
	}
	return filtered, skipped
}
