package cleanup

import (
	"time"

	"cleanarr/internal/services/jellyfin"
)

// mergeWatched combines per-user watched item lists into one list keyed
// by item ID. A favorite flag from any user sticks, and the most recent
// play date across users wins.
func mergeWatched(perUser [][]jellyfin.Item) []WatchedItem {
	index := make(map[string]int)
	var merged []WatchedItem
	for _, items := range perUser {
		for _, item := range items {
			watched := WatchedItem{
				ID:         item.ID,
				Name:       item.Name,
				Year:       item.ProductionYear,
				Favorite:   item.UserData.IsFavorite,
				LastPlayed: parseLastPlayed(item.UserData.LastPlayedDate),
			}
			pos, seen := index[item.ID]
			if !seen {
				index[item.ID] = len(merged)
				merged = append(merged, watched)
				continue
			}
			existing := &merged[pos]
			existing.Favorite = existing.Favorite || watched.Favorite
			if watched.LastPlayed.After(existing.LastPlayed) {
				existing.LastPlayed = watched.LastPlayed
			}
		}
	}
	return merged
}

// filterFavorites drops items any user marked as favorite.
func filterFavorites(items []WatchedItem) []WatchedItem {
	kept := items[:0:0]
	for _, item := range items {
		if !item.Favorite {
			kept = append(kept, item)
		}
	}
	return kept
}

// filterByWatchAge keeps items last played at least minAgeDays before
// now. A negative minAgeDays disables the filter; zero still drops
// items with an unknown play date, since an unparseable date must never
// cause a deletion.
func filterByWatchAge(items []WatchedItem, minAgeDays int, now time.Time) []WatchedItem {
	if minAgeDays < 0 {
		return items
	}
	cutoff := now.AddDate(0, 0, -minAgeDays)
	kept := items[:0:0]
	for _, item := range items {
		if item.LastPlayed.IsZero() {
			continue
		}
		if !item.LastPlayed.After(cutoff) {
			kept = append(kept, item)
		}
	}
	return kept
}

// parseLastPlayed parses Jellyfin's playback timestamps. The server
// emits RFC 3339 with a seven-digit fraction, which RFC3339Nano accepts;
// a missing or malformed date yields the zero time.
func parseLastPlayed(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
