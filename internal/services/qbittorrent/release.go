package qbittorrent

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// releaseTokens are scene tags stripped from torrent names before
// comparison: resolutions, sources, codecs, audio formats, and the
// common release-group noise words.
var releaseTokens = map[string]struct{}{
	"2160p": {}, "1080p": {}, "720p": {}, "576p": {}, "480p": {},
	"4k": {}, "uhd": {}, "hdr": {}, "hdr10": {}, "dv": {}, "dolby": {}, "vision": {},
	"bluray": {}, "blu": {}, "ray": {}, "bdrip": {}, "brrip": {}, "bdremux": {}, "remux": {},
	"webrip": {}, "webdl": {}, "web": {}, "dl": {}, "hdtv": {}, "dvdrip": {}, "dvd": {},
	"x264": {}, "x265": {}, "h264": {}, "h265": {}, "hevc": {}, "avc": {}, "av1": {}, "xvid": {}, "divx": {},
	"aac": {}, "ac3": {}, "eac3": {}, "dts": {}, "truehd": {}, "atmos": {}, "flac": {}, "mp3": {}, "opus": {},
	"10bit": {}, "8bit": {}, "hi10p": {},
	"proper": {}, "repack": {}, "internal": {}, "limited": {}, "extended": {}, "unrated": {},
	"remastered": {}, "directors": {}, "cut": {}, "imax": {},
	"multi": {}, "dual": {}, "audio": {}, "subs": {}, "subbed": {}, "dubbed": {},
	"vostfr": {}, "french": {}, "english": {}, "german": {}, "italian": {}, "spanish": {},
	"complete": {}, "season": {}, "pack": {},
}

var (
	bracketGroups  = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\{[^}]*\}`)
	audioChannels  = regexp.MustCompile(`\b\d\.\d\b`)
	yearToken      = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	episodeMarker  = regexp.MustCompile(`(?i)\bs\d{1,2}(e\d{1,3})?\b|\be\d{1,3}\b`)
	nonAlnum       = regexp.MustCompile(`[^a-z0-9 ]+`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

var diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeReleaseName reduces a torrent name to the bare title tokens
// so it can be compared against a library title. Scene tags, bracketed
// groups, years, and episode markers are removed.
func NormalizeReleaseName(name string) string {
	s := strings.ToLower(name)
	if folded, _, err := transform.String(diacriticFolder, s); err == nil {
		s = folded
	}
	// Channel layouts like 5.1 must go before the dot replacement splits
	// them into stray digits.
	s = audioChannels.ReplaceAllString(s, " ")
	s = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(s)
	s = bracketGroups.ReplaceAllString(s, " ")
	s = yearToken.ReplaceAllString(s, " ")
	s = episodeMarker.ReplaceAllString(s, " ")
	s = nonAlnum.ReplaceAllString(s, " ")

	fields := strings.Fields(s)
	kept := fields[:0]
	for _, field := range fields {
		if _, drop := releaseTokens[field]; drop {
			continue
		}
		kept = append(kept, field)
	}
	return whitespaceRuns.ReplaceAllString(strings.Join(kept, " "), " ")
}

// tokenJaccard computes the Jaccard index of the word sets of two
// already-normalized strings. Two empty strings score zero, not one, so
// an empty torrent name never matches anything.
func tokenJaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range strings.Fields(s) {
		set[token] = struct{}{}
	}
	return set
}
