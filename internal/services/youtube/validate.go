package youtube

import "regexp"

var youtubeURLPattern = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com|youtu\.?be)/.+$`)

// IsYouTubeURL reports whether url points at a known YouTube host followed by a
// non-empty path. The match is case-sensitive and the input is not trimmed.
func IsYouTubeURL(url string) bool {
	if url == "" {
		return false
	}
	return youtubeURLPattern.MatchString(url)
}
