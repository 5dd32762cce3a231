package downloader

import "github.com/denisAlshanov/ytgrab/internal/services/youtube"

// ProgressFraction converts a status record into a fraction in [0,1]. The exact
// total is preferred over the estimate; without either the fraction is 0.
func ProgressFraction(status youtube.ProgressStatus) float64 {
	total := status.TotalBytes
	if total <= 0 {
		total = status.TotalBytesEstimate
	}
	if total <= 0 || status.DownloadedBytes <= 0 {
		return 0
	}

	fraction := float64(status.DownloadedBytes) / float64(total)
	if fraction > 1 {
		return 1
	}
	return fraction
}
