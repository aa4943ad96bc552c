package orchestrator

import "time"

// ShouldOfferDeferral reports whether a download of size bytes is expected to
// take at least threshold at the given throughput (bytes per second). Unknown
// or non-positive sizes never offer deferral.
func ShouldOfferDeferral(size, throughput int64, threshold time.Duration) bool {
	if size <= 0 || throughput <= 0 {
		return false
	}
	estimated := float64(size) / float64(throughput)
	return estimated >= threshold.Seconds()
}
