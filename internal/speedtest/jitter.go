package speedtest

import "math"

// Jitter returns the mean absolute difference between consecutive samples,
// as in RFC 3550. Fewer than two samples have no jitter.
func Jitter(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}

	var sum float64
	for i := 1; i < len(samples); i++ {
		sum += math.Abs(samples[i] - samples[i-1])
	}
	return sum / float64(len(samples)-1)
}
