package miktos

import (
	"time"

	"golang.org/x/time/rate"
)

// NewRateLimiter returns a limiter allowing requestsPerSecond requests per
// second on average with bursts of up to burst requests, for use with
// WithRateLimiter. A non-positive rate returns nil, meaning no limit.
//
// # Example
//
//	c := miktos.NewClient(key, miktos.WithRateLimiter(miktos.NewRateLimiter(2, 5)))
func NewRateLimiter(requestsPerSecond float64, burst int) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Duration(float64(time.Second)/requestsPerSecond)), burst)
}
