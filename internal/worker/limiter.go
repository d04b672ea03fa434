package worker

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter bounds the rate of outbound submissions so a large dataset
// does not overwhelm the claim-processing service or the model quota
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a limiter allowing requestsPerSecond with the
// given burst
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}
	if requestsPerSecond <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, burst)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Wait blocks until the next request is allowed or the context ends
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed without waiting
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}
