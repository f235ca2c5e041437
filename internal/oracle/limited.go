package oracle

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limited caps the request rate to the backend. Waiting honours ctx, so a
// per-call deadline also bounds time spent queued.
type Limited struct {
	next    Oracle
	limiter *rate.Limiter
}

// NewLimited allows perSecond queries with the given burst.
func NewLimited(next Oracle, perSecond float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Ask implements Oracle.
func (l *Limited) Ask(ctx context.Context, q Query) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limit: %v", ErrUnavailable, err)
	}
	return l.next.Ask(ctx, q)
}
