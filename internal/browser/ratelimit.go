package browser

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// ThrottledLauncher paces browser startups. Sessions still run concurrently
// once launched.
type ThrottledLauncher struct {
	next    Launcher
	limiter *rate.Limiter
}

// Throttle wraps l so at most perSecond launches start each second. A
// non-positive rate returns l unchanged.
func Throttle(l Launcher, perSecond float64) Launcher {
	if perSecond <= 0 {
		return l
	}
	return &ThrottledLauncher{
		next:    l,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

func (t *ThrottledLauncher) Launch(ctx context.Context) (Page, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for launch slot: %w", err)
	}
	return t.next.Launch(ctx)
}
