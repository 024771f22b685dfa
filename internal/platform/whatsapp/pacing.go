package whatsapp

import (
	"context"
	"math/rand/v2"
	"time"
)

// pause sleeps a jittered duration in [min, max). Interactions with the
// page are paced like a person would click, not like a scripted loop.
// Returns early when ctx is cancelled.
func pause(ctx context.Context, min, max time.Duration) {
	d := min
	if max > min {
		d += rand.N(max - min)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
