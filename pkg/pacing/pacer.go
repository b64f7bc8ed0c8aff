// Package pacing spaces out externally fetched work units. The delay is an
// anti-throttling measure, not a correctness requirement: units served from
// cache skip it entirely.
package pacing

import (
	"context"
	"math/rand"
	"time"
)

// Pacer draws an independent uniform delay of base*(1±jitter) per unit.
type Pacer struct {
	base   time.Duration
	jitter float64
	// sleep is swappable in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Pacer. jitter is the fraction of base the delay may deviate by.
func New(base time.Duration, jitter float64) *Pacer {
	return &Pacer{
		base:   base,
		jitter: jitter,
		sleep:  sleepCtx,
	}
}

// Next returns the delay for the upcoming unit.
func (p *Pacer) Next() time.Duration {
	if p.base <= 0 {
		return 0
	}
	if p.jitter <= 0 {
		return p.base
	}
	// uniform in [base*(1-jitter), base*(1+jitter)]
	spread := float64(p.base) * p.jitter
	delta := (rand.Float64() * 2 * spread) - spread
	return time.Duration(float64(p.base) + delta)
}

// Wait blocks for the next delay or until the context is cancelled, so a stop
// request lands between units rather than after a full sleep.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.sleep(ctx, p.Next())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
