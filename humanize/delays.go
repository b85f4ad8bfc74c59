// Package humanize paces browser actions the way a person would: randomized
// pauses between searches and uneven keystroke timing.
package humanize

import (
	"context"
	"math/rand"
	"time"
)

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NewRand returns a generator seeded from the clock
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// RandomSeconds returns a uniformly random whole number of seconds in [min, max]
func RandomSeconds(rnd *rand.Rand, min, max int) time.Duration {
	if min >= max {
		return time.Duration(min) * time.Second
	}
	n := rnd.Intn(max-min+1) + min
	return time.Duration(n) * time.Second
}

// RandomMillis returns a uniformly random duration in [min, max] milliseconds
func RandomMillis(rnd *rand.Rand, min, max int) time.Duration {
	if min >= max {
		return time.Duration(min) * time.Millisecond
	}
	n := rnd.Intn(max-min+1) + min
	return time.Duration(n) * time.Millisecond
}

// Pacer spaces consecutive searches with a random delay drawn from [Min, Max] seconds
type Pacer struct {
	Min int
	Max int

	rnd   *rand.Rand
	sleep SleepFunc
}

// NewPacer creates a pacer. Nil rnd or sleep fall back to a clock seeded
// generator and the real Sleep.
func NewPacer(min, max int, rnd *rand.Rand, sleep SleepFunc) *Pacer {
	if rnd == nil {
		rnd = NewRand()
	}
	if sleep == nil {
		sleep = Sleep
	}
	return &Pacer{Min: min, Max: max, rnd: rnd, sleep: sleep}
}

// Next draws the next delay without waiting
func (p *Pacer) Next() time.Duration {
	return RandomSeconds(p.rnd, p.Min, p.Max)
}

// Pause draws a delay and sleeps it. The drawn delay is returned even when the
// sleep is cut short by ctx.
func (p *Pacer) Pause(ctx context.Context) (time.Duration, error) {
	d := p.Next()
	return d, p.sleep(ctx, d)
}

// Wait sleeps for a fixed duration using the pacer's sleeper
func (p *Pacer) Wait(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}

// Rand exposes the pacer's generator so related timing shares one source
func (p *Pacer) Rand() *rand.Rand {
	return p.rnd
}
