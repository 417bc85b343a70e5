// ABOUTME: Coalesces bursts of "XP changed" signals into rate-limited pulse attempts.
// ABOUTME: A bounded channel carries payload-free signals; a limiter gates emissions.
package pulse

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Debouncer turns a high-frequency stream of dirty signals into at most
// one emission per interval.
//
// Signals carry no payload, so Notify drops a signal when the channel
// is full: a pending signal already means "something changed". A
// single consumer (Run) applies the gate; emissions that find nothing
// to send still count against the interval.
type Debouncer struct {
	signals chan struct{}
	limiter *rate.Limiter
	emit    func(ctx context.Context)
	now     func() time.Time
}

// NewDebouncer creates a Debouncer that calls emit at most once per
// interval. capacity is the size of the signal channel.
func NewDebouncer(interval time.Duration, capacity int, emit func(ctx context.Context)) *Debouncer {
	if capacity < 1 {
		capacity = 1
	}
	return &Debouncer{
		signals: make(chan struct{}, capacity),
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		emit:    emit,
		now:     time.Now,
	}
}

// Notify posts a dirty signal without blocking. Returns false if the
// signal was coalesced into one already pending.
func (d *Debouncer) Notify() bool {
	select {
	case d.signals <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run consumes signals until ctx is cancelled.
func (d *Debouncer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.signals:
			d.handle(ctx, d.now())
		}
	}
}

// RunTicker posts a dirty signal every period until ctx is cancelled,
// so a trickle of edits is flushed without waiting for the next one.
func (d *Debouncer) RunTicker(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.Notify()
		}
	}
}

// handle emits if the interval since the last emission has elapsed at
// time at. Reports whether an emission happened.
func (d *Debouncer) handle(ctx context.Context, at time.Time) bool {
	if !d.limiter.AllowN(at, 1) {
		return false
	}
	d.emit(ctx)
	return true
}
