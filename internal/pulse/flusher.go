// ABOUTME: Background retry of pulses cached after failed deliveries.
// ABOUTME: Sends stored pulses one at a time with pacing and removes them on success.
package pulse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389-research/codestats-ls/internal/models"
	"github.com/2389-research/codestats-ls/internal/storage"
)

// Sender delivers a pulse to the Code::Stats API. A nil error means
// the pulse was accepted; every error is treated as recoverable.
type Sender interface {
	SendPulse(ctx context.Context, pulse *models.Pulse) error
}

// Flusher drains the pulse cache through a Sender.
type Flusher struct {
	sender Sender
	store  storage.PulseStore
	logger *slog.Logger
	pacing time.Duration
}

// NewFlusher creates a Flusher that waits pacing between successive
// delivery attempts.
func NewFlusher(sender Sender, store storage.PulseStore, logger *slog.Logger, pacing time.Duration) *Flusher {
	return &Flusher{
		sender: sender,
		store:  store,
		logger: logger,
		pacing: pacing,
	}
}

// Flush makes one pass over the cache. Each stored pulse gets one
// delivery attempt; delivered pulses are removed and failed ones stay
// for the next pass. Returns the number of pulses delivered.
func (f *Flusher) Flush(ctx context.Context) (int, error) {
	pulses, err := f.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list cached pulses: %w", err)
	}

	sent := 0
	for i, pulse := range pulses {
		if i > 0 && f.pacing > 0 {
			select {
			case <-time.After(f.pacing):
			case <-ctx.Done():
				f.logSent(sent)
				return sent, ctx.Err()
			}
		}

		if err := f.sender.SendPulse(ctx, pulse); err != nil {
			f.logger.Error("Error sending cached XP pulse",
				"coded_at", pulse.CodedAt,
				"pulse_id", pulse.ID,
				"error", err)
			continue
		}

		sent++
		if err := f.store.Remove(ctx, pulse); err != nil {
			// Delivered but still cached; the next pass will send it again.
			f.logger.Error("Error removing sent XP pulse from cache",
				"coded_at", pulse.CodedAt,
				"pulse_id", pulse.ID,
				"error", err)
		}
	}

	f.logSent(sent)
	return sent, nil
}

func (f *Flusher) logSent(sent int) {
	if sent == 0 {
		return
	}
	plural := "s"
	if sent == 1 {
		plural = ""
	}
	f.logger.Info(fmt.Sprintf("Sent %d cached XP pulse%s", sent, plural))
}

// Run flushes immediately and then every interval until ctx is cancelled.
// Failed passes are logged and never stop the loop.
func (f *Flusher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := f.Flush(ctx); err != nil && ctx.Err() == nil {
			f.logger.Error("Error sending cached XP pulses", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
