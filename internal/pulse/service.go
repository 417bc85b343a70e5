// ABOUTME: Pulse service wiring the aggregator, debouncer, and cache flusher together.
// ABOUTME: Sends drained XP, caches failed pulses, and persists pending XP on shutdown.
package pulse

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389-research/codestats-ls/internal/storage"
)

// Options configures Service timing.
type Options struct {
	// DebounceInterval is the minimum time between pulse attempts.
	DebounceInterval time.Duration
	// TickInterval is how often a dirty signal is posted without edits.
	TickInterval time.Duration
	// FlushInterval is how often the cache is retried.
	FlushInterval time.Duration
	// FlushPacing is the delay between successive cached deliveries.
	FlushPacing time.Duration
	// SignalBuffer is the capacity of the dirty signal channel.
	SignalBuffer int
}

// DefaultOptions returns the production timings.
func DefaultOptions() Options {
	return Options{
		DebounceInterval: 10 * time.Second,
		TickInterval:     10 * time.Second,
		FlushInterval:    30 * time.Second,
		FlushPacing:      250 * time.Millisecond,
		SignalBuffer:     100,
	}
}

// shutdownSaveTimeout bounds the final cache write when the service stops.
const shutdownSaveTimeout = 5 * time.Second

// Service owns the XP aggregator and the background loops that deliver it.
type Service struct {
	aggregator *Aggregator
	debouncer  *Debouncer
	flusher    *Flusher
	sender     Sender
	store      storage.PulseStore
	logger     *slog.Logger
	opts       Options
	now        func() time.Time
}

// NewService creates a Service. Call Run to start its background loops.
func NewService(sender Sender, store storage.PulseStore, logger *slog.Logger, opts Options) *Service {
	s := &Service{
		aggregator: NewAggregator(),
		flusher:    NewFlusher(sender, store, logger, opts.FlushPacing),
		sender:     sender,
		store:      store,
		logger:     logger,
		opts:       opts,
		now:        time.Now,
	}
	s.debouncer = NewDebouncer(opts.DebounceInterval, opts.SignalBuffer, s.emit)
	return s
}

// Record attributes amount XP to language and signals the debouncer.
func (s *Service) Record(language string, amount uint32) {
	s.aggregator.Record(language, amount)
	s.debouncer.Notify()
}

// Pending returns the XP recorded but not yet drained into a pulse.
func (s *Service) Pending() map[string]uint32 {
	return s.aggregator.Snapshot()
}

// Flusher returns the cache flusher used by the service.
func (s *Service) Flusher() *Flusher {
	return s.flusher
}

// Run starts the debounce consumer, the dirty ticker, and the cache
// flusher, and blocks until ctx is cancelled. XP still pending when
// the loops stop is written to the cache for the next session.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.debouncer.Run(ctx) })
	g.Go(func() error { return s.debouncer.RunTicker(ctx, s.opts.TickInterval) })
	g.Go(func() error { return s.flusher.Run(ctx, s.opts.FlushInterval) })

	err := g.Wait()
	s.persistPending()
	return err
}

// emit drains the aggregator into a pulse and sends it, caching it on failure.
func (s *Service) emit(ctx context.Context) {
	pulse := s.aggregator.Drain(s.now())
	if pulse == nil {
		return
	}

	if err := s.sender.SendPulse(ctx, pulse); err != nil {
		s.logger.Error("Error sending XP pulse",
			"coded_at", pulse.CodedAt,
			"pulse_id", pulse.ID,
			"error", err)
		if err := s.store.Save(context.WithoutCancel(ctx), pulse); err != nil {
			s.logger.Error("Error caching XP pulse, its XP is lost",
				"coded_at", pulse.CodedAt,
				"pulse_id", pulse.ID,
				"xp", pulse.TotalXP(),
				"error", err)
			return
		}
		s.logger.Debug("cached XP pulse for retry", "coded_at", pulse.CodedAt, "pulse_id", pulse.ID)
		return
	}

	s.logger.Info("XP pulse sent successfully", "coded_at", pulse.CodedAt, "xp", pulse.TotalXP())
}

// persistPending caches whatever XP is left without attempting delivery.
func (s *Service) persistPending() {
	pulse := s.aggregator.Drain(s.now())
	if pulse == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownSaveTimeout)
	defer cancel()

	if err := s.store.Save(ctx, pulse); err != nil {
		s.logger.Error("Error caching pending XP on shutdown",
			"coded_at", pulse.CodedAt,
			"xp", pulse.TotalXP(),
			"error", err)
		return
	}
	s.logger.Info("Cached pending XP for the next session", "coded_at", pulse.CodedAt, "xp", pulse.TotalXP())
}
