// ABOUTME: In-memory accumulation of XP by language between pulses.
// ABOUTME: Record and Drain serialize on one mutex that is never held across I/O.
package pulse

import (
	"math"
	"sync"
	"time"

	"github.com/2389-research/codestats-ls/internal/models"
)

// Aggregator collects XP per language and produces pulses on demand.
//
// Thread-safe: editor event handlers call Record while the debounce
// loop calls Drain. Every increment lands either in the pulse being
// drained or in the emptied map that follows it.
type Aggregator struct {
	mu sync.Mutex
	xp map[string]uint32
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{xp: make(map[string]uint32)}
}

// Record adds amount XP to language. A zero amount records nothing.
// The per-language counter saturates at math.MaxUint32.
func (a *Aggregator) Record(language string, amount uint32) {
	if amount == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	current := a.xp[language]
	if current > math.MaxUint32-amount {
		a.xp[language] = math.MaxUint32
		return
	}
	a.xp[language] = current + amount
}

// Drain atomically takes all accumulated XP and resets the aggregator.
// Returns nil if nothing has been recorded since the last drain.
func (a *Aggregator) Drain(codedAt time.Time) *models.Pulse {
	a.mu.Lock()
	if len(a.xp) == 0 {
		a.mu.Unlock()
		return nil
	}
	taken := a.xp
	a.xp = make(map[string]uint32)
	a.mu.Unlock()

	return models.NewPulse(taken, codedAt)
}

// Snapshot returns a copy of the XP accumulated so far.
func (a *Aggregator) Snapshot() map[string]uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	snapshot := make(map[string]uint32, len(a.xp))
	for language, xp := range a.xp {
		snapshot[language] = xp
	}
	return snapshot
}
