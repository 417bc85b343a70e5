// ABOUTME: Interface definition for durable pulse storage.
// ABOUTME: Defines the contract for caching pulses that could not be delivered.
package storage

import (
	"context"
	"errors"

	"github.com/2389-research/codestats-ls/internal/models"
)

// ErrEmptyPulse is returned when saving a pulse that carries no XP entries.
var ErrEmptyPulse = errors.New("refusing to store a pulse with no XP entries")

// PulseStore defines operations for undelivered pulse persistence.
// Pulses are keyed by CodedAt; every call runs in its own transaction.
type PulseStore interface {
	// List returns every stored pulse. Order is unspecified.
	List(ctx context.Context) ([]*models.Pulse, error)

	// Save upserts a pulse by CodedAt, silently replacing any pulse with the same key.
	Save(ctx context.Context, pulse *models.Pulse) error

	// Remove deletes the pulse with the same CodedAt. Removing an absent pulse is not an error.
	Remove(ctx context.Context, pulse *models.Pulse) error

	// Clear deletes every stored pulse.
	Clear(ctx context.Context) error

	// Count returns the number of stored pulses.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
