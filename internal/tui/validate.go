// ABOUTME: Connection validation for the Code::Stats API.
// ABOUTME: Tests the token by posting a pulse that carries no XP.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/2389-research/codestats-ls/internal/models"
	"github.com/2389-research/codestats-ls/internal/storage"
)

// ValidateConnection checks that apiURL is reachable and accepts apiToken.
// Code::Stats has no read endpoint for machine tokens, so an empty pulse is
// posted; it adds no XP to the account.
// The context allows cancellation when the user quits during validation.
func ValidateConnection(ctx context.Context, apiURL, apiToken string) error {
	client, err := storage.NewRemoteClient(apiURL, apiToken)
	if err != nil {
		return err
	}

	probe := &models.Pulse{
		CodedAt: models.FormatCodedAt(time.Now()),
		XPs:     []models.PulseXP{},
	}
	if err := client.SendPulse(ctx, probe); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	return nil
}
