// ABOUTME: CBOR encoding of pulses for the on-disk cache.
// ABOUTME: Uses deterministic encoding so identical pulses produce identical rows.
package storage

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/2389-research/codestats-ls/internal/models"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("storage: CBOR encoder initialization failed: " + err.Error())
	}

	// Unknown fields are ignored so older binaries can read newer rows.
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("storage: CBOR decoder initialization failed: " + err.Error())
	}
}

// encodePulse serializes a pulse for storage.
func encodePulse(pulse *models.Pulse) ([]byte, error) {
	data, err := encMode.Marshal(pulse)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pulse %s: %w", pulse.CodedAt, err)
	}
	return data, nil
}

// decodePulse deserializes a stored pulse.
func decodePulse(data []byte) (*models.Pulse, error) {
	var pulse models.Pulse
	if err := decMode.Unmarshal(data, &pulse); err != nil {
		return nil, fmt.Errorf("failed to decode pulse: %w", err)
	}
	return &pulse, nil
}
