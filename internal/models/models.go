// ABOUTME: Core data models for XP pulses sent to the Code::Stats API.
// ABOUTME: Provides the Pulse type, its wire shape, and the timestamp format used as its key.
package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CodedAtLayout is a fixed-width RFC 3339 layout. Fixed width keeps stored keys sortable.
const CodedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Pulse is one unit of accumulated XP, keyed by the time it was coded at.
type Pulse struct {
	ID      uuid.UUID `json:"-" cbor:"id"`
	CodedAt string    `json:"coded_at" cbor:"coded_at"`
	XPs     []PulseXP `json:"xps" cbor:"xps"`
}

// PulseXP is the XP gained in a single language.
type PulseXP struct {
	Language string `json:"language" cbor:"language"`
	XP       uint32 `json:"xp" cbor:"xp"`
}

// NewPulse creates a pulse with a generated UUID from the given XP by language.
// Entries are sorted by language so equal inputs produce equal pulses.
// Returns nil if xpByLanguage is empty.
func NewPulse(xpByLanguage map[string]uint32, codedAt time.Time) *Pulse {
	if len(xpByLanguage) == 0 {
		return nil
	}

	xps := make([]PulseXP, 0, len(xpByLanguage))
	for language, xp := range xpByLanguage {
		xps = append(xps, PulseXP{Language: language, XP: xp})
	}
	sort.Slice(xps, func(i, j int) bool {
		return xps[i].Language < xps[j].Language
	})

	return &Pulse{
		ID:      uuid.New(),
		CodedAt: FormatCodedAt(codedAt),
		XPs:     xps,
	}
}

// FormatCodedAt renders t in CodedAtLayout.
func FormatCodedAt(t time.Time) string {
	return t.Format(CodedAtLayout)
}

// TotalXP returns the sum of XP across all languages in the pulse.
func (p *Pulse) TotalXP() uint64 {
	var total uint64
	if p == nil {
		return 0
	}
	for _, xp := range p.XPs {
		total += uint64(xp.XP)
	}
	return total
}

// IsEmpty reports whether the pulse carries no entries.
func (p *Pulse) IsEmpty() bool {
	return p == nil || len(p.XPs) == 0
}

// Summary renders the entries as "Language=xp" pairs joined by commas.
func (p *Pulse) Summary() string {
	if p.IsEmpty() {
		return ""
	}
	parts := make([]string, len(p.XPs))
	for i, xp := range p.XPs {
		parts[i] = fmt.Sprintf("%s=%d", xp.Language, xp.XP)
	}
	return strings.Join(parts, ", ")
}
