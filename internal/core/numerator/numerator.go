// Package numerator provides the contract for human-readable record numbers
// such as QC-2026-00001.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "QC", "WA")
	Prefix string

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	// YearlyReset restarts the sequence every calendar year and embeds the year.
	YearlyReset bool
}

// DefaultConfig returns the PREFIX-YEAR-NNNNN layout.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		PadWidth:    5,
		YearlyReset: true,
	}
}

// Key is the sequence key for the given period.
func (c Config) Key(period time.Time) string {
	if c.YearlyReset {
		return fmt.Sprintf("%s_%s", c.Prefix, period.Format("2006"))
	}
	return c.Prefix
}

// Format renders n for the given period.
func (c Config) Format(period time.Time, n int64) string {
	width := c.PadWidth
	if width == 0 {
		width = 5
	}
	if c.YearlyReset {
		return fmt.Sprintf("%s-%s-%0*d", c.Prefix, period.Format("2006"), width, n)
	}
	return fmt.Sprintf("%s-%0*d", c.Prefix, width, n)
}

// Generator issues the next number for a sequence.
type Generator interface {
	Next(ctx context.Context, cfg Config, period time.Time) (string, error)
}

// Memory is a process-local Generator for the in-memory store and tests.
type Memory struct {
	mu   sync.Mutex
	seqs map[string]int64
}

// NewMemory creates an empty in-process generator.
func NewMemory() *Memory {
	return &Memory{seqs: make(map[string]int64)}
}

// Next implements Generator.
func (m *Memory) Next(_ context.Context, cfg Config, period time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cfg.Key(period)
	m.seqs[key]++
	return cfg.Format(period, m.seqs[key]), nil
}

var _ Generator = (*Memory)(nil)
