package numerator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryResetsPerYear(t *testing.T) {
	gen := NewMemory()
	ctx := context.Background()
	cfg := DefaultConfig("QC")
	y2026 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	y2027 := time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC)

	first, err := gen.Next(ctx, cfg, y2026)
	require.NoError(t, err)
	second, err := gen.Next(ctx, cfg, y2026)
	require.NoError(t, err)
	nextYear, err := gen.Next(ctx, cfg, y2027)
	require.NoError(t, err)

	assert.Equal(t, "QC-2026-00001", first)
	assert.Equal(t, "QC-2026-00002", second)
	assert.Equal(t, "QC-2027-00001", nextYear)
}

func TestFormatWithoutYear(t *testing.T) {
	cfg := Config{Prefix: "WA", PadWidth: 3}
	assert.Equal(t, "WA-042", cfg.Format(time.Now(), 42))
	assert.Equal(t, "WA", cfg.Key(time.Now()))
}
