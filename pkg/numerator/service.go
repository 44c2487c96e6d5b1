// Package numerator implements numerator.Generator on the sys_sequences table.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	core "pharmaflow/internal/core/numerator"
)

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict uses UPSERT ... RETURNING for every number.
	// Gapless, one round trip per number.
	StrategyStrict Strategy = iota

	// StrategyCached reserves ranges of numbers in memory.
	// Restarts may leave gaps.
	StrategyCached
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type cachedRange struct {
	current int64
	max     int64
}

// Service provides document numbering functionality.
type Service struct {
	querier   Querier
	strategy  Strategy
	rangeSize int64

	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

var _ core.Generator = (*Service)(nil)

// New creates a strict numerator.
func New(querier Querier) *Service {
	return &Service{
		querier:  querier,
		strategy: StrategyStrict,
		ranges:   make(map[string]*cachedRange),
	}
}

// NewCached creates a numerator that reserves rangeSize numbers per round trip.
func NewCached(querier Querier, rangeSize int64) *Service {
	if rangeSize <= 0 {
		rangeSize = 50
	}
	s := New(querier)
	s.strategy = StrategyCached
	s.rangeSize = rangeSize
	return s
}

// Next implements numerator.Generator.
// Numbers are drawn outside business transactions so a rollback does not return them.
func (s *Service) Next(ctx context.Context, cfg core.Config, period time.Time) (string, error) {
	key := cfg.Key(period)

	var (
		num int64
		err error
	)
	switch s.strategy {
	case StrategyCached:
		num, err = s.nextCached(ctx, key)
	default:
		num, err = s.reserve(ctx, key, 1)
	}
	if err != nil {
		return "", err
	}
	return cfg.Format(period, num), nil
}

// reserve bumps the sequence by n and returns the new last value.
func (s *Service) reserve(ctx context.Context, key string, n int64) (int64, error) {
	var last int64
	err := s.querier.QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
		RETURNING current_val
	`, key, n).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("reserve sequence %s: %w", key, err)
	}
	return last, nil
}

// nextCached hands out numbers from memory, reserving a new range when exhausted.
func (s *Service) nextCached(ctx context.Context, key string) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	rng, ok := s.ranges[key]
	if !ok {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		last, err := s.reserve(ctx, key, s.rangeSize)
		if err != nil {
			return 0, err
		}
		// the reserved range is (last-rangeSize, last]
		rng.current = last - s.rangeSize
		rng.max = last
	}

	rng.current++
	return rng.current, nil
}
