// Package idempotency lets clients retry mutating requests safely: the
// first response stored under an Idempotency-Key is replayed to retries.
package idempotency

import (
	"context"
	"sync"
	"time"

	"pharmaflow/internal/core/apperror"
)

// Claim identifies the request a key was first used for.
type Claim struct {
	Key         string
	UserID      string
	Operation   string
	RequestHash string
}

// Replay is a stored response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store persists keys.
type Store interface {
	// Acquire claims the key. It returns (nil, nil) when the caller should
	// run the request, or the stored response when one exists. A key still
	// running yields IDEMPOTENCY_IN_PROGRESS; a key reused for another
	// request yields IDEMPOTENCY_MISMATCH.
	Acquire(ctx context.Context, claim Claim) (*Replay, error)

	// Complete stores the response for replay.
	Complete(ctx context.Context, key string, resp Replay) error

	// Release forgets the key so the request can be retried.
	Release(ctx context.Context, key string) error
}

type entry struct {
	claim     Claim
	done      bool
	resp      Replay
	expiresAt time.Time
}

// Memory is a process-local Store.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*entry
	now     func() time.Time
}

// NewMemory creates a Memory store keeping keys for ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, entries: make(map[string]*entry), now: time.Now}
}

var _ Store = (*Memory)(nil)

func (m *Memory) Acquire(_ context.Context, claim Claim) (*Replay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[claim.Key]
	if !ok || now.After(e.expiresAt) {
		m.entries[claim.Key] = &entry{claim: claim, expiresAt: now.Add(m.ttl)}
		return nil, nil
	}
	if e.claim != claim {
		return nil, apperror.NewIdempotencyMismatch(claim.Key)
	}
	if !e.done {
		return nil, apperror.NewIdempotencyInProgress(claim.Key)
	}
	resp := e.resp
	return &resp, nil
}

func (m *Memory) Complete(_ context.Context, key string, resp Replay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		e.done = true
		e.resp = resp
	}
	return nil
}

func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
