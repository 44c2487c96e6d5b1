package idempotency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaflow/internal/core/apperror"
)

func TestMemory(t *testing.T) {
	ctx := t.Context()
	m := NewMemory(time.Hour)
	claim := Claim{Key: "k1", UserID: "u1", Operation: "POST /qc/:id/approve", RequestHash: "abc"}

	replay, err := m.Acquire(ctx, claim)
	require.NoError(t, err)
	assert.Nil(t, replay)

	_, err = m.Acquire(ctx, claim)
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotencyInProgress))

	other := claim
	other.RequestHash = "def"
	_, err = m.Acquire(ctx, other)
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotencyMismatch))

	require.NoError(t, m.Complete(ctx, "k1", Replay{StatusCode: 200, ContentType: "application/json", Body: []byte(`{}`)}))
	replay, err = m.Acquire(ctx, claim)
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, 200, replay.StatusCode)

	require.NoError(t, m.Release(ctx, "k1"))
	replay, err = m.Acquire(ctx, claim)
	require.NoError(t, err)
	assert.Nil(t, replay)
}

func TestMemory_Expiry(t *testing.T) {
	ctx := t.Context()
	m := NewMemory(time.Minute)
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	claim := Claim{Key: "k1", UserID: "u1"}
	_, err := m.Acquire(ctx, claim)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	replay, err := m.Acquire(ctx, Claim{Key: "k1", UserID: "u2"})
	require.NoError(t, err)
	assert.Nil(t, replay)
}
