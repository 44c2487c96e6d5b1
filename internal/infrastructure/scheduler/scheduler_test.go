package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaflow/internal/core/security"
	"pharmaflow/pkg/logger"
)

func TestScheduler_AddRejectsBadSpec(t *testing.T) {
	s := New(t.Context(), logger.Nop())

	err := s.Add(Job{Name: "bad", Spec: "every tuesday", Run: func(context.Context) error { return nil }})
	assert.Error(t, err)

	err = s.Add(Job{Name: "nil", Spec: "@every 1m"})
	assert.Error(t, err)

	require.NoError(t, s.Add(Job{Name: "ok", Spec: "*/5 * * * *", Run: func(context.Context) error { return nil }}))
}

func TestScheduler_RunNowUsesSystemActorAndTimeout(t *testing.T) {
	s := New(t.Context(), logger.Nop())

	var (
		actor       security.Actor
		hasDeadline bool
	)
	err := s.RunNow(Job{
		Name:    "sweep",
		Timeout: time.Minute,
		Run: func(ctx context.Context) error {
			actor = security.ActorFromContext(ctx)
			_, hasDeadline = ctx.Deadline()
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, security.SystemActorID, actor.ID)
	assert.True(t, hasDeadline)

	boom := errors.New("boom")
	err = s.RunNow(Job{Name: "failing", Run: func(context.Context) error { return boom }})
	assert.ErrorIs(t, err, boom)
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(t.Context(), logger.Nop())
	s.Start()

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
