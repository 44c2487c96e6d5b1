package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaflow/internal/app"
	"pharmaflow/internal/config"
	"pharmaflow/internal/core/security"
	"pharmaflow/internal/infrastructure/lock"
	"pharmaflow/internal/infrastructure/scheduler"
	"pharmaflow/internal/infrastructure/storage/memory"
	"pharmaflow/pkg/logger"
)

func TestJobs_MemoryDriver(t *testing.T) {
	cfg := &config.Config{
		Domain:    config.DomainConfig{ConflictRetries: 3, ExpiryAlertDays: 30},
		Scheduler: config.SchedulerConfig{ExpirySchedule: "15 0 * * *"},
	}
	st := app.NewMemoryStorage(memory.New(), cfg)
	svcs := app.NewServices(st, lock.NewLocal(time.Second), security.AllowAll{}, cfg, app.Options{})

	jobs := app.Jobs(st, svcs, cfg)
	require.Len(t, jobs, 1)
	assert.Equal(t, "inventory-expiry", jobs[0].Name)

	s, err := app.Schedule(context.Background(), logger.Nop(), jobs)
	require.NoError(t, err)
	assert.NoError(t, s.RunNow(jobs[0]))
}

func TestSchedule_BadSpec(t *testing.T) {
	_, err := app.Schedule(context.Background(), logger.Nop(), []scheduler.Job{{
		Name: "broken",
		Spec: "every tuesday",
		Run:  func(context.Context) error { return nil },
	}})
	assert.Error(t, err)
}
