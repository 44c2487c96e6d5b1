package app

import (
	"context"
	"time"

	"pharmaflow/internal/config"
	"pharmaflow/internal/infrastructure/scheduler"
	"pharmaflow/internal/infrastructure/storage/postgres"
	"pharmaflow/pkg/logger"
)

// outboxRetention is how long published events stay in sys_outbox.
const outboxRetention = 7 * 24 * time.Hour

// Jobs returns the background jobs for st. Outbox relay and cleanup need
// the postgres driver; expiry marking runs on any backend.
func Jobs(st *Storage, svcs *Services, cfg *config.Config) []scheduler.Job {
	jobs := []scheduler.Job{{
		Name:    "inventory-expiry",
		Spec:    cfg.Scheduler.ExpirySchedule,
		Timeout: 10 * time.Minute,
		Run: func(ctx context.Context) error {
			n, err := svcs.Inventory.MarkExpired(ctx)
			if n > 0 {
				logger.Info(ctx, "inventory marked expired", "count", n)
			}
			return err
		},
	}}

	if st.PgTx == nil {
		return jobs
	}

	relay := postgres.NewOutboxRelay(st.PgTx, cfg.Scheduler.OutboxBatchSize, postgres.LogHandler{})
	idem := postgres.NewIdempotencyStore(st.PgTx, cfg.Domain.IdempotencyTTL)

	return append(jobs,
		scheduler.Job{
			Name:    "outbox-relay",
			Spec:    cfg.Scheduler.OutboxSchedule,
			Timeout: time.Minute,
			Run: func(ctx context.Context) error {
				n, err := relay.ProcessBatch(ctx)
				if n > 0 {
					logger.Debug(ctx, "outbox batch published", "count", n)
				}
				return err
			},
		},
		scheduler.Job{
			Name:    "cleanup",
			Spec:    cfg.Scheduler.CleanupSchedule,
			Timeout: 5 * time.Minute,
			Run: func(ctx context.Context) error {
				keys, err := idem.CleanupExpired(ctx)
				if err != nil {
					return err
				}
				events, err := relay.Purge(ctx, outboxRetention)
				if err != nil {
					return err
				}
				if keys > 0 || events > 0 {
					logger.Info(ctx, "cleanup finished", "idempotency_keys", keys, "outbox_events", events)
				}
				return nil
			},
		},
	)
}

// Schedule registers jobs on a new scheduler bound to ctx.
func Schedule(ctx context.Context, log *logger.Logger, jobs []scheduler.Job) (*scheduler.Scheduler, error) {
	s := scheduler.New(ctx, log)
	for _, job := range jobs {
		if err := s.Add(job); err != nil {
			return nil, err
		}
	}
	return s, nil
}
