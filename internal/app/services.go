package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pharmaflow/internal/config"
	corelock "pharmaflow/internal/core/lock"
	"pharmaflow/internal/core/security"
	"pharmaflow/internal/domain"
	"pharmaflow/internal/domain/approval"
	"pharmaflow/internal/domain/catalogs/product"
	"pharmaflow/internal/domain/catalogs/warehouse"
	"pharmaflow/internal/domain/inventory"
	"pharmaflow/internal/domain/qc"
	"pharmaflow/internal/infrastructure/lock"
	"pharmaflow/pkg/logger"
)

// Services holds the domain services.
type Services struct {
	QC         *qc.Service
	Approvals  *approval.Service
	Inventory  *inventory.Service
	Products   *domain.CatalogService[*product.Product]
	Warehouses *domain.CatalogService[*warehouse.Warehouse]
}

// Options tweak service construction, mostly for tests.
type Options struct {
	Clock func() time.Time
}

// NewServices builds every service on st.
func NewServices(st *Storage, locker corelock.Locker, authz security.Authorizer, cfg *config.Config, opts Options) *Services {
	inv := inventory.NewService(inventory.Config{
		Repo:            st.Inventory,
		Products:        st.Products,
		Warehouses:      st.Warehouses,
		TxManager:       st.TxManager,
		Locker:          locker,
		Authorizer:      authz,
		Events:          st.Events,
		Audit:           st.Audit,
		ConflictRetries: cfg.Domain.ConflictRetries,
		ExpiryAlertDays: cfg.Domain.ExpiryAlertDays,
		Clock:           opts.Clock,
	})

	qcSvc := qc.NewService(qc.Config{
		Repo:            st.QC,
		Products:        st.Products,
		Numerator:       st.Numerator,
		TxManager:       st.TxManager,
		Locker:          locker,
		Authorizer:      authz,
		Events:          st.Events,
		Audit:           st.Audit,
		ConflictRetries: cfg.Domain.ConflictRetries,
		Clock:           opts.Clock,
	})

	approvals := approval.NewService(approval.Config{
		Repo:            st.Approvals,
		QC:              qcSvc,
		Warehouses:      st.Warehouses,
		Products:        st.Products,
		Stock:           inv,
		Numerator:       st.Numerator,
		TxManager:       st.TxManager,
		Locker:          locker,
		Authorizer:      authz,
		Events:          st.Events,
		Audit:           st.Audit,
		ConflictRetries: cfg.Domain.ConflictRetries,
		Clock:           opts.Clock,
	})

	return &Services{
		QC:        qcSvc,
		Approvals: approvals,
		Inventory: inv,
		Products: domain.NewCatalogService(domain.CatalogServiceConfig[*product.Product]{
			Repo:       st.Products,
			TxManager:  st.TxManager,
			Authorizer: authz,
			EntityName: "product",
		}),
		Warehouses: domain.NewCatalogService(domain.CatalogServiceConfig[*warehouse.Warehouse]{
			Repo:       st.Warehouses,
			TxManager:  st.TxManager,
			Authorizer: authz,
			EntityName: "warehouse",
		}),
	}
}

// NewLocker returns a Redis locker when REDIS_ADDR is set, else an
// in-process one. The returned func closes the Redis client.
func NewLocker(ctx context.Context, cfg *config.Config) (corelock.Locker, func(), error) {
	if cfg.Redis.Addr == "" {
		return lock.NewLocal(time.Duration(cfg.Lock.Retries) * cfg.Lock.RetryDelay), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
	}
	logger.Info(ctx, "using redis locks", "addr", cfg.Redis.Addr)

	locker := lock.NewRedis(client, lock.RedisConfig{
		TTL:        cfg.Lock.TTL,
		Retries:    cfg.Lock.Retries,
		RetryDelay: cfg.Lock.RetryDelay,
	})
	return locker, func() { _ = client.Close() }, nil
}

// NewAuthorizer compiles the default rule plus POLICY_FILE overrides.
func NewAuthorizer(cfg *config.Config) (*security.PolicyAuthorizer, error) {
	rules, err := security.LoadPolicyFile(cfg.Auth.PolicyFile)
	if err != nil {
		return nil, err
	}
	return security.NewPolicyAuthorizer(rules)
}
