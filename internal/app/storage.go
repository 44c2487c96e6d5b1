// Package app wires configuration, storage and domain services together
// for the server and worker binaries.
package app

import (
	"context"
	"fmt"

	"pharmaflow/internal/config"
	"pharmaflow/internal/core/idempotency"
	"pharmaflow/internal/core/numerator"
	"pharmaflow/internal/core/tx"
	"pharmaflow/internal/domain/approval"
	"pharmaflow/internal/domain/audit"
	"pharmaflow/internal/domain/catalogs/product"
	"pharmaflow/internal/domain/catalogs/warehouse"
	"pharmaflow/internal/domain/events"
	"pharmaflow/internal/domain/inventory"
	"pharmaflow/internal/domain/qc"
	"pharmaflow/internal/infrastructure/storage/memory"
	"pharmaflow/internal/infrastructure/storage/postgres"
	"pharmaflow/internal/infrastructure/storage/postgres/catalog_repo"
	"pharmaflow/internal/infrastructure/storage/postgres/document_repo"
	"pharmaflow/internal/infrastructure/storage/postgres/register_repo"
	pgnumerator "pharmaflow/pkg/numerator"
)

// Storage is one storage backend behind the repository interfaces.
type Storage struct {
	Driver string

	TxManager  tx.Manager
	QC         qc.Repository
	Approvals  approval.Repository
	Inventory  inventory.Repository
	Products   product.Repository
	Warehouses warehouse.Repository

	Events      events.Publisher
	Audit       audit.Recorder
	Numerator   numerator.Generator
	Idempotency idempotency.Store

	// Set for the postgres driver only
	Pool   *postgres.Pool
	PgTx   *postgres.TxManager
	Memory *memory.Store
}

// Ping reports whether the backend is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	if s.Pool != nil {
		return s.Pool.Ping(ctx)
	}
	return s.Memory.Ping(ctx)
}

// Close releases connections.
func (s *Storage) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// OpenStorage opens the backend selected by STORAGE_DRIVER.
func OpenStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return NewMemoryStorage(memory.New(), cfg), nil
	case config.DriverPostgres:
		return openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// NewMemoryStorage wraps an in-process store.
func NewMemoryStorage(store *memory.Store, cfg *config.Config) *Storage {
	return &Storage{
		Driver:      config.DriverMemory,
		TxManager:   store.TxManager(),
		QC:          store.QC(),
		Approvals:   store.Approvals(),
		Inventory:   store.Inventory(),
		Products:    store.Products(),
		Warehouses:  store.Warehouses(),
		Events:      store.Publisher(),
		Audit:       store.Recorder(),
		Numerator:   numerator.NewMemory(),
		Idempotency: idempotency.NewMemory(cfg.Domain.IdempotencyTTL),
		Memory:      store,
	}
}

func openPostgres(ctx context.Context, cfg *config.Config) (*Storage, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.Storage.DatabaseURL)
	poolCfg.MaxConns = cfg.Storage.MaxConns
	poolCfg.MinConns = cfg.Storage.MinConns

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	txm := postgres.NewTxManager(pool)

	recorder, err := postgres.NewAuditRecorder(txm)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &Storage{
		Driver:      config.DriverPostgres,
		TxManager:   txm,
		QC:          document_repo.NewQCRepo(txm),
		Approvals:   document_repo.NewApprovalRepo(txm),
		Inventory:   register_repo.NewInventoryRepo(txm),
		Products:    catalog_repo.NewProductRepo(txm),
		Warehouses:  catalog_repo.NewWarehouseRepo(txm),
		Events:      postgres.NewOutboxPublisher(txm),
		Audit:       recorder,
		Numerator:   pgnumerator.New(txm),
		Idempotency: postgres.NewIdempotencyStore(txm, cfg.Domain.IdempotencyTTL),
		Pool:        pool,
		PgTx:        txm,
	}, nil
}
