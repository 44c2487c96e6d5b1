// Package memory is an in-process store implementing every repository
// interface. It backs STORAGE_DRIVER=memory and the service tests.
//
// Transactions are serialized: RunInTransaction holds a store-wide mutex
// for the whole callback and restores a snapshot when the callback fails.
// Reads outside a transaction may observe uncommitted writes.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"pharmaflow/internal/core/id"
	"pharmaflow/internal/core/tx"
	"pharmaflow/internal/domain"
	"pharmaflow/internal/domain/approval"
	"pharmaflow/internal/domain/audit"
	"pharmaflow/internal/domain/catalogs/product"
	"pharmaflow/internal/domain/catalogs/warehouse"
	"pharmaflow/internal/domain/events"
	"pharmaflow/internal/domain/inventory"
	"pharmaflow/internal/domain/qc"
)

type txKey struct{}

// Store holds every table. Stored values are never mutated in place:
// writers replace them with fresh clones, so a snapshot is a map copy.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	tables tables
}

type tables struct {
	products     map[id.ID]*product.Product
	warehouses   map[id.ID]*warehouse.Warehouse
	inventory    map[id.ID]*inventory.Record
	adjustments  map[id.ID][]inventory.Adjustment
	reservations map[id.ID][]inventory.ReservationEntry
	qc           map[id.ID]*qc.Record
	approvals    map[id.ID]*approval.Record
	events       []events.Event
	audit        []audit.Entry
}

// New creates an empty store.
func New() *Store {
	return &Store{tables: tables{
		products:     make(map[id.ID]*product.Product),
		warehouses:   make(map[id.ID]*warehouse.Warehouse),
		inventory:    make(map[id.ID]*inventory.Record),
		adjustments:  make(map[id.ID][]inventory.Adjustment),
		reservations: make(map[id.ID][]inventory.ReservationEntry),
		qc:           make(map[id.ID]*qc.Record),
		approvals:    make(map[id.ID]*approval.Record),
	}}
}

func (t tables) clone() tables {
	c := tables{
		products:     maps.Clone(t.products),
		warehouses:   maps.Clone(t.warehouses),
		inventory:    maps.Clone(t.inventory),
		adjustments:  make(map[id.ID][]inventory.Adjustment, len(t.adjustments)),
		reservations: make(map[id.ID][]inventory.ReservationEntry, len(t.reservations)),
		qc:           maps.Clone(t.qc),
		approvals:    maps.Clone(t.approvals),
		events:       slices.Clone(t.events),
		audit:        slices.Clone(t.audit),
	}
	for k, v := range t.adjustments {
		c.adjustments[k] = slices.Clone(v)
	}
	for k, v := range t.reservations {
		c.reservations[k] = slices.Clone(v)
	}
	return c
}

// TxManager implements tx.Manager.
type TxManager struct {
	store *Store
}

// TxManager returns the store's transaction manager.
func (s *Store) TxManager() *TxManager {
	return &TxManager{store: s}
}

// RunInTransaction implements tx.Manager. Nested calls join the outer one.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	m.store.txMu.Lock()
	defer m.store.txMu.Unlock()

	m.store.mu.RLock()
	saved := m.store.tables.clone()
	m.store.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.store.mu.Lock()
		m.store.tables = saved
		m.store.mu.Unlock()
		return err
	}
	return nil
}

var _ tx.Manager = (*TxManager)(nil)

// Ping implements the readiness probe.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) read(fn func(t *tables)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.tables)
}

func (s *Store) write(fn func(t *tables) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.tables)
}

// Events returns every published event, oldest first.
func (s *Store) Events() []events.Event {
	var out []events.Event
	s.read(func(t *tables) { out = slices.Clone(t.events) })
	return out
}

// AuditEntries returns every audit entry, oldest first.
func (s *Store) AuditEntries() []audit.Entry {
	var out []audit.Entry
	s.read(func(t *tables) { out = slices.Clone(t.audit) })
	return out
}

// Publisher implements events.Publisher.
type Publisher struct{ store *Store }

// Publisher returns the store-backed event log.
func (s *Store) Publisher() *Publisher { return &Publisher{store: s} }

func (p *Publisher) Publish(_ context.Context, evs ...events.Event) error {
	return p.store.write(func(t *tables) error {
		t.events = append(t.events, evs...)
		return nil
	})
}

// Recorder implements audit.Recorder.
type Recorder struct{ store *Store }

// Recorder returns the store-backed audit log.
func (s *Store) Recorder() *Recorder { return &Recorder{store: s} }

func (r *Recorder) Record(_ context.Context, entry audit.Entry) error {
	return r.store.write(func(t *tables) error {
		t.audit = append(t.audit, entry)
		return nil
	})
}

// sortKeys maps a whitelisted sort column to a comparison.
type sortKeys[T any] map[string]func(a, b T) int

func paginate[T any](items []T, f domain.ListFilter, keys sortKeys[T], fallback string) domain.ListResult[T] {
	compare, ok := keys[f.Sort]
	if !ok {
		compare = keys[fallback]
	}
	slices.SortStableFunc(items, func(a, b T) int {
		if f.Order == domain.SortAsc {
			return compare(a, b)
		}
		return compare(b, a)
	})

	total := len(items)
	start := min(f.Offset(), total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return domain.NewListResult(items[start:end], int64(total), f)
}

func matches(search string, fields ...string) bool {
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func compareIDs(a, b id.ID) int {
	return cmp.Compare(a.String(), b.String())
}
