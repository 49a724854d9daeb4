package stores

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rentroll/rentroll/pkg/property"
)

// MemoryStore keeps everything in process memory. It has no transactions, so the
// engine applies writes sequentially against it.
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[property.Key]*property.VersionRecord
	brokers  map[string][]property.Broker
	tenants  map[string][]property.Tenant
	audit    []property.AuditRecord
	nextID   int64
}

var _ Backend = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		versions: make(map[property.Key]*property.VersionRecord),
		brokers:  make(map[string][]property.Broker),
		tenants:  make(map[string][]property.Tenant),
	}
}

func (m *MemoryStore) Name() string { return "memory" }

// CheckTransactions always reports ErrTransactionsUnsupported.
func (m *MemoryStore) CheckTransactions(context.Context) error {
	return ErrTransactionsUnsupported
}

// WithTx always fails; callers must check CheckTransactions first.
func (m *MemoryStore) WithTx(context.Context, func(Store) error) error {
	return ErrTransactionsUnsupported
}

func (m *MemoryStore) HealthCheck(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Versions() VersionStore               { return memVersions{m} }
func (m *MemoryStore) Brokers() Collection[property.Broker] { return memBrokers{m} }
func (m *MemoryStore) Tenants() Collection[property.Tenant] { return memTenants{m} }
func (m *MemoryStore) Audit() AuditLog                      { return memAudit{m} }

type memVersions struct{ m *MemoryStore }

func (v memVersions) FindVersion(_ context.Context, key property.Key) (*property.VersionRecord, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()

	rec, ok := v.m.versions[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (v memVersions) ListVersions(_ context.Context, propertyID string) ([]property.VersionSummary, error) {
	return v.summaries(func(r *property.VersionRecord) bool { return r.PropertyID == propertyID }), nil
}

func (v memVersions) ListLatest(context.Context) ([]property.VersionSummary, error) {
	out := v.summaries(func(r *property.VersionRecord) bool { return r.IsLatest })
	sort.SliceStable(out, func(i, j int) bool { return out[i].PropertyID < out[j].PropertyID })
	return out, nil
}

func (v memVersions) summaries(match func(*property.VersionRecord) bool) []property.VersionSummary {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()

	recs := make([]*property.VersionRecord, 0)
	for _, rec := range v.m.versions {
		if match(rec) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].Version < recs[j].Version
	})

	out := make([]property.VersionSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, property.VersionSummary{
			PropertyID:   rec.PropertyID,
			Version:      rec.Version,
			Revision:     rec.Revision,
			IsLatest:     rec.IsLatest,
			IsHistorical: rec.IsHistorical,
			UpdatedBy:    rec.UpdatedBy,
			UpdatedAt:    rec.UpdatedAt,
		})
	}
	return out
}

func (v memVersions) CreateVersion(_ context.Context, rec *property.VersionRecord) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()

	key := rec.Key()
	if _, exists := v.m.versions[key]; exists {
		return fmt.Errorf("version %s: %w", key, ErrDuplicate)
	}
	stored := *rec
	v.m.versions[key] = &stored
	return nil
}

func (v memVersions) AtomicSave(_ context.Context, key property.Key, expectedRevision int64, upd VersionUpdate) (*property.VersionRecord, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()

	rec, ok := v.m.versions[key]
	if !ok || rec.IsHistorical || rec.Revision != expectedRevision {
		return nil, nil
	}
	rec.PropertyDetails = upd.PropertyDetails
	rec.UnderwritingInputs = upd.UnderwritingInputs
	rec.UpdatedBy = upd.UpdatedBy
	rec.UpdatedAt = upd.UpdatedAt
	rec.Revision++

	out := *rec
	return &out, nil
}

func (v memVersions) Retire(_ context.Context, key property.Key, expectedRevision int64, at time.Time) (*property.VersionRecord, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()

	rec, ok := v.m.versions[key]
	if !ok || rec.IsHistorical || rec.Revision != expectedRevision {
		return nil, nil
	}
	rec.IsLatest = false
	rec.IsHistorical = true
	rec.UpdatedAt = at

	out := *rec
	return &out, nil
}

func (v memVersions) MarkLatestHistorical(_ context.Context, propertyID string, at time.Time) (int64, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()

	var n int64
	for _, rec := range v.m.versions {
		if rec.PropertyID == propertyID && rec.IsLatest {
			rec.IsLatest = false
			rec.IsHistorical = true
			rec.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

type memBrokers struct{ m *MemoryStore }

func (c memBrokers) List(_ context.Context, aggregateID string) ([]property.Broker, error) {
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()
	return property.CloneBrokers(c.m.brokers[aggregateID]), nil
}

func (c memBrokers) ReplaceAll(_ context.Context, aggregateID string, _ property.Key, rows []property.Broker) error {
	if err := uniqueIDs(rows, func(b property.Broker) string { return b.ID }); err != nil {
		return err
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.m.brokers[aggregateID] = property.CloneBrokers(rows)
	return nil
}

type memTenants struct{ m *MemoryStore }

func (c memTenants) List(_ context.Context, aggregateID string) ([]property.Tenant, error) {
	c.m.mu.RLock()
	defer c.m.mu.RUnlock()
	return property.CloneTenants(c.m.tenants[aggregateID]), nil
}

func (c memTenants) ReplaceAll(_ context.Context, aggregateID string, _ property.Key, rows []property.Tenant) error {
	if err := uniqueIDs(rows, func(t property.Tenant) string { return t.ID }); err != nil {
		return err
	}
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.m.tenants[aggregateID] = property.CloneTenants(rows)
	return nil
}

// uniqueIDs mirrors the (aggregate_id, id) primary key of the SQL schema.
func uniqueIDs[T any](rows []T, id func(T) string) error {
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		k := id(row)
		if _, dup := seen[k]; dup {
			return fmt.Errorf("row %s: %w", k, ErrDuplicate)
		}
		seen[k] = struct{}{}
	}
	return nil
}

type memAudit struct{ m *MemoryStore }

func (a memAudit) Append(_ context.Context, rec *property.AuditRecord) error {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()

	a.m.nextID++
	rec.ID = a.m.nextID
	stored := *rec
	stored.Changes = append([]property.FieldChange{}, rec.Changes...)
	a.m.audit = append(a.m.audit, stored)
	return nil
}

func (a memAudit) List(_ context.Context, key property.Key) ([]property.AuditRecord, error) {
	a.m.mu.RLock()
	defer a.m.mu.RUnlock()

	out := []property.AuditRecord{}
	for i := len(a.m.audit) - 1; i >= 0; i-- {
		rec := a.m.audit[i]
		if rec.PropertyID == key.PropertyID && rec.Version == key.Version {
			rec.Changes = append([]property.FieldChange{}, rec.Changes...)
			out = append(out, rec)
		}
	}
	return out, nil
}

func (a memAudit) LatestHash(_ context.Context, key property.Key) (string, error) {
	a.m.mu.RLock()
	defer a.m.mu.RUnlock()

	for i := len(a.m.audit) - 1; i >= 0; i-- {
		rec := a.m.audit[i]
		if rec.PropertyID == key.PropertyID && rec.Version == key.Version {
			return rec.Hash, nil
		}
	}
	return "", nil
}
