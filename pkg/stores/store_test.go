package stores

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rentroll/rentroll/pkg/property"
)

// setupSQLiteStore creates a migrated SQLite store in a temp directory.
func setupSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()

	store, err := NewSQLStore(Config{
		Dialect: DialectSQLite,
		DSN:     filepath.Join(t.TempDir(), "rentroll.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// setupPostgresStore connects to RENTROLL_TEST_POSTGRES_DSN or skips.
func setupPostgresStore(t *testing.T) *SQLStore {
	t.Helper()

	dsn := os.Getenv("RENTROLL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("RENTROLL_TEST_POSTGRES_DSN not set")
	}
	store, err := NewSQLStore(Config{Dialect: DialectPostgres, DSN: dsn})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func backends() map[string]func(*testing.T) Backend {
	return map[string]func(*testing.T) Backend{
		"memory":   func(*testing.T) Backend { return NewMemoryStore() },
		"sqlite":   func(t *testing.T) Backend { return setupSQLiteStore(t) },
		"postgres": func(t *testing.T) Backend { return setupPostgresStore(t) },
	}
}

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// uniqueKey isolates test data on shared databases.
func uniqueKey(t *testing.T, version string) property.Key {
	return property.Key{PropertyID: t.Name() + "-" + uuid.NewString()[:8], Version: version}
}

func newRecord(id string, key property.Key) *property.VersionRecord {
	return &property.VersionRecord{
		ID:         id,
		PropertyID: key.PropertyID,
		Version:    key.Version,
		IsLatest:   true,
		PropertyDetails: property.PropertyDetails{
			Address:        "1 Main St",
			BuildingSizeSf: 1000,
		},
		UnderwritingInputs: property.UnderwritingInputs{
			EstStartDate:    "2024-01-01",
			HoldPeriodYears: 5,
		},
		UpdatedBy: "analyst-1",
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
}

func TestSQLStoreLifecycle(t *testing.T) {
	store, err := NewSQLStore(Config{DSN: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if store.cfg.MaxOpenConns != 1 {
		t.Errorf("in-memory sqlite should pin one connection, got %d", store.cfg.MaxOpenConns)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if err := store.CheckTransactions(ctx); err != nil {
		t.Fatalf("sqlite should support transactions: %v", err)
	}
	v, dirty, err := store.MigrationVersion()
	if err != nil || dirty || v != 1 {
		t.Errorf("MigrationVersion() = %d, %v, %v", v, dirty, err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLStoreRejectsUnknownDialect(t *testing.T) {
	if _, err := NewSQLStore(Config{Dialect: "oracle", DSN: "x"}); err == nil {
		t.Fatal("expected error for unknown dialect")
	}
	if _, err := NewSQLStore(Config{}); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

func TestMemoryStoreHasNoTransactions(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	if err := m.CheckTransactions(ctx); !errors.Is(err, ErrTransactionsUnsupported) {
		t.Errorf("CheckTransactions() = %v", err)
	}
	if err := m.WithTx(ctx, func(Store) error { return nil }); !errors.Is(err, ErrTransactionsUnsupported) {
		t.Errorf("WithTx() = %v", err)
	}
}

func TestCheckTransactionsReportsEnvironmentErrors(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	closed := setupSQLiteStore(t)
	if err := closed.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	tests := []struct {
		name  string
		store *SQLStore
		ctx   context.Context
	}{
		{"cancelled context", setupSQLiteStore(t), cancelled},
		{"closed database", closed, context.Background()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.store.CheckTransactions(tt.ctx)
			if err == nil {
				t.Fatal("expected an error")
			}
			if errors.Is(err, ErrTransactionsUnsupported) {
				t.Errorf("environment failure reported as missing capability: %v", err)
			}
		})
	}
}

func TestRetire(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			ctx := context.Background()
			key := uniqueKey(t, "1.1")
			vs := b.Versions()

			if err := vs.CreateVersion(ctx, newRecord(key.PropertyID+"-a", key)); err != nil {
				t.Fatalf("CreateVersion: %v", err)
			}
			upd := VersionUpdate{
				PropertyDetails:    property.PropertyDetails{Address: "1 Main St", BuildingSizeSf: 1000},
				UnderwritingInputs: property.UnderwritingInputs{EstStartDate: "2024-01-01", HoldPeriodYears: 5},
				UpdatedBy:          "analyst-2",
				UpdatedAt:          testNow,
			}
			if saved, err := vs.AtomicSave(ctx, key, 0, upd); err != nil || saved == nil {
				t.Fatalf("AtomicSave: %v, %v", saved, err)
			}

			at := testNow.Add(time.Hour)
			tests := []struct {
				name     string
				revision int64
				want     bool
			}{
				{"stale revision", 0, false},
				{"current revision", 1, true},
				{"already retired", 1, false},
			}
			for _, tt := range tests {
				got, err := vs.Retire(ctx, key, tt.revision, at)
				if err != nil {
					t.Fatalf("%s: Retire: %v", tt.name, err)
				}
				if (got != nil) != tt.want {
					t.Fatalf("%s: Retire() = %+v, want retired=%v", tt.name, got, tt.want)
				}
				if got != nil && (!got.IsHistorical || got.IsLatest || got.Revision != 1 || !got.UpdatedAt.Equal(at)) {
					t.Errorf("%s: unexpected record: %+v", tt.name, got)
				}
			}

			stored, err := vs.FindVersion(ctx, key)
			if err != nil {
				t.Fatalf("FindVersion: %v", err)
			}
			if !stored.IsHistorical || stored.Revision != 1 {
				t.Errorf("unexpected stored record: %+v", stored)
			}
		})
	}
}

func TestVersionStore(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			ctx := context.Background()
			key := uniqueKey(t, "1.1")
			vs := b.Versions()

			if _, err := vs.FindVersion(ctx, key); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			rec := newRecord(key.PropertyID+"-a", key)
			if err := vs.CreateVersion(ctx, rec); err != nil {
				t.Fatalf("CreateVersion: %v", err)
			}
			dup := newRecord(key.PropertyID+"-b", key)
			if err := vs.CreateVersion(ctx, dup); !errors.Is(err, ErrDuplicate) {
				t.Fatalf("expected ErrDuplicate, got %v", err)
			}

			got, err := vs.FindVersion(ctx, key)
			if err != nil {
				t.Fatalf("FindVersion: %v", err)
			}
			if got.Revision != 0 || !got.IsLatest || got.PropertyDetails.Address != "1 Main St" {
				t.Errorf("unexpected record: %+v", got)
			}
			if !got.CreatedAt.Equal(testNow) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, testNow)
			}

			upd := VersionUpdate{
				PropertyDetails:    got.PropertyDetails,
				UnderwritingInputs: got.UnderwritingInputs,
				UpdatedBy:          "analyst-2",
				UpdatedAt:          testNow.Add(time.Minute),
			}
			upd.PropertyDetails.BuildingSizeSf = 1200

			saved, err := vs.AtomicSave(ctx, key, 0, upd)
			if err != nil || saved == nil {
				t.Fatalf("AtomicSave: %v, %v", saved, err)
			}
			if saved.Revision != 1 || saved.PropertyDetails.BuildingSizeSf != 1200 || saved.UpdatedBy != "analyst-2" {
				t.Errorf("unexpected saved record: %+v", saved)
			}

			stale, err := vs.AtomicSave(ctx, key, 0, upd)
			if err != nil || stale != nil {
				t.Fatalf("stale AtomicSave should return nil, nil; got %v, %v", stale, err)
			}

			n, err := vs.MarkLatestHistorical(ctx, key.PropertyID, testNow)
			if err != nil || n != 1 {
				t.Fatalf("MarkLatestHistorical = %d, %v", n, err)
			}
			historical, err := vs.AtomicSave(ctx, key, 1, upd)
			if err != nil || historical != nil {
				t.Fatalf("AtomicSave on historical should return nil, nil; got %v, %v", historical, err)
			}

			next := property.Key{PropertyID: key.PropertyID, Version: "1.2"}
			if err := vs.CreateVersion(ctx, newRecord(key.PropertyID+"-c", next)); err != nil {
				t.Fatalf("CreateVersion: %v", err)
			}
			list, err := vs.ListVersions(ctx, key.PropertyID)
			if err != nil {
				t.Fatalf("ListVersions: %v", err)
			}
			if len(list) != 2 || list[0].Version != "1.1" || list[1].Version != "1.2" {
				t.Fatalf("unexpected versions: %+v", list)
			}
			if !list[0].IsHistorical || list[0].IsLatest || !list[1].IsLatest {
				t.Errorf("unexpected flags: %+v", list)
			}

			latest, err := vs.ListLatest(ctx)
			if err != nil {
				t.Fatalf("ListLatest: %v", err)
			}
			found := false
			for _, s := range latest {
				if s.PropertyID == key.PropertyID {
					found = s.Version == "1.2"
				}
			}
			if !found {
				t.Errorf("latest listing missing %s@1.2: %+v", key.PropertyID, latest)
			}
		})
	}
}

func TestCollections(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			ctx := context.Background()
			key := uniqueKey(t, "1.1")
			rec := newRecord(key.PropertyID+"-agg", key)
			if err := b.Versions().CreateVersion(ctx, rec); err != nil {
				t.Fatalf("CreateVersion: %v", err)
			}

			deletedAt := testNow
			tenants := []property.Tenant{
				{ID: "t2", TenantName: "Zeta", SquareFeet: 300, LeaseStart: "2024-01-01", LeaseEnd: "2025-01-01"},
				{ID: "t1", TenantName: "Acme", SquareFeet: 200, IsDeleted: true, DeletedAt: &deletedAt, DeletedBy: "analyst-1"},
				{ID: property.VacantTenantID, TenantName: "VACANT", SquareFeet: 500, IsVacant: true},
			}
			if err := b.Tenants().ReplaceAll(ctx, rec.ID, key, tenants); err != nil {
				t.Fatalf("ReplaceAll tenants: %v", err)
			}
			got, err := b.Tenants().List(ctx, rec.ID)
			if err != nil {
				t.Fatalf("List tenants: %v", err)
			}
			if len(got) != 3 || got[0].ID != "t2" || got[1].ID != "t1" || got[2].ID != property.VacantTenantID {
				t.Fatalf("tenants not in insertion order: %+v", got)
			}
			if !got[1].IsDeleted || got[1].DeletedAt == nil || !got[1].DeletedAt.Equal(deletedAt) {
				t.Errorf("soft delete metadata lost: %+v", got[1])
			}
			if !got[2].IsVacant {
				t.Errorf("vacant flag lost: %+v", got[2])
			}

			if err := b.Tenants().ReplaceAll(ctx, rec.ID, key, tenants[:1]); err != nil {
				t.Fatalf("ReplaceAll tenants: %v", err)
			}
			got, _ = b.Tenants().List(ctx, rec.ID)
			if len(got) != 1 {
				t.Errorf("ReplaceAll should drop omitted rows, got %d", len(got))
			}

			brokers := []property.Broker{{ID: "b1", Name: "Alice", Email: "a@example.com"}, {ID: "b1", Name: "Dup"}}
			if err := b.Brokers().ReplaceAll(ctx, rec.ID, key, brokers); !errors.Is(err, ErrDuplicate) {
				t.Errorf("expected ErrDuplicate for repeated broker ids, got %v", err)
			}
			if err := b.Brokers().ReplaceAll(ctx, rec.ID, key, brokers[:1]); err != nil {
				t.Fatalf("ReplaceAll brokers: %v", err)
			}
			gotBrokers, err := b.Brokers().List(ctx, rec.ID)
			if err != nil || len(gotBrokers) != 1 || gotBrokers[0].Email != "a@example.com" {
				t.Errorf("List brokers = %+v, %v", gotBrokers, err)
			}

			empty, err := b.Brokers().List(ctx, "missing")
			if err != nil || empty == nil || len(empty) != 0 {
				t.Errorf("unknown aggregate should list empty, got %v, %v", empty, err)
			}
		})
	}
}

func TestAuditLog(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			ctx := context.Background()
			key := uniqueKey(t, "1.1")
			log := b.Audit()

			head, err := log.LatestHash(ctx, key)
			if err != nil || head != "" {
				t.Fatalf("LatestHash on empty log = %q, %v", head, err)
			}

			for i := 1; i <= 3; i++ {
				rec := &property.AuditRecord{
					PropertyID:        key.PropertyID,
					Version:           key.Version,
					Revision:          int64(i),
					Action:            property.ActionUpdateVersion,
					Changes:           []property.FieldChange{{Field: "propertyDetails.buildingSizeSf", OldValue: float64(i), NewValue: float64(i + 1)}},
					ChangedFieldCount: 1,
					UpdatedBy:         "analyst-1",
					CreatedAt:         testNow.Add(time.Duration(i) * time.Second),
					Hash:              string(rune('a' + i)),
				}
				if err := log.Append(ctx, rec); err != nil {
					t.Fatalf("Append: %v", err)
				}
				if rec.ID == 0 {
					t.Fatalf("Append should assign an id")
				}
			}

			records, err := log.List(ctx, key)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(records) != 3 {
				t.Fatalf("expected 3 records, got %d", len(records))
			}
			if records[0].Revision != 3 || records[2].Revision != 1 {
				t.Errorf("records not newest-first: %d..%d", records[0].Revision, records[2].Revision)
			}
			if records[0].Changes[0].NewValue != float64(4) {
				t.Errorf("changes not round-tripped: %+v", records[0].Changes)
			}
			head, _ = log.LatestHash(ctx, key)
			if head != "d" {
				t.Errorf("LatestHash = %q, want d", head)
			}
		})
	}
}

func TestSQLiteAuditRecordsAreImmutable(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()
	rec := &property.AuditRecord{PropertyID: "P1", Version: "1.1", Action: property.ActionCreateVersion, CreatedAt: testNow}
	if err := store.Audit().Append(ctx, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := store.DB().ExecContext(ctx, `UPDATE audit_records SET updated_by = 'x'`); err == nil {
		t.Error("expected update to be rejected")
	}
	if _, err := store.DB().ExecContext(ctx, `DELETE FROM audit_records`); err == nil {
		t.Error("expected delete to be rejected")
	}
}

func TestWithTxRollsBack(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()
	key := property.Key{PropertyID: "P1", Version: "1.1"}
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx Store) error {
		if err := tx.Versions().CreateVersion(ctx, newRecord("agg-1", key)); err != nil {
			return err
		}
		if err := tx.Audit().Append(ctx, &property.AuditRecord{PropertyID: "P1", Version: "1.1", CreatedAt: testNow}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() = %v, want boom", err)
	}
	if _, err := store.Versions().FindVersion(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("version should be rolled back, got %v", err)
	}
	records, _ := store.Audit().List(ctx, key)
	if len(records) != 0 {
		t.Errorf("audit append should be rolled back, got %d", len(records))
	}

	err = store.WithTx(ctx, func(tx Store) error {
		return tx.Versions().CreateVersion(ctx, newRecord("agg-1", key))
	})
	if err != nil {
		t.Fatalf("WithTx commit: %v", err)
	}
	if _, err := store.Versions().FindVersion(ctx, key); err != nil {
		t.Errorf("committed version missing: %v", err)
	}
}

func TestAtomicSaveSingleWinner(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			ctx := context.Background()
			key := uniqueKey(t, "1.1")
			rec := newRecord(key.PropertyID+"-agg", key)
			if err := b.Versions().CreateVersion(ctx, rec); err != nil {
				t.Fatalf("CreateVersion: %v", err)
			}

			const writers = 8
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins int
			)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					saved, err := b.Versions().AtomicSave(ctx, key, 0, VersionUpdate{
						PropertyDetails:    rec.PropertyDetails,
						UnderwritingInputs: rec.UnderwritingInputs,
						UpdatedBy:          "writer",
						UpdatedAt:          testNow,
					})
					if err != nil {
						t.Errorf("AtomicSave: %v", err)
						return
					}
					if saved != nil {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			if wins != 1 {
				t.Errorf("expected exactly one winner, got %d", wins)
			}
		})
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE b = ? AND c = ?"
	if got := DialectSQLite.rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %s", got)
	}
	if got := DialectPostgres.rebind(q); got != "SELECT a FROM t WHERE b = $1 AND c = $2" {
		t.Errorf("postgres rebind = %s", got)
	}
}

func TestDBTimeScan(t *testing.T) {
	var ts dbTime
	if err := ts.Scan("2024-06-01T12:00:00.000000Z"); err != nil || !ts.Time.Equal(testNow) {
		t.Errorf("Scan(text) = %v, %v", ts.Time, err)
	}
	if err := ts.Scan(nil); err != nil || ts.ptr() != nil {
		t.Errorf("Scan(nil) should be invalid")
	}
	if err := ts.Scan(42); err == nil {
		t.Errorf("Scan(int) should fail")
	}
}
