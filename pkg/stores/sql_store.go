package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// Postgres driver
	_ "github.com/jackc/pgx/v5/stdlib"
	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/rentroll/rentroll/pkg/property"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Config holds SQL store configuration.
type Config struct {
	Dialect Dialect
	// DSN is a file path (or ":memory:") for SQLite and a connection URL for Postgres.
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLStore implements Backend over database/sql.
type SQLStore struct {
	db      *sql.DB
	q       querier
	cfg     Config
	dialect Dialect
}

var _ Backend = (*SQLStore)(nil)

// NewSQLStore creates a store instance. Call Init before use.
func NewSQLStore(cfg Config) (*SQLStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Dialect == "" {
		cfg.Dialect = DialectSQLite
	}
	if _, err := ParseDialect(string(cfg.Dialect)); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// Every connection to ":memory:" is a separate database.
	if cfg.Dialect == DialectSQLite && strings.Contains(cfg.DSN, ":memory:") {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLStore{cfg: cfg, dialect: cfg.Dialect}, nil
}

// Init opens the connection pool and verifies connectivity.
func (s *SQLStore) Init(ctx context.Context) error {
	dsn := s.cfg.DSN
	if s.dialect == DialectSQLite {
		dsn = sqliteDSN(dsn)
	}

	openMu.Lock()
	db, err := sqlOpen(s.dialect.driverName(), dsn)
	openMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	s.q = db
	return nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + strings.TrimPrefix(path, "file:") + sep +
		"_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
}

// Name implements Backend.
func (s *SQLStore) Name() string { return string(s.dialect) }

// Dialect returns the SQL flavour of the store.
func (s *SQLStore) Dialect() Dialect { return s.dialect }

// DB exposes the underlying pool for maintenance tasks such as backups.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs the embedded migrations for the store's dialect.
func (s *SQLStore) Migrate(_ context.Context) error {
	m, err := s.migrator()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// MigrationVersion reports the applied schema version.
func (s *SQLStore) MigrationVersion() (uint, bool, error) {
	m, err := s.migrator()
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func (s *SQLStore) migrator() (*migrate.Migrate, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations: %w", err)
	}
	sourceDriver, err := iofs.New(sub, string(s.dialect))
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	var (
		driver database.Driver
		name   string
	)
	switch s.dialect {
	case DialectPostgres:
		driver, err = migratepgx.WithInstance(s.db, &migratepgx.Config{})
		name = "pgx5"
	default:
		driver, err = migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
		name = "sqlite"
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, name, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

// HealthCheck verifies the database connection is healthy.
func (s *SQLStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return s.db.PingContext(ctx)
}

// CheckTransactions opens and rolls back an empty transaction. Both dialects
// support transactions, so a failure here is an environment error and is
// returned as is.
func (s *SQLStore) CheckTransactions(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction check: %w", err)
	}
	return tx.Rollback()
}

// WithTx runs fn inside a transaction and commits if fn returns nil.
func (s *SQLStore) WithTx(ctx context.Context, fn func(Store) error) (err error) {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(s.withQuerier(tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) withQuerier(q querier) *SQLStore {
	return &SQLStore{db: s.db, q: q, cfg: s.cfg, dialect: s.dialect}
}

// Versions implements Store.
func (s *SQLStore) Versions() VersionStore { return sqlVersions{s} }

// Brokers implements Store.
func (s *SQLStore) Brokers() Collection[property.Broker] { return sqlBrokers{s} }

// Tenants implements Store.
func (s *SQLStore) Tenants() Collection[property.Tenant] { return sqlTenants{s} }

// Audit implements Store.
func (s *SQLStore) Audit() AuditLog { return sqlAudit{s} }

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}
