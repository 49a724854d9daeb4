package stores

import (
	"context"
	"errors"
	"time"

	"github.com/rentroll/rentroll/pkg/property"
)

var (
	// ErrNotFound is returned when a version record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a write violates a natural-key uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")

	// ErrTransactionsUnsupported is returned by backends that cannot run multi-statement transactions.
	ErrTransactionsUnsupported = errors.New("transactions not supported by backend")
)

// VersionUpdate carries the mutable core fields written by an atomic save.
type VersionUpdate struct {
	PropertyDetails    property.PropertyDetails
	UnderwritingInputs property.UnderwritingInputs
	UpdatedBy          string
	UpdatedAt          time.Time
}

// VersionStore owns aggregate instance records.
type VersionStore interface {
	// FindVersion returns ErrNotFound when the key is unknown.
	FindVersion(ctx context.Context, key property.Key) (*property.VersionRecord, error)

	// ListVersions returns every version of a property in creation order.
	ListVersions(ctx context.Context, propertyID string) ([]property.VersionSummary, error)

	// ListLatest returns the latest version of every property.
	ListLatest(ctx context.Context) ([]property.VersionSummary, error)

	// CreateVersion inserts a new instance. A taken (propertyId, version) yields ErrDuplicate.
	CreateVersion(ctx context.Context, rec *property.VersionRecord) error

	// AtomicSave writes upd and increments the revision only if the stored revision
	// equals expectedRevision and the instance is not historical. A lost race returns (nil, nil).
	AtomicSave(ctx context.Context, key property.Key, expectedRevision int64, upd VersionUpdate) (*property.VersionRecord, error)

	// Retire flips one instance to historical only if its stored revision equals
	// expectedRevision and it is not historical yet. A lost race returns (nil, nil).
	Retire(ctx context.Context, key property.Key, expectedRevision int64, at time.Time) (*property.VersionRecord, error)

	// MarkLatestHistorical flips every latest instance of a property to historical.
	MarkLatestHistorical(ctx context.Context, propertyID string, at time.Time) (int64, error)
}

// Collection is a per-aggregate ordered entity list that is only ever replaced whole.
type Collection[T any] interface {
	// List returns the rows scoped to aggregateID in insertion order.
	List(ctx context.Context, aggregateID string) ([]T, error)

	// ReplaceAll deletes every row scoped to aggregateID and inserts rows as one unit.
	ReplaceAll(ctx context.Context, aggregateID string, key property.Key, rows []T) error
}

// AuditLog is the append-only mutation log.
type AuditLog interface {
	// Append stores rec and sets its ID.
	Append(ctx context.Context, rec *property.AuditRecord) error

	// List returns the records of one instance newest-first.
	List(ctx context.Context, key property.Key) ([]property.AuditRecord, error)

	// LatestHash returns the hash of the newest record of an instance, or "".
	LatestHash(ctx context.Context, key property.Key) (string, error)
}

// Store groups the repositories touched by one mutation.
type Store interface {
	Versions() VersionStore
	Brokers() Collection[property.Broker]
	Tenants() Collection[property.Tenant]
	Audit() AuditLog
}

// Backend is a Store with lifecycle and transaction capability.
type Backend interface {
	Store

	// Name identifies the backend in logs and metrics.
	Name() string

	// CheckTransactions reports ErrTransactionsUnsupported if WithTx cannot be used.
	CheckTransactions(ctx context.Context) error

	// WithTx runs fn against a transactional Store. fn's error rolls back every write.
	WithTx(ctx context.Context, fn func(Store) error) error

	HealthCheck(ctx context.Context) error
	Close() error
}
