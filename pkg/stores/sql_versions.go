package stores

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rentroll/rentroll/pkg/property"
)

type sqlVersions struct{ s *SQLStore }

const versionColumns = `id, property_id, version, revision, is_latest, is_historical,
	property_details, underwriting_inputs, updated_by, created_at, updated_at`

const summaryColumns = `property_id, version, revision, is_latest, is_historical, updated_by, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (*property.VersionRecord, error) {
	var (
		rec                  property.VersionRecord
		details, inputs      []byte
		createdAt, updatedAt dbTime
	)
	err := row.Scan(
		&rec.ID,
		&rec.PropertyID,
		&rec.Version,
		&rec.Revision,
		&rec.IsLatest,
		&rec.IsHistorical,
		&details,
		&inputs,
		&rec.UpdatedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(details, &rec.PropertyDetails); err != nil {
		return nil, fmt.Errorf("failed to decode property details: %w", err)
	}
	if err := json.Unmarshal(inputs, &rec.UnderwritingInputs); err != nil {
		return nil, fmt.Errorf("failed to decode underwriting inputs: %w", err)
	}
	rec.CreatedAt = createdAt.Time
	rec.UpdatedAt = updatedAt.Time
	return &rec, nil
}

func scanSummary(row rowScanner) (property.VersionSummary, error) {
	var (
		sum       property.VersionSummary
		updatedAt dbTime
	)
	err := row.Scan(
		&sum.PropertyID,
		&sum.Version,
		&sum.Revision,
		&sum.IsLatest,
		&sum.IsHistorical,
		&sum.UpdatedBy,
		&updatedAt,
	)
	sum.UpdatedAt = updatedAt.Time
	return sum, err
}

// FindVersion retrieves an aggregate instance by key.
func (v sqlVersions) FindVersion(ctx context.Context, key property.Key) (*property.VersionRecord, error) {
	query := `SELECT ` + versionColumns + ` FROM property_versions WHERE property_id = ? AND version = ?`

	rec, err := scanVersion(v.s.queryRow(ctx, query, key.PropertyID, key.Version))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version %s: %w", key, err)
	}
	return rec, nil
}

// ListVersions lists every version of a property in creation order.
func (v sqlVersions) ListVersions(ctx context.Context, propertyID string) ([]property.VersionSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM property_versions WHERE property_id = ? ORDER BY created_at ASC, version ASC`
	return v.listSummaries(ctx, query, propertyID)
}

// ListLatest lists the latest version of every property.
func (v sqlVersions) ListLatest(ctx context.Context) ([]property.VersionSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM property_versions WHERE is_latest = ? ORDER BY property_id ASC`
	return v.listSummaries(ctx, query, true)
}

func (v sqlVersions) listSummaries(ctx context.Context, query string, args ...any) ([]property.VersionSummary, error) {
	rows, err := v.s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	out := []property.VersionSummary{}
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}
	return out, nil
}

// CreateVersion inserts a new aggregate instance.
func (v sqlVersions) CreateVersion(ctx context.Context, rec *property.VersionRecord) error {
	details, err := json.Marshal(rec.PropertyDetails)
	if err != nil {
		return fmt.Errorf("failed to encode property details: %w", err)
	}
	inputs, err := json.Marshal(rec.UnderwritingInputs)
	if err != nil {
		return fmt.Errorf("failed to encode underwriting inputs: %w", err)
	}

	query := `
		INSERT INTO property_versions (` + versionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = v.s.exec(ctx, query,
		rec.ID,
		rec.PropertyID,
		rec.Version,
		rec.Revision,
		rec.IsLatest,
		rec.IsHistorical,
		jsonText(details),
		jsonText(inputs),
		rec.UpdatedBy,
		v.s.dialect.timeArg(rec.CreatedAt),
		v.s.dialect.timeArg(rec.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("version %s: %w", rec.Key(), ErrDuplicate)
		}
		return fmt.Errorf("failed to create version: %w", err)
	}
	return nil
}

// AtomicSave is the compare-and-swap on revision that linearizes concurrent writers.
func (v sqlVersions) AtomicSave(ctx context.Context, key property.Key, expectedRevision int64, upd VersionUpdate) (*property.VersionRecord, error) {
	details, err := json.Marshal(upd.PropertyDetails)
	if err != nil {
		return nil, fmt.Errorf("failed to encode property details: %w", err)
	}
	inputs, err := json.Marshal(upd.UnderwritingInputs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode underwriting inputs: %w", err)
	}

	query := `
		UPDATE property_versions
		SET property_details = ?, underwriting_inputs = ?, updated_by = ?, updated_at = ?,
			revision = revision + 1
		WHERE property_id = ? AND version = ? AND revision = ? AND is_historical = ?
		RETURNING ` + versionColumns

	rec, err := scanVersion(v.s.queryRow(ctx, query,
		jsonText(details),
		jsonText(inputs),
		upd.UpdatedBy,
		v.s.dialect.timeArg(upd.UpdatedAt),
		key.PropertyID,
		key.Version,
		expectedRevision,
		false,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save version %s: %w", key, err)
	}
	return rec, nil
}

// Retire is the compare-and-swap that branches an instance: it takes the same
// row lock as AtomicSave, so a concurrent in-place save or second branch loses.
func (v sqlVersions) Retire(ctx context.Context, key property.Key, expectedRevision int64, at time.Time) (*property.VersionRecord, error) {
	query := `
		UPDATE property_versions
		SET is_latest = ?, is_historical = ?, updated_at = ?
		WHERE property_id = ? AND version = ? AND revision = ? AND is_historical = ?
		RETURNING ` + versionColumns

	rec, err := scanVersion(v.s.queryRow(ctx, query,
		false,
		true,
		v.s.dialect.timeArg(at),
		key.PropertyID,
		key.Version,
		expectedRevision,
		false,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retire version %s: %w", key, err)
	}
	return rec, nil
}

// MarkLatestHistorical retires the current latest instance(s) of a property.
func (v sqlVersions) MarkLatestHistorical(ctx context.Context, propertyID string, at time.Time) (int64, error) {
	query := `
		UPDATE property_versions
		SET is_latest = ?, is_historical = ?, updated_at = ?
		WHERE property_id = ? AND is_latest = ?
	`
	result, err := v.s.exec(ctx, query, false, true, v.s.dialect.timeArg(at), propertyID, true)
	if err != nil {
		return 0, fmt.Errorf("failed to mark versions historical: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
