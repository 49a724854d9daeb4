package stores

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rentroll/rentroll/pkg/property"
)

type sqlAudit struct{ s *SQLStore }

// Append inserts an audit record. Rows are immutable once written.
func (a sqlAudit) Append(ctx context.Context, rec *property.AuditRecord) error {
	changes := rec.Changes
	if changes == nil {
		changes = []property.FieldChange{}
	}
	data, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("failed to encode audit changes: %w", err)
	}

	query := `
		INSERT INTO audit_records (
			property_id, version, revision, action, changes, changed_field_count,
			updated_by, created_at, prev_hash, hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err = a.s.queryRow(ctx, query,
		rec.PropertyID,
		rec.Version,
		rec.Revision,
		string(rec.Action),
		string(data),
		rec.ChangedFieldCount,
		rec.UpdatedBy,
		a.s.dialect.timeArg(rec.CreatedAt),
		rec.PrevHash,
		rec.Hash,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

// List returns the audit trail of one instance, newest first.
func (a sqlAudit) List(ctx context.Context, key property.Key) ([]property.AuditRecord, error) {
	query := `
		SELECT id, property_id, version, revision, action, changes, changed_field_count,
			updated_by, created_at, prev_hash, hash
		FROM audit_records
		WHERE property_id = ? AND version = ?
		ORDER BY id DESC
	`
	rows, err := a.s.query(ctx, query, key.PropertyID, key.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	records := []property.AuditRecord{}
	for rows.Next() {
		var (
			rec       property.AuditRecord
			action    string
			changes   []byte
			createdAt dbTime
		)
		err := rows.Scan(
			&rec.ID,
			&rec.PropertyID,
			&rec.Version,
			&rec.Revision,
			&action,
			&changes,
			&rec.ChangedFieldCount,
			&rec.UpdatedBy,
			&createdAt,
			&rec.PrevHash,
			&rec.Hash,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		rec.Action = property.Action(action)
		rec.CreatedAt = createdAt.Time
		if err := json.Unmarshal(changes, &rec.Changes); err != nil {
			return nil, fmt.Errorf("failed to decode audit changes: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}
	return records, nil
}

// LatestHash returns the chain head of an instance.
func (a sqlAudit) LatestHash(ctx context.Context, key property.Key) (string, error) {
	query := `
		SELECT hash FROM audit_records
		WHERE property_id = ? AND version = ?
		ORDER BY id DESC
		LIMIT 1
	`
	var hash string
	err := a.s.queryRow(ctx, query, key.PropertyID, key.Version).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read audit chain head: %w", err)
	}
	return hash, nil
}
