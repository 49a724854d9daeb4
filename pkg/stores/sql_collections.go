package stores

import (
	"context"
	"fmt"

	"github.com/rentroll/rentroll/pkg/property"
)

type sqlBrokers struct{ s *SQLStore }

// List returns the brokers of an aggregate instance in insertion order.
func (c sqlBrokers) List(ctx context.Context, aggregateID string) ([]property.Broker, error) {
	query := `
		SELECT id, name, phone, email, company, is_deleted, deleted_at, deleted_by
		FROM brokers
		WHERE aggregate_id = ?
		ORDER BY position ASC
	`
	rows, err := c.s.query(ctx, query, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list brokers: %w", err)
	}
	defer rows.Close()

	brokers := []property.Broker{}
	for rows.Next() {
		var (
			b         property.Broker
			deletedAt dbTime
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.Phone, &b.Email, &b.Company, &b.IsDeleted, &deletedAt, &b.DeletedBy); err != nil {
			return nil, fmt.Errorf("failed to scan broker: %w", err)
		}
		b.DeletedAt = deletedAt.ptr()
		brokers = append(brokers, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating brokers: %w", err)
	}
	return brokers, nil
}

// ReplaceAll swaps the broker collection of an aggregate instance.
func (c sqlBrokers) ReplaceAll(ctx context.Context, aggregateID string, key property.Key, rows []property.Broker) error {
	if _, err := c.s.exec(ctx, `DELETE FROM brokers WHERE aggregate_id = ?`, aggregateID); err != nil {
		return fmt.Errorf("failed to clear brokers: %w", err)
	}

	query := `
		INSERT INTO brokers (
			aggregate_id, id, property_id, version, position,
			name, phone, email, company, is_deleted, deleted_at, deleted_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, b := range rows {
		_, err := c.s.exec(ctx, query,
			aggregateID, b.ID, key.PropertyID, key.Version, i,
			b.Name, b.Phone, b.Email, b.Company,
			b.IsDeleted, c.s.dialect.nullTimeArg(b.DeletedAt), b.DeletedBy,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("broker %s: %w", b.ID, ErrDuplicate)
			}
			return fmt.Errorf("failed to insert broker: %w", err)
		}
	}
	return nil
}

type sqlTenants struct{ s *SQLStore }

// List returns the tenants of an aggregate instance in insertion order.
func (c sqlTenants) List(ctx context.Context, aggregateID string) ([]property.Tenant, error) {
	query := `
		SELECT id, tenant_name, credit_type, square_feet, rent_psf, annual_escalations,
			lease_start, lease_end, lease_type, renew, downtime_months, ti_psf, lc_psf,
			is_vacant, is_deleted, deleted_at, deleted_by
		FROM tenants
		WHERE aggregate_id = ?
		ORDER BY position ASC
	`
	rows, err := c.s.query(ctx, query, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	tenants := []property.Tenant{}
	for rows.Next() {
		var (
			t         property.Tenant
			deletedAt dbTime
		)
		err := rows.Scan(
			&t.ID,
			&t.TenantName,
			&t.CreditType,
			&t.SquareFeet,
			&t.RentPsf,
			&t.AnnualEscalations,
			&t.LeaseStart,
			&t.LeaseEnd,
			&t.LeaseType,
			&t.Renew,
			&t.DowntimeMonths,
			&t.TiPsf,
			&t.LcPsf,
			&t.IsVacant,
			&t.IsDeleted,
			&deletedAt,
			&t.DeletedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		t.DeletedAt = deletedAt.ptr()
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tenants: %w", err)
	}
	return tenants, nil
}

// ReplaceAll swaps the tenant collection of an aggregate instance.
func (c sqlTenants) ReplaceAll(ctx context.Context, aggregateID string, key property.Key, rows []property.Tenant) error {
	if _, err := c.s.exec(ctx, `DELETE FROM tenants WHERE aggregate_id = ?`, aggregateID); err != nil {
		return fmt.Errorf("failed to clear tenants: %w", err)
	}

	query := `
		INSERT INTO tenants (
			aggregate_id, id, property_id, version, position,
			tenant_name, credit_type, square_feet, rent_psf, annual_escalations,
			lease_start, lease_end, lease_type, renew, downtime_months, ti_psf, lc_psf,
			is_vacant, is_deleted, deleted_at, deleted_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, t := range rows {
		_, err := c.s.exec(ctx, query,
			aggregateID, t.ID, key.PropertyID, key.Version, i,
			t.TenantName, t.CreditType, t.SquareFeet, t.RentPsf, t.AnnualEscalations,
			t.LeaseStart, t.LeaseEnd, t.LeaseType, t.Renew, t.DowntimeMonths, t.TiPsf, t.LcPsf,
			t.IsVacant, t.IsDeleted, c.s.dialect.nullTimeArg(t.DeletedAt), t.DeletedBy,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("tenant %s: %w", t.ID, ErrDuplicate)
			}
			return fmt.Errorf("failed to insert tenant: %w", err)
		}
	}
	return nil
}
