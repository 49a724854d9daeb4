package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rentroll/rentroll/pkg/audit"
	"github.com/rentroll/rentroll/pkg/property"
	"github.com/rentroll/rentroll/pkg/stores"
)

// Get returns the composed aggregate of key.
func (o *Orchestrator) Get(ctx context.Context, key property.Key) (*property.Aggregate, error) {
	return o.load(ctx, o.backend, key)
}

// ListVersions lists every version of a property, most recently updated first.
// Ties are broken by the higher version.
func (o *Orchestrator) ListVersions(ctx context.Context, propertyID string) ([]property.VersionSummary, error) {
	versions, err := o.backend.Versions().ListVersions(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions of %s: %w", propertyID, err)
	}
	if len(versions) == 0 {
		return nil, property.NewNotFound(property.MsgVersionNotFound)
	}

	score := func(s string) int {
		v, err := property.ParseVersion(s)
		if err != nil {
			return -1
		}
		return v.Score()
	}
	sort.SliceStable(versions, func(i, j int) bool {
		if !versions[i].UpdatedAt.Equal(versions[j].UpdatedAt) {
			return versions[i].UpdatedAt.After(versions[j].UpdatedAt)
		}
		return score(versions[i].Version) > score(versions[j].Version)
	})
	return versions, nil
}

// ListProperties lists the latest version of every property.
func (o *Orchestrator) ListProperties(ctx context.Context) ([]property.VersionSummary, error) {
	latest, err := o.backend.Versions().ListLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	return latest, nil
}

// ListAudit returns the audit records of key newest-first.
func (o *Orchestrator) ListAudit(ctx context.Context, key property.Key) ([]property.AuditRecord, error) {
	if _, err := o.backend.Versions().FindVersion(ctx, key); err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return nil, property.NewNotFound(property.MsgVersionNotFound)
		}
		return nil, fmt.Errorf("failed to load version %s: %w", key, err)
	}

	records, err := o.backend.Audit().List(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records of %s: %w", key, err)
	}
	return records, nil
}

// VerifyAudit checks the hash chain of key and returns the number of records checked.
func (o *Orchestrator) VerifyAudit(ctx context.Context, key property.Key) (int, error) {
	records, err := o.ListAudit(ctx, key)
	if err != nil {
		return 0, err
	}
	if err := audit.Verify(records); err != nil {
		return len(records), err
	}
	return len(records), nil
}
