package rules

import (
	"github.com/rentroll/rentroll/pkg/property"
)

// ValidateIntegrity fails if broker or tenant ids repeat, or a tenant claims the
// vacant id without being the vacant row. Collection rows are keyed by id, so
// repeats must be rejected before any write.
func ValidateIntegrity(brokers []property.Broker, tenants []property.Tenant) error {
	seen := make(map[string]struct{}, len(brokers))
	for _, b := range brokers {
		if _, dup := seen[b.ID]; dup {
			return property.NewValidation(property.MsgDuplicateBrokerIDs)
		}
		seen[b.ID] = struct{}{}
	}

	seen = make(map[string]struct{}, len(tenants))
	for _, t := range tenants {
		if t.ID == property.VacantTenantID && !t.IsVacant {
			return property.NewValidation(property.MsgVacantManaged)
		}
		if _, dup := seen[t.ID]; dup {
			return property.NewValidation(property.MsgDuplicateTenantIDs)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}
