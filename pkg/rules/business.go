package rules

import (
	"github.com/rentroll/rentroll/pkg/property"
)

// ValidateBusinessRules enforces the space and lease invariants over active
// tenants and stops at the first violation.
func ValidateBusinessRules(buildingSizeSf float64, estStartDate string, holdPeriodYears int, tenants []property.Tenant) error {
	if OccupiedSquareFeet(tenants) > buildingSizeSf {
		return property.NewValidation(property.MsgSpaceExceeded)
	}

	propertyStart, err := property.ParseDate(estStartDate)
	if err != nil {
		return property.NewValidationf("Invalid estStartDate: %s", estStartDate)
	}

	for _, t := range tenants {
		if !t.Active() {
			continue
		}

		leaseStart, err := property.ParseDate(t.LeaseStart)
		if err != nil {
			return property.NewValidationf("Invalid leaseStart for tenant %s: %s", t.ID, t.LeaseStart)
		}
		leaseEnd, err := property.ParseDate(t.LeaseEnd)
		if err != nil {
			return property.NewValidationf("Invalid leaseEnd for tenant %s: %s", t.ID, t.LeaseEnd)
		}

		if leaseStart.Before(propertyStart) {
			return property.NewValidation(property.MsgLeaseBeforeStart)
		}
		if leaseEnd.Before(leaseStart) {
			return property.NewValidation(property.MsgLeaseEndBeforeStart)
		}
		if leaseEnd.After(leaseStart.AddDate(holdPeriodYears, 0, 0)) {
			return property.NewValidation(property.MsgLeaseBeyondHold)
		}
	}
	return nil
}

// ValidateSnapshot runs integrity and business checks on a full snapshot whose
// tenants already carry the derived vacant row.
func ValidateSnapshot(s property.Snapshot) error {
	if err := ValidateIntegrity(s.Brokers, s.Tenants); err != nil {
		return err
	}
	return ValidateBusinessRules(
		s.PropertyDetails.BuildingSizeSf,
		s.UnderwritingInputs.EstStartDate,
		s.UnderwritingInputs.HoldPeriodYears,
		s.Tenants,
	)
}
