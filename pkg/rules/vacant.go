package rules

import (
	"math"
	"time"

	"github.com/rentroll/rentroll/pkg/property"
)

// OccupiedSquareFeet sums squareFeet over active, non-deleted tenants.
func OccupiedSquareFeet(tenants []property.Tenant) float64 {
	var total float64
	for _, t := range tenants {
		if t.Active() {
			total += t.SquareFeet
		}
	}
	return total
}

// DeriveVacant strips any vacant rows from tenants and appends the canonical
// vacant row sized to the unleased space. Applying it twice yields the same result.
func DeriveVacant(tenants []property.Tenant, buildingSizeSf float64, now time.Time) []property.Tenant {
	rows := make([]property.Tenant, 0, len(tenants)+1)
	for _, t := range tenants {
		if t.IsVacant {
			continue
		}
		rows = append(rows, t)
	}

	vacantSf := math.Max(0, buildingSizeSf-OccupiedSquareFeet(rows))

	today := property.FormatDate(now)
	leaseStart, leaseEnd := today, today
	for _, t := range rows {
		if t.Active() {
			leaseStart, leaseEnd = t.LeaseStart, t.LeaseEnd
			break
		}
	}

	return append(rows, VacantRow(vacantSf, leaseStart, leaseEnd))
}

// VacantRow builds the system-managed vacant tenant.
func VacantRow(squareFeet float64, leaseStart, leaseEnd string) property.Tenant {
	return property.Tenant{
		ID:         property.VacantTenantID,
		TenantName: "VACANT",
		CreditType: "N/A",
		SquareFeet: squareFeet,
		LeaseStart: leaseStart,
		LeaseEnd:   leaseEnd,
		LeaseType:  "N/A",
		Renew:      "N/A",
		IsVacant:   true,
	}
}
