package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		tenantEconomicsPolicy(),
		holdPeriodPolicy(),
		leaseTypePolicy(),
		brokerContactPolicy(),
		tenantConcentrationPolicy(),
	}
}

func builtin(name, description string, severity Severity, tags []string, src string) Policy {
	now := time.Now()
	return Policy{
		Name:        name,
		Description: description,
		Severity:    severity,
		Enabled:     true,
		Builtin:     true,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
		Rego:        src,
	}
}

// tenantEconomicsPolicy rejects negative money and downtime figures on occupying tenants.
func tenantEconomicsPolicy() Policy {
	return builtin(
		"tenant-economics",
		"Rent, escalations, TI, LC and downtime of occupying tenants must not be negative",
		SeverityError,
		[]string{"tenants", "economics"},
		`package rentroll.policies.economics

occupying contains t if {
	some t in input.property.tenants
	not t.isVacant
	not t.isDeleted
}

deny contains violation if {
	some t in occupying
	some field in ["rentPsf", "annualEscalations", "tiPsf", "lcPsf", "downtimeMonths"]
	t[field] < 0
	violation := {
		"message": sprintf("tenant %s has negative %s", [t.id, field]),
		"subject": t.id,
	}
}
`)
}

// holdPeriodPolicy flags hold periods outside the range underwriting models support.
func holdPeriodPolicy() Policy {
	return builtin(
		"hold-period",
		"Hold period should be between 1 and 50 years",
		SeverityWarning,
		[]string{"underwriting"},
		`package rentroll.policies.hold

deny contains violation if {
	years := input.property.underwritingInputs.holdPeriodYears
	years < 1
	violation := {"message": sprintf("hold period of %v years is below 1", [years])}
}

deny contains violation if {
	years := input.property.underwritingInputs.holdPeriodYears
	years > 50
	violation := {"message": sprintf("hold period of %v years exceeds 50", [years])}
}
`)
}

// leaseTypePolicy flags lease types outside the common vocabulary.
func leaseTypePolicy() Policy {
	return builtin(
		"lease-type",
		"Lease types should use a known structure (NNN, NN, N, Gross, Modified Gross, Full Service, Industrial Gross, Absolute Net)",
		SeverityWarning,
		[]string{"tenants", "conventions"},
		`package rentroll.policies.leasetype

known := {"NNN", "NN", "N", "GROSS", "MODIFIED GROSS", "FULL SERVICE", "INDUSTRIAL GROSS", "ABSOLUTE NET"}

deny contains violation if {
	some t in input.property.tenants
	not t.isVacant
	not t.isDeleted
	t.leaseType != ""
	not known[upper(t.leaseType)]
	violation := {
		"message": sprintf("tenant %s has unknown lease type %q", [t.id, t.leaseType]),
		"subject": t.id,
	}
}
`)
}

// brokerContactPolicy flags brokers that cannot be reached.
func brokerContactPolicy() Policy {
	return builtin(
		"broker-contact",
		"Active brokers should carry a phone number or an email address",
		SeverityWarning,
		[]string{"brokers"},
		`package rentroll.policies.brokers

deny contains violation if {
	some b in input.property.brokers
	not b.isDeleted
	object.get(b, "phone", "") == ""
	object.get(b, "email", "") == ""
	violation := {
		"message": sprintf("broker %s has neither phone nor email", [b.id]),
		"subject": b.id,
	}
}
`)
}

// tenantConcentrationPolicy reports single-tenant exposure above 90% of the building.
func tenantConcentrationPolicy() Policy {
	return builtin(
		"tenant-concentration",
		"Reports tenants occupying more than 90% of the building",
		SeverityInfo,
		[]string{"tenants", "risk"},
		`package rentroll.policies.concentration

deny contains violation if {
	size := input.property.propertyDetails.buildingSizeSf
	size > 0
	some t in input.property.tenants
	not t.isVacant
	not t.isDeleted
	t.squareFeet / size > 0.9
	violation := {
		"message": sprintf("tenant %s occupies %v of %v sf", [t.id, t.squareFeet, size]),
		"subject": t.id,
	}
}
`)
}
