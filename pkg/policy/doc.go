// Package policy provides Open Policy Agent (OPA) admission control for
// property mutations.
//
// Before a mutation is persisted, the composed target state of the property
// version is handed to every enabled policy as `input`:
//
//	{
//	  "action": "UPDATE_VERSION",
//	  "propertyId": "...",
//	  "version": "1.2",
//	  "actor": {"id": "...", "role": "analyst"},
//	  "property": {"propertyDetails": {...}, "underwritingInputs": {...},
//	               "brokers": [...], "tenants": [...]}
//	}
//
// A policy is a Rego v1 module that defines a `deny` set. Elements are either
// strings or objects with `message`, optional `severity` and optional
// `subject` (the broker or tenant id):
//
//	package house.rules
//
//	deny contains violation if {
//		some t in input.property.tenants
//		not t.isVacant
//		t.creditType == ""
//		violation := {"message": "credit type missing", "subject": t.id}
//	}
//
// Violations of severity error or critical reject the mutation with a
// VALIDATION error. Warning and info violations are advisory.
//
// # Built-in policies
//
//   - tenant-economics (error): no negative rent, escalation, TI, LC or downtime
//   - hold-period (warning): hold period between 1 and 50 years
//   - lease-type (warning): lease type from the common vocabulary
//   - broker-contact (warning): active brokers carry a phone or email
//   - tenant-concentration (info): a tenant occupying more than 90% of the building
//
// Additional policies load from .rego files, JSON policy files or JSON
// bundles with Loader, and Loader.Watch reloads them when files change.
package policy
