// Package diff computes field-level differences between two aggregate snapshots.
//
// Scalar groups (propertyDetails, underwritingInputs) are compared key by key.
// Collection groups (brokers, tenants) are matched by entity id; changed fields are
// reported as "tenants[<id>].field" and added or removed entities as "tenants[<id>]"
// with a nil old or new value.
package diff
