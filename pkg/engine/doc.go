// Package engine runs the mutation protocol over property aggregates.
//
// # Overview
//
// An aggregate instance is one (propertyId, version) pair: a core version record
// plus its broker and tenant collections. Every mutation goes through the same
// steps:
//
//  1. Load the instance. Unknown keys are NOT_FOUND and historical instances are CONFLICT.
//  2. Compare the stored revision with the caller's expected revision.
//  3. Compose the full target state, re-deriving the vacant tenant row when tenants change.
//  4. Validate the target with the business rules, then the admission policies.
//  5. Apply: an atomic compare-and-swap on the revision, then whole-collection replacement.
//  6. Re-read the post state, diff it against the pre state and append a chained audit record.
//
// The compare-and-swap in step 5 is the only point where concurrent writers on
// the same key are ordered. Loads and validation are optimistic, so the loser of
// a race surfaces CONFLICT and the caller reloads and retries.
//
// # Degraded Mode
//
// New checks the backend once. When the backend cannot run transactions, step 5
// and step 6 execute as independent writes and a failure part way through can
// leave an instance with a new revision but stale collections. The orchestrator
// logs this at construction and exports it as the rentroll_degraded_mode gauge.
//
// # Save-As
//
// SaveAs branches the latest instance into the next minor version. The source
// instance is checked but never written; every latest instance of the property
// becomes historical and the new instance starts at revision 0.
//
// # Example
//
//	orch, err := engine.New(ctx, backend, engine.Options{Telemetry: tel, Policies: policies})
//	if err != nil {
//	    return err
//	}
//	agg, err := orch.UpdateTenant(ctx, key, agg.Revision, tenantID, input, actor)
//	switch property.KindOf(err) {
//	case property.KindConflict:
//	    // reload and retry
//	}
package engine
