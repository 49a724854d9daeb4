package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rentroll/rentroll/pkg/diff"
	"github.com/rentroll/rentroll/pkg/property"
	"github.com/rentroll/rentroll/pkg/rules"
	"github.com/rentroll/rentroll/pkg/stores"
)

// FirstVersion is the version given to a property created without one.
const FirstVersion = "1.0"

// CreateRequest is the payload of CreateProperty.
type CreateRequest struct {
	// PropertyID is generated when empty.
	PropertyID string `json:"propertyId,omitempty"`

	// Version defaults to FirstVersion.
	Version string `json:"version,omitempty"`

	PropertyDetails    property.PropertyDetails    `json:"propertyDetails"`
	UnderwritingInputs property.UnderwritingInputs `json:"underwritingInputs"`
	Brokers            []property.Broker           `json:"brokers"`
	Tenants            []property.Tenant           `json:"tenants"`
}

// SaveRequest is the complete target state of a whole-aggregate save.
// Brokers and Tenants replace the stored collections; a nil slice empties them.
type SaveRequest struct {
	PropertyDetails    property.PropertyDetails    `json:"propertyDetails"`
	UnderwritingInputs property.UnderwritingInputs `json:"underwritingInputs"`
	Brokers            []property.Broker           `json:"brokers"`
	Tenants            []property.Tenant           `json:"tenants"`
}

// target is the composed post-mutation state of one aggregate instance.
type target struct {
	details        property.PropertyDetails
	inputs         property.UnderwritingInputs
	brokers        []property.Broker
	tenants        []property.Tenant
	replaceBrokers bool
	replaceTenants bool
}

func unchanged(cur *property.Aggregate) *target {
	return &target{
		details: cur.PropertyDetails,
		inputs:  cur.UnderwritingInputs,
		brokers: property.CloneBrokers(cur.Brokers),
		tenants: property.CloneTenants(cur.Tenants),
	}
}

func (t *target) snapshot() property.Snapshot {
	return property.Snapshot{
		PropertyDetails:    t.details,
		UnderwritingInputs: t.inputs,
		Brokers:            t.brokers,
		Tenants:            t.tenants,
	}
}

// plan describes one in-place mutation of an existing aggregate instance.
type plan struct {
	action           property.Action
	key              property.Key
	expectedRevision int64
	actor            property.Actor
	compose          func(cur *property.Aggregate, now time.Time) (*target, error)
}

// run executes load, revision check, compose, validate, atomic apply, re-read,
// diff and audit for p.
func (o *Orchestrator) run(ctx context.Context, p plan) (agg *property.Aggregate, err error) {
	op, ctx := o.begin(ctx, p.action, p.key, p.actor)
	defer func() { op.finish(err) }()

	cur, err := o.loadWritable(ctx, p.key, p.expectedRevision)
	if err != nil {
		return nil, err
	}

	now := o.timestamp()
	tgt, err := p.compose(cur, now)
	if err != nil {
		return nil, err
	}
	if err := o.validate(ctx, p.action, p.key, p.actor, tgt.snapshot()); err != nil {
		return nil, err
	}

	var post *property.Aggregate
	err = o.apply(ctx, func(s stores.Store) error {
		rec, err := s.Versions().AtomicSave(ctx, p.key, p.expectedRevision, stores.VersionUpdate{
			PropertyDetails:    tgt.details,
			UnderwritingInputs: tgt.inputs,
			UpdatedBy:          p.actor.ID,
			UpdatedAt:          now,
		})
		if err != nil {
			return fmt.Errorf("failed to save version: %w", err)
		}
		if rec == nil {
			return conflict(property.MsgRevisionMismatch, reasonLostRace, nil)
		}

		if tgt.replaceBrokers {
			if err := s.Brokers().ReplaceAll(ctx, rec.ID, p.key, tgt.brokers); err != nil {
				return wrap("replace brokers", err)
			}
		}
		if tgt.replaceTenants {
			if err := s.Tenants().ReplaceAll(ctx, rec.ID, p.key, tgt.tenants); err != nil {
				return wrap("replace tenants", err)
			}
		}

		post, err = o.compose(ctx, s, rec)
		if err != nil {
			return err
		}

		changes, err := diff.Snapshots(cur.Snapshot(), post.Snapshot())
		if err != nil {
			return err
		}
		if err := o.appendAudit(ctx, s, &property.AuditRecord{
			PropertyID:        p.key.PropertyID,
			Version:           p.key.Version,
			Revision:          rec.Revision,
			Action:            p.action,
			Changes:           changes,
			ChangedFieldCount: len(changes),
			UpdatedBy:         p.actor.ID,
			CreatedAt:         now,
		}); err != nil {
			return err
		}

		op.committed(rec.Revision, len(changes))
		return nil
	})
	if err != nil {
		return nil, translateStoreError(err)
	}
	return post, nil
}

// SaveVersion replaces the core fields and both collections of an instance.
// The vacant row is derived from the supplied tenants; the address must not change.
func (o *Orchestrator) SaveVersion(ctx context.Context, key property.Key, expectedRevision int64, req SaveRequest, actor property.Actor) (*property.Aggregate, error) {
	return o.run(ctx, plan{
		action:           property.ActionUpdateVersion,
		key:              key,
		expectedRevision: expectedRevision,
		actor:            actor,
		compose: func(cur *property.Aggregate, now time.Time) (*target, error) {
			return o.composeFull(cur.PropertyDetails.Address, req.PropertyDetails, req.UnderwritingInputs, req.Brokers, req.Tenants, now)
		},
	})
}

// composeFull builds a whole-aggregate target from caller content. An empty
// address means no existing address to protect.
func (o *Orchestrator) composeFull(address string, details property.PropertyDetails, inputs property.UnderwritingInputs, brokers []property.Broker, tenants []property.Tenant, now time.Time) (*target, error) {
	if err := property.ValidateInput(details); err != nil {
		return nil, err
	}
	if err := property.ValidateInput(inputs); err != nil {
		return nil, err
	}
	if address != "" && details.Address != address {
		return nil, property.NewValidation(property.MsgAddressReadOnly)
	}

	return &target{
		details:        details,
		inputs:         inputs,
		brokers:        o.assignBrokerIDs(brokers),
		tenants:        rules.DeriveVacant(o.assignTenantIDs(tenants), details.BuildingSizeSf, now),
		replaceBrokers: true,
		replaceTenants: true,
	}, nil
}

func (o *Orchestrator) assignBrokerIDs(in []property.Broker) []property.Broker {
	out := property.CloneBrokers(in)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = o.newID()
		}
	}
	return out
}

func (o *Orchestrator) assignTenantIDs(in []property.Tenant) []property.Tenant {
	out := property.CloneTenants(in)
	for i := range out {
		if out[i].ID == "" && !out[i].IsVacant {
			out[i].ID = o.newID()
		}
	}
	return out
}

// CreateProperty creates the first version of a new property at revision 0.
func (o *Orchestrator) CreateProperty(ctx context.Context, req CreateRequest, actor property.Actor) (agg *property.Aggregate, err error) {
	if req.PropertyID == "" {
		req.PropertyID = o.newID()
	}
	if req.Version == "" {
		req.Version = FirstVersion
	}
	key := property.Key{PropertyID: req.PropertyID, Version: req.Version}

	op, ctx := o.begin(ctx, property.ActionCreateVersion, key, actor)
	defer func() { op.finish(err) }()

	if _, err := property.ParseVersion(req.Version); err != nil {
		return nil, err
	}

	now := o.timestamp()
	tgt, err := o.composeFull("", req.PropertyDetails, req.UnderwritingInputs, req.Brokers, req.Tenants, now)
	if err != nil {
		return nil, err
	}
	if err := o.validate(ctx, property.ActionCreateVersion, key, actor, tgt.snapshot()); err != nil {
		return nil, err
	}

	rec := &property.VersionRecord{
		ID:                 o.newID(),
		PropertyID:         key.PropertyID,
		Version:            key.Version,
		Revision:           0,
		IsLatest:           true,
		IsHistorical:       false,
		PropertyDetails:    tgt.details,
		UnderwritingInputs: tgt.inputs,
		UpdatedBy:          actor.ID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = o.apply(ctx, func(s stores.Store) error {
		existing, err := s.Versions().ListVersions(ctx, key.PropertyID)
		if err != nil {
			return fmt.Errorf("failed to list versions: %w", err)
		}
		if len(existing) > 0 {
			return conflict(property.MsgPropertyExists, reasonPropertyExists, nil)
		}

		agg, err = o.insertInstance(ctx, s, rec, tgt.brokers, tgt.tenants)
		if err != nil {
			return err
		}

		changes, err := diff.Snapshots(property.Snapshot{}, agg.Snapshot())
		if err != nil {
			return err
		}
		if err := o.appendAudit(ctx, s, &property.AuditRecord{
			PropertyID:        key.PropertyID,
			Version:           key.Version,
			Revision:          rec.Revision,
			Action:            property.ActionCreateVersion,
			Changes:           changes,
			ChangedFieldCount: len(changes),
			UpdatedBy:         actor.ID,
			CreatedAt:         now,
		}); err != nil {
			return err
		}

		op.committed(rec.Revision, len(changes))
		return nil
	})
	if err != nil {
		return nil, translateStoreError(err)
	}
	return agg, nil
}

// insertInstance creates rec with its collections and reads the result back.
func (o *Orchestrator) insertInstance(ctx context.Context, s stores.Store, rec *property.VersionRecord, brokers []property.Broker, tenants []property.Tenant) (*property.Aggregate, error) {
	key := rec.Key()
	if err := s.Versions().CreateVersion(ctx, rec); err != nil {
		if errors.Is(err, stores.ErrDuplicate) {
			return nil, conflict(property.MsgVersionExists, reasonVersionExists, err)
		}
		return nil, fmt.Errorf("failed to create version: %w", err)
	}
	if err := s.Brokers().ReplaceAll(ctx, rec.ID, key, brokers); err != nil {
		return nil, wrap("store brokers", err)
	}
	if err := s.Tenants().ReplaceAll(ctx, rec.ID, key, tenants); err != nil {
		return nil, wrap("store tenants", err)
	}

	stored, err := s.Versions().FindVersion(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read version %s: %w", key, err)
	}
	return o.compose(ctx, s, stored)
}
