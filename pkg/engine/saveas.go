package engine

import (
	"context"
	"fmt"

	"github.com/rentroll/rentroll/pkg/property"
	"github.com/rentroll/rentroll/pkg/stores"
)

// SaveAs branches the source instance into the next minor version of its property.
//
// The source is retired with a compare-and-swap on expectedRevision inside the
// write, so a save that commits after the source was read makes the branch fail
// with CONFLICT. With property.NoDraft the new instance copies the source
// content as read after that swap; a property.FullDraft is validated like
// SaveVersion, including the read-only address. Every latest instance of the
// property becomes historical and the new instance starts at revision 0 with a
// single audit record naming the version transition.
func (o *Orchestrator) SaveAs(ctx context.Context, source property.Key, expectedRevision int64, draft property.Draft, actor property.Actor) (agg *property.Aggregate, err error) {
	op, ctx := o.begin(ctx, property.ActionSaveAs, source, actor)
	defer func() { op.finish(err) }()

	src, err := o.loadWritable(ctx, source, expectedRevision)
	if err != nil {
		return nil, err
	}

	now := o.timestamp()
	var tgt *target
	switch d := draft.(type) {
	case nil, property.NoDraft:
	case property.FullDraft:
		tgt, err = o.composeFull(src.PropertyDetails.Address, d.PropertyDetails, d.UnderwritingInputs, d.Brokers, d.Tenants, now)
		if err != nil {
			return nil, err
		}
		if err := o.validate(ctx, property.ActionSaveAs, source, actor, tgt.snapshot()); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported draft type %T", draft)
	}

	err = o.apply(ctx, func(s stores.Store) error {
		retired, err := s.Versions().Retire(ctx, source, expectedRevision, now)
		if err != nil {
			return fmt.Errorf("failed to retire source version: %w", err)
		}
		if retired == nil {
			return conflict(property.MsgRevisionMismatch, reasonLostRace, nil)
		}

		branch := tgt
		if branch == nil {
			cur, err := o.compose(ctx, s, retired)
			if err != nil {
				return err
			}
			branch = unchanged(cur)
		}

		existing, err := s.Versions().ListVersions(ctx, source.PropertyID)
		if err != nil {
			return fmt.Errorf("failed to list versions: %w", err)
		}
		versions := make([]string, len(existing))
		for i, v := range existing {
			versions[i] = v.Version
		}
		next, err := property.NextVersion(versions)
		if err != nil {
			return err
		}

		if _, err := s.Versions().MarkLatestHistorical(ctx, source.PropertyID, now); err != nil {
			return fmt.Errorf("failed to mark versions historical: %w", err)
		}

		rec := &property.VersionRecord{
			ID:                 o.newID(),
			PropertyID:         source.PropertyID,
			Version:            next,
			Revision:           0,
			IsLatest:           true,
			PropertyDetails:    branch.details,
			UnderwritingInputs: branch.inputs,
			UpdatedBy:          actor.ID,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		agg, err = o.insertInstance(ctx, s, rec, branch.brokers, branch.tenants)
		if err != nil {
			return err
		}

		changes := []property.FieldChange{{Field: "version", OldValue: source.Version, NewValue: next}}
		if err := o.appendAudit(ctx, s, &property.AuditRecord{
			PropertyID:        source.PropertyID,
			Version:           next,
			Revision:          0,
			Action:            property.ActionSaveAs,
			Changes:           changes,
			ChangedFieldCount: len(changes),
			UpdatedBy:         actor.ID,
			CreatedAt:         now,
		}); err != nil {
			return err
		}

		op.committed(0, len(changes))
		return nil
	})
	if err != nil {
		return nil, translateStoreError(err)
	}

	_ = o.tel.Events.PublishVersionBranched(source.PropertyID, source.Version, agg.Version, actor.ID)
	return agg, nil
}
