package engine

import (
	"context"
	"time"

	"github.com/rentroll/rentroll/pkg/property"
	"github.com/rentroll/rentroll/pkg/rules"
)

func findTenant(tenants []property.Tenant, id string) (int, error) {
	if id == property.VacantTenantID {
		return -1, property.NewValidation(property.MsgVacantManaged)
	}
	for i := range tenants {
		if tenants[i].ID == id {
			return i, nil
		}
	}
	return -1, property.NewNotFound(property.MsgTenantNotFound)
}

func findBroker(brokers []property.Broker, id string) (int, error) {
	for i := range brokers {
		if brokers[i].ID == id {
			return i, nil
		}
	}
	return -1, property.NewNotFound(property.MsgBrokerNotFound)
}

// insertBeforeVacant places t ahead of the vacant row so the rent roll keeps
// the vacant row last.
func insertBeforeVacant(tenants []property.Tenant, t property.Tenant) []property.Tenant {
	for i := range tenants {
		if tenants[i].IsVacant {
			out := make([]property.Tenant, 0, len(tenants)+1)
			out = append(out, tenants[:i]...)
			out = append(out, t)
			return append(out, tenants[i:]...)
		}
	}
	return append(tenants, t)
}

// tenantPlan builds a tenant mutation whose edit is followed by vacant-row re-derivation.
func (o *Orchestrator) tenantPlan(action property.Action, key property.Key, rev int64, actor property.Actor, edit func([]property.Tenant, time.Time) ([]property.Tenant, error)) plan {
	return plan{
		action:           action,
		key:              key,
		expectedRevision: rev,
		actor:            actor,
		compose: func(cur *property.Aggregate, now time.Time) (*target, error) {
			tgt := unchanged(cur)
			tenants, err := edit(tgt.tenants, now)
			if err != nil {
				return nil, err
			}
			tgt.tenants = rules.DeriveVacant(tenants, tgt.details.BuildingSizeSf, now)
			tgt.replaceTenants = true
			return tgt, nil
		},
	}
}

func (o *Orchestrator) brokerPlan(action property.Action, key property.Key, rev int64, actor property.Actor, edit func([]property.Broker, time.Time) ([]property.Broker, error)) plan {
	return plan{
		action:           action,
		key:              key,
		expectedRevision: rev,
		actor:            actor,
		compose: func(cur *property.Aggregate, now time.Time) (*target, error) {
			tgt := unchanged(cur)
			brokers, err := edit(tgt.brokers, now)
			if err != nil {
				return nil, err
			}
			tgt.brokers = brokers
			tgt.replaceBrokers = true
			return tgt, nil
		},
	}
}

// CreateTenant adds a tenant and returns the aggregate with the new tenant id.
func (o *Orchestrator) CreateTenant(ctx context.Context, key property.Key, rev int64, in property.TenantInput, actor property.Actor) (*property.Aggregate, string, error) {
	id := o.newID()
	agg, err := o.run(ctx, o.tenantPlan(property.ActionTenantCreate, key, rev, actor,
		func(tenants []property.Tenant, _ time.Time) ([]property.Tenant, error) {
			if err := property.ValidateInput(in); err != nil {
				return nil, err
			}
			return insertBeforeVacant(tenants, in.Apply(property.Tenant{ID: id})), nil
		}))
	if err != nil {
		return nil, "", err
	}
	return agg, id, nil
}

// UpdateTenant overwrites the editable fields of one tenant.
func (o *Orchestrator) UpdateTenant(ctx context.Context, key property.Key, rev int64, tenantID string, in property.TenantInput, actor property.Actor) (*property.Aggregate, error) {
	return o.run(ctx, o.tenantPlan(property.ActionTenantUpdate, key, rev, actor,
		func(tenants []property.Tenant, _ time.Time) ([]property.Tenant, error) {
			i, err := findTenant(tenants, tenantID)
			if err != nil {
				return nil, err
			}
			if tenants[i].IsDeleted {
				return nil, property.NewValidation(property.MsgTenantUpdateDeleted)
			}
			if err := property.ValidateInput(in); err != nil {
				return nil, err
			}
			tenants[i] = in.Apply(tenants[i])
			return tenants, nil
		}))
}

// DeleteTenant soft-deletes one tenant. The row stays in the rent roll.
func (o *Orchestrator) DeleteTenant(ctx context.Context, key property.Key, rev int64, tenantID string, actor property.Actor) (*property.Aggregate, error) {
	return o.run(ctx, o.tenantPlan(property.ActionTenantDeleteSoft, key, rev, actor,
		func(tenants []property.Tenant, now time.Time) ([]property.Tenant, error) {
			i, err := findTenant(tenants, tenantID)
			if err != nil {
				return nil, err
			}
			if tenants[i].IsDeleted {
				return nil, property.NewValidation(property.MsgTenantDeleteDeleted)
			}
			tenants[i].IsDeleted = true
			tenants[i].DeletedAt = &now
			tenants[i].DeletedBy = actor.ID
			return tenants, nil
		}))
}

// CreateBroker adds a broker and returns the aggregate with the new broker id.
func (o *Orchestrator) CreateBroker(ctx context.Context, key property.Key, rev int64, in property.BrokerInput, actor property.Actor) (*property.Aggregate, string, error) {
	id := o.newID()
	agg, err := o.run(ctx, o.brokerPlan(property.ActionBrokerCreate, key, rev, actor,
		func(brokers []property.Broker, _ time.Time) ([]property.Broker, error) {
			if err := property.ValidateInput(in); err != nil {
				return nil, err
			}
			return append(brokers, in.Apply(property.Broker{ID: id})), nil
		}))
	if err != nil {
		return nil, "", err
	}
	return agg, id, nil
}

// UpdateBroker overwrites the editable fields of one broker.
func (o *Orchestrator) UpdateBroker(ctx context.Context, key property.Key, rev int64, brokerID string, in property.BrokerInput, actor property.Actor) (*property.Aggregate, error) {
	return o.run(ctx, o.brokerPlan(property.ActionBrokerUpdate, key, rev, actor,
		func(brokers []property.Broker, _ time.Time) ([]property.Broker, error) {
			i, err := findBroker(brokers, brokerID)
			if err != nil {
				return nil, err
			}
			if brokers[i].IsDeleted {
				return nil, property.NewValidation(property.MsgBrokerUpdateDeleted)
			}
			if err := property.ValidateInput(in); err != nil {
				return nil, err
			}
			brokers[i] = in.Apply(brokers[i])
			return brokers, nil
		}))
}

// DeleteBroker soft-deletes one broker.
func (o *Orchestrator) DeleteBroker(ctx context.Context, key property.Key, rev int64, brokerID string, actor property.Actor) (*property.Aggregate, error) {
	return o.run(ctx, o.brokerPlan(property.ActionBrokerDeleteSoft, key, rev, actor,
		func(brokers []property.Broker, now time.Time) ([]property.Broker, error) {
			i, err := findBroker(brokers, brokerID)
			if err != nil {
				return nil, err
			}
			if brokers[i].IsDeleted {
				return nil, property.NewValidation(property.MsgBrokerDeleteDeleted)
			}
			brokers[i].IsDeleted = true
			brokers[i].DeletedAt = &now
			brokers[i].DeletedBy = actor.ID
			return brokers, nil
		}))
}
