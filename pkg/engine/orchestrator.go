package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rentroll/rentroll/pkg/audit"
	"github.com/rentroll/rentroll/pkg/policy"
	"github.com/rentroll/rentroll/pkg/property"
	"github.com/rentroll/rentroll/pkg/rules"
	"github.com/rentroll/rentroll/pkg/stores"
	"github.com/rentroll/rentroll/pkg/telemetry"
)

// Options configures an Orchestrator. Every field is optional.
type Options struct {
	// Telemetry receives logs, spans, metrics and events. Defaults to telemetry.Nop().
	Telemetry *telemetry.Telemetry

	// Policies runs admission policies after the built-in rules pass.
	Policies *policy.Engine

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// NewID generates aggregate-instance, broker and tenant ids. Defaults to uuid.NewString.
	NewID func() string
}

// Orchestrator runs the mutation protocol over a storage backend.
type Orchestrator struct {
	backend       stores.Backend
	tel           *telemetry.Telemetry
	logger        *telemetry.Logger
	policies      *policy.Engine
	clock         func() time.Time
	newID         func() string
	transactional bool
}

// New checks the backend for transaction support and returns an orchestrator.
// Backends without transactions run every mutation as a sequence of
// independent writes; this degraded mode is logged once and exported as a gauge.
func New(ctx context.Context, backend stores.Backend, opts Options) (*Orchestrator, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}

	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.Nop()
	}

	o := &Orchestrator{
		backend:  backend,
		tel:      tel,
		logger:   tel.Logger.NewComponentLogger("engine").WithField("backend", backend.Name()),
		policies: opts.Policies,
		clock:    opts.Clock,
		newID:    opts.NewID,
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}

	switch err := backend.CheckTransactions(ctx); {
	case err == nil:
		o.transactional = true
	case errors.Is(err, stores.ErrTransactionsUnsupported):
		o.logger.Warn("Backend does not support transactions, mutations run sequentially without atomicity")
	default:
		return nil, fmt.Errorf("failed to check transaction support: %w", err)
	}
	tel.Metrics.SetDegradedMode(!o.transactional)

	return o, nil
}

// Degraded reports whether mutations run without a transaction.
func (o *Orchestrator) Degraded() bool {
	return !o.transactional
}

// Backend returns the storage backend.
func (o *Orchestrator) Backend() stores.Backend {
	return o.backend
}

// timestamp returns the current UTC time at the microsecond precision both SQL
// dialects store, so hashes over re-read records still match.
func (o *Orchestrator) timestamp() time.Time {
	return o.clock().UTC().Truncate(time.Microsecond)
}

// apply runs fn inside a transaction, or directly against the backend in degraded mode.
func (o *Orchestrator) apply(ctx context.Context, fn func(stores.Store) error) error {
	if o.transactional {
		return o.backend.WithTx(ctx, fn)
	}
	return fn(o.backend)
}

// load composes the aggregate from the version record and both collections.
func (o *Orchestrator) load(ctx context.Context, s stores.Store, key property.Key) (*property.Aggregate, error) {
	rec, err := s.Versions().FindVersion(ctx, key)
	if errors.Is(err, stores.ErrNotFound) {
		return nil, property.NewNotFound(property.MsgVersionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load version %s: %w", key, err)
	}
	return o.compose(ctx, s, rec)
}

// compose reads the collections of rec.
func (o *Orchestrator) compose(ctx context.Context, s stores.Store, rec *property.VersionRecord) (*property.Aggregate, error) {
	brokers, err := s.Brokers().List(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load brokers of %s: %w", rec.Key(), err)
	}
	tenants, err := s.Tenants().List(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenants of %s: %w", rec.Key(), err)
	}
	if brokers == nil {
		brokers = []property.Broker{}
	}
	if tenants == nil {
		tenants = []property.Tenant{}
	}
	return &property.Aggregate{VersionRecord: *rec, Brokers: brokers, Tenants: tenants}, nil
}

// loadWritable loads key and checks it can be mutated at expectedRevision.
func (o *Orchestrator) loadWritable(ctx context.Context, key property.Key, expectedRevision int64) (*property.Aggregate, error) {
	cur, err := o.load(ctx, o.backend, key)
	if err != nil {
		return nil, err
	}
	if cur.IsHistorical {
		return nil, conflict(property.MsgHistoricalReadOnly, reasonHistorical, nil)
	}
	if cur.Revision != expectedRevision {
		return nil, conflict(property.MsgRevisionMismatch, reasonRevisionMismatch, nil).
			WithDetail("currentRevision", cur.Revision)
	}
	return cur, nil
}

// validate runs the business rules and then the admission policies.
func (o *Orchestrator) validate(ctx context.Context, action property.Action, key property.Key, actor property.Actor, snap property.Snapshot) error {
	if err := rules.ValidateSnapshot(snap); err != nil {
		return err
	}
	return o.admit(ctx, action, key, actor, snap)
}

func (o *Orchestrator) admit(ctx context.Context, action property.Action, key property.Key, actor property.Actor, snap property.Snapshot) error {
	if o.policies == nil {
		return nil
	}

	result, err := o.policies.Evaluate(ctx, &policy.Input{
		Action:     action,
		PropertyID: key.PropertyID,
		Version:    key.Version,
		Actor:      actor,
		Property:   snap,
	})
	if err != nil {
		return fmt.Errorf("failed to evaluate admission policies: %w", err)
	}

	logger := telemetry.FromContext(ctx)
	for _, v := range result.Violations {
		o.tel.Metrics.RecordPolicyViolation(v.Policy, string(v.Severity))
		_ = o.tel.Events.PublishPolicyViolation(key.PropertyID, key.Version, v.Policy, string(v.Severity), v.Message)
		if !v.Severity.Blocking() {
			logger.WithFields(map[string]interface{}{
				"policy":   v.Policy,
				"severity": string(v.Severity),
				"subject":  v.Subject,
			}).Warn(v.Message)
		}
	}
	return result.Err()
}

// appendAudit chains rec onto the newest record of its instance and stores it.
func (o *Orchestrator) appendAudit(ctx context.Context, s stores.Store, rec *property.AuditRecord) error {
	key := property.Key{PropertyID: rec.PropertyID, Version: rec.Version}
	prev, err := s.Audit().LatestHash(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to read audit chain head: %w", err)
	}
	if err := audit.Seal(rec, prev); err != nil {
		return err
	}
	if err := s.Audit().Append(ctx, rec); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	o.tel.Metrics.RecordAuditAppend(string(rec.Action))
	return nil
}

// operation carries the observability state of one mutation.
type operation struct {
	o        *Orchestrator
	ic       *telemetry.InstrumentedContext
	logger   *telemetry.Logger
	action   property.Action
	key      property.Key
	actor    property.Actor
	revision int64
	changed  int
}

func (o *Orchestrator) begin(ctx context.Context, action property.Action, key property.Key, actor property.Actor) (*operation, context.Context) {
	ic := o.tel.StartOperation(ctx, "engine."+string(action),
		telemetry.AttrAction.String(string(action)),
		telemetry.AttrPropertyID.String(key.PropertyID),
		telemetry.AttrVersion.String(key.Version),
		telemetry.AttrActor.String(actor.ID),
		telemetry.AttrDegraded.Bool(!o.transactional),
	)
	logger := ic.Logger.
		WithProperty(key.PropertyID, key.Version).
		WithAction(string(action)).
		WithActor(actor.ID, string(actor.Role))

	op := &operation{o: o, ic: ic, logger: logger, action: action, key: key, actor: actor}
	return op, logger.WithContext(ic.Ctx)
}

// committed records the revision and diff size of a successful write.
func (op *operation) committed(revision int64, changed int) {
	op.revision = revision
	op.changed = changed
}

func (op *operation) finish(err error) {
	o := op.o
	action := string(op.action)
	o.tel.Metrics.RecordMutation(action, outcome(err), op.ic.Timer.Duration())

	if err == nil {
		if op.ic.Span != nil {
			op.ic.Span.SetAttributes(
				telemetry.AttrRevision.Int64(op.revision),
				telemetry.AttrChanges.Int(op.changed),
			)
		}
		_ = o.tel.Events.PublishMutationCommitted(op.key.PropertyID, op.key.Version, action, op.actor.ID, op.revision, op.changed)
		op.logger.WithFields(map[string]interface{}{
			"revision":       op.revision,
			"changed_fields": op.changed,
		}).Debug("Mutation committed")
		op.ic.End(nil)
		return
	}

	kind := string(property.KindOf(err))
	if property.IsConflict(err) {
		o.tel.Metrics.RecordConflict(conflictReason(err))
	}
	if op.ic.Span != nil && kind != "" {
		op.ic.Span.SetAttributes(telemetry.AttrErrorKind.String(kind))
	}
	_ = o.tel.Events.PublishMutationRejected(op.key.PropertyID, op.key.Version, action, op.actor.ID, kind, property.MessageOf(err))
	if kind == "" {
		op.logger.WithError(err).Error("Mutation failed")
	} else {
		op.logger.WithField("kind", kind).Debug(property.MessageOf(err))
	}
	op.ic.End(err)
}
