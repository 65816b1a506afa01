package cascade

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/orderledger/pkg/db/models"
	"github.com/angelmondragon/orderledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderledger/pkg/errors"
	"github.com/angelmondragon/orderledger/pkg/logger"
	"github.com/angelmondragon/orderledger/pkg/metrics"
)

// Decision is the outcome of running a mutation through the cascade.
type Decision struct {
	Proceed bool
	Reason  enums.AbortReason
	Err     error
	State   enums.MutationState
	Plan    Plan
}

// CommitFunc persists a validated plan inside the store's unit of work.
type CommitFunc func(ctx context.Context, plan Plan) error

// Interceptor runs every line item or order mutation through
// snapshot, recompute and validate before the store commits it.
type Interceptor struct {
	coord   *Coordinator
	logg    *logger.Logger
	metrics *metrics.CascadeMetrics
}

// NewInterceptor wires an interceptor over store. Metrics are optional.
func NewInterceptor(store EntityStore, logg *logger.Logger, m *metrics.CascadeMetrics) (*Interceptor, error) {
	coord, err := NewCoordinator(store, logg, m)
	if err != nil {
		return nil, err
	}
	return &Interceptor{coord: coord, logg: logg, metrics: m}, nil
}

// OnBeforeCommit resolves, recomputes and validates the mutation. entity is
// the proposed value for inserts and updates and the prior value for deletes.
func (i *Interceptor) OnBeforeCommit(ctx context.Context, entity Entity, snap Snapshot) Decision {
	d := Decision{State: enums.MutationRequested}

	if err := checkSnapshot(entity, snap); err != nil {
		return i.abort(ctx, d, snap, enums.AbortInvalidMutation, err)
	}
	d.advance(enums.MutationSnapshotted)

	var (
		plan Plan
		err  error
	)
	switch e := entity.(type) {
	case *models.LineItem:
		plan, err = i.coord.ResolveLineItem(ctx, proposedItem(e, snap), snap)
		if err == nil {
			plan.Events = lineItemEvents(snap, plan.Item)
		}
	case *models.Order:
		plan, err = i.coord.ResolveOrder(ctx, proposedOrder(e, snap), snap)
		if err == nil {
			plan.Events = orderEvents(snap, plan.Order)
		}
	}
	if err != nil {
		return i.abort(ctx, d, snap, enums.AbortLookupFailed,
			pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cascade lookup failed"))
	}
	d.Plan = plan
	d.advance(enums.MutationRecomputed)

	if reason, err := ValidatePlan(plan); err != nil {
		return i.abort(ctx, d, snap, reason, err)
	}
	d.advance(enums.MutationValidated)
	d.Proceed = true
	return d
}

// Apply runs OnBeforeCommit and, when it proceeds, hands the plan to commit.
// The returned decision ends in Committed or Aborted; err is non-nil for aborts.
func (i *Interceptor) Apply(ctx context.Context, entity Entity, snap Snapshot, commit CommitFunc) (Decision, error) {
	start := time.Now()
	d := i.OnBeforeCommit(ctx, entity, snap)
	if !d.Proceed {
		i.metrics.ObserveMutation(string(snap.Kind), string(enums.MutationAborted), time.Since(start))
		return d, d.Err
	}

	if commit == nil {
		err := pkgerrors.New(pkgerrors.CodeInternal, "commit function required")
		d = i.abort(ctx, d, snap, enums.AbortCommitFailed, err)
		i.metrics.ObserveMutation(string(snap.Kind), string(enums.MutationAborted), time.Since(start))
		return d, d.Err
	}
	if err := commit(ctx, d.Plan); err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "commit mutation")
		}
		d = i.abort(ctx, d, snap, enums.AbortCommitFailed, err)
		i.metrics.ObserveMutation(string(snap.Kind), string(enums.MutationAborted), time.Since(start))
		return d, d.Err
	}

	d.advance(enums.MutationCommitted)
	i.metrics.ObserveMutation(string(snap.Kind), string(enums.MutationCommitted), time.Since(start))
	i.logEvents(ctx, d.Plan.Events)
	return d, nil
}

func (i *Interceptor) abort(ctx context.Context, d Decision, snap Snapshot, reason enums.AbortReason, err error) Decision {
	d.Proceed = false
	d.Reason = reason
	d.Err = err
	d.advance(enums.MutationAborted)

	i.metrics.IncAbort(string(reason))
	logCtx := i.logg.WithFields(ctx, map[string]any{
		"entity_kind": snap.Kind,
		"entity_id":   snap.ID.String(),
		"op":          snap.Op(),
		"reason":      reason,
	})
	if reason == enums.AbortInvalidQuantity || reason == enums.AbortCreditLimitExceeded || reason == enums.AbortInvalidMutation {
		i.logg.Info(logCtx, "mutation rejected")
	} else {
		i.logg.Error(logCtx, "mutation aborted", err)
	}
	return d
}

func (i *Interceptor) logEvents(ctx context.Context, events []Event) {
	for _, ev := range events {
		fields := map[string]any{
			"event":       ev.Type,
			"entity_kind": ev.Kind,
			"entity_id":   ev.EntityID.String(),
		}
		if ev.Field != "" {
			fields["field"] = ev.Field
			fields["old_ref"] = ev.OldRef.String()
			fields["new_ref"] = ev.NewRef.String()
		}
		i.logg.Info(i.logg.WithFields(ctx, fields), "cascade event")
	}
}

// advance moves d to next when the lifecycle allows it.
func (d *Decision) advance(next enums.MutationState) {
	if d.State.CanTransitionTo(next) {
		d.State = next
	}
}

func checkSnapshot(entity Entity, snap Snapshot) error {
	if entity == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "entity required")
	}
	if snap.Old == nil && snap.New == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "snapshot has neither prior nor proposed state")
	}
	switch entity.(type) {
	case *models.LineItem, *models.Order:
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s mutations do not cascade", entity.EntityKind()))
	}
	if entity.EntityKind() != snap.Kind || entity.EntityID() != snap.ID {
		return pkgerrors.New(pkgerrors.CodeValidation, "snapshot does not describe entity")
	}
	return nil
}

func proposedItem(item *models.LineItem, snap Snapshot) *models.LineItem {
	if snap.Op() == enums.MutationDelete {
		return nil
	}
	return item
}

func proposedOrder(order *models.Order, snap Snapshot) *models.Order {
	if snap.Op() == enums.MutationDelete {
		return nil
	}
	return order
}
