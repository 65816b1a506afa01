package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/orderledger/internal/orders"
	"github.com/angelmondragon/orderledger/pkg/logger"
)

const eventRetentionDays = 30

type EventRetentionJobParams struct {
	Logger    *logger.Logger
	Store     orders.UnitOfWork
	Retention int
}

// NewEventRetentionJob prunes recorded cascade events older than the retention window.
func NewEventRetentionJob(params EventRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = eventRetentionDays
	}
	return &eventRetentionJob{
		logg:      params.Logger,
		store:     params.Store,
		retention: retention,
		now:       time.Now,
	}, nil
}

type eventRetentionJob struct {
	logg      *logger.Logger
	store     orders.UnitOfWork
	retention int
	now       func() time.Time
}

func (j *eventRetentionJob) Name() string { return "event-retention" }

func (j *eventRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	var deleted int64
	err := j.store.Run(ctx, func(repo orders.Repository) error {
		rows, err := repo.DeleteEventsBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("event retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "event retention cleanup complete")
	return nil
}
