package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/orderledger/internal/audit"
	"github.com/angelmondragon/orderledger/pkg/logger"
)

type auditor interface {
	Verify(ctx context.Context) (audit.Report, error)
	Rebuild(ctx context.Context) (audit.Report, error)
}

// reportSink stores the latest audit summary; pkg/redis.Client satisfies it.
type reportSink interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

const reportTTL = 7 * 24 * time.Hour

// AuditSummary is the JSON document published after every audit run.
type AuditSummary struct {
	Job        string       `json:"job"`
	FinishedAt time.Time    `json:"finished_at"`
	Clean      bool         `json:"clean"`
	Report     audit.Report `json:"report"`
}

type DerivedAuditJobParams struct {
	Logger  *logger.Logger
	Auditor auditor
	// Repair writes recomputed values back instead of only reporting drift.
	Repair bool
	// Reports and ReportKey are optional; when both are set the summary of
	// each run is stored under ReportKey.
	Reports   reportSink
	ReportKey string
}

// NewDerivedAuditJob checks stored amounts, totals and balances against a
// full recomputation.
func NewDerivedAuditJob(params DerivedAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Auditor == nil {
		return nil, fmt.Errorf("auditor required")
	}
	return &derivedAuditJob{
		logg:      params.Logger,
		auditor:   params.Auditor,
		repair:    params.Repair,
		reports:   params.Reports,
		reportKey: params.ReportKey,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

type derivedAuditJob struct {
	logg      *logger.Logger
	auditor   auditor
	repair    bool
	reports   reportSink
	reportKey string
	now       func() time.Time
}

func (j *derivedAuditJob) Name() string { return "derived-audit" }

// Run fails when drift is left unrepaired or a customer is over its limit.
func (j *derivedAuditJob) Run(ctx context.Context) error {
	run := j.auditor.Verify
	if j.repair {
		run = j.auditor.Rebuild
	}
	report, err := run(ctx)
	if err != nil {
		return err
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"drifts":     len(report.Drifts),
		"over_limit": len(report.OverLimit),
		"repaired":   report.Repaired,
	})
	j.logg.Info(logCtx, "derived audit complete")
	j.publish(logCtx, report)

	var errs error
	if len(report.Drifts) > 0 && !report.Repaired {
		errs = multierr.Append(errs, fmt.Errorf("%d derived values out of date", len(report.Drifts)))
	}
	if len(report.OverLimit) > 0 {
		errs = multierr.Append(errs, fmt.Errorf("%d customers over credit limit", len(report.OverLimit)))
	}
	return errs
}

func (j *derivedAuditJob) publish(ctx context.Context, report audit.Report) {
	if j.reports == nil || j.reportKey == "" {
		return
	}
	payload, err := json.Marshal(AuditSummary{
		Job:        j.Name(),
		FinishedAt: j.now(),
		Clean:      report.Clean(),
		Report:     report,
	})
	if err != nil {
		j.logg.Error(ctx, "failed to encode audit summary", err)
		return
	}
	if err := j.reports.Set(ctx, j.reportKey, string(payload), reportTTL); err != nil {
		j.logg.Error(ctx, "failed to publish audit summary", err)
	}
}
