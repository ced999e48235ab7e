// Package trigger is the C12 Triggers & Scheduler Adapter: it converts
// external "document written" and "time fires" signals into calls
// into the Report Processor (C9) and Retention Sweeper (C11),
// guaranteeing idempotency under at-least-once delivery. See
// spec.md §4.12.
//
// The polling design is grounded on the teacher's mempool poller
// (internal/mempool/poller.go): a ticker-driven loop that fetches a
// bounded batch of new work per tick, processes it, and logs and
// continues past per-item failures rather than aborting the loop.
package trigger

import (
	"context"
	"log"
	"time"

	"github.com/lighthouse-health/exposure-relay/internal/retention"
	"github.com/lighthouse-health/exposure-relay/internal/report"
	"github.com/lighthouse-health/exposure-relay/internal/store"
	"github.com/lighthouse-health/exposure-relay/pkg/models"
)

// reportPollInterval bounds how long a newly created pending report
// can sit before its trigger fires.
const reportPollInterval = 3 * time.Second

// maxReportsPerTick caps the work done in a single poll, mirroring
// the teacher's 20-per-tick mempool cap.
const maxReportsPerTick = 20

// Adapter owns the report-trigger poller and the retention scheduler.
type Adapter struct {
	store     store.Store
	processor *report.Processor
	sweeper   *retention.Sweeper
}

func New(s store.Store, processor *report.Processor, sweeper *retention.Sweeper) *Adapter {
	return &Adapter{store: s, processor: processor, sweeper: sweeper}
}

// RunReportTrigger polls for pending reports/{id} documents and
// dispatches them to the Report Processor until ctx is cancelled.
// Idempotency comes from the processor's own pending->processing CAS
// (report.Processor.ProcessPositive/ProcessNegative are themselves
// safe to re-run), not from anything in this loop.
func (a *Adapter) RunReportTrigger(ctx context.Context) {
	log.Println("trigger: starting report poller")
	ticker := time.NewTicker(reportPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("trigger: stopping report poller")
			return
		case <-ticker.C:
			a.pollPendingReports(ctx)
		}
	}
}

func (a *Adapter) pollPendingReports(ctx context.Context) {
	snaps, err := a.store.Query(ctx, store.Reports, "status", string(models.StatusPending), store.QueryOptions{})
	if err != nil {
		log.Printf("trigger: failed polling pending reports: %v", err)
		return
	}

	now := time.Now().UnixMilli()
	processed := 0
	for _, snap := range snaps {
		if processed >= maxReportsPerTick {
			break
		}
		var rep models.Report
		if err := snap.Unmarshal(&rep); err != nil {
			log.Printf("trigger: skipping malformed report %s: %v", snap.ID, err)
			continue
		}

		var dispatchErr error
		switch rep.TestResult {
		case models.TestPositive:
			dispatchErr = a.processor.ProcessPositive(ctx, rep.ID, now)
		case models.TestNegative:
			dispatchErr = a.processor.ProcessNegative(ctx, rep.ID, now)
		default:
			log.Printf("trigger: report %s has unrecognized testResult %q, skipping", rep.ID, rep.TestResult)
			continue
		}
		if dispatchErr != nil {
			log.Printf("trigger: processing report %s failed: %v", rep.ID, dispatchErr)
		}
		processed++
	}
}

// retentionHourUTC is the hour-of-day (UTC) gate for the sweep,
// matching the platform's "0 3 * * *" cron expression (spec.md §4.11
// / §6).
const retentionHourUTC = 3

// RunRetentionSchedule polls at interval and fires the Retention
// Sweeper at most once per UTC calendar day, at or after
// retentionHourUTC — the in-process analogue of the platform's
// "0 3 * * *" cron trigger, since this engine owns its own scheduling
// rather than delegating to an external cron service.
func (a *Adapter) RunRetentionSchedule(ctx context.Context, interval time.Duration) {
	log.Println("trigger: starting retention scheduler")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastSweptDay string
	check := func() {
		now := time.Now().UTC()
		if now.Hour() < retentionHourUTC {
			return
		}
		day := now.Format("2006-01-02")
		if day == lastSweptDay {
			return
		}
		lastSweptDay = day
		a.runSweepOnce(ctx)
	}

	check()
	for {
		select {
		case <-ctx.Done():
			log.Println("trigger: stopping retention scheduler")
			return
		case <-ticker.C:
			check()
		}
	}
}

func (a *Adapter) runSweepOnce(ctx context.Context) {
	result, err := a.sweeper.Run(ctx, time.Now().UnixMilli())
	if err != nil {
		log.Printf("trigger: retention sweep failed: %v", err)
		return
	}
	log.Printf("trigger: retention sweep complete: %d interactions, %d notifications, %d reports deleted",
		result.InteractionsDeleted, result.NotificationsDeleted, result.ReportsDeleted)
}
